package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  appID,
		Usage: "order orchestration service",
		Commands: []*cli.Command{
			{
				Name:   "service",
				Usage:  "serve the HTTP API and process integration events",
				Action: func(c *cli.Context) error { return withConfig(c, runService) },
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: func(c *cli.Context) error { return withConfig(c, runMigrate) },
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("order service failed")
	}
}

func withConfig(c *cli.Context, run func(ctx context.Context, cfg *config, logger *log.Logger) error) error {
	cfg, err := parseEnv()
	if err != nil {
		return err
	}

	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go func() {
		waitForKillSignal(logger, getKillSignalChan())
		cancel()
	}()

	return run(ctx, cfg, logger)
}

func getKillSignalChan() chan os.Signal {
	osKillSignalChan := make(chan os.Signal, 1)
	signal.Notify(osKillSignalChan, os.Interrupt, syscall.SIGTERM)
	return osKillSignalChan
}

func waitForKillSignal(logger log.FieldLogger, killSignalChan <-chan os.Signal) {
	killSignal := <-killSignalChan
	switch killSignal {
	case os.Interrupt:
		logger.Info("got SIGINT...")
	case syscall.SIGTERM:
		logger.Info("got SIGTERM...")
	}
}
