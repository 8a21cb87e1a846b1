package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
	"order/pkg/infrastructure/amqp"
	"order/pkg/infrastructure/basket"
	"order/pkg/infrastructure/integrationevent"
	"order/pkg/infrastructure/metrics"
	"order/pkg/infrastructure/mysql"
	"order/pkg/infrastructure/redis"
	"order/pkg/infrastructure/scheduler"
	"order/pkg/infrastructure/transport"
)

const shutdownTimeout = 15 * time.Second

func runMigrate(ctx context.Context, cfg *config, logger *log.Logger) error {
	db, err := mysql.Connect(ctx, mysql.Config{DSN: cfg.DatabaseDSN})
	if err != nil {
		return err
	}
	defer db.Close()

	return mysql.Migrate(db, logger)
}

func runService(ctx context.Context, cfg *config, logger *log.Logger) error {
	db, err := mysql.Connect(ctx, mysql.Config{
		DSN:             cfg.DatabaseDSN,
		MaxOpenConns:    cfg.DatabaseMaxConnections,
		MaxIdleConns:    cfg.DatabaseMaxConnections,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	conn, err := amqp.Dial(ctx, cfg.AMQPURL, cfg.AMQPConnectTimeout, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	publishChannel, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open publish channel")
	}
	consumeChannel, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open consume channel")
	}

	routingKeys := make([]string, 0, len(integrationevent.Kinds()))
	for _, kind := range integrationevent.Kinds() {
		routingKeys = append(routingKeys, kind.String())
	}
	topology := amqp.Topology{
		Exchange:           cfg.EventsExchange,
		Queue:              cfg.EventsQueue,
		DeadLetterExchange: cfg.DeadLetterExchange,
		DeadLetterQueue:    cfg.DeadLetterQueue,
		RoutingKeys:        routingKeys,
	}
	if err := topology.Declare(publishChannel); err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var requests model.ProcessedRequestRepository = mysql.NewProcessedRequestRepository(db)
	if cfg.RedisAddress != "" {
		client := redis.NewClient(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		requests = redis.NewCachedProcessedRequestRepository(requests, redis.NewCache(client, appID), cfg.LedgerCacheTTL, logger)
	}

	timer := scheduler.NewTimer(
		mysql.NewGracePeriodScheduleRepository(db),
		scheduler.Config{SweepInterval: cfg.SweepInterval},
		logger,
		m,
	)

	orders := service.NewOrderService(service.Dependencies{
		Orders:     mysql.NewOrderRepository(db),
		Requests:   requests,
		Basket:     basket.NewClient(cfg.BasketURL, cfg.BasketTimeout),
		Scheduler:  timer,
		Dispatcher: metrics.NewDispatcher(amqp.NewPublisher(publishChannel, cfg.EventsExchange), m),
		Logger:     logger,
	}, service.Config{
		GracePeriod: cfg.GracePeriod,
		Currency:    cfg.Currency,
	})

	consumer := amqp.NewConsumer(consumeChannel, amqp.ConsumerConfig{
		Queue:    cfg.EventsQueue,
		Tag:      appID,
		Workers:  cfg.ConsumerWorkers,
		Prefetch: cfg.ConsumerPrefetch,
		Timeout:  cfg.HandlerTimeout,
	}, integrationevent.NewRouter(orders), m, logger)

	httpServer := &http.Server{
		Addr:              cfg.ServeHTTPAddress,
		Handler:           transport.Router(orders, logger, m, metrics.Handler(prometheus.DefaultGatherer)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	grpcListener, err := net.Listen("tcp", cfg.ServeGRPCAddress)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.ServeGRPCAddress)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("address", cfg.ServeHTTPAddress).Info("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("address", cfg.ServeGRPCAddress).Info("starting grpc health server")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return errors.Wrap(grpcServer.Serve(grpcListener), "serve grpc")
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return timer.Run(gctx, orders)
	})
	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return errors.Wrap(err, "shutdown http server")
	})

	err = g.Wait()
	logger.Info("order service stopped")
	return err
}
