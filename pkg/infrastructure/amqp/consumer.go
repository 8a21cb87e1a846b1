package amqp

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"order/pkg/infrastructure/integrationevent"
	"order/pkg/infrastructure/metrics"
)

type Handler interface {
	Route(ctx context.Context, kind integrationevent.EventKind, body []byte) error
}

type ConsumerConfig struct {
	Queue    string
	Tag      string
	Workers  int
	Prefetch int
	Timeout  time.Duration
}

type Consumer struct {
	channel *amqp.Channel
	config  ConsumerConfig
	handler Handler
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewConsumer(ch *amqp.Channel, config ConsumerConfig, handler Handler, m *metrics.Metrics, logger logrus.FieldLogger) *Consumer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Prefetch < config.Workers {
		config.Prefetch = config.Workers
	}
	return &Consumer{channel: ch, config: config, handler: handler, metrics: m, logger: logger}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.channel.Qos(c.config.Prefetch, 0, false); err != nil {
		return errors.Wrap(err, "set qos")
	}
	deliveries, err := c.channel.Consume(c.config.Queue, c.config.Tag, false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "consume %s", c.config.Queue)
	}

	c.logger.WithFields(logrus.Fields{
		"queue":   c.config.Queue,
		"workers": c.config.Workers,
	}).Info("consuming integration events")

	closed := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	for i := 0; i < c.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						once.Do(func() { close(closed) })
						return
					}
					c.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()

	select {
	case <-closed:
		if ctx.Err() == nil {
			return errors.New("delivery channel closed by broker")
		}
	default:
	}
	if err := c.channel.Cancel(c.config.Tag, false); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "cancel consumer")
	}
	return nil
}

// handle acks on success and rejects without requeue otherwise, which routes
// the delivery to the dead-letter exchange.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	eventType := d.Type
	if eventType == "" {
		eventType = d.RoutingKey
	}
	logger := c.logger.WithFields(logrus.Fields{
		"event_type": eventType,
		"message_id": d.MessageId,
	})

	err := c.process(ctx, eventType, d.Body)
	if c.metrics != nil {
		c.metrics.EventsConsumed.WithLabelValues(eventType, metrics.Result(err)).Inc()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// The handler goroutine may still be running; the order service refuses
			// to commit once its context is done, but a write already in flight can land.
			logger = logger.WithField("handler_abandoned", true)
		}
		logger.WithError(err).Error("failed to handle event, dead-lettering")
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.WithError(nackErr).Error("failed to nack delivery")
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		logger.WithError(ackErr).Error("failed to ack delivery")
		return
	}
	logger.Debug("event handled")
}

func (c *Consumer) process(ctx context.Context, eventType string, body []byte) error {
	kind, err := integrationevent.ParseEventKind(eventType)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.handler.Route(ctx, kind, body)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "handle %s", kind)
	}
}
