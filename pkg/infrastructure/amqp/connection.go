package amqp

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Dial connects to the broker, retrying with exponential backoff until
// maxElapsed passes or ctx is cancelled.
func Dial(ctx context.Context, url string, maxElapsed time.Duration, logger logrus.FieldLogger) (*amqp.Connection, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	var conn *amqp.Connection
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.WithError(err).WithField("retry_in", next.String()).Warn("rabbitmq is not reachable yet")
	})
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}
	return conn, nil
}
