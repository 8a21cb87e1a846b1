package amqp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"order/pkg/domain/service"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// identifiedEvent is implemented by events that carry their own id.
type identifiedEvent interface {
	ID() uuid.UUID
}

func NewPublisher(ch *amqp.Channel, exchange string) service.EventDispatcher {
	return newPublisher(ch, exchange)
}

func newPublisher(ch publishChannel, exchange string) *publisher {
	return &publisher{channel: ch, exchange: exchange}
}

type publisher struct {
	mu       sync.Mutex
	channel  publishChannel
	exchange string
}

// Dispatch publishes the event as persistent JSON with the event type as routing key.
func (p *publisher) Dispatch(ctx context.Context, event service.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", event.Type())
	}

	messageID := uuid.NewString()
	if identified, ok := event.(identifiedEvent); ok {
		messageID = identified.ID().String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         event.Type(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	return errors.Wrapf(err, "publish %s", event.Type())
}
