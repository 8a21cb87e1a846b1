package amqp

import (
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Topology struct {
	Exchange           string
	Queue              string
	DeadLetterExchange string
	DeadLetterQueue    string
	RoutingKeys        []string
}

// Declare sets up the event exchange, the work queue bound to RoutingKeys and
// the dead-letter path that rejected deliveries are routed to.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare exchange %s", t.Exchange)
	}
	if err := ch.ExchangeDeclare(t.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare exchange %s", t.DeadLetterExchange)
	}
	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare queue %s", t.DeadLetterQueue)
	}
	if err := ch.QueueBind(t.DeadLetterQueue, "", t.DeadLetterExchange, false, nil); err != nil {
		return errors.Wrapf(err, "bind queue %s", t.DeadLetterQueue)
	}

	_, err := ch.QueueDeclare(t.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": t.DeadLetterExchange,
	})
	if err != nil {
		return errors.Wrapf(err, "declare queue %s", t.Queue)
	}
	for _, key := range t.RoutingKeys {
		if err := ch.QueueBind(t.Queue, key, t.Exchange, false, nil); err != nil {
			return errors.Wrapf(err, "bind queue %s to %s", t.Queue, key)
		}
	}
	return nil
}
