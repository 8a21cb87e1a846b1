package integrationevent

import "github.com/pkg/errors"

var ErrUnknownEventKind = errors.New("unknown event kind")

// EventKind enumerates the inbound events the order service reacts to.
type EventKind int

const (
	StockConfirmed EventKind = iota + 1
	StockRejected
	PaymentSucceeded
	PaymentFailed
	GracePeriodExpired
)

var kindNames = map[EventKind]string{
	StockConfirmed:     "StockConfirmed",
	StockRejected:      "StockRejected",
	PaymentSucceeded:   "PaymentSucceeded",
	PaymentFailed:      "PaymentFailed",
	GracePeriodExpired: "GracePeriodExpired",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Kinds lists every kind in declaration order; it doubles as the routing key set.
func Kinds() []EventKind {
	return []EventKind{StockConfirmed, StockRejected, PaymentSucceeded, PaymentFailed, GracePeriodExpired}
}

func ParseEventKind(name string) (EventKind, error) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownEventKind, "%q", name)
}
