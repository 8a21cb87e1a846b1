package metrics

import (
	"context"

	"order/pkg/domain/service"
)

// NewDispatcher counts every publish attempt of the wrapped dispatcher.
func NewDispatcher(dispatcher service.EventDispatcher, metrics *Metrics) service.EventDispatcher {
	return &countingDispatcher{dispatcher: dispatcher, metrics: metrics}
}

type countingDispatcher struct {
	dispatcher service.EventDispatcher
	metrics    *Metrics
}

func (d *countingDispatcher) Dispatch(ctx context.Context, event service.Event) error {
	err := d.dispatcher.Dispatch(ctx, event)
	d.metrics.EventsPublished.WithLabelValues(event.Type(), Result(err)).Inc()
	return err
}
