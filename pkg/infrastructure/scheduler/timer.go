package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"order/pkg/domain/model"
	"order/pkg/infrastructure/metrics"
)

type Expirer interface {
	ExpireGracePeriod(ctx context.Context, orderID int64) error
}

type Config struct {
	SweepInterval time.Duration
	BatchSize     int
}

// Timer is a durable grace period timer. Every schedule is stored first and
// then armed in process; a periodic sweep fires whatever is due but was not
// fired, which covers restarts and failed firings.
type Timer struct {
	repo    model.GracePeriodScheduleRepository
	config  Config
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	expirer Expirer
	timers  map[int64]*time.Timer
	closed  bool
	firing  sync.WaitGroup
}

func NewTimer(repo model.GracePeriodScheduleRepository, config Config, logger logrus.FieldLogger, m *metrics.Metrics) *Timer {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 10 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Timer{
		repo:    repo,
		config:  config,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		timers:  make(map[int64]*time.Timer),
	}
}

// Schedule persists the expiry of orderID and arms an in-process timer once Run has started.
func (t *Timer) Schedule(ctx context.Context, orderID int64, fireAt time.Time) error {
	err := t.repo.Create(ctx, &model.GracePeriodSchedule{OrderID: orderID, FireAt: fireAt})
	if err != nil {
		return errors.Wrapf(err, "store grace period of order %d", orderID)
	}
	t.arm(orderID, fireAt)
	return nil
}

// Run fires due schedules until ctx is cancelled.
func (t *Timer) Run(ctx context.Context, expirer Expirer) error {
	t.mu.Lock()
	t.ctx = ctx
	t.expirer = expirer
	t.mu.Unlock()

	ticker := time.NewTicker(t.config.SweepInterval)
	defer ticker.Stop()
	for {
		t.sweep(ctx)
		select {
		case <-ctx.Done():
			t.Close()
			return nil
		case <-ticker.C:
		}
	}
}

// Close stops armed timers and waits for in-flight firings. Stored schedules survive.
func (t *Timer) Close() {
	t.mu.Lock()
	t.closed = true
	for orderID, timer := range t.timers {
		timer.Stop()
		delete(t.timers, orderID)
	}
	t.mu.Unlock()
	t.firing.Wait()
}

func (t *Timer) arm(orderID int64, fireAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expirer == nil || t.closed {
		return
	}
	if _, armed := t.timers[orderID]; armed {
		return
	}
	delay := fireAt.Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	t.timers[orderID] = time.AfterFunc(delay, func() {
		t.fireArmed(orderID)
	})
}

func (t *Timer) fireArmed(orderID int64) {
	t.mu.Lock()
	delete(t.timers, orderID)
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.firing.Add(1)
	ctx := t.ctx
	t.mu.Unlock()
	defer t.firing.Done()

	t.fire(ctx, orderID)
}

func (t *Timer) sweep(ctx context.Context) {
	due, err := t.repo.FindDue(ctx, t.now(), t.config.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.WithError(err).Error("failed to load due grace periods")
		}
		return
	}
	for _, schedule := range due {
		if ctx.Err() != nil {
			return
		}
		t.mu.Lock()
		_, armed := t.timers[schedule.OrderID]
		t.mu.Unlock()
		if armed {
			continue
		}
		t.fire(ctx, schedule.OrderID)
	}
}

// fire leaves the schedule unfired on failure so the next sweep retries it.
func (t *Timer) fire(ctx context.Context, orderID int64) {
	logger := t.logger.WithField("order_id", orderID)

	err := t.expirer.ExpireGracePeriod(ctx, orderID)
	if errors.Is(err, model.ErrOrderNotFound) {
		logger.Warn("grace period expired for unknown order")
		err = nil
	}
	t.count(err)
	if err != nil {
		logger.WithError(err).Error("grace period expiry failed, will retry")
		return
	}

	if err := t.repo.MarkFired(ctx, orderID, t.now()); err != nil {
		logger.WithError(err).Error("failed to mark grace period fired")
	}
}

func (t *Timer) count(err error) {
	if t.metrics != nil {
		t.metrics.GracePeriods.WithLabelValues(metrics.Result(err)).Inc()
	}
}
