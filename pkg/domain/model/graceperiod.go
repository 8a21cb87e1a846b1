package model

import (
	"context"
	"time"
)

// GracePeriodSchedule is the durable "wake me at FireAt" record for one order.
type GracePeriodSchedule struct {
	OrderID int64
	FireAt  time.Time
	FiredAt *time.Time
}

type GracePeriodScheduleRepository interface {
	Create(ctx context.Context, schedule *GracePeriodSchedule) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]GracePeriodSchedule, error)
	MarkFired(ctx context.Context, orderID int64, firedAt time.Time) error
}
