package mysql

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"order/pkg/domain/model"
)

type gracePeriodRow struct {
	OrderID int64      `db:"order_id"`
	FireAt  time.Time  `db:"fire_at"`
	FiredAt *time.Time `db:"fired_at"`
}

func NewGracePeriodScheduleRepository(db *sqlx.DB) model.GracePeriodScheduleRepository {
	return &gracePeriodScheduleRepository{db: db}
}

type gracePeriodScheduleRepository struct {
	db *sqlx.DB
}

// Create keeps the first schedule of an order; repeated calls are no-ops.
func (r *gracePeriodScheduleRepository) Create(ctx context.Context, schedule *model.GracePeriodSchedule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT IGNORE INTO grace_period_schedules (order_id, fire_at) VALUES (?, ?)`,
		schedule.OrderID, schedule.FireAt.UTC())
	return errors.Wrap(err, "insert grace period schedule")
}

func (r *gracePeriodScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]model.GracePeriodSchedule, error) {
	var rows []gracePeriodRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT order_id, fire_at, fired_at FROM grace_period_schedules
		WHERE fired_at IS NULL AND fire_at <= ?
		ORDER BY fire_at LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due grace period schedules")
	}

	schedules := make([]model.GracePeriodSchedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, model.GracePeriodSchedule{
			OrderID: row.OrderID,
			FireAt:  row.FireAt,
			FiredAt: row.FiredAt,
		})
	}
	return schedules, nil
}

func (r *gracePeriodScheduleRepository) MarkFired(ctx context.Context, orderID int64, firedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE grace_period_schedules SET fired_at = ? WHERE order_id = ? AND fired_at IS NULL`,
		firedAt.UTC(), orderID)
	return errors.Wrap(err, "mark grace period schedule fired")
}
