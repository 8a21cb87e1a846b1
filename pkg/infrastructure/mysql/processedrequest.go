package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"order/pkg/domain/model"
)

type processedRequestRow struct {
	RequestID   string    `db:"request_id"`
	CommandType string    `db:"command_type"`
	Result      []byte    `db:"result"`
	CreatedAt   time.Time `db:"created_at"`
}

func NewProcessedRequestRepository(db *sqlx.DB) model.ProcessedRequestRepository {
	return &processedRequestRepository{db: db}
}

type processedRequestRepository struct {
	db *sqlx.DB
}

func (r *processedRequestRepository) Find(ctx context.Context, requestID string) (*model.ProcessedRequest, error) {
	var row processedRequestRow
	err := r.db.GetContext(ctx, &row, `
		SELECT request_id, command_type, result, created_at
		FROM processed_requests WHERE request_id = ?`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProcessedRequestNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select processed request")
	}
	return &model.ProcessedRequest{
		RequestID:   row.RequestID,
		CommandType: model.CommandType(row.CommandType),
		Result:      row.Result,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (r *processedRequestRepository) Store(ctx context.Context, request *model.ProcessedRequest) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO processed_requests (request_id, command_type, result, created_at)
		VALUES (:request_id, :command_type, :result, :created_at)`,
		processedRequestRow{
			RequestID:   request.RequestID,
			CommandType: string(request.CommandType),
			Result:      request.Result,
			CreatedAt:   request.CreatedAt.UTC(),
		})
	if isDuplicateEntry(err) {
		return model.ErrDuplicateRequest
	}
	return errors.Wrap(err, "insert processed request")
}
