package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"order/pkg/domain/model"
)

// ExecuteIdempotent runs operation at most once per request id.
//
// A stored result is decoded and returned without calling operation. The first
// execution also returns the decoded stored bytes, so a replay is
// indistinguishable from the original response. Failed operations are not
// recorded and may be retried with the same request id.
func ExecuteIdempotent[T any](
	ctx context.Context,
	repo model.ProcessedRequestRepository,
	requestID string,
	commandType model.CommandType,
	operation func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if requestID == "" {
		return zero, model.ErrRequestIDRequired
	}

	stored, err := repo.Find(ctx, requestID)
	if err == nil {
		return replay[T](stored, commandType)
	}
	if !errors.Is(err, model.ErrProcessedRequestNotFound) {
		return zero, errors.Wrapf(err, "find processed request %s", requestID)
	}

	result, err := operation(ctx)
	if err != nil {
		return zero, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return zero, errors.Wrapf(err, "marshal %s result", commandType)
	}

	err = repo.Store(ctx, &model.ProcessedRequest{
		RequestID:   requestID,
		CommandType: commandType,
		Result:      payload,
		CreatedAt:   time.Now().UTC(),
	})
	if errors.Is(err, model.ErrDuplicateRequest) {
		// Lost a race with a concurrent delivery of the same request.
		stored, err = repo.Find(ctx, requestID)
		if err != nil {
			return zero, errors.Wrapf(err, "find processed request %s", requestID)
		}
		return replay[T](stored, commandType)
	}
	if err != nil {
		return zero, errors.Wrapf(err, "store processed request %s", requestID)
	}

	return decode[T](payload)
}

func replay[T any](stored *model.ProcessedRequest, commandType model.CommandType) (T, error) {
	if stored.CommandType != commandType {
		var zero T
		return zero, errors.Wrapf(model.ErrRequestIDConflict,
			"request %s was a %s, not a %s", stored.RequestID, stored.CommandType, commandType)
	}
	return decode[T](stored.Result)
}

func decode[T any](payload []byte) (T, error) {
	var result T
	if err := json.Unmarshal(payload, &result); err != nil {
		var zero T
		return zero, errors.Wrap(err, "unmarshal processed request result")
	}
	return result, nil
}
