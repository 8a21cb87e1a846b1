package tests

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
)

type receipt struct {
	Value int `json:"value"`
}

func TestExecuteIdempotent(t *testing.T) {
	ctx := context.Background()

	t.Run("Runs operation once", func(t *testing.T) {
		repo := newMockProcessedRequestRepository()
		calls := 0
		op := func(context.Context) (receipt, error) {
			calls++
			return receipt{Value: calls}, nil
		}

		first, err := service.ExecuteIdempotent(ctx, repo, "req-1", model.ShipOrderCommand, op)
		require.NoError(t, err)
		second, err := service.ExecuteIdempotent(ctx, repo, "req-1", model.ShipOrderCommand, op)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, receipt{Value: 1}, first)
		assert.Equal(t, first, second)
		assert.JSONEq(t, `{"value":1}`, string(repo.store["req-1"].Result))
	})

	t.Run("Stored result wins over a different operation result", func(t *testing.T) {
		repo := newMockProcessedRequestRepository()
		repo.put(model.ProcessedRequest{
			RequestID:   "req-1",
			CommandType: model.ShipOrderCommand,
			Result:      json.RawMessage(`{"value":7}`),
		})

		result, err := service.ExecuteIdempotent(ctx, repo, "req-1", model.ShipOrderCommand,
			func(context.Context) (receipt, error) {
				t.Fatal("operation must not run on replay")
				return receipt{}, nil
			})

		require.NoError(t, err)
		assert.Equal(t, receipt{Value: 7}, result)
	})

	t.Run("Fail on command type mismatch", func(t *testing.T) {
		repo := newMockProcessedRequestRepository()
		repo.put(model.ProcessedRequest{RequestID: "req-1", CommandType: model.CreateOrderCommand, Result: []byte(`{}`)})

		_, err := service.ExecuteIdempotent(ctx, repo, "req-1", model.CancelOrderCommand,
			func(context.Context) (receipt, error) { return receipt{}, nil })

		assert.ErrorIs(t, err, model.ErrRequestIDConflict)
	})

	t.Run("Errors are not recorded", func(t *testing.T) {
		repo := newMockProcessedRequestRepository()
		boom := errors.New("boom")

		_, err := service.ExecuteIdempotent(ctx, repo, "req-1", model.ShipOrderCommand,
			func(context.Context) (receipt, error) { return receipt{}, boom })

		assert.ErrorIs(t, err, boom)
		assert.Empty(t, repo.store)
	})

	t.Run("Concurrent winner is returned", func(t *testing.T) {
		repo := newMockProcessedRequestRepository()
		repo.beforeStore = func(*model.ProcessedRequest) {
			repo.put(model.ProcessedRequest{
				RequestID:   "req-1",
				CommandType: model.ShipOrderCommand,
				Result:      []byte(`{"value":42}`),
			})
		}

		result, err := service.ExecuteIdempotent(ctx, repo, "req-1", model.ShipOrderCommand,
			func(context.Context) (receipt, error) { return receipt{Value: 1}, nil })

		require.NoError(t, err)
		assert.Equal(t, receipt{Value: 42}, result)
	})

	t.Run("Fail on empty request id", func(t *testing.T) {
		repo := newMockProcessedRequestRepository()
		_, err := service.ExecuteIdempotent(ctx, repo, "", model.ShipOrderCommand,
			func(context.Context) (receipt, error) { return receipt{}, nil })
		assert.ErrorIs(t, err, model.ErrRequestIDRequired)
	})
}
