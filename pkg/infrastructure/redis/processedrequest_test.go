package redis

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order/pkg/domain/model"
)

type fakeCache struct {
	values map[string][]byte
	err    error
}

func (c *fakeCache) Set(_ context.Context, key Key, value []byte, _ time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.values[key.in("order")] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key Key) ([]byte, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	value, ok := c.values[key.in("order")]
	return value, ok, nil
}

type countingRepository struct {
	store map[string]model.ProcessedRequest
	finds int
}

func (r *countingRepository) Find(_ context.Context, requestID string) (*model.ProcessedRequest, error) {
	r.finds++
	request, ok := r.store[requestID]
	if !ok {
		return nil, model.ErrProcessedRequestNotFound
	}
	return &request, nil
}

func (r *countingRepository) Store(_ context.Context, request *model.ProcessedRequest) error {
	if _, ok := r.store[request.RequestID]; ok {
		return model.ErrDuplicateRequest
	}
	r.store[request.RequestID] = *request
	return nil
}

func TestCachedProcessedRequestRepository(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	request := &model.ProcessedRequest{
		RequestID:   "req-1",
		CommandType: model.ShipOrderCommand,
		Result:      []byte(`{"ID":7,"Status":"Shipped"}`),
		CreatedAt:   time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
	}

	t.Run("Store populates cache", func(t *testing.T) {
		inner := &countingRepository{store: map[string]model.ProcessedRequest{}}
		cache := &fakeCache{values: map[string][]byte{}}
		repo := NewCachedProcessedRequestRepository(inner, cache, time.Hour, logger)

		require.NoError(t, repo.Store(ctx, request))
		found, err := repo.Find(ctx, "req-1")

		require.NoError(t, err)
		assert.Equal(t, 0, inner.finds)
		assert.Equal(t, request.Result, found.Result)
		assert.Equal(t, request.CommandType, found.CommandType)
		assert.Contains(t, cache.values, "order:processed_request:req-1")
	})

	t.Run("Miss reads through", func(t *testing.T) {
		inner := &countingRepository{store: map[string]model.ProcessedRequest{"req-1": *request}}
		cache := &fakeCache{values: map[string][]byte{}}
		repo := NewCachedProcessedRequestRepository(inner, cache, time.Hour, logger)

		_, err := repo.Find(ctx, "req-1")
		require.NoError(t, err)
		_, err = repo.Find(ctx, "req-1")
		require.NoError(t, err)

		assert.Equal(t, 1, inner.finds)
	})

	t.Run("Unknown request is not cached", func(t *testing.T) {
		inner := &countingRepository{store: map[string]model.ProcessedRequest{}}
		cache := &fakeCache{values: map[string][]byte{}}
		repo := NewCachedProcessedRequestRepository(inner, cache, time.Hour, logger)

		_, err := repo.Find(ctx, "req-1")

		assert.ErrorIs(t, err, model.ErrProcessedRequestNotFound)
		assert.Empty(t, cache.values)
	})

	t.Run("Corrupt entry reads through", func(t *testing.T) {
		inner := &countingRepository{store: map[string]model.ProcessedRequest{"req-1": *request}}
		cache := &fakeCache{values: map[string][]byte{"order:processed_request:req-1": []byte("{")}}
		repo := NewCachedProcessedRequestRepository(inner, cache, time.Hour, logger)

		found, err := repo.Find(ctx, "req-1")

		require.NoError(t, err)
		assert.Equal(t, 1, inner.finds)
		assert.Equal(t, request.Result, found.Result)
	})

	t.Run("Cache outage falls through", func(t *testing.T) {
		inner := &countingRepository{store: map[string]model.ProcessedRequest{"req-1": *request}}
		cache := &fakeCache{values: map[string][]byte{}, err: errors.New("connection refused")}
		repo := NewCachedProcessedRequestRepository(inner, cache, time.Hour, logger)

		found, err := repo.Find(ctx, "req-1")

		require.NoError(t, err)
		assert.Equal(t, request.Result, found.Result)
		assert.ErrorIs(t, repo.Store(ctx, request), model.ErrDuplicateRequest)
	})
}
