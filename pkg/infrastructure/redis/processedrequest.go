package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"order/pkg/domain/model"
)

type cachedRequest struct {
	RequestID   string    `json:"requestId"`
	CommandType string    `json:"commandType"`
	Result      []byte    `json:"result"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewCachedProcessedRequestRepository puts a read-through cache in front of the
// ledger. Ledger entries are write-once, so cached entries never go stale.
// Cache failures are logged and fall through to the wrapped repository.
func NewCachedProcessedRequestRepository(
	repo model.ProcessedRequestRepository,
	cache Cache,
	ttl time.Duration,
	logger logrus.FieldLogger,
) model.ProcessedRequestRepository {
	return &cachedProcessedRequestRepository{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

type cachedProcessedRequestRepository struct {
	repo   model.ProcessedRequestRepository
	cache  Cache
	ttl    time.Duration
	logger logrus.FieldLogger
}

func (r *cachedProcessedRequestRepository) Find(ctx context.Context, requestID string) (*model.ProcessedRequest, error) {
	value, ok, err := r.cache.Get(ctx, LedgerKey(requestID))
	if err != nil {
		r.logger.WithError(err).WithField("request_id", requestID).Warn("processed request cache read failed")
	}
	if ok {
		var cached cachedRequest
		if err := json.Unmarshal(value, &cached); err == nil {
			return &model.ProcessedRequest{
				RequestID:   cached.RequestID,
				CommandType: model.CommandType(cached.CommandType),
				Result:      cached.Result,
				CreatedAt:   cached.CreatedAt,
			}, nil
		}
	}

	request, err := r.repo.Find(ctx, requestID)
	if err != nil {
		return nil, err
	}
	r.put(ctx, request)
	return request, nil
}

func (r *cachedProcessedRequestRepository) Store(ctx context.Context, request *model.ProcessedRequest) error {
	if err := r.repo.Store(ctx, request); err != nil {
		return err
	}
	r.put(ctx, request)
	return nil
}

func (r *cachedProcessedRequestRepository) put(ctx context.Context, request *model.ProcessedRequest) {
	payload, err := json.Marshal(cachedRequest{
		RequestID:   request.RequestID,
		CommandType: string(request.CommandType),
		Result:      request.Result,
		CreatedAt:   request.CreatedAt,
	})
	if err != nil {
		r.logger.WithError(errors.WithStack(err)).Warn("failed to encode processed request for cache")
		return
	}
	if err := r.cache.Set(ctx, LedgerKey(request.RequestID), payload, r.ttl); err != nil {
		r.logger.WithError(err).WithField("request_id", request.RequestID).Warn("processed request cache write failed")
	}
}
