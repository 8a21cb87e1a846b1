package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Key addresses a cached value within the service namespace.
type Key struct {
	Kind string
	ID   string
}

// LedgerKey addresses the cached result of a processed request.
func LedgerKey(requestID string) Key {
	return Key{Kind: "processed_request", ID: requestID}
}

func (k Key) in(namespace string) string {
	return namespace + ":" + k.Kind + ":" + k.ID
}

type Cache interface {
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	// Get reports ok=false on a miss.
	Get(ctx context.Context, key Key) (value []byte, ok bool, err error)
}

func NewCache(client *redis.Client, namespace string) Cache {
	return &redisCache{client: client, namespace: namespace}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

type redisCache struct {
	client    *redis.Client
	namespace string
}

func (r *redisCache) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	return errors.Wrapf(r.client.Set(ctx, key.in(r.namespace), value, ttl).Err(), "set %s", key.in(r.namespace))
}

func (r *redisCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key.in(r.namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", key.in(r.namespace))
	}
	return value, true, nil
}
