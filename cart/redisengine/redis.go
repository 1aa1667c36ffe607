// Package redisengine provides a cart.Storage backed by Redis, for hosts
// that share cart sessions across processes.
package redisengine

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopkit/conditional-cart-go/cart"
)

const (
	defaultKeyPrefix = "cart:"

	logMsgRedisGetFailed = "redis get failed"
	logMsgRedisSetFailed = "redis set failed"
	logAttrError         = "error"
	logAttrKey           = "key"
)

var ErrNilRedisClient = errors.New("nil redis client supplied")

// Storage stores cart snapshots as plain Redis string values under
// "{prefix}{key}". SET replaces the value atomically, which is all the
// cart's snapshot-replace contract needs.
type Storage struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    cart.Logger
}

// NewStorage creates a Redis-backed storage over the given client with
// optional configuration.
func NewStorage(client redis.UniversalClient, options ...Option) (*Storage, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}

	s := &Storage{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Get returns the snapshot stored under key.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, getErr := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(getErr, redis.Nil) {
		return nil, false, nil
	}

	if getErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgRedisGetFailed, logAttrError, getErr.Error(), logAttrKey, key)
		}

		return nil, false, getErr
	}

	return value, true, nil
}

// Put replaces the snapshot stored under key, refreshing the TTL when one
// is configured.
func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	if setErr := s.client.Set(ctx, s.keyPrefix+key, value, s.ttl).Err(); setErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgRedisSetFailed, logAttrError, setErr.Error(), logAttrKey, key)
		}

		return setErr
	}

	return nil
}
