package redisengine

import (
	"errors"
	"time"

	"github.com/shopkit/conditional-cart-go/cart"
)

var ErrEmptyKeyPrefix = errors.New("empty key prefix supplied")
var ErrNegativeTTL = errors.New("negative ttl supplied")

// Option defines a functional option for configuring the Storage.
type Option func(*Storage) error

// WithKeyPrefix sets the prefix prepended to every session key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Storage) error {
		if prefix == "" {
			return ErrEmptyKeyPrefix
		}

		s.keyPrefix = prefix

		return nil
	}
}

// WithTTL expires snapshots after the given duration, refreshed on every
// write. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Storage) error {
		if ttl < 0 {
			return ErrNegativeTTL
		}

		s.ttl = ttl

		return nil
	}
}

// WithLogger sets the logger for the Storage.
func WithLogger(logger cart.Logger) Option {
	return func(s *Storage) error {
		s.logger = logger
		return nil
	}
}
