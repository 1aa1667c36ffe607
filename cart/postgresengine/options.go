package postgresengine

import (
	"github.com/shopkit/conditional-cart-go/cart"
)

// Option defines a functional option for configuring the Storage.
type Option func(*Storage) error

// WithTableName sets the snapshot table name for the Storage.
func WithTableName(tableName string) Option {
	return func(s *Storage) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Storage.
//
// Debug level: SQL queries with execution timing (development use)
// Info level: snapshot loads and stores with durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger cart.Logger) Option {
	return func(s *Storage) error {
		s.logger = logger
		return nil
	}
}
