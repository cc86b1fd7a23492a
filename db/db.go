// Package db provides the key-value stores that hold the persisted schema list.
// Every backend stores opaque values under string keys; each Get and Set is
// atomic on its own and there are no multi-key transactions.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store is closed")

// Store is a small key-value store
type Store interface {
	// Get returns the value under key and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the value under key
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open creates the store selected by driver
func Open(driver, dsn string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn, logger)
	case "postgres":
		return NewPostgres(dsn, logger)
	case "badger":
		return NewBadger(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
