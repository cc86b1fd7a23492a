package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Badger stores values in an embedded badger database
type Badger struct {
	db *badger.DB
}

// NewBadger opens the badger directory at dir; an empty dir keeps everything in memory
func NewBadger(dir string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	logger.Info("badger store initialized", "dir", dir, "in_memory", dir == "")
	return &Badger{db: bdb}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to copy value of %s: %w", key, err)
	}
	return value, true, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
