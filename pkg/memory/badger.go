package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "mem/"

// BadgerOptions configures BadgerStorage.
type BadgerOptions struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// BadgerStorage persists records as JSON under keys
// mem/<unix nanos, zero padded>/<id>, so key order is creation order.
type BadgerStorage struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Storage = (*BadgerStorage)(nil)

// OpenBadger opens (or creates) a Badger-backed store.
func OpenBadger(opts BadgerOptions) (*BadgerStorage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bopts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStorage{db: db, logger: logger.With("component", "memory.badger")}, nil
}

func recordKey(r Record) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, r.CreatedAt.UnixNano(), r.ID))
}

// Put implements Storage.
func (s *BadgerStorage) Put(_ context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r), data)
	})
}

// Scan implements Storage.
func (s *BadgerStorage) Scan(ctx context.Context, fn func(Record) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(keyPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				s.logger.Warn("Skipping unreadable memory record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			if !fn(r) {
				return nil
			}
		}
		return nil
	})
}

// Close implements Storage.
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}
