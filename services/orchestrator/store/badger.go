// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists records in an embedded BadgerDB so results
// survive a restart. Records expire via Badger's native entry TTL.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Created if missing. Ignored when
	// InMemory is set.
	Path string

	// InMemory keeps everything in RAM, for tests.
	InMemory bool

	// TTL is how long records live. <= 0 uses DefaultTTL.
	TTL time.Duration

	// Logger receives Badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

const recordKeyPrefix = "workflow/"

// NewBadgerStore opens (or creates) the results database.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger store: path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("badger store: create directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerSlogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open: %w", err)
	}
	return &BadgerStore{db: db, ttl: cfg.TTL}, nil
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + id)
}

func (s *BadgerStore) Put(_ context.Context, rec *Record) error {
	key := recordKey(rec.WorkflowID)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("badger store: encode record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		entry := badger.NewEntry(key, data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = new(Record)
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BadgerStore) Update(_ context.Context, id string, fn func(*Record) error) error {
	key := recordKey(id)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		rec := new(Record)
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		}); err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("badger store: encode record: %w", err)
		}

		// Preserve the original expiry rather than restarting the TTL on
		// every node completion.
		entry := badger.NewEntry(key, data)
		if exp := item.ExpiresAt(); exp > 0 {
			if remaining := time.Until(time.Unix(int64(exp), 0)); remaining > 0 {
				entry = entry.WithTTL(remaining)
			}
		}
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(id))
	})
}

func (s *BadgerStore) List(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(recordKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerSlogAdapter bridges Badger's printf-style logger onto slog.
type badgerSlogAdapter struct {
	logger *slog.Logger
}

func (l *badgerSlogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerSlogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerSlogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerSlogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

var _ Store = (*BadgerStore)(nil)
