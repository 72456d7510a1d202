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
	"log/slog"
	"sync"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// MemoryStore keeps records in an in-process map, mirroring the
// original's results dict. A janitor goroutine sweeps expired records.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryEntry

	ttl    time.Duration
	logger *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type memoryEntry struct {
	record    *Record
	expiresAt time.Time
}

// janitorInterval is how often the sweep runs. Expired records are also
// filtered out on read, so the interval only bounds memory reclamation.
const janitorInterval = 5 * time.Minute

// NewMemoryStore creates a memory store whose records expire ttl after
// creation. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &MemoryStore{
		records: make(map[string]*memoryEntry),
		ttl:     ttl,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.records[rec.WorkflowID]; ok && time.Now().Before(entry.expiresAt) {
		return ErrExists
	}
	s.records[rec.WorkflowID] = &memoryEntry{
		record:    cloneRecord(rec),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.records[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return cloneRecord(entry.record), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return ErrNotFound
	}

	updated := cloneRecord(entry.record)
	if err := fn(updated); err != nil {
		return err
	}
	entry.record = updated
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	ids := make([]string, 0, len(s.records))
	for id, entry := range s.records {
		if now.Before(entry.expiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close stops the janitor. Records stay readable until process exit.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *MemoryStore) janitor() {
	defer close(s.done)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range s.records {
		if now.After(entry.expiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired workflow results removed",
			slog.Int("count", removed),
			slog.Int("remaining", len(s.records)),
		)
	}
}

// cloneRecord copies a record so callers never share mutable maps with
// the store. Payload byte slices are immutable by convention and are
// shared.
func cloneRecord(rec *Record) *Record {
	out := *rec
	if rec.Sections != nil {
		out.Sections = append([]string(nil), rec.Sections...)
	}
	if rec.Payloads != nil {
		out.Payloads = make(map[string]json.RawMessage, len(rec.Payloads))
		for k, v := range rec.Payloads {
			out.Payloads[k] = v
		}
	}
	if rec.Privacy != nil {
		out.Privacy = append([]datatypes.PrivacyFinding(nil), rec.Privacy...)
	}
	if rec.Timings != nil {
		out.Timings = make(map[string]int64, len(rec.Timings))
		for k, v := range rec.Timings {
			out.Timings[k] = v
		}
	}
	if rec.Document != nil {
		doc := *rec.Document
		out.Document = &doc
	}
	return &out
}

var _ Store = (*MemoryStore)(nil)
