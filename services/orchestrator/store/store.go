// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package store persists workflow results.
//
// # Description
//
// A Record accumulates everything one analysis run produces: status,
// requested sections, the section payloads generated so far, document
// metadata, privacy findings, the generated report, and timings. The
// upload handler writes the initial record, the workflow runner updates
// it as nodes finish, and the results/document handlers read it.
//
// Two backends implement Store: MemoryStore (the default, an in-process
// map with a TTL janitor) and BadgerStore (durable, entries expire via
// Badger's native TTL). Select with RESULTS_BACKEND.
//
// # Thread Safety
//
// All Store implementations are safe for concurrent use. Update applies
// its mutation atomically with respect to other Updates of the same
// record.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// Workflow status values exposed by the results API.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultTTL is how long a record outlives its creation when the
// deployment does not configure RESULTS_TTL.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound maps to the API's 404 detail string.
	ErrNotFound = errors.New("workflow result not found")

	// ErrExists guards against a duplicate Put of the same workflow id.
	ErrExists = errors.New("workflow result already exists")
)

// Document is the stored report download. Markdown is kept alongside the
// rendered bytes so a section extension can rebuild the document without
// re-rendering finished sections.
type Document struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Markdown    string `json:"markdown,omitempty"`
	Bytes       []byte `json:"bytes,omitempty"`
}

// Record is one workflow's accumulated state. JSON tags are the results
// API contract; the raw PDF never appears here.
type Record struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`

	// Sections the caller asked for, normalized. Extensions grow this.
	Sections []string `json:"sections"`

	// Payloads holds generated section payloads keyed by section id.
	// Values are the datatypes payload types, stored pre-marshaled so
	// reads need no knowledge of payload shapes.
	Payloads map[string]json.RawMessage `json:"results,omitempty"`

	Meta    datatypes.DocumentMeta      `json:"document"`
	Privacy []datatypes.PrivacyFinding  `json:"privacy,omitempty"`

	Document *Document `json:"-"`

	// Snapshot is the checksummed capture of the run's final state the
	// runner writes on completion. Section extension verifies it before
	// trusting the stored payloads. Not part of the results API shape.
	Snapshot []byte `json:"-"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Timings in milliseconds, keyed by node name, plus "total".
	Timings map[string]int64 `json:"timings,omitempty"`
}

// Running reports whether the workflow is still executing.
func (r *Record) Running() bool { return r.Status == StatusRunning }

// HasSection reports whether the record holds a payload for the section.
func (r *Record) HasSection(id string) bool {
	_, ok := r.Payloads[id]
	return ok
}

// SetPayload marshals and stores one section payload.
func (r *Record) SetPayload(id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if r.Payloads == nil {
		r.Payloads = make(map[string]json.RawMessage)
	}
	r.Payloads[id] = raw
	return nil
}

// Store persists workflow records.
type Store interface {
	// Put inserts a new record. ErrExists if the id is already present.
	Put(ctx context.Context, rec *Record) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Update applies fn to the stored record atomically and persists the
	// result. ErrNotFound if the id is unknown; fn errors abort the
	// update and propagate.
	Update(ctx context.Context, id string, fn func(*Record) error) error

	// Delete removes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all live records.
	List(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
