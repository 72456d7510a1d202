// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package extensions

import (
	"context"
	"sync"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// This struct captures the essential information needed for chain-of-custody
// audits over case material: who uploaded which FIR, who read or downloaded
// which generated report, and when.
//
// # Event Categories
//
// Events are categorized by type for filtering and alerting:
//   - Authentication: "auth.login", "auth.logout", "auth.failed"
//   - Authorization: "authz.denied", "authz.granted"
//   - Workflow: "workflow.start", "workflow.complete", "workflow.failed",
//     "workflow.extend"
//   - Documents: "document.download", "document.render"
//   - Corpus: "corpus.ingest", "corpus.sync"
//   - System: "system.start", "system.stop", "system.error"
//
// # Compliance Fields
//
// For evidentiary integrity, always populate:
//   - UserID: Required to attribute access to case material
//   - Timestamp: Required for audit trail integrity
//   - ResourceType/ResourceID: Required for data lineage
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "workflow.start",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       authInfo.UserID,
//	    Action:       "create",
//	    ResourceType: "workflow",
//	    ResourceID:   workflowID,
//	    Outcome:      "success",
//	    Metadata: map[string]any{
//	        "filename": "fir_1423_2025.pdf",
//	        "sections": 8,
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event for filtering and alerting.
	// Format: "category.action" (e.g., "auth.login", "workflow.start")
	EventType string

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who performed the action.
	// Use "system" for automated actions, "anonymous" if unknown.
	UserID string

	// Action describes what operation was attempted.
	// Common values: "create", "read", "extend", "download", "ingest"
	Action string

	// ResourceType is the category of resource involved.
	// Examples: "workflow", "document", "corpus", "policy"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	// For workflow events this is the workflow ID.
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked", "error"
	Outcome string

	// Metadata holds additional event-specific data.
	//
	// Common metadata keys:
	//   - "error": error message if Outcome is "failure" or "error"
	//   - "ip_address": client IP for security analysis
	//   - "duration_ms": operation duration for performance analysis
	//   - "filename": uploaded file name
	//   - "sections": number of analysis sections requested
	Metadata map[string]any
}

// AuditFilter defines criteria for querying audit events.
//
// All fields are optional - only non-zero values are used as filters.
// Multiple fields are combined with AND logic.
//
// Example:
//
//	// Find all failed workflows in the last hour
//	filter := AuditFilter{
//	    EventTypes: []string{"workflow.failed"},
//	    StartTime:  time.Now().Add(-time.Hour),
//	    EndTime:    time.Now(),
//	}
//	events, err := auditor.Query(ctx, filter)
type AuditFilter struct {
	// EventTypes limits results to specific event types.
	// If empty, all event types are included.
	EventTypes []string

	// UserID limits results to events from a specific user.
	// If empty, events from all users are included.
	UserID string

	// StartTime is the earliest event timestamp to include (inclusive).
	// If zero, no lower bound is applied.
	StartTime time.Time

	// EndTime is the latest event timestamp to include (exclusive).
	// If zero, no upper bound is applied.
	EndTime time.Time

	// ResourceType limits results to events involving specific resource types.
	// If empty, all resource types are included.
	ResourceType string

	// ResourceID limits results to events involving a specific resource.
	// If empty, all resources are included.
	ResourceID string

	// Outcome limits results to events with specific outcomes.
	// If empty, all outcomes are included.
	Outcome string

	// Limit is the maximum number of events to return.
	// If zero, implementation-specific default is used.
	Limit int

	// Offset is the number of events to skip (for pagination).
	Offset int
}

// AuditLogger records security-relevant events for compliance and analysis.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The Log method should be non-blocking or have reasonable timeouts to
// avoid impacting request latency.
//
// # Open Source Behavior
//
// The default NopAuditLogger discards all events. This is appropriate for
// local single-user deployments where audit trails aren't required.
//
// # Hardened Implementation
//
// Department deployments send events to SIEM systems (Splunk, ELK),
// cloud logging, or a compliance database.
//
// Example:
//
//	type SplunkAuditLogger struct {
//	    client *splunk.Client
//	    index  string
//	}
//
//	func (l *SplunkAuditLogger) Log(ctx context.Context, event AuditEvent) error {
//	    if event.Timestamp.IsZero() {
//	        event.Timestamp = time.Now().UTC()
//	    }
//	    return l.client.Index(ctx, l.index, event)
//	}
//
// # Async vs Sync Logging
//
// Implementations may choose sync or async logging:
//   - Sync: Blocks until event is persisted (safer, slower)
//   - Async: Returns immediately, buffers events (faster, may lose events)
//
// For chain-of-custody events, sync logging is recommended.
type AuditLogger interface {
	// Log records a security-relevant event.
	//
	// Implementations should:
	//   1. Set Timestamp if zero
	//   2. Validate required fields (EventType, UserID)
	//   3. Persist or transmit the event
	//   4. Return quickly (use async if needed)
	Log(ctx context.Context, event AuditEvent) error

	// Query retrieves audit events matching the filter criteria,
	// ordered by Timestamp descending.
	//
	// Note: NopAuditLogger returns an empty slice (no events stored).
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush ensures all buffered events are persisted.
	//
	// Call this before application shutdown to prevent event loss.
	// For sync implementations, this may be a no-op.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger for open source.
//
// It discards all events without recording them. This is appropriate
// for local single-user deployments where audit trails aren't required.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	logger := &NopAuditLogger{}
//	err := logger.Log(ctx, AuditEvent{
//	    EventType: "workflow.start",
//	    UserID:    "local-user",
//	})
//	// err == nil (event discarded)
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns an empty slice (no events are stored).
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// MemoryAuditLogger retains events in memory.
//
// Useful for tests and for small deployments that expose recent audit
// activity without external infrastructure. Events beyond MaxEvents are
// dropped oldest-first.
//
// Thread-safe.
type MemoryAuditLogger struct {
	// MaxEvents caps retained events. Zero means DefaultMaxAuditEvents.
	MaxEvents int

	mu     sync.Mutex
	events []AuditEvent
}

// DefaultMaxAuditEvents is the retention cap used when MaxEvents is zero.
const DefaultMaxAuditEvents = 10000

// Log stores the event, stamping Timestamp if unset.
func (l *MemoryAuditLogger) Log(_ context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	max := l.MaxEvents
	if max <= 0 {
		max = DefaultMaxAuditEvents
	}
	if len(l.events) > max {
		l.events = l.events[len(l.events)-max:]
	}
	return nil
}

// Query returns stored events matching the filter, newest first.
func (l *MemoryAuditLogger) Query(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]AuditEvent, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if !auditMatches(ev, filter) {
			continue
		}
		matched = append(matched, ev)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []AuditEvent{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Flush is a no-op; events are already in memory.
func (l *MemoryAuditLogger) Flush(_ context.Context) error {
	return nil
}

func auditMatches(ev AuditEvent, f AuditFilter) bool {
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if ev.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && ev.UserID != f.UserID {
		return false
	}
	if f.ResourceType != "" && ev.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && ev.ResourceID != f.ResourceID {
		return false
	}
	if f.Outcome != "" && ev.Outcome != f.Outcome {
		return false
	}
	if !f.StartTime.IsZero() && ev.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !ev.Timestamp.Before(f.EndTime) {
		return false
	}
	return true
}

// Compile-time interface compliance checks.
var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*MemoryAuditLogger)(nil)
)
