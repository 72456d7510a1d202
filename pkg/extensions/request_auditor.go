// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package extensions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// Raw Capture Types
// =============================================================================

// HTTPHeaders represents HTTP headers as a map.
//
// Using a defined type provides clearer intent and allows future extension
// with helper methods if needed.
type HTTPHeaders map[string]string

// Get retrieves a header value by key (case-sensitive).
func (h HTTPHeaders) Get(key string) string {
	return h[key]
}

// Set adds or updates a header value.
func (h HTTPHeaders) Set(key, value string) {
	h[key] = value
}

// AuditableRequest contains raw request data for audit capture.
//
// This type is passed to CaptureRequest() to give hardened implementations
// access to the raw bytes for hashing, encryption, and storage. The open
// source build does NOT compute hashes here - that's the implementation's
// responsibility.
//
// # Usage
//
// Handlers create this struct with the raw request body and pass it to
// the RequestAuditor. Hardened implementations then:
//  1. Compute content_hash = SHA256(Body)
//  2. Encrypt the body if required
//  3. Store to immutable storage (GCS, QLDB, etc.)
//
// Example:
//
//	req := &AuditableRequest{
//	    Method:     "POST",
//	    Path:       "/upload",
//	    Headers:    HTTPHeaders{"Content-Type": "multipart/form-data"},
//	    Body:       rawRequestBytes,
//	    UserID:     authInfo.UserID,
//	    WorkflowID: workflowID,
//	    RequestID:  requestID,
//	    Timestamp:  time.Now().UTC(),
//	}
//	auditID, err := auditor.CaptureRequest(ctx, req)
type AuditableRequest struct {
	// Method is the HTTP method (GET, POST, etc.)
	Method string

	// Path is the request path (e.g., "/upload")
	Path string

	// Headers contains the HTTP request headers.
	// Sensitive headers (Authorization) should be redacted by caller.
	Headers HTTPHeaders

	// Body is the raw request body bytes.
	// For FIR uploads this is the multipart payload the client sent.
	Body []byte

	// UserID identifies who made the request.
	// Extracted from AuthInfo by the handler.
	UserID string

	// WorkflowID is the analysis workflow identifier (if applicable).
	WorkflowID string

	// RequestID is the unique identifier for this request.
	RequestID string

	// Timestamp is when the request was received (always UTC).
	Timestamp time.Time
}

// AuditableResponse contains raw response data for audit capture.
//
// This type is passed to CaptureResponse() to complete the audit record.
// The auditID from CaptureRequest() links the request and response together.
//
// For incremental responses (progress streams), the handler should
// accumulate all frames and pass the concatenated body at the end.
type AuditableResponse struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Headers contains the HTTP response headers.
	Headers HTTPHeaders

	// Body is the raw response body bytes.
	Body []byte

	// Timestamp is when the response was sent (always UTC).
	Timestamp time.Time
}

// =============================================================================
// Hash Chain Types
// =============================================================================

// HashChainEntry represents a single entry in a tamper-evident audit chain.
//
// Hash chains provide cryptographic proof of the order and integrity of the
// material a workflow touched: the uploaded FIR, every generated section,
// and every report download. Each entry's hash incorporates the previous
// entry's hash, creating a chain that detects any modification to
// historical records.
//
// # Chain Structure
//
// Entry N hash = SHA256(Entry N-1 hash + Entry N content)
//
// This ensures:
//   - Insertion detection: Adding entries breaks the chain
//   - Deletion detection: Removing entries breaks the chain
//   - Modification detection: Changing entries breaks the chain
//
// Example:
//
//	entry := HashChainEntry{
//	    WorkflowID:   "f3a1c2d4-...",
//	    SequenceNum:  5,
//	    ContentHash:  "abc123...",
//	    PreviousHash: "def456...",
//	    ChainHash:    "ghi789...",
//	    Timestamp:    time.Now().UTC(),
//	    ContentType:  "section_result",
//	    Metadata: NewMetadata().
//	        Set("user_id", "officer-456").
//	        Set("section", "investigation"),
//	}
type HashChainEntry struct {
	// WorkflowID identifies the chain this entry belongs to.
	// Each analysis workflow has its own independent hash chain.
	WorkflowID string

	// SequenceNum is the position in the chain (1-indexed).
	// Used to verify chain completeness and ordering.
	SequenceNum int

	// ContentHash is the hash of the content being recorded.
	// For FIR uploads: SHA256(document bytes)
	// For generated sections: SHA256(section text)
	ContentHash string

	// PreviousHash is the ChainHash of the preceding entry.
	// Empty string for the first entry in a chain (SequenceNum == 1).
	PreviousHash string

	// ChainHash is the cumulative hash incorporating all previous entries.
	// ChainHash = SHA256(PreviousHash + ContentHash)
	// This is the value stored and used for verification.
	ChainHash string

	// Timestamp is when this entry was created (always UTC).
	Timestamp time.Time

	// ContentType describes what kind of content was hashed.
	// Examples: "fir_upload", "section_result", "report_download"
	ContentType string

	// Metadata contains additional context about the entry.
	// May include: user_id, request_id, section identifier, etc.
	Metadata Metadata
}

// ChainVerificationResult contains the outcome of hash chain verification.
//
// Example:
//
//	result, _ := auditor.VerifyChain(ctx, workflowID)
//	if !result.IsValid {
//	    log.Error("chain integrity violation",
//	        "break_point", result.BreakPoint,
//	        "expected", result.ExpectedHash,
//	        "actual", result.ActualHash,
//	    )
//	}
type ChainVerificationResult struct {
	// IsValid is true if the entire chain is intact.
	IsValid bool

	// TotalEntries is the number of entries verified.
	TotalEntries int

	// BreakPoint is the sequence number where integrity failed.
	// Only meaningful when IsValid is false.
	// Zero means the chain is valid or empty.
	BreakPoint int

	// ExpectedHash is what the hash should be at BreakPoint.
	ExpectedHash string

	// ActualHash is what the hash actually was at BreakPoint.
	ActualHash string

	// Message provides human-readable verification status.
	Message string
}

// =============================================================================
// RequestAuditor Interface
// =============================================================================

// RequestAuditor provides tamper-evident audit logging via hash chains.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopRequestAuditor accepts all entries and always reports
// chains as valid. LocalRequestAuditor maintains in-memory chains so a
// single station can demonstrate chain of custody over case material
// without external infrastructure.
//
// # Hardened Implementation
//
// Department deployments implement persistent hash chains stored in:
//   - Append-only databases (e.g., Amazon QLDB)
//   - Immutable storage (e.g., S3 Object Lock, GCS retention)
//   - Blockchain-based ledgers
//
// # Usage
//
// Record entries as a workflow progresses:
//
//	entry := HashChainEntry{
//	    WorkflowID:  workflowID,
//	    ContentHash: documentHash,
//	    Timestamp:   time.Now().UTC(),
//	    ContentType: "fir_upload",
//	    Metadata:    NewMetadata().Set("user_id", userID),
//	}
//	if err := auditor.RecordEntry(ctx, entry); err != nil {
//	    log.Error("audit recording failed", "error", err)
//	}
//
// # Limitations
//
//   - Cannot prevent real-time tampering (only detect after the fact)
//   - Chain verification requires all entries (no partial verification)
//   - Storage grows linearly with entries
type RequestAuditor interface {
	// CaptureRequest records the raw request for audit purposes.
	//
	// Called at the START of request processing with the raw request body.
	// Returns an auditID that must be passed to CaptureResponse to link
	// them. NopRequestAuditor returns an empty auditID.
	CaptureRequest(ctx context.Context, req *AuditableRequest) (auditID string, err error)

	// CaptureResponse records the raw response for audit purposes.
	//
	// Called at the END of request processing. The auditID links this
	// response to its corresponding request. For streamed responses,
	// accumulate all frames and call this once at the end.
	CaptureResponse(ctx context.Context, auditID string, resp *AuditableResponse) error

	// RecordEntry adds a new entry to a workflow's hash chain.
	//
	// Implementations fill SequenceNum, PreviousHash, and ChainHash when
	// the caller leaves them zero-valued, and must serialize entries for
	// the same workflow to maintain chain order.
	RecordEntry(ctx context.Context, entry HashChainEntry) error

	// GetLastEntry retrieves the most recent entry for a workflow.
	//
	// Returns nil (not an error) when the chain is empty.
	GetLastEntry(ctx context.Context, workflowID string) (*HashChainEntry, error)

	// VerifyChain validates the integrity of a workflow's hash chain.
	//
	// Retrieves all entries and verifies that each entry's ChainHash
	// correctly incorporates the previous entry's hash. Empty chains
	// are considered valid.
	VerifyChain(ctx context.Context, workflowID string) (*ChainVerificationResult, error)

	// GetChainLength returns the number of entries in a workflow's chain.
	// Returns 0 for unknown workflows.
	GetChainLength(ctx context.Context, workflowID string) (int, error)
}

// =============================================================================
// No-Op Implementation
// =============================================================================

// NopRequestAuditor is the default auditor for open source.
//
// It accepts all operations without persisting anything, allowing the
// service to function without cryptographic audit infrastructure.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	auditor := &NopRequestAuditor{}
//	auditID, _ := auditor.CaptureRequest(ctx, req)
//	// auditID == "" (no tracking)
type NopRequestAuditor struct{}

// CaptureRequest accepts the request without storing it.
// Always returns an empty auditID.
func (a *NopRequestAuditor) CaptureRequest(_ context.Context, _ *AuditableRequest) (string, error) {
	return "", nil
}

// CaptureResponse accepts the response without storing it.
func (a *NopRequestAuditor) CaptureResponse(_ context.Context, _ string, _ *AuditableResponse) error {
	return nil
}

// RecordEntry accepts the entry without storing it.
func (a *NopRequestAuditor) RecordEntry(_ context.Context, _ HashChainEntry) error {
	return nil
}

// GetLastEntry returns nil (no entries are stored).
func (a *NopRequestAuditor) GetLastEntry(_ context.Context, _ string) (*HashChainEntry, error) {
	return nil, nil
}

// VerifyChain reports an empty, valid chain.
func (a *NopRequestAuditor) VerifyChain(_ context.Context, _ string) (*ChainVerificationResult, error) {
	return &ChainVerificationResult{
		IsValid: true,
		Message: "no entries recorded",
	}, nil
}

// GetChainLength returns 0 (no entries are stored).
func (a *NopRequestAuditor) GetChainLength(_ context.Context, _ string) (int, error) {
	return 0, nil
}

// =============================================================================
// Local In-Memory Implementation
// =============================================================================

// LocalRequestAuditor maintains per-workflow hash chains in memory.
//
// This gives single-station deployments a verifiable chain of custody
// over each workflow's material for the lifetime of the process. Entries
// are lost on restart; deployments that need durable chains implement
// RequestAuditor against append-only storage.
//
// Thread-safe.
type LocalRequestAuditor struct {
	mu     sync.Mutex
	chains map[string][]HashChainEntry
}

// NewLocalRequestAuditor creates an empty in-memory auditor.
func NewLocalRequestAuditor() *LocalRequestAuditor {
	return &LocalRequestAuditor{
		chains: make(map[string][]HashChainEntry),
	}
}

// CaptureRequest records the request as a chain entry when it carries a
// workflow ID. Requests without a workflow ID are accepted and dropped,
// matching NopRequestAuditor.
func (a *LocalRequestAuditor) CaptureRequest(ctx context.Context, req *AuditableRequest) (string, error) {
	if req == nil || req.WorkflowID == "" {
		return "", nil
	}
	sum := sha256.Sum256(req.Body)
	entry := HashChainEntry{
		WorkflowID:  req.WorkflowID,
		ContentHash: hex.EncodeToString(sum[:]),
		Timestamp:   req.Timestamp,
		ContentType: "request",
		Metadata: NewMetadata().
			Set("method", req.Method).
			Set("path", req.Path).
			Set("user_id", req.UserID).
			Set("request_id", req.RequestID),
	}
	if err := a.RecordEntry(ctx, entry); err != nil {
		return "", err
	}
	return req.WorkflowID, nil
}

// CaptureResponse records the response as a chain entry linked to the
// workflow identified by auditID.
func (a *LocalRequestAuditor) CaptureResponse(ctx context.Context, auditID string, resp *AuditableResponse) error {
	if auditID == "" || resp == nil {
		return nil
	}
	sum := sha256.Sum256(resp.Body)
	return a.RecordEntry(ctx, HashChainEntry{
		WorkflowID:  auditID,
		ContentHash: hex.EncodeToString(sum[:]),
		Timestamp:   resp.Timestamp,
		ContentType: "response",
		Metadata:    NewMetadata().Set("status_code", resp.StatusCode),
	})
}

// RecordEntry appends the entry to its workflow's chain, computing
// SequenceNum, PreviousHash, and ChainHash.
func (a *LocalRequestAuditor) RecordEntry(_ context.Context, entry HashChainEntry) error {
	if entry.WorkflowID == "" {
		return fmt.Errorf("hash chain entry requires a workflow ID")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	chain := a.chains[entry.WorkflowID]
	prev := ""
	if len(chain) > 0 {
		prev = chain[len(chain)-1].ChainHash
	}
	entry.SequenceNum = len(chain) + 1
	entry.PreviousHash = prev
	entry.ChainHash = chainHash(prev, entry.ContentHash)

	a.chains[entry.WorkflowID] = append(chain, entry)
	return nil
}

// GetLastEntry returns a copy of the most recent entry, or nil.
func (a *LocalRequestAuditor) GetLastEntry(_ context.Context, workflowID string) (*HashChainEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chain := a.chains[workflowID]
	if len(chain) == 0 {
		return nil, nil
	}
	last := chain[len(chain)-1]
	return &last, nil
}

// VerifyChain recomputes every link and reports the first break, if any.
func (a *LocalRequestAuditor) VerifyChain(_ context.Context, workflowID string) (*ChainVerificationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chain := a.chains[workflowID]
	result := &ChainVerificationResult{
		IsValid:      true,
		TotalEntries: len(chain),
		Message:      "chain intact",
	}
	if len(chain) == 0 {
		result.Message = "no entries recorded"
		return result, nil
	}

	prev := ""
	for _, entry := range chain {
		expected := chainHash(prev, entry.ContentHash)
		if entry.ChainHash != expected || entry.PreviousHash != prev {
			result.IsValid = false
			result.BreakPoint = entry.SequenceNum
			result.ExpectedHash = expected
			result.ActualHash = entry.ChainHash
			result.Message = fmt.Sprintf("chain broken at entry %d", entry.SequenceNum)
			return result, nil
		}
		prev = entry.ChainHash
	}
	return result, nil
}

// GetChainLength returns the entry count for the workflow.
func (a *LocalRequestAuditor) GetChainLength(_ context.Context, workflowID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chains[workflowID]), nil
}

// chainHash computes SHA256(previousChainHash + contentHash).
func chainHash(previous, content string) string {
	sum := sha256.Sum256([]byte(previous + content))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Interface Compliance
// =============================================================================

// Compile-time interface compliance checks.
var (
	_ RequestAuditor = (*NopRequestAuditor)(nil)
	_ RequestAuditor = (*LocalRequestAuditor)(nil)
)
