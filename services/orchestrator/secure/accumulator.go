// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package secure accumulates extracted FIR text in mlocked memory.
//
// An FIR names complainants, accused persons, and witnesses. While the
// document is being extracted page by page its text lives in a memguard
// LockedBuffer so it cannot be swapped to disk, and every page is hashed
// incrementally so Finalize can report the document fingerprint without a
// second pass. Systems without an adequate RLIMIT_MEMLOCK fall back to an
// ordinary byte slice when FIR_INSECURE_MEMORY=true, with a warning.
package secure

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	// BufferSize is the capacity of the mlocked buffer. A 25 MiB FIR scan
	// rarely extracts to more than a few hundred kilobytes of text; 2 MiB
	// leaves room for unusually long annexures.
	BufferSize = 2 * 1024 * 1024

	// minMlockLimitKB is the smallest RLIMIT_MEMLOCK (in KB) under which
	// the secure path is attempted.
	minMlockLimitKB = BufferSize / 1024

	// insecureMemoryEnv acknowledges running without mlock protection.
	insecureMemoryEnv = "FIR_INSECURE_MEMORY"
)

var (
	memguardInitOnce sync.Once

	// mlockSufficient and currentMlockLimitKB are set once by initMemguard.
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// TextAccumulator collects FIR text page by page and produces the final
// document text plus its SHA-256 fingerprint.
//
// # Thread Safety
//
// Implementations are safe for concurrent use, though page extraction is
// sequential in practice.
//
// # Limitations
//
//   - Capacity is fixed at BufferSize; overflow is unrecoverable.
//   - An accumulator cannot be reused after Finalize or Destroy.
type TextAccumulator interface {
	// Write appends a chunk of extracted text.
	Write(chunk string) error

	// Finalize returns the accumulated text and its hex SHA-256
	// fingerprint, then wipes the buffer.
	Finalize() (text string, fingerprint string, err error)

	// Destroy wipes the buffer without returning data. Idempotent; use on
	// error paths.
	Destroy()

	// ID identifies this accumulator in logs.
	ID() string

	// CreatedAt returns when the accumulator was created.
	CreatedAt() time.Time
}

// NewTextAccumulator returns an accumulator backed by mlocked memory.
//
// When the mlock limit is below the buffer size, the result depends on
// FIR_INSECURE_MEMORY: "true" falls back to plain memory with a warning,
// anything else is an error telling the operator how to raise the limit.
func NewTextAccumulator() (TextAccumulator, error) {
	initMemguard()

	if !mlockSufficient {
		return handleInsufficientMlock()
	}

	return allocateSecureBuffer()
}

func handleInsufficientMlock() (TextAccumulator, error) {
	if strings.EqualFold(os.Getenv(insecureMemoryEnv), "true") {
		return newInsecureAccumulator(), nil
	}
	return nil, fmt.Errorf(
		"mlock limit %d KB is below the %d KB required for secure FIR text accumulation; "+
			"raise RLIMIT_MEMLOCK (ulimit -l) or set %s=true to accept swappable memory",
		currentMlockLimitKB, minMlockLimitKB, insecureMemoryEnv)
}

func allocateSecureBuffer() (TextAccumulator, error) {
	buffer := memguard.NewBuffer(BufferSize)
	if buffer == nil {
		return nil, fmt.Errorf("failed to allocate %d byte mlocked buffer", BufferSize)
	}

	return &secureAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		buffer:    buffer,
		hasher:    sha256.New(),
	}, nil
}

// secureAccumulator stores text in a memguard LockedBuffer: mlocked
// against swap, guard pages against overruns, wiped on Destroy.
type secureAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func (a *secureAccumulator) Write(chunk string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("secure buffer overflow - document text too large")
	}

	b := []byte(chunk)
	if a.offset+len(b) > BufferSize {
		a.overflow = true
		return fmt.Errorf("secure buffer overflow: need %d bytes, have %d remaining",
			len(b), BufferSize-a.offset)
	}

	a.buffer.Melt()
	copy(a.buffer.Bytes()[a.offset:], b)
	a.buffer.Freeze()
	a.offset += len(b)
	a.hasher.Write(b)
	return nil
}

func (a *secureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	text := string(a.buffer.Bytes()[:a.offset])
	fingerprint := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()

	slog.Debug("Finalized secure text accumulator",
		"accumulator_id", a.id,
		"text_length", len(text),
		"fingerprint", fingerprint[:16]+"...",
	)
	return text, fingerprint, nil
}

func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}
	a.wipe()
	slog.Debug("Destroyed secure text accumulator", "accumulator_id", a.id)
}

func (a *secureAccumulator) ID() string { return a.id }

func (a *secureAccumulator) CreatedAt() time.Time { return a.createdAt }

func (a *secureAccumulator) wipe() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

// insecureAccumulator is the fallback when mlock limits are insufficient
// and the operator has set FIR_INSECURE_MEMORY=true. Same contract, plain
// Go memory: the text may be swapped to disk and wiping is best effort.
type insecureAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	data      []byte
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func newInsecureAccumulator() TextAccumulator {
	id := uuid.New().String()
	slog.Warn("Created INSECURE text accumulator - FIR text may be swapped to disk",
		"accumulator_id", id,
	)
	return &insecureAccumulator{
		id:        id,
		createdAt: time.Now(),
		data:      make([]byte, 0, BufferSize),
		hasher:    sha256.New(),
	}
}

func (a *insecureAccumulator) Write(chunk string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("buffer overflow - document text too large")
	}

	b := []byte(chunk)
	if len(a.data)+len(b) > BufferSize {
		a.overflow = true
		return fmt.Errorf("buffer overflow: need %d bytes, have %d remaining",
			len(b), BufferSize-len(a.data))
	}

	a.data = append(a.data, b...)
	a.hasher.Write(b)
	return nil
}

func (a *insecureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	text := string(a.data)
	fingerprint := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()

	slog.Debug("Finalized insecure text accumulator",
		"accumulator_id", a.id,
		"text_length", len(text),
	)
	return text, fingerprint, nil
}

func (a *insecureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}
	a.wipe()
	slog.Debug("Destroyed insecure text accumulator", "accumulator_id", a.id)
}

func (a *insecureAccumulator) ID() string { return a.id }

func (a *insecureAccumulator) CreatedAt() time.Time { return a.createdAt }

func (a *insecureAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

// initMemguard initializes memguard once and probes RLIMIT_MEMLOCK.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		logMlockStatus()
	})
}

// checkMlockLimit reports whether RLIMIT_MEMLOCK covers the buffer, and
// the current limit in KB (-1 when unlimited or unknown).
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}

func logMlockStatus() {
	if mlockSufficient {
		slog.Info("Secure memory initialized",
			"mlock_limit_kb", currentMlockLimitKB,
			"buffer_size_kb", BufferSize/1024,
		)
		return
	}
	slog.Warn("Insufficient mlock limit for secure FIR text accumulation",
		"mlock_limit_kb", currentMlockLimitKB,
		"required_kb", minMlockLimitKB,
	)
}
