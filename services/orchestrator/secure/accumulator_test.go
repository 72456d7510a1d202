// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package secure

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAccumulator returns a secure accumulator when the environment
// allows mlock, otherwise the insecure fallback so CI still exercises the
// shared contract.
func newTestAccumulator(t *testing.T) TextAccumulator {
	t.Helper()

	acc, err := NewTextAccumulator()
	if err == nil {
		return acc
	}

	t.Logf("Falling back to insecure accumulator: %v", err)
	return newInsecureAccumulator()
}

func TestTextAccumulator_WriteAndFinalize(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	pages := []string{"FIR No. 123/2024\n", "Complainant: SHO Sadar\n", "Recovered 10 kg ganja.\n"}
	for _, p := range pages {
		require.NoError(t, acc.Write(p), "Write should succeed for page %q", p)
	}

	text, fingerprint, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")

	joined := strings.Join(pages, "")
	assert.Equal(t, joined, text, "text should concatenate all pages")

	sum := sha256.Sum256([]byte(joined))
	assert.Equal(t, hex.EncodeToString(sum[:]), fingerprint,
		"fingerprint should be the SHA-256 of the accumulated text")
}

func TestTextAccumulator_EmptyWriteAllowed(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	require.NoError(t, acc.Write(""), "empty chunk should be accepted")

	text, _, err := acc.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestTextAccumulator_WriteAfterFinalizeFails(t *testing.T) {
	acc := newTestAccumulator(t)

	require.NoError(t, acc.Write("page one"))
	_, _, err := acc.Finalize()
	require.NoError(t, err)

	err = acc.Write("page two")
	assert.Error(t, err, "Write after Finalize must fail")
}

func TestTextAccumulator_DestroyIsIdempotent(t *testing.T) {
	acc := newTestAccumulator(t)

	require.NoError(t, acc.Write("some text"))
	acc.Destroy()
	acc.Destroy() // must not panic

	_, _, err := acc.Finalize()
	assert.Error(t, err, "Finalize after Destroy must fail")
}

func TestTextAccumulator_Overflow(t *testing.T) {
	// The insecure accumulator shares the capacity logic and avoids
	// allocating a multi-megabyte locked buffer just to overflow it.
	acc := newInsecureAccumulator()
	defer acc.Destroy()

	big := strings.Repeat("x", BufferSize)
	require.NoError(t, acc.Write(big), "filling the buffer exactly should succeed")

	err := acc.Write("y")
	require.Error(t, err, "one byte past capacity must overflow")
	assert.Contains(t, err.Error(), "overflow")

	_, _, err = acc.Finalize()
	assert.Error(t, err, "Finalize after overflow must fail")
}

func TestTextAccumulator_ConcurrentWrites(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = acc.Write("chunk ")
			}
		}()
	}
	wg.Wait()

	text, _, err := acc.Finalize()
	require.NoError(t, err)
	assert.Len(t, text, 8*50*len("chunk "), "all writes should land exactly once")
}

func TestTextAccumulator_Identity(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	assert.NotEmpty(t, acc.ID(), "ID should be set")
	assert.False(t, acc.CreatedAt().IsZero(), "CreatedAt should be set")
}
