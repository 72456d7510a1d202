// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package ux

import (
	"fmt"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// Spinner animates a single-line progress indicator for long-running CLI
// operations such as corpus transfers. In machine personality it prints
// one "PROGRESS:" line instead, so scripted callers can still follow.
type Spinner struct {
	mu      sync.Mutex
	message string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner with the given message. Call Start to
// begin animating.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	msg := s.message
	s.mu.Unlock()

	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("PROGRESS: %s\n", msg)
		return
	}

	go s.animate()
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-s.stop:
			// Clear the spinner line before the next print.
			fmt.Print("\r\033[K")
			close(s.done)
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Printf("\r%s %s", Styles.Highlight.Render(spinnerFrames[frame]), msg)
			frame = (frame + 1) % len(spinnerFrames)
		}
	}
}

// Stop halts the animation and clears the line. Stopping a spinner that
// never started is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if GetPersonality().Level == PersonalityMachine {
		return
	}

	close(s.stop)
	<-s.done
}

// UpdateMessage swaps the text shown next to the animation.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithSuccess stops and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	Success(message)
}

// StopWithError stops and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}

// WithSpinner animates while fn runs, then reports its outcome. The
// function's error is returned unchanged.
func WithSpinner(message string, fn func() error) error {
	spin := NewSpinner(message)
	spin.Start()

	if err := fn(); err != nil {
		spin.StopWithError(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	spin.StopWithSuccess(message)
	return nil
}

