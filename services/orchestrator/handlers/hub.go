// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package handlers

import (
	"sync"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// subscriberBuffer bounds how many undelivered events a slow client can
// hold before further events are dropped for it. Progress events are
// advisory; the page reconciles from the store on reload.
const subscriberBuffer = 64

// Hub fans workflow progress events out to WebSocket subscribers, keyed
// by workflow id. Safe for concurrent use.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan workflow.Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan workflow.Event]struct{})}
}

// Subscribe registers for events of one workflow. The returned cancel
// must be called exactly once; it closes the channel.
func (h *Hub) Subscribe(workflowID string) (<-chan workflow.Event, func()) {
	ch := make(chan workflow.Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[workflowID]
	if !ok {
		set = make(map[chan workflow.Event]struct{})
		h.subs[workflowID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[workflowID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, workflowID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the workflow. Sends
// never block; a full subscriber drops the event.
func (h *Hub) Publish(workflowID string, ev workflow.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[workflowID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
