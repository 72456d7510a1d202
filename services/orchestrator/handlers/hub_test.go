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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe("wf-1")
	defer cancel()

	hub.Publish("wf-1", workflow.Event{Type: workflow.EventNodeStarted, Node: "facts"})
	hub.Publish("wf-other", workflow.Event{Type: workflow.EventNodeStarted, Node: "translate"})

	ev := <-events
	assert.Equal(t, workflow.EventNodeStarted, ev.Type)
	assert.Equal(t, "facts", ev.Node)

	select {
	case ev := <-events:
		t.Fatalf("received event for another workflow: %+v", ev)
	default:
	}
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub()

	a, cancelA := hub.Subscribe("wf-1")
	defer cancelA()
	b, cancelB := hub.Subscribe("wf-1")
	defer cancelB()

	hub.Publish("wf-1", workflow.Event{Type: workflow.EventNodeCompleted, Node: "facts"})

	assert.Equal(t, "facts", (<-a).Node)
	assert.Equal(t, "facts", (<-b).Node)
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe("wf-1")
	cancel()

	// Channel is closed after cancel.
	_, ok := <-events
	require.False(t, ok)

	// Publishing after cancel must not panic.
	hub.Publish("wf-1", workflow.Event{Type: workflow.EventNodeStarted, Node: "facts"})
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe("wf-1")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish("wf-1", workflow.Event{Type: workflow.EventNodeStarted, Node: "facts"})
	}

	// The buffer holds exactly subscriberBuffer events; the rest were
	// dropped rather than blocking the publisher.
	assert.Len(t, events, subscriberBuffer)
}
