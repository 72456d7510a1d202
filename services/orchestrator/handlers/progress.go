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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Progress events carry node names only; same-origin enforcement
		// adds nothing here and breaks reverse-proxied deployments.
		return true
	},
}

// progressWriteTimeout bounds one WebSocket write to a slow client.
const progressWriteTimeout = 10 * time.Second

// HandleProgress streams workflow progress events over a WebSocket.
//
// For a finished workflow the handler sends a single workflow_completed
// event and closes, so late subscribers resolve immediately. For a
// running one it forwards hub events until workflow_completed or the
// client goes away.
func HandleProgress(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		workflowID := c.Param("workflow_id")

		rec, err := deps.Store.Get(c.Request.Context(), workflowID)
		if errors.Is(err, store.ErrNotFound) {
			detail(c, http.StatusNotFound, store.ErrNotFound.Error())
			return
		}
		if err != nil {
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}

		// Subscribe before the running check so events emitted in between
		// are not lost.
		events, cancel := deps.Hub.Subscribe(workflowID)
		defer cancel()

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			deps.logger().Error("websocket upgrade failed", slog.Any("error", err))
			return
		}
		defer ws.Close()

		if deps.Metrics != nil {
			deps.Metrics.ClientConnected()
			defer deps.Metrics.ClientDisconnected()
		}

		if !rec.Running() {
			_ = sendEvent(ws, workflow.Event{
				Type:  workflow.EventWorkflowCompleted,
				RunID: workflowID,
				Error: rec.Error,
			})
			return
		}

		// Reader goroutine: surfaces client disconnects. Inbound payloads
		// are ignored.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := sendEvent(ws, ev); err != nil {
					return
				}
				if ev.Type == workflow.EventWorkflowCompleted {
					return
				}
			}
		}
	}
}

func sendEvent(ws *websocket.Conn, ev workflow.Event) error {
	_ = ws.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
	if err := ws.WriteJSON(ev); err != nil {
		slog.Debug("failed to write progress event", "error", err)
		return err
	}
	return nil
}
