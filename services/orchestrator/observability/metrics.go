// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package observability provides Prometheus metrics for the FIR analysis
// service.
//
// # Description
//
// Metrics cover the full analysis path:
//   - Upload counters (accepted/rejected/failed)
//   - Workflow and per-node durations, node failures
//   - LLM call latency and estimated token volume
//   - Vector retrieval and web search latency
//   - Live websocket progress subscribers
//
// # Integration
//
// All metrics are registered on the default Prometheus registry and exposed
// on /metrics together with the OTel meter metrics bridged through the
// prometheus exporter.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "fir"

// Subsystem for analysis pipeline metrics.
const analysisSubsystem = "analysis"

// Upload outcome labels.
const (
	UploadAccepted = "accepted"
	UploadRejected = "rejected"
	UploadFailed   = "failed"
)

// Workflow outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// AnalysisMetrics holds all Prometheus metrics for FIR analysis operations.
//
// # Fields
//
//   - UploadsTotal: Counter of FIR uploads by outcome
//   - WorkflowDurationSeconds: Histogram of end-to-end workflow duration
//   - NodeDurationSeconds: Histogram of per-node execution time
//   - NodeFailuresTotal: Counter of node failures by node name
//   - LLMCallDurationSeconds: Histogram of LLM round trips by operation
//   - LLMTokensTotal: Counter of estimated tokens by direction and operation
//   - RetrievalDurationSeconds: Histogram of corpus/search lookups by class
//   - SectionsGeneratedTotal: Counter of generated report sections
//   - WebsocketClients: Gauge of connected progress subscribers
type AnalysisMetrics struct {
	// UploadsTotal counts FIR uploads.
	// Labels: status (accepted, rejected, failed)
	UploadsTotal *prometheus.CounterVec

	// WorkflowDurationSeconds measures end-to-end pipeline duration.
	// Labels: outcome (completed, failed)
	WorkflowDurationSeconds *prometheus.HistogramVec

	// NodeDurationSeconds measures single node execution time.
	// Labels: node
	NodeDurationSeconds *prometheus.HistogramVec

	// NodeFailuresTotal counts node failures.
	// Labels: node
	NodeFailuresTotal *prometheus.CounterVec

	// LLMCallDurationSeconds measures LLM round trips.
	// Labels: operation (facts.extract, statutes.map, ...), status
	LLMCallDurationSeconds *prometheus.HistogramVec

	// LLMTokensTotal counts tokens by direction and operation. Token counts
	// are estimated at four characters per token; the client interface
	// returns plain text without usage metadata.
	// Labels: direction (input, output), operation
	LLMTokensTotal *prometheus.CounterVec

	// RetrievalDurationSeconds measures corpus and web lookups.
	// Labels: class (statute, guideline, web_search), status
	RetrievalDurationSeconds *prometheus.HistogramVec

	// SectionsGeneratedTotal counts report sections produced.
	// Labels: section
	SectionsGeneratedTotal *prometheus.CounterVec

	// WebsocketClients tracks connected progress stream subscribers.
	WebsocketClients prometheus.Gauge
}

// DefaultMetrics is the singleton instance of AnalysisMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AnalysisMetrics

var initOnce sync.Once

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics on the default registry.
// Safe to call more than once; registration happens on the first call and
// later calls return the same instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
func InitMetrics() *AnalysisMetrics {
	initOnce.Do(func() {
		DefaultMetrics = newAnalysisMetrics()
	})
	return DefaultMetrics
}

func newAnalysisMetrics() *AnalysisMetrics {
	return &AnalysisMetrics{
		UploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "uploads_total",
				Help:      "Total FIR uploads by outcome",
			},
			[]string{"status"},
		),

		WorkflowDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "workflow_duration_seconds",
				Help:      "End-to-end analysis workflow duration in seconds",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"outcome"},
		),

		NodeDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "node_duration_seconds",
				Help:      "Single pipeline node execution time in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"node"},
		),

		NodeFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "node_failures_total",
				Help:      "Total pipeline node failures by node name",
			},
			[]string{"node"},
		),

		LLMCallDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "llm_call_duration_seconds",
				Help:      "LLM round trip duration in seconds by operation",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation", "status"},
		),

		LLMTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "llm_tokens_total",
				Help:      "Estimated tokens processed by direction and operation (4 chars/token)",
			},
			[]string{"direction", "operation"},
		),

		RetrievalDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "retrieval_duration_seconds",
				Help:      "Corpus retrieval and web search duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"class", "status"},
		),

		SectionsGeneratedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "sections_generated_total",
				Help:      "Total report sections generated by section identifier",
			},
			[]string{"section"},
		),

		WebsocketClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "websocket_clients",
				Help:      "Connected progress stream subscribers",
			},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordUpload records an upload outcome (UploadAccepted, UploadRejected,
// UploadFailed).
func (m *AnalysisMetrics) RecordUpload(status string) {
	m.UploadsTotal.WithLabelValues(status).Inc()
}

// RecordWorkflow records a finished workflow run.
func (m *AnalysisMetrics) RecordWorkflow(success bool, d time.Duration) {
	outcome := OutcomeCompleted
	if !success {
		outcome = OutcomeFailed
	}
	m.WorkflowDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordNode records one node execution. Failures count toward
// NodeFailuresTotal as well.
func (m *AnalysisMetrics) RecordNode(node string, d time.Duration, failed bool) {
	m.NodeDurationSeconds.WithLabelValues(node).Observe(d.Seconds())
	if failed {
		m.NodeFailuresTotal.WithLabelValues(node).Inc()
	}
}

// RecordLLMCall records one LLM round trip with estimated token volume.
func (m *AnalysisMetrics) RecordLLMCall(operation string, d time.Duration, promptChars, responseChars int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LLMCallDurationSeconds.WithLabelValues(operation, status).Observe(d.Seconds())
	if promptChars > 0 {
		m.LLMTokensTotal.WithLabelValues("input", operation).Add(float64(promptChars) / 4)
	}
	if responseChars > 0 {
		m.LLMTokensTotal.WithLabelValues("output", operation).Add(float64(responseChars) / 4)
	}
}

// RecordRetrieval records a corpus or web lookup. class is one of
// "statute", "guideline", "web_search".
func (m *AnalysisMetrics) RecordRetrieval(class string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RetrievalDurationSeconds.WithLabelValues(class, status).Observe(d.Seconds())
}

// RecordSection counts one generated report section.
func (m *AnalysisMetrics) RecordSection(section string) {
	m.SectionsGeneratedTotal.WithLabelValues(section).Inc()
}

// ClientConnected increments the websocket subscriber gauge.
func (m *AnalysisMetrics) ClientConnected() {
	m.WebsocketClients.Inc()
}

// ClientDisconnected decrements the websocket subscriber gauge.
func (m *AnalysisMetrics) ClientDisconnected() {
	m.WebsocketClients.Dec()
}

// =============================================================================
// Package-level convenience wrappers (nil-safe before InitMetrics)
// =============================================================================

// RecordLLMCall records on DefaultMetrics when initialized.
func RecordLLMCall(operation string, d time.Duration, promptChars, responseChars int, err error) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordLLMCall(operation, d, promptChars, responseChars, err)
	}
}

// RecordRetrieval records on DefaultMetrics when initialized.
func RecordRetrieval(class string, d time.Duration, err error) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordRetrieval(class, d, err)
	}
}

// RecordSection records on DefaultMetrics when initialized.
func RecordSection(section string) {
	if DefaultMetrics != nil {
		DefaultMetrics.RecordSection(section)
	}
}
