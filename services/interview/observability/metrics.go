// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// interview service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring interview
// turns and the oracle calls behind them. Metrics include:
//   - Turn counters (by outcome) and turn duration histograms
//   - Oracle call counters and latency histograms (by operation)
//   - Tournament comparison counters
//   - Active session gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "elenchus"

// Subsystem for interview metrics
const interviewSubsystem = "interview"

// InterviewMetrics holds all Prometheus metrics for interview operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring interview
// throughput and oracle behavior. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type InterviewMetrics struct {
	// TurnsTotal counts interview turns by outcome.
	// Labels: outcome (in_progress, completed, error)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures wall time of one full turn, oracle
	// calls included.
	TurnDurationSeconds prometheus.Histogram

	// OracleCallsTotal counts oracle calls by operation and outcome.
	// Labels: op (compare_relevance, evaluate_answer, judge_coverage,
	// judge_coverage_batch, generate_question), outcome (success, error)
	OracleCallsTotal *prometheus.CounterVec

	// OracleLatencySeconds measures oracle call latency by operation.
	// Labels: op
	OracleLatencySeconds *prometheus.HistogramVec

	// TournamentComparisonsTotal counts pairwise relevance comparisons
	// spent on shift-to-next-node tournaments.
	TournamentComparisonsTotal prometheus.Counter

	// ActiveSessions tracks sessions that have started and not completed.
	ActiveSessions prometheus.Gauge
}

// DefaultMetrics is the singleton instance of InterviewMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *InterviewMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *InterviewMetrics {
	DefaultMetrics = &InterviewMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: interviewSubsystem,
				Name:      "turns_total",
				Help:      "Total interview turns by outcome",
			},
			[]string{"outcome"},
		),

		TurnDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: interviewSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Wall time of one interview turn in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		OracleCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: interviewSubsystem,
				Name:      "oracle_calls_total",
				Help:      "Total oracle calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),

		OracleLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: interviewSubsystem,
				Name:      "oracle_latency_seconds",
				Help:      "Oracle call latency in seconds by operation",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"op"},
		),

		TournamentComparisonsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: interviewSubsystem,
				Name:      "tournament_comparisons_total",
				Help:      "Total pairwise relevance comparisons in node tournaments",
			},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: interviewSubsystem,
				Name:      "active_sessions",
				Help:      "Sessions started and not yet completed or deleted",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// TurnOutcome labels the result of one interview turn.
type TurnOutcome string

const (
	TurnInProgress TurnOutcome = "in_progress"
	TurnCompleted  TurnOutcome = "completed"
	TurnError      TurnOutcome = "error"
)

// RecordTurn records a finished interview turn.
func (m *InterviewMetrics) RecordTurn(outcome TurnOutcome, seconds float64) {
	m.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	m.TurnDurationSeconds.Observe(seconds)
}

// RecordOracleCall records one oracle call.
func (m *InterviewMetrics) RecordOracleCall(op string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.OracleCallsTotal.WithLabelValues(op, outcome).Inc()
	m.OracleLatencySeconds.WithLabelValues(op).Observe(seconds)
}

// SessionStarted increments the active session gauge.
func (m *InterviewMetrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *InterviewMetrics) SessionEnded() {
	m.ActiveSessions.Dec()
}
