// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports Prometheus instrumentation for report
// ingestion and regression detection.
//
// All methods are safe to call on a nil *Metrics, which records
// nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one perfguard instance.
type Metrics struct {
	parseTotal      *prometheus.CounterVec
	passesTotal     *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	skippedTotal    *prometheus.CounterVec
	evalErrorsTotal *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
}

// New creates the perfguard collectors and registers them with reg.
// If reg is nil, the collectors are created but not registered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		parseTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_parse_total",
			Help: "Benchmark outputs parsed, by adapter and result",
		}, []string{"adapter", "result"}),
		passesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_passes_total",
			Help: "Evaluation passes begun, by mode",
		}, []string{"mode"}),
		alertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_alerts_total",
			Help: "Regression alerts emitted, by metric kind and side",
		}, []string{"kind", "side"}),
		skippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_skipped_total",
			Help: "Benchmarks skipped for insufficient history, by metric kind",
		}, []string{"kind"}),
		evalErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_evaluation_errors_total",
			Help: "Benchmark or threshold evaluation failures, by metric kind",
		}, []string{"kind"}),
		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "perfguard_ingest_duration_seconds",
			Help:    "Report ingestion duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

// Parse counts one adapter run. result is "ok" or "error".
func (m *Metrics) Parse(adapter, result string) {
	if m == nil {
		return
	}
	m.parseTotal.WithLabelValues(adapter, result).Inc()
}

// Pass counts one evaluation pass in mode "batch" or "incremental".
func (m *Metrics) Pass(mode string) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(mode).Inc()
}

// Alert counts one alert.
func (m *Metrics) Alert(kind, side string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(kind, side).Inc()
}

// Skipped counts n benchmarks skipped for insufficient history.
func (m *Metrics) Skipped(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.skippedTotal.WithLabelValues(kind).Add(float64(n))
}

// EvaluationError counts one failed evaluation.
func (m *Metrics) EvaluationError(kind string) {
	if m == nil {
		return
	}
	m.evalErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveIngest records the duration of one report ingestion
// starting at start.
func (m *Metrics) ObserveIngest(start time.Time) {
	if m == nil {
		return
	}
	m.ingestDuration.Observe(time.Since(start).Seconds())
}
