// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.Parse("rust", "ok")
	m.Parse("rust", "ok")
	m.Parse("json", "error")
	m.Pass("batch")
	m.Alert("latency", "right")
	m.Skipped("latency", 3)
	m.Skipped("latency", 0)
	m.EvaluationError("throughput")
	m.ObserveIngest(time.Now())

	if got := testutil.ToFloat64(m.parseTotal.WithLabelValues("rust", "ok")); got != 2 {
		t.Errorf("parse_total{rust,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.skippedTotal.WithLabelValues("latency")); got != 3 {
		t.Errorf("skipped_total{latency} = %v, want 3", got)
	}

	want := `
# HELP perfguard_alerts_total Regression alerts emitted, by metric kind and side
# TYPE perfguard_alerts_total counter
perfguard_alerts_total{kind="latency",side="right"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "perfguard_alerts_total"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(m.ingestDuration); n != 1 {
		t.Errorf("ingest histogram collected %d metrics, want 1", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Parse("rust", "ok")
	m.Pass("incremental")
	m.Alert("latency", "left")
	m.Skipped("latency", 1)
	m.EvaluationError("latency")
	m.ObserveIngest(time.Now())
}

func TestUnregistered(t *testing.T) {
	// Two instances without a registry do not conflict.
	New(nil).Pass("batch")
	New(nil).Pass("batch")
}
