// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/perfguard/perfguard/benchadapter"
	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/detect"
	"github.com/perfguard/perfguard/internal/metrics"
	"github.com/perfguard/perfguard/threshold"
)

type memory struct {
	mu       sync.Mutex
	history  map[string][]float64 // benchmark/kind -> values
	lookups  int
	alerts   []detect.Alert
	recorded []benchmetric.BenchmarkMetrics
	failPut  bool
}

func newMemory() *memory {
	return &memory{history: make(map[string][]float64)}
}

func (m *memory) History(ctx context.Context, branch, testbed, benchmark string, kind benchmetric.Kind) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	return m.history[benchmark+"/"+string(kind)], nil
}

func (m *memory) PutAlert(ctx context.Context, a detect.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("disk full")
	}
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memory) RecordReport(ctx context.Context, r *Report, bm benchmetric.BenchmarkMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, bm)
	for _, name := range bm.Benchmarks() {
		for kind, metric := range bm[name] {
			key := name + "/" + string(kind)
			m.history[key] = append(m.history[key], metric.Value)
		}
	}
	return nil
}

const rustOutput = `
running 3 tests
test tests::benchmark_a ... bench:       3,247 ns/iter (+/- 1,044)
test tests::benchmark_b ... bench:       3,443 ns/iter (+/- 2,275)
test tests::benchmark_c ... bench:       3,361 ns/iter (+/- 1,093)
test tests::ignored ... ignored

test result: ok. 0 passed; 0 failed; 1 ignored; 3 measured; 0 filtered out
`

func newIngester(mem *memory, ths ...*threshold.Threshold) *Ingester {
	return &Ingester{
		Adapters:    benchadapter.Default(),
		Evaluator:   &detect.Evaluator{Thresholds: threshold.NewSet(ths...), History: mem},
		Sink:        mem,
		Recorder:    mem,
		Concurrency: 2,
	}
}

func newReport() *Report {
	return &Report{Branch: "main", Testbed: "ci", Adapter: "rust"}
}

func zscore(kind benchmetric.Kind) *threshold.Threshold {
	return &threshold.Threshold{
		ID:        uuid.New(),
		Branch:    "main",
		Testbed:   "ci",
		Kind:      kind,
		Statistic: threshold.Statistic{Type: threshold.ZScore, Deviations: 3},
		Side:      threshold.Right,
	}
}

func TestIngestNoThreshold(t *testing.T) {
	mem := newMemory()
	in := newIngester(mem)
	res, err := in.Ingest(context.Background(), newReport(), []byte(rustOutput))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Alerts) != 0 || len(res.Errors) != 0 {
		t.Errorf("want no alerts or errors, got %v, %v", res.Alerts, res.Errors)
	}
	if mem.lookups != 0 {
		t.Errorf("history looked up %d times without thresholds", mem.lookups)
	}
	if res.Report.ID == uuid.Nil {
		t.Errorf("report was not assigned an ID")
	}
	if len(mem.recorded) != 1 || mem.recorded[0].Len() != 3 {
		t.Errorf("want one recorded report of three metrics, got %v", mem.recorded)
	}
}

func TestIngestParseError(t *testing.T) {
	mem := newMemory()
	reg := prometheus.NewRegistry()
	in := newIngester(mem, zscore(benchmetric.Latency))
	in.Metrics = metrics.New(reg)
	bad := strings.Replace(rustOutput, "3,443 ns/iter", "3,443 parsecs/iter", 1)
	res, err := in.Ingest(context.Background(), newReport(), []byte(bad))
	var se *benchadapter.SyntaxError
	if !errors.As(err, &se) || res != nil {
		t.Fatalf("Ingest = %v, %v; want SyntaxError", res, err)
	}
	if mem.lookups != 0 || len(mem.recorded) != 0 {
		t.Errorf("failed parse evaluated or recorded the report")
	}
}

func TestIngestInvalidReport(t *testing.T) {
	in := newIngester(newMemory())
	for _, r := range []*Report{
		{Testbed: "ci", Adapter: "rust"},
		{Branch: "main", Adapter: "rust"},
		{Branch: "main", Testbed: "ci"},
	} {
		if _, err := in.Ingest(context.Background(), r, []byte(rustOutput)); err == nil {
			t.Errorf("Ingest(%+v): want error", r)
		}
	}
	r := newReport()
	r.Adapter = "magic"
	if _, err := in.Ingest(context.Background(), r, []byte(rustOutput)); !errors.Is(err, benchadapter.ErrUnknownAdapter) {
		t.Errorf("want ErrUnknownAdapter, got %v", err)
	}
}

func TestIngestDetects(t *testing.T) {
	mem := newMemory()
	in := newIngester(mem, zscore(benchmetric.Latency))
	ctx := context.Background()

	// Build history. The first report has none and is skipped.
	for i := 0; i < 5; i++ {
		res, err := in.Ingest(ctx, newReport(), []byte(rustOutput))
		if err != nil {
			t.Fatal(err)
		}
		if i < 2 && len(res.Skipped[benchmetric.Latency]) != 3 {
			t.Errorf("report %d: want 3 skipped benchmarks, got %v", i, res.Skipped)
		}
		if len(res.Alerts) != 0 {
			t.Errorf("report %d: unexpected alerts %v", i, res.Alerts)
		}
	}
	// Identical history has zero spread, so any increase alerts.
	slow := strings.Replace(rustOutput, "3,443", "3,500", 1)
	res, err := in.Ingest(ctx, newReport(), []byte(slow))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("want 1 alert, got %v", res.Alerts)
	}
	a := res.Alerts[0]
	if a.Benchmark != "tests::benchmark_b" || a.Outlier != 3500 || a.Boundary != 3443 || a.Report != res.Report.ID {
		t.Errorf("unexpected alert %+v", a)
	}
	if len(mem.alerts) != 1 || mem.alerts[0].ID != a.ID {
		t.Errorf("alert not sent to sink: %v", mem.alerts)
	}
}

func TestIngestKindsIndependent(t *testing.T) {
	mem := newMemory()
	bad := zscore(benchmetric.Throughput)
	bad.Statistic.Deviations = -1
	mem.history["Enc/latency"] = []float64{10, 10}
	mem.history["Enc/throughput"] = []float64{5, 5}
	in := newIngester(mem, zscore(benchmetric.Latency), bad)
	r := newReport()
	r.Adapter = "go"
	res, err := in.Ingest(context.Background(), r, []byte("BenchmarkEnc 10 20 ns/op 1 MB/s\n"))
	if err != nil {
		t.Fatal(err)
	}
	var ce *threshold.ConfigError
	if !errors.As(res.Errors[benchmetric.Throughput], &ce) {
		t.Errorf("want ConfigError for throughput, got %v", res.Errors)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Kind != benchmetric.Latency {
		t.Errorf("latency was not evaluated despite throughput config error: %v", res.Alerts)
	}
}

func TestIngestSinkFailure(t *testing.T) {
	mem := newMemory()
	mem.failPut = true
	mem.history["Enc/latency"] = []float64{10, 10}
	in := newIngester(mem, zscore(benchmetric.Latency))
	r := newReport()
	r.Adapter = "go"
	res, err := in.Ingest(context.Background(), r, []byte("BenchmarkEnc 10 20 ns/op\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Errors[benchmetric.Latency] == nil {
		t.Errorf("sink failure not reported")
	}
	if len(res.Alerts) != 1 {
		t.Errorf("alert dropped on sink failure")
	}
}

func TestIngestCanceled(t *testing.T) {
	mem := newMemory()
	in := newIngester(mem, zscore(benchmetric.Latency))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := in.Ingest(ctx, newReport(), []byte(rustOutput)); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if len(mem.recorded) != 0 {
		t.Errorf("canceled ingestion recorded the report")
	}
}
