// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmetric

import (
	"fmt"
	"sort"
)

// A Kind identifies what a Metric measures, such as "latency".
//
// Kinds are an open set identified by slug. Adapters may produce
// kinds other than the predefined ones and the detector treats all
// kinds alike.
type Kind string

const (
	// Latency is time per iteration, in nanoseconds.
	Latency Kind = "latency"
	// Throughput is work per unit of time, in the unit the
	// benchmarking tool reports.
	Throughput Kind = "throughput"
)

func (k Kind) String() string {
	return string(k)
}

// Metrics maps each Kind measured by one benchmark to its Metric.
type Metrics map[Kind]Metric

// BenchmarkMetrics maps a benchmark name to the metrics measured for
// it. It is the canonical output of every adapter.
type BenchmarkMetrics map[string]Metrics

// Set records m as the metric of the given kind for benchmark,
// replacing any previous value.
func (bm BenchmarkMetrics) Set(benchmark string, kind Kind, m Metric) {
	ms := bm[benchmark]
	if ms == nil {
		ms = make(Metrics)
		bm[benchmark] = ms
	}
	ms[kind] = m
}

// Get returns the metric of the given kind for benchmark.
func (bm BenchmarkMetrics) Get(benchmark string, kind Kind) (Metric, bool) {
	m, ok := bm[benchmark][kind]
	return m, ok
}

// Benchmarks returns the benchmark names in bm, sorted.
func (bm BenchmarkMetrics) Benchmarks() []string {
	names := make([]string, 0, len(bm))
	for name := range bm {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kinds returns the distinct kinds measured by any benchmark in bm,
// sorted.
func (bm BenchmarkMetrics) Kinds() []Kind {
	seen := make(map[Kind]bool)
	var kinds []Kind
	for _, ms := range bm {
		for kind := range ms {
			if !seen[kind] {
				seen[kind] = true
				kinds = append(kinds, kind)
			}
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// OfKind returns the metrics of the given kind, keyed by benchmark.
func (bm BenchmarkMetrics) OfKind(kind Kind) map[string]Metric {
	out := make(map[string]Metric)
	for name, ms := range bm {
		if m, ok := ms[kind]; ok {
			out[name] = m
		}
	}
	return out
}

// Len returns the number of (benchmark, kind) metrics in bm.
func (bm BenchmarkMetrics) Len() int {
	n := 0
	for _, ms := range bm {
		n += len(ms)
	}
	return n
}

// Validate checks that every benchmark and kind is named and every
// metric is finite.
func (bm BenchmarkMetrics) Validate() error {
	for _, name := range bm.Benchmarks() {
		if name == "" {
			return fmt.Errorf("empty benchmark name")
		}
		for kind, m := range bm[name] {
			if kind == "" {
				return fmt.Errorf("benchmark %s: empty metric kind", name)
			}
			if err := m.Validate(); err != nil {
				return fmt.Errorf("benchmark %s, %s: %w", name, kind, err)
			}
		}
	}
	return nil
}

// Equal reports whether bm and o hold the same benchmarks, kinds and
// metrics.
func (bm BenchmarkMetrics) Equal(o BenchmarkMetrics) bool {
	if len(bm) != len(o) {
		return false
	}
	for name, ms := range bm {
		oms, ok := o[name]
		if !ok || len(ms) != len(oms) {
			return false
		}
		for kind, m := range ms {
			om, ok := oms[kind]
			if !ok || !m.Equal(om) {
				return false
			}
		}
	}
	return true
}
