// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/perfguard/perfguard/benchmath"
	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/threshold"
)

// A Pass evaluates the benchmarks of one report and metric kind
// against a single threshold.
//
// Baselines are built by Evaluator.Begin and never change afterwards,
// so an incremental Pass may be evaluated concurrently.
type Pass struct {
	e    *Evaluator
	log  *slog.Logger
	src  Source
	kind benchmetric.Kind
	th   *threshold.Threshold
	mode Mode

	observed  map[string]benchmetric.Metric
	order     []string // sorted benchmark names of observed
	baselines map[string]*benchmath.Baseline
	skipped   []string
	isSkipped map[string]bool
	errs      map[string]error

	mu       sync.Mutex
	terminal bool
}

// Mode returns the evaluation mode of p.
func (p *Pass) Mode() Mode { return p.mode }

// Kind returns the metric kind p evaluates.
func (p *Pass) Kind() benchmetric.Kind { return p.kind }

// Threshold returns the threshold p applies.
func (p *Pass) Threshold() *threshold.Threshold { return p.th }

// Skipped returns the benchmarks that are not evaluated because their
// history is shorter than the threshold's minimum sample size.
func (p *Pass) Skipped() []string {
	return append([]string(nil), p.skipped...)
}

// Errors returns the benchmarks whose baseline could not be built,
// each with a *BenchmarkError.
func (p *Pass) Errors() map[string]error {
	out := make(map[string]error, len(p.errs))
	for k, v := range p.errs {
		out[k] = v
	}
	return out
}

// Baseline returns the baseline built for benchmark, or nil if there
// is none.
func (p *Pass) Baseline(benchmark string) *benchmath.Baseline {
	return p.baselines[benchmark]
}

// Batch evaluates every benchmark of the pass and returns the alerts,
// in benchmark order.
//
// Failures of individual benchmarks do not stop the evaluation; they
// are returned joined in err alongside the alerts of the other
// benchmarks. Each is a *BenchmarkError.
//
// For a batch pass, the first call makes the pass terminal and every
// later call returns ErrTerminal. On an incremental pass, Batch may be
// called any number of times.
func (p *Pass) Batch() ([]Alert, error) {
	if p.mode == Batch {
		p.mu.Lock()
		if p.terminal {
			p.mu.Unlock()
			return nil, ErrTerminal
		}
		p.terminal = true
		p.mu.Unlock()
	}

	var alerts []Alert
	var errs []error
	for _, name := range p.order {
		a, err := p.evaluate(name, p.observed[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts, errors.Join(errs...)
}

// Evaluate evaluates one benchmark of an incremental pass and returns
// its alert, or nil if m is within the threshold's boundaries or the
// benchmark was skipped.
//
// The benchmark must have been part of the metrics given to Begin, so
// that its baseline exists. Evaluate on a batch pass returns
// ErrTerminal.
func (p *Pass) Evaluate(benchmark string, m benchmetric.Metric) (*Alert, error) {
	if p.mode == Batch {
		return nil, ErrTerminal
	}
	if _, ok := p.observed[benchmark]; !ok {
		return nil, &BenchmarkError{Benchmark: benchmark, Kind: p.kind, Err: errors.New("not measured in this report")}
	}
	return p.evaluate(benchmark, m)
}

func (p *Pass) evaluate(name string, m benchmetric.Metric) (*Alert, error) {
	if err := p.errs[name]; err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		p.e.Metrics.EvaluationError(string(p.kind))
		return nil, &BenchmarkError{Benchmark: name, Kind: p.kind, Err: err}
	}

	if p.isSkipped[name] {
		return nil, nil
	}
	b := p.baselines[name]

	lower, upper, err := p.boundaries(b)
	if err != nil {
		p.e.Metrics.EvaluationError(string(p.kind))
		return nil, &BenchmarkError{Benchmark: name, Kind: p.kind, Err: err}
	}

	x := m.Value
	var side threshold.Side
	var boundary float64
	switch {
	case p.th.Side != threshold.Right && x < lower:
		side, boundary = threshold.Left, lower
	case p.th.Side != threshold.Left && x > upper:
		side, boundary = threshold.Right, upper
	default:
		return nil, nil
	}

	a := &Alert{
		ID:        uuid.New(),
		Report:    p.src.Report,
		Benchmark: name,
		Kind:      p.kind,
		Threshold: p.th.ID,
		Statistic: p.th.Statistic.Type,
		Side:      side,
		Boundary:  boundary,
		Outlier:   x,
		CreatedAt: p.e.now(),
	}
	if b != nil {
		a.Baseline = *b
	}
	p.e.Metrics.Alert(string(p.kind), string(side))
	attrs := []any{"benchmark", name, "side", side, "boundary", boundary, "outlier", x}
	if p.mode == Batch {
		attrs = append(attrs, "t", b.TStatistic(x))
	}
	p.log.Info("regression", attrs...)
	return a, nil
}

// boundaries returns the lower and upper limits of acceptable values
// given baseline b, which is nil for thresholds that need no history.
func (p *Pass) boundaries(b *benchmath.Baseline) (lower, upper float64, err error) {
	st := p.th.Statistic
	switch st.Type {
	case threshold.Static:
		lower, upper = st.Boundary, st.Boundary
		if st.LeftBoundary != nil {
			lower = *st.LeftBoundary
		}
		return lower, upper, nil
	case threshold.Percentage:
		return b.Mean * (1 - st.Percentage), b.Mean * (1 + st.Percentage), nil
	case threshold.ZScore:
		z, err := p.th.Multiplier()
		if err != nil {
			return 0, 0, err
		}
		d := z * b.StdDev
		return b.Mean - d, b.Mean + d, nil
	case threshold.TTest:
		return b.PredictionBounds(st.Significance, p.th.Side.Tails())
	}
	return 0, 0, fmt.Errorf("unknown statistic %q", st.Type)
}
