// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/perfguard/perfguard/benchmath"
	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/internal/metrics"
	"github.com/perfguard/perfguard/threshold"
)

// An Evaluator begins evaluation passes. Its fields must not change
// once passes have begun.
type Evaluator struct {
	Thresholds ThresholdStore
	History    HistoryStore

	// Logger receives evaluation events. If nil, nothing is logged.
	Logger *slog.Logger

	// Metrics, if non-nil, counts passes, alerts and skipped
	// benchmarks.
	Metrics *metrics.Metrics

	// Now returns the alert creation time. If nil, time.Now is
	// used.
	Now func() time.Time
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func (e *Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Begin starts evaluating the metrics of kind in bm against the
// threshold configured for src's branch and testbed.
//
// If no threshold is configured, Begin returns a nil Pass and a nil
// error without loading any history. If the threshold is invalid, it
// returns a *threshold.ConfigError. Otherwise it loads the history of
// every benchmark in bm that measures kind and builds its baseline.
// Benchmarks whose history cannot be loaded or is not finite fail
// individually; see Pass.Errors.
func (e *Evaluator) Begin(ctx context.Context, src Source, kind benchmetric.Kind, bm benchmetric.BenchmarkMetrics) (*Pass, error) {
	log := e.logger().With("report", src.Report, "branch", src.Branch, "testbed", src.Testbed, "kind", kind)

	th, err := e.Thresholds.Threshold(ctx, src.Branch, src.Testbed, kind)
	if err != nil {
		return nil, fmt.Errorf("loading threshold for %s: %w", kind, err)
	}
	if th == nil {
		log.Debug("no threshold configured")
		return nil, nil
	}
	if err := th.Validate(); err != nil {
		e.Metrics.EvaluationError(string(kind))
		log.Warn("invalid threshold", "threshold", th.ID, "err", err)
		return nil, err
	}

	p := &Pass{
		e:         e,
		log:       log.With("threshold", th.ID, "statistic", th.Statistic.Type),
		src:       src,
		kind:      kind,
		th:        th,
		observed:  bm.OfKind(kind),
		baselines: make(map[string]*benchmath.Baseline),
		isSkipped: make(map[string]bool),
		errs:      make(map[string]error),
	}
	p.mode = Incremental
	if th.Statistic.Type.Batch() {
		p.mode = Batch
	}

	names := make([]string, 0, len(p.observed))
	for name := range p.observed {
		names = append(names, name)
	}
	sort.Strings(names)
	p.order = names

	if th.NeedsHistory() {
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := p.loadBaseline(ctx, name); err != nil {
				p.errs[name] = &BenchmarkError{Benchmark: name, Kind: kind, Err: err}
				e.Metrics.EvaluationError(string(kind))
				p.log.Warn("cannot build baseline", "benchmark", name, "err", err)
			}
		}
	}

	e.Metrics.Pass(string(p.mode))
	e.Metrics.Skipped(string(kind), len(p.skipped))
	p.log.Debug("pass begun", "mode", p.mode, "benchmarks", len(names), "skipped", len(p.skipped))
	return p, nil
}

// loadBaseline loads the history of benchmark name and records its
// baseline, or marks the benchmark skipped if the history is too
// short.
func (p *Pass) loadBaseline(ctx context.Context, name string) error {
	history, err := p.e.History.History(ctx, p.src.Branch, p.src.Testbed, name, p.kind)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if w := p.th.Window; w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}
	if len(history) < p.th.SampleSize() {
		p.skip(name, len(history))
		return nil
	}
	b, err := benchmath.NewBaseline(history)
	if err != nil {
		return err
	}
	if b == nil {
		switch p.th.Statistic.Type {
		case threshold.Static:
			// Static boundaries do not depend on the baseline.
			return nil
		case threshold.Percentage:
			// A percentage threshold needs only a mean.
			b = &benchmath.Baseline{N: 1, Mean: history[0]}
		default:
			p.skip(name, len(history))
			return nil
		}
	}
	p.baselines[name] = b
	return nil
}

func (p *Pass) skip(name string, n int) {
	p.skipped = append(p.skipped, name)
	p.isSkipped[name] = true
	p.log.Debug("insufficient history", "benchmark", name, "points", n, "want", p.th.SampleSize())
}
