// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report ingests benchmark reports: it parses raw benchmark
// output, evaluates every metric kind for regressions, sends the
// resulting alerts to a sink and records the report's metrics as
// history for later reports.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/perfguard/perfguard/benchadapter"
	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/detect"
	"github.com/perfguard/perfguard/internal/metrics"
)

// A Report is one run of a benchmark suite on a branch and testbed.
type Report struct {
	ID        uuid.UUID `json:"id"`
	Branch    string    `json:"branch" validate:"required"`
	Testbed   string    `json:"testbed" validate:"required"`
	Hash      string    `json:"hash,omitempty"`
	Adapter   string    `json:"adapter" validate:"required"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time" validate:"gtefield=StartTime"`
}

// Source returns the identity of r used during evaluation.
func (r *Report) Source() detect.Source {
	return detect.Source{Report: r.ID, Branch: r.Branch, Testbed: r.Testbed}
}

var validate = validator.New()

// A Recorder stores the metrics of an ingested report so that they
// become history for later reports.
type Recorder interface {
	RecordReport(ctx context.Context, r *Report, bm benchmetric.BenchmarkMetrics) error
}

// An Ingester ingests reports. Its fields must not change while
// Ingest is running.
type Ingester struct {
	Adapters  *benchadapter.Registry
	Settings  benchadapter.Settings
	Evaluator *detect.Evaluator

	// Sink receives every alert. If nil, alerts are only returned.
	Sink detect.AlertSink

	// Recorder, if non-nil, stores the report's metrics after
	// evaluation.
	Recorder Recorder

	// Logger receives ingestion events. If nil, nothing is logged.
	Logger *slog.Logger

	Metrics *metrics.Metrics

	// Concurrency limits the number of metric kinds evaluated at
	// once. Zero or less means no limit.
	Concurrency int
}

// A Result describes an ingested report.
type Result struct {
	Report  *Report
	Metrics benchmetric.BenchmarkMetrics

	// Alerts are ordered by kind, then benchmark.
	Alerts []detect.Alert

	// Skipped lists, per kind, the benchmarks without enough
	// history to evaluate.
	Skipped map[benchmetric.Kind][]string

	// Errors holds, per kind, the failures that prevented
	// evaluating the kind or some of its benchmarks. A
	// *threshold.ConfigError disables the whole kind; failures of
	// single benchmarks are *detect.BenchmarkError values joined
	// together.
	Errors map[benchmetric.Kind]error
}

func (in *Ingester) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return in.Logger
}

// Ingest parses raw with the adapter named by r.Adapter and evaluates
// the result. If r.ID is zero, a new ID is assigned.
//
// A parse failure aborts the ingestion: nothing is evaluated or
// recorded and the error wraps a *benchadapter.SyntaxError. Failures
// evaluating a metric kind are reported in Result.Errors and do not
// affect other kinds. The report is recorded only after all kinds
// are evaluated, so its metrics never contribute to their own
// baseline.
func (in *Ingester) Ingest(ctx context.Context, r *Report, raw []byte) (*Result, error) {
	start := time.Now()
	defer in.Metrics.ObserveIngest(start)

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}
	log := in.logger().With("report", r.ID, "branch", r.Branch, "testbed", r.Testbed)

	bm, err := in.Adapters.Parse(r.Adapter, raw, in.Settings)
	if err != nil {
		in.Metrics.Parse(r.Adapter, "error")
		log.Warn("parse failed", "adapter", r.Adapter, "err", err)
		return nil, fmt.Errorf("parsing report %s: %w", r.ID, err)
	}
	in.Metrics.Parse(r.Adapter, "ok")
	log.Debug("parsed", "adapter", r.Adapter, "benchmarks", len(bm))

	res := &Result{
		Report:  r,
		Metrics: bm,
		Skipped: make(map[benchmetric.Kind][]string),
		Errors:  make(map[benchmetric.Kind]error),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if in.Concurrency > 0 {
		g.SetLimit(in.Concurrency)
	}
	for _, kind := range bm.Kinds() {
		g.Go(func() error {
			alerts, skipped, err := in.evaluate(gctx, r, kind, bm)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mu.Lock()
			defer mu.Unlock()
			res.Alerts = append(res.Alerts, alerts...)
			if len(skipped) > 0 {
				res.Skipped[kind] = skipped
			}
			if err != nil {
				res.Errors[kind] = err
				log.Warn("evaluation failed", "kind", kind, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(res.Alerts, func(i, j int) bool {
		a, b := res.Alerts[i], res.Alerts[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Benchmark < b.Benchmark
	})

	if in.Recorder != nil {
		if err := in.Recorder.RecordReport(ctx, r, bm); err != nil {
			return res, fmt.Errorf("recording report %s: %w", r.ID, err)
		}
	}
	// Alerts refer to the stored report, so they are sent only once
	// it has been recorded.
	if in.Sink != nil {
		for _, a := range res.Alerts {
			if err := in.Sink.PutAlert(ctx, a); err != nil {
				err = fmt.Errorf("storing alert for %s: %w", a.Benchmark, err)
				res.Errors[a.Kind] = errors.Join(res.Errors[a.Kind], err)
				log.Warn("storing alert failed", "kind", a.Kind, "benchmark", a.Benchmark, "err", err)
			}
		}
	}
	log.Info("ingested", "benchmarks", len(bm), "alerts", len(res.Alerts))
	return res, nil
}

// evaluate runs one evaluation pass for kind.
func (in *Ingester) evaluate(ctx context.Context, r *Report, kind benchmetric.Kind, bm benchmetric.BenchmarkMetrics) ([]detect.Alert, []string, error) {
	p, err := in.Evaluator.Begin(ctx, r.Source(), kind, bm)
	if err != nil || p == nil {
		return nil, nil, err
	}

	var alerts []detect.Alert
	var errs []error
	switch p.Mode() {
	case detect.Batch:
		alerts, err = p.Batch()
		if err != nil {
			errs = append(errs, err)
		}
	case detect.Incremental:
		for _, name := range bm.Benchmarks() {
			m, ok := bm.Get(name, kind)
			if !ok {
				continue
			}
			a, err := p.Evaluate(name, m)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if a != nil {
				alerts = append(alerts, *a)
			}
		}
	}

	return alerts, p.Skipped(), errors.Join(errs...)
}
