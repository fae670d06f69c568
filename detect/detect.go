// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package detect evaluates the metrics of a report against the
// configured thresholds and the history of earlier reports, and
// produces an Alert for every regression.
//
// Evaluation runs per metric kind. Evaluator.Begin loads the
// threshold for the kind and builds a baseline for every benchmark
// measured in the report. The resulting Pass evaluates in one of two
// modes, chosen by the threshold's statistic:
//
//   - Batch (t_test): Pass.Batch evaluates every benchmark at once,
//     after which the pass is terminal.
//   - Incremental (static, percentage, z_score): Pass.Evaluate
//     evaluates one benchmark at a time, in any order and from any
//     number of goroutines.
//
// Benchmarks with too little history are skipped rather than failed.
// Errors evaluating one benchmark never prevent evaluating the others.
package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/perfguard/perfguard/benchmath"
	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/threshold"
)

// A ThresholdStore looks up the threshold configured for a branch,
// testbed and metric kind. It returns nil, nil if there is none.
type ThresholdStore interface {
	Threshold(ctx context.Context, branch, testbed string, kind benchmetric.Kind) (*threshold.Threshold, error)
}

// A HistoryStore returns the values previously recorded for a
// benchmark and metric kind on a branch and testbed, oldest first.
type HistoryStore interface {
	History(ctx context.Context, branch, testbed, benchmark string, kind benchmetric.Kind) ([]float64, error)
}

// An AlertSink persists alerts.
type AlertSink interface {
	PutAlert(ctx context.Context, alert Alert) error
}

// A Source identifies the report under evaluation.
type Source struct {
	Report  uuid.UUID
	Branch  string
	Testbed string
}

// An Alert records a measurement outside a threshold's boundary.
type Alert struct {
	ID        uuid.UUID               `json:"id"`
	Report    uuid.UUID               `json:"report"`
	Benchmark string                  `json:"benchmark"`
	Kind      benchmetric.Kind        `json:"kind"`
	Threshold uuid.UUID               `json:"threshold"`
	Statistic threshold.StatisticType `json:"statistic"`

	// Side is the side of the baseline the measurement fell on:
	// threshold.Left or threshold.Right.
	Side threshold.Side `json:"side"`

	// Boundary is the limit that was crossed and Outlier the
	// measured value that crossed it.
	Boundary float64 `json:"boundary"`
	Outlier  float64 `json:"outlier"`

	// Baseline is the historical baseline the boundary was derived
	// from. It is zero if the threshold did not need one.
	Baseline benchmath.Baseline `json:"baseline"`

	CreatedAt time.Time `json:"created_at"`
}

func (a Alert) String() string {
	return fmt.Sprintf("%s %s: %v %s boundary %v (%s)", a.Benchmark, a.Kind, a.Outlier, sideVerb(a.Side), a.Boundary, a.Statistic)
}

func sideVerb(s threshold.Side) string {
	if s == threshold.Left {
		return "below"
	}
	return "above"
}

// ErrTerminal is returned by a batch Pass that has already been
// evaluated, and by Pass.Evaluate on a batch Pass.
var ErrTerminal = errors.New("batch evaluation pass is terminal")

// A BenchmarkError reports a failure to evaluate one benchmark.
type BenchmarkError struct {
	Benchmark string
	Kind      benchmetric.Kind
	Err       error
}

func (e *BenchmarkError) Error() string {
	return fmt.Sprintf("benchmark %s (%s): %v", e.Benchmark, e.Kind, e.Err)
}

func (e *BenchmarkError) Unwrap() error { return e.Err }

// Mode is the evaluation mode of a Pass.
type Mode string

const (
	Batch       Mode = "batch"
	Incremental Mode = "incremental"
)
