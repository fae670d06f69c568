// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchmath computes the statistics the regression detector
// compares new measurements against.
//
// A Baseline summarizes the historical sample of one benchmark and
// metric kind. Boundaries derived from it (see PredictionBounds and
// the critical value functions) decide whether a new measurement is
// an outlier.
package benchmath

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/perfguard/perfguard/benchmetric"
)

// ErrNonFinite is returned when a historical sample contains a NaN or
// infinite value.
var ErrNonFinite = benchmetric.ErrNonFinite

// A Baseline summarizes a historical sample. It is immutable once
// constructed.
type Baseline struct {
	// N is the number of points in the sample. It is at least 2.
	N int `json:"n"`

	// Mean is the sample mean.
	Mean float64 `json:"mean"`

	// StdDev is the Bessel-corrected sample standard deviation.
	StdDev float64 `json:"stddev"`
}

// NewBaseline summarizes history, the observed values of one
// benchmark and kind, oldest first.
//
// A sample with fewer than two points has no standard deviation and
// therefore no baseline: NewBaseline returns nil, nil. If any value
// is non-finite, it returns an error wrapping ErrNonFinite.
func NewBaseline(history []float64) (*Baseline, error) {
	for i, x := range history {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("history point %d is %v: %w", i, x, ErrNonFinite)
		}
	}
	if len(history) < 2 {
		return nil, nil
	}
	s := stats.Sample{Xs: history}
	return &Baseline{N: len(history), Mean: s.Mean(), StdDev: s.StdDev()}, nil
}

// DegreesOfFreedom returns the degrees of freedom of the baseline's
// standard deviation estimate, N-1.
func (b *Baseline) DegreesOfFreedom() int {
	return b.N - 1
}

// predictionScale is the standard error of a single new observation
// drawn from the baseline's distribution.
func (b *Baseline) predictionScale() float64 {
	return b.StdDev * math.Sqrt(1+1/float64(b.N))
}

// TStatistic returns the prediction t statistic of a new observation
// x against b,
//
//	(x - mean) / (s * sqrt(1 + 1/n))
//
// which follows Student's t distribution with N-1 degrees of freedom
// if x is drawn from the same normal distribution as the baseline.
//
// If the baseline has zero spread, the result is 0 for x equal to the
// mean and an infinity of the sign of x - mean otherwise.
func (b *Baseline) TStatistic(x float64) float64 {
	d := x - b.Mean
	scale := b.predictionScale()
	if scale == 0 {
		if d == 0 {
			return 0
		}
		return math.Inf(int(math.Copysign(1, d)))
	}
	return d / scale
}

// PredictionBounds returns the boundaries of the prediction interval
// for a single new observation at significance alpha:
//
//	mean ∓ t * s * sqrt(1 + 1/n)
//
// where t is the Student's t critical value for N-1 degrees of
// freedom. With tails == TwoTailed, alpha is split evenly between the
// two sides.
func (b *Baseline) PredictionBounds(alpha float64, tails Tails) (lower, upper float64, err error) {
	t, err := TCritical(alpha, b.DegreesOfFreedom(), tails)
	if err != nil {
		return 0, 0, err
	}
	d := t * b.predictionScale()
	return b.Mean - d, b.Mean + d, nil
}

// String returns a short description of b, such as
// "100 ±1.581 (n=5)".
func (b *Baseline) String() string {
	return fmt.Sprintf("%.4g ±%.4g (n=%d)", b.Mean, b.StdDev, b.N)
}

// FormatDelta formats the change from a baseline center old to an
// observed value new as a signed percentage, such as "+7.00%".
func FormatDelta(old, new float64) string {
	if old == new {
		return "0.00%"
	}
	if old == 0 {
		return "?"
	}
	pct := ((new / old) - 1.0) * 100.0
	return fmt.Sprintf("%+.2f%%", pct)
}
