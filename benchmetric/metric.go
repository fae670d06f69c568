// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchmetric defines the canonical representation of
// benchmark measurements shared by adapters and the regression
// detector.
//
// A Metric is a measured value with an optional lower and upper
// bound. The bounds describe a spread around the value as reported
// by the benchmarking tool (for example, the "+/- 1044" of a libtest
// bench line), not an absolute interval, so they are not required to
// bracket Value.
//
// Metrics are totally ordered (see Compare) and support the small
// amount of arithmetic needed to fold repeated measurements: Add,
// Div, Mean and Median.
package benchmetric

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNonFinite is returned when a Metric holds a NaN or infinite value.
var ErrNonFinite = errors.New("non-finite value")

// A Metric is a single canonical measurement.
type Metric struct {
	Value      float64  `json:"value"`
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`
}

// New returns a Metric with no bounds.
func New(value float64) Metric {
	return Metric{Value: value}
}

// NewSpread returns a Metric whose lower and upper bounds are both
// spread.
func NewSpread(value, spread float64) Metric {
	return Metric{Value: value, LowerBound: Float(spread), UpperBound: Float(spread)}
}

// Float returns a pointer to a copy of v. It is a convenience for
// setting Metric bounds.
func Float(v float64) *float64 {
	return &v
}

// Validate reports whether m's value and bounds are all finite.
func (m Metric) Validate() error {
	if !finite(m.Value) {
		return fmt.Errorf("value %v: %w", m.Value, ErrNonFinite)
	}
	if m.LowerBound != nil && !finite(*m.LowerBound) {
		return fmt.Errorf("lower bound %v: %w", *m.LowerBound, ErrNonFinite)
	}
	if m.UpperBound != nil && !finite(*m.UpperBound) {
		return fmt.Errorf("upper bound %v: %w", *m.UpperBound, ErrNonFinite)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Equal reports whether m and o have the same value and the same
// bounds. A missing bound is only equal to another missing bound.
func (m Metric) Equal(o Metric) bool {
	return m.Value == o.Value && boundEqual(m.LowerBound, o.LowerBound) && boundEqual(m.UpperBound, o.UpperBound)
}

func boundEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m Metric) String() string {
	s := fmt.Sprintf("%v", m.Value)
	if m.LowerBound != nil || m.UpperBound != nil {
		s += fmt.Sprintf(" (-%s/+%s)", boundString(m.LowerBound), boundString(m.UpperBound))
	}
	return s
}

func boundString(b *float64) string {
	if b == nil {
		return "?"
	}
	return fmt.Sprintf("%v", *b)
}

// Compare returns -1, 0 or +1 depending on whether a sorts before,
// equal to, or after b.
//
// Metrics are ordered by Value, then by UpperBound, then by
// LowerBound. A missing bound sorts before any present bound.
func Compare(a, b Metric) int {
	if c := compareFloat(a.Value, b.Value); c != 0 {
		return c
	}
	if c := compareBound(a.UpperBound, b.UpperBound); c != 0 {
		return c
	}
	return compareBound(a.LowerBound, b.LowerBound)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBound(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compareFloat(*a, *b)
}

// Sort sorts ms in place in ascending order according to Compare.
func Sort(ms []Metric) {
	sort.SliceStable(ms, func(i, j int) bool { return Compare(ms[i], ms[j]) < 0 })
}

// Add returns the sum of a and b.
//
// Values are summed. Each bound is summed independently: if both
// operands carry the bound, the bounds are added; if only one does,
// the other operand's Value stands in for its missing bound; if
// neither does, the result has no bound.
//
// This is an additive approximation used to fold repeated
// measurements. It is not a propagation of uncertainty.
func Add(a, b Metric) Metric {
	return Metric{
		Value:      a.Value + b.Value,
		LowerBound: addBound(a.LowerBound, a.Value, b.LowerBound, b.Value),
		UpperBound: addBound(a.UpperBound, a.Value, b.UpperBound, b.Value),
	}
}

func addBound(aBound *float64, aValue float64, bBound *float64, bValue float64) *float64 {
	switch {
	case aBound != nil && bBound != nil:
		return Float(*aBound + *bBound)
	case aBound != nil:
		return Float(*aBound + bValue)
	case bBound != nil:
		return Float(aValue + *bBound)
	}
	return nil
}

// Sum folds Add over ms, starting from the zero Metric.
func Sum(ms []Metric) Metric {
	var sum Metric
	for _, m := range ms {
		sum = Add(sum, m)
	}
	return sum
}

// Div divides the value and every present bound of m by n.
func Div(m Metric, n float64) Metric {
	out := Metric{Value: m.Value / n}
	if m.LowerBound != nil {
		out.LowerBound = Float(*m.LowerBound / n)
	}
	if m.UpperBound != nil {
		out.UpperBound = Float(*m.UpperBound / n)
	}
	return out
}

// Mean returns the component-wise mean of ms. It returns false if ms
// is empty.
func Mean(ms []Metric) (Metric, bool) {
	switch len(ms) {
	case 0:
		return Metric{}, false
	case 1:
		return ms[0].clone(), true
	}
	return Div(Sum(ms), float64(len(ms))), true
}

// Median returns the median of ms under the order defined by Compare.
// For an even number of metrics it is the Mean of the two central
// metrics. It returns false if ms is empty. ms is not modified.
func Median(ms []Metric) (Metric, bool) {
	if len(ms) == 0 {
		return Metric{}, false
	}
	sorted := make([]Metric, len(ms))
	copy(sorted, ms)
	Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid].clone(), true
	}
	return Mean(sorted[mid-1 : mid+1])
}

// Min returns the smallest metric of ms under Compare.
func Min(ms []Metric) (Metric, bool) {
	return extreme(ms, -1)
}

// Max returns the largest metric of ms under Compare.
func Max(ms []Metric) (Metric, bool) {
	return extreme(ms, 1)
}

func extreme(ms []Metric, sign int) (Metric, bool) {
	if len(ms) == 0 {
		return Metric{}, false
	}
	best := ms[0]
	for _, m := range ms[1:] {
		if Compare(m, best) == sign {
			best = m
		}
	}
	return best.clone(), true
}

// clone returns a copy of m that shares no bound storage with m.
func (m Metric) clone() Metric {
	out := Metric{Value: m.Value}
	if m.LowerBound != nil {
		out.LowerBound = Float(*m.LowerBound)
	}
	if m.UpperBound != nil {
		out.UpperBound = Float(*m.UpperBound)
	}
	return out
}
