// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package threshold defines regression thresholds: the statistical
// test, its parameters and the side of the baseline on which a new
// measurement counts as a regression.
//
// A Threshold applies to one metric kind on one branch and testbed.
// Thresholds are usually loaded from YAML:
//
//	thresholds:
//	  - branch: main
//	    testbed: ci-linux
//	    kind: latency
//	    statistic: {type: z_score, deviations: 3}
//	    side: right
package threshold

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/perfguard/perfguard/benchmath"
	"github.com/perfguard/perfguard/benchmetric"
)

// A StatisticType names the test a threshold applies.
type StatisticType string

const (
	// Static compares against fixed boundaries.
	Static StatisticType = "static"
	// Percentage allows a fractional deviation from the baseline
	// mean.
	Percentage StatisticType = "percentage"
	// ZScore allows a number of standard deviations from the
	// baseline mean.
	ZScore StatisticType = "z_score"
	// TTest computes Student's t prediction interval at a
	// significance level. It is evaluated in batch.
	TTest StatisticType = "t_test"
)

// Batch reports whether thresholds of this type are evaluated once
// per report rather than per benchmark.
func (t StatisticType) Batch() bool {
	return t == TTest
}

// A Side selects which deviations from the baseline are regressions.
type Side string

const (
	// Left flags measurements below the lower boundary, as for
	// throughput.
	Left Side = "left"
	// Right flags measurements above the upper boundary, as for
	// latency.
	Right Side = "right"
	// Both flags either.
	Both Side = "both"
)

// Tails returns the number of tails of a significance test on side s.
func (s Side) Tails() benchmath.Tails {
	if s == Both {
		return benchmath.TwoTailed
	}
	return benchmath.OneTailed
}

// A Statistic is the test of a Threshold and its parameters. Only the
// parameters of Type are used.
type Statistic struct {
	Type StatisticType `json:"type" yaml:"type" validate:"oneof=static percentage z_score t_test"`

	// Boundary is the static upper boundary, and also the lower
	// boundary unless LeftBoundary is set.
	Boundary float64 `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	// LeftBoundary is the static lower boundary.
	LeftBoundary *float64 `json:"left_boundary,omitempty" yaml:"left_boundary,omitempty"`

	// Percentage is the allowed deviation from the baseline mean as
	// a fraction: 0.10 allows 10%.
	Percentage float64 `json:"percentage,omitempty" yaml:"percentage,omitempty" validate:"gte=0"`

	// Deviations is the z-score multiplier: the number of standard
	// deviations allowed from the baseline mean.
	Deviations float64 `json:"deviations,omitempty" yaml:"deviations,omitempty" validate:"gte=0"`

	// Significance is the alpha of a t_test. A z_score threshold
	// without Deviations derives its multiplier from Significance
	// using the normal distribution.
	Significance float64 `json:"significance,omitempty" yaml:"significance,omitempty" validate:"gte=0,lt=1"`
}

// A Threshold is the regression test applied to one metric kind on
// one branch and testbed.
type Threshold struct {
	ID        uuid.UUID        `json:"id" yaml:"id,omitempty"`
	Branch    string           `json:"branch" yaml:"branch" validate:"required"`
	Testbed   string           `json:"testbed" yaml:"testbed" validate:"required"`
	Kind      benchmetric.Kind `json:"kind" yaml:"kind" validate:"required"`
	Statistic Statistic        `json:"statistic" yaml:"statistic"`
	Side      Side             `json:"side" yaml:"side" validate:"oneof=left right both"`

	// MinSampleSize is the number of historical points required
	// before the threshold is applied. Zero selects the default for
	// the statistic.
	MinSampleSize int `json:"min_sample_size,omitempty" yaml:"min_sample_size,omitempty" validate:"gte=0"`

	// Window limits the baseline to the newest Window points of
	// history. Zero uses all history.
	Window int `json:"window,omitempty" yaml:"window,omitempty" validate:"gte=0"`
}

// DefaultMinSampleSize returns the smallest history a statistic of
// type t can be computed from.
func DefaultMinSampleSize(t StatisticType) int {
	switch t {
	case ZScore, TTest:
		return 2
	case Percentage:
		return 1
	}
	return 0
}

// SampleSize returns the number of historical points required before
// th is applied.
func (th *Threshold) SampleSize() int {
	if th.MinSampleSize == 0 {
		return DefaultMinSampleSize(th.Statistic.Type)
	}
	return th.MinSampleSize
}

// NeedsHistory reports whether evaluating th requires historical
// data.
func (th *Threshold) NeedsHistory() bool {
	return th.SampleSize() > 0
}

// A ConfigError reports an invalid threshold. It prevents evaluation
// of the threshold's metric kind only.
type ConfigError struct {
	Threshold uuid.UUID
	Kind      benchmetric.Kind
	Field     string // offending field, if known
	Msg       string
}

func (e *ConfigError) Error() string {
	s := fmt.Sprintf("threshold %s (%s)", e.Threshold, e.Kind)
	if e.Field != "" {
		s += " " + e.Field
	}
	return s + ": " + e.Msg
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks th for internal consistency. It returns a
// *ConfigError describing the first problem found.
func (th *Threshold) Validate() error {
	if err := structValidator().Struct(th); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return th.errorf(fe.Namespace(), "failed %q check (value %v)", fe.Tag(), fe.Value())
		}
		return th.errorf("", "%v", err)
	}

	st := th.Statistic
	switch st.Type {
	case Static:
		if st.LeftBoundary != nil && *st.LeftBoundary > st.Boundary {
			return th.errorf("Statistic.LeftBoundary", "left boundary %v above boundary %v", *st.LeftBoundary, st.Boundary)
		}
	case Percentage:
		// Zero percent is allowed: any change is a regression.
	case ZScore:
		if st.Deviations == 0 && st.Significance == 0 {
			return th.errorf("Statistic.Deviations", "z_score requires deviations > 0 or a significance")
		}
	case TTest:
		if !(st.Significance > 0 && st.Significance < 1) {
			return th.errorf("Statistic.Significance", "significance %v not in (0, 1)", st.Significance)
		}
	}

	if min := DefaultMinSampleSize(st.Type); th.MinSampleSize != 0 && th.MinSampleSize < min {
		return th.errorf("MinSampleSize", "%s needs at least %d historical points, got %d", st.Type, min, th.MinSampleSize)
	}
	if th.Window != 0 && th.Window < th.SampleSize() {
		return th.errorf("Window", "window %d smaller than minimum sample size %d", th.Window, th.SampleSize())
	}
	return nil
}

func (th *Threshold) errorf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Threshold: th.ID, Kind: th.Kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Multiplier returns the number of standard deviations a z_score
// threshold allows.
func (th *Threshold) Multiplier() (float64, error) {
	if th.Statistic.Deviations > 0 {
		return th.Statistic.Deviations, nil
	}
	return benchmath.ZCritical(th.Statistic.Significance, th.Side.Tails())
}
