// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmath

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// Tails is the number of tails of a significance test.
type Tails int

const (
	OneTailed Tails = 1
	TwoTailed Tails = 2
)

func (t Tails) check(alpha float64) error {
	if t != OneTailed && t != TwoTailed {
		return fmt.Errorf("tails must be 1 or 2, got %d", int(t))
	}
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("significance %v not in (0, 1)", alpha)
	}
	return nil
}

// TCritical returns the critical value of Student's t distribution
// with dof degrees of freedom at significance alpha: the value t such
// that P(T > t) = alpha/tails.
func TCritical(alpha float64, dof int, tails Tails) (float64, error) {
	if err := tails.check(alpha); err != nil {
		return 0, err
	}
	if dof < 1 {
		return 0, fmt.Errorf("degrees of freedom %d < 1", dof)
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	return dist.Quantile(1 - alpha/float64(tails)), nil
}

// ZCritical returns the critical value of the standard normal
// distribution at significance alpha: the value z such that
// P(Z > z) = alpha/tails.
func ZCritical(alpha float64, tails Tails) (float64, error) {
	if err := tails.check(alpha); err != nil {
		return 0, err
	}
	return distuv.UnitNormal.Quantile(1 - alpha/float64(tails)), nil
}
