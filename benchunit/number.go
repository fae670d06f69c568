// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchunit

import (
	"errors"
	"math"
	"strconv"
)

// ErrSyntax indicates a number does not match the expected syntax.
var ErrSyntax = errors.New("invalid syntax")

// ErrRange indicates a number cannot be represented exactly as a
// float64.
var ErrRange = errors.New("value out of exact range")

// A NumError records a failed number conversion.
type NumError struct {
	Num string // the input
	Err error  // the reason the conversion failed (ErrSyntax, ErrRange)
}

func (e *NumError) Error() string {
	return "parsing " + strconv.Quote(e.Num) + ": " + e.Err.Error()
}

func (e *NumError) Unwrap() error { return e.Err }

// MaxExact is the largest integer n such that every integer in
// [0, n] is exactly representable as a float64.
const MaxExact = 1 << 53

// ParseGrouped parses a non-negative integer written as one or more
// groups of decimal digits separated by commas, such as "1,234,567"
// or "3247". The separators are stripped before conversion.
//
// If exact is set, values above MaxExact are rejected with ErrRange
// because they would lose precision as a float64.
func ParseGrouped(x []byte, exact bool) (float64, error) {
	if len(x) == 0 || x[0] == ',' || x[len(x)-1] == ',' {
		return 0, &NumError{string(x), ErrSyntax}
	}
	var val uint64
	overflow := false
	prevComma := false
	for _, ch := range x {
		if ch == ',' {
			if prevComma {
				return 0, &NumError{string(x), ErrSyntax}
			}
			prevComma = true
			continue
		}
		prevComma = false
		digit := ch - '0'
		if digit >= 10 {
			return 0, &NumError{string(x), ErrSyntax}
		}
		if val > (math.MaxUint64-9)/10 {
			overflow = true
			continue
		}
		val = val*10 + uint64(digit)
	}
	if overflow || val > MaxExact {
		if exact {
			return 0, &NumError{string(x), ErrRange}
		}
		if overflow {
			// Too large for uint64. Fall back to float parsing
			// of the stripped digits.
			return parseStripped(x)
		}
	}
	return float64(val), nil
}

func parseStripped(x []byte) (float64, error) {
	buf := make([]byte, 0, len(x))
	for _, ch := range x {
		if ch != ',' {
			buf = append(buf, ch)
		}
	}
	v, err := strconv.ParseFloat(string(buf), 64)
	if err != nil {
		return 0, &NumError{string(x), ErrSyntax}
	}
	return v, nil
}
