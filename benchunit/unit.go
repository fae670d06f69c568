// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchunit converts the units and number syntax found in
// benchmark tool output into canonical values, and formats canonical
// values for display.
package benchunit

// Time units recognized in benchmark output. Micro has two spellings
// in the wild (GREEK SMALL LETTER MU and MICRO SIGN) plus the ASCII
// fallback "us".
const (
	Nanosecond  = "ns"
	Microsecond = "μs"
	Millisecond = "ms"
	Second      = "s"
)

// TimeUnits lists the canonical spellings of the supported time
// units, smallest first.
var TimeUnits = []string{Nanosecond, Microsecond, Millisecond, Second}

var timeFactors = map[string]float64{
	"ns": 1,
	"μs": 1e3, // U+03BC
	"µs": 1e3, // U+00B5
	"us": 1e3,
	"ms": 1e6,
	"s":  1e9,
}

// TimeFactor returns the number of nanoseconds in one unit of the
// named time unit. It reports false if unit is not a time unit.
func TimeFactor(unit string) (factor float64, ok bool) {
	factor, ok = timeFactors[unit]
	return
}

// CanonicalTime returns the canonical spelling of a time unit, so
// that "µs" and "us" both map to "μs". It reports false if unit is
// not a time unit.
func CanonicalTime(unit string) (string, bool) {
	switch unit {
	case "µs", "us":
		return Microsecond, true
	}
	_, ok := timeFactors[unit]
	return unit, ok
}

// ToNanos converts value in the given time unit to nanoseconds.
func ToNanos(value float64, unit string) (float64, bool) {
	factor, ok := TimeFactor(unit)
	if !ok {
		return 0, false
	}
	return value * factor, true
}
