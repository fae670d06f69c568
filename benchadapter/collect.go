// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchadapter

import (
	"bytes"
	"fmt"

	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/benchunit"
)

// A collector accumulates metrics read by a line-oriented adapter
// and folds repeated measurements according to Settings.Fold.
type collector struct {
	adapter  string
	settings Settings

	samples map[sampleKey]*samples
	order   []sampleKey
}

type sampleKey struct {
	benchmark string
	kind      benchmetric.Kind
}

// samples are the measurements of one benchmark and kind. line and
// text locate the first of them.
type samples struct {
	line int
	text []byte
	ms   []benchmetric.Metric
}

func newCollector(adapter string, settings Settings) *collector {
	return &collector{
		adapter:  adapter,
		settings: settings,
		samples:  make(map[sampleKey]*samples),
	}
}

// add records m for benchmark and kind. It returns a *SyntaxError if
// m is not finite, or if the benchmark was already seen and folding
// is disabled.
func (c *collector) add(line int, text []byte, benchmark string, kind benchmetric.Kind, m benchmetric.Metric) *SyntaxError {
	if err := m.Validate(); err != nil {
		se := c.errorf(line, text, "benchmark %s, %s: %v", benchmark, kind, err)
		se.Err = err
		return se
	}
	key := sampleKey{benchmark, kind}
	s, seen := c.samples[key]
	if seen && c.settings.Fold == FoldNone {
		return c.errorf(line, text, "duplicate benchmark %s", benchmark)
	}
	if !seen {
		s = &samples{line: line, text: text}
		c.samples[key] = s
		c.order = append(c.order, key)
	}
	s.ms = append(s.ms, m)
	return nil
}

// result folds the collected samples into canonical metrics. Folding
// finite measurements can still overflow, so the folded metrics are
// checked again.
func (c *collector) result() (benchmetric.BenchmarkMetrics, *SyntaxError) {
	out := make(benchmetric.BenchmarkMetrics)
	for _, key := range c.order {
		s := c.samples[key]
		var m benchmetric.Metric
		switch c.settings.Fold {
		case FoldNone:
			m = s.ms[0]
		case FoldMean:
			m, _ = benchmetric.Mean(s.ms)
		case FoldMedian:
			m, _ = benchmetric.Median(s.ms)
		case FoldMin:
			m, _ = benchmetric.Min(s.ms)
		case FoldMax:
			m, _ = benchmetric.Max(s.ms)
		}
		if err := m.Validate(); err != nil {
			se := c.errorf(s.line, s.text, "benchmark %s, %s: folding %d measurements: %v", key.benchmark, key.kind, len(s.ms), err)
			se.Err = err
			return nil, se
		}
		out.Set(key.benchmark, key.kind, m)
	}
	return out, nil
}

func (c *collector) errorf(line int, text []byte, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Adapter: c.adapter, Line: line, Msg: fmt.Sprintf(format, args...), Text: string(text)}
}

// allowUnit reports whether the time unit is permitted by settings.
func (s Settings) allowUnit(unit string) bool {
	canon, ok := benchunit.CanonicalTime(unit)
	if !ok {
		return false
	}
	if len(s.Units) == 0 {
		return true
	}
	for _, u := range s.Units {
		if c, _ := benchunit.CanonicalTime(u); c == canon {
			return true
		}
	}
	return false
}

// splitLines splits input into lines, dropping the line terminators
// ("\n" or "\r\n"). A final line without a terminator is included;
// a trailing terminator does not produce an empty final line.
func splitLines(input []byte) [][]byte {
	if len(input) == 0 {
		return nil
	}
	lines := bytes.Split(input, []byte("\n"))
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = bytes.TrimSuffix(line, []byte("\r"))
	}
	return lines
}

func isBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}
