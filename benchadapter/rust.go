// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchadapter

import (
	"bytes"

	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/benchunit"
)

// RustBench parses the text output of the Rust libtest bench harness
// ("cargo bench"):
//
//	running 3 tests
//	test tests::benchmark_a ... bench:       3,247 ns/iter (+/- 1,044)
//	test tests::ignored     ... ignored
//
//	test result: ok. 0 passed; 0 failed; 1 ignored; 2 measured
//
// Each bench line produces a benchmetric.Latency metric in
// nanoseconds. The "+/-" spread becomes both the lower and the upper
// bound. Ignored tests are dropped. Everything after the first blank
// line that follows the test lines is ignored.
type RustBench struct{}

func (RustBench) Name() string { return "rust" }

func (a RustBench) Parse(input []byte, settings Settings) (benchmetric.BenchmarkMetrics, error) {
	p := &rustParser{c: newCollector(a.Name(), settings), settings: settings}
	if err := p.parse(splitLines(input)); err != nil {
		return nil, err
	}
	bm, serr := p.c.result()
	if serr != nil {
		return nil, serr
	}
	return bm, nil
}

type rustParser struct {
	c        *collector
	settings Settings
}

func (p *rustParser) parse(lines [][]byte) *SyntaxError {
	i := 0
	// Optional leading blank line.
	if i < len(lines) && len(lines[i]) == 0 {
		i++
	}
	if i >= len(lines) {
		return p.c.errorf(i+1, nil, "missing \"running N tests\" header")
	}
	if !parseRunningHeader(lines[i]) {
		return p.c.errorf(i+1, lines[i], "expected \"running N tests\" header")
	}
	i++
	for ; i < len(lines); i++ {
		line := lines[i]
		if isBlank(line) {
			// End of the test lines. The summary that follows
			// is ignored.
			return nil
		}
		if err := p.parseTestLine(i+1, line); err != nil {
			return err
		}
	}
	return nil
}

// parseRunningHeader reports whether line is "running <N> test(s)".
func parseRunningHeader(line []byte) bool {
	c := cursor{line}
	return c.literal("running") && c.spaces() && c.digits() && c.spaces() &&
		(c.literal("tests") || c.literal("test")) && c.end()
}

// parseTestLine parses
//
//	test <path> ... ignored
//	test <path> ... bench: <n> <unit>/iter (+/- <n>)
func (p *rustParser) parseTestLine(lineNo int, line []byte) *SyntaxError {
	c := cursor{line}
	if !c.literal("test") || !c.spaces() {
		return p.c.errorf(lineNo, line, "expected \"test <name> ...\"")
	}
	name := c.until(' ')
	if len(name) == 0 || !c.spaces() || !c.literal("...") || !c.spaces() {
		return p.c.errorf(lineNo, line, "malformed test name")
	}
	if c.literal("ignored") {
		if !c.end() {
			return p.c.errorf(lineNo, line, "unexpected text after \"ignored\"")
		}
		return nil
	}
	if !c.literal("bench:") || !c.spaces() {
		return p.c.errorf(lineNo, line, "expected \"ignored\" or \"bench:\"")
	}
	exact := p.settings.Precision == PrecisionExact
	value, err := benchunit.ParseGrouped(c.number(), exact)
	if err != nil {
		return p.c.errorf(lineNo, line, "parsing measurement: %v", err)
	}
	if !c.spaces() {
		return p.c.errorf(lineNo, line, "missing units")
	}
	unit := string(c.until('/'))
	if len(unit) == 0 || !c.literal("/iter") {
		return p.c.errorf(lineNo, line, "expected <unit>/iter")
	}
	if !p.settings.allowUnit(unit) {
		return p.c.errorf(lineNo, line, "unsupported time unit %q", unit)
	}
	if !c.spaces() || !c.literal("(+/-") || !c.spaces() {
		return p.c.errorf(lineNo, line, "expected \"(+/- <n>)\"")
	}
	spread, err := benchunit.ParseGrouped(c.number(), exact)
	if err != nil {
		return p.c.errorf(lineNo, line, "parsing spread: %v", err)
	}
	if !c.literal(")") || !c.end() {
		return p.c.errorf(lineNo, line, "expected \")\" at end of line")
	}

	value, _ = benchunit.ToNanos(value, unit)
	spread, _ = benchunit.ToNanos(spread, unit)
	return p.c.add(lineNo, line, string(name), benchmetric.Latency, benchmetric.NewSpread(value, spread))
}

// A cursor consumes a line from left to right. Every method either
// consumes what it matched or leaves the cursor unchanged.
type cursor struct {
	rest []byte
}

func (c *cursor) literal(s string) bool {
	if !bytes.HasPrefix(c.rest, []byte(s)) {
		return false
	}
	c.rest = c.rest[len(s):]
	return true
}

// spaces consumes one or more spaces or tabs.
func (c *cursor) spaces() bool {
	i := 0
	for i < len(c.rest) && (c.rest[i] == ' ' || c.rest[i] == '\t') {
		i++
	}
	c.rest = c.rest[i:]
	return i > 0
}

// digits consumes one or more ASCII digits.
func (c *cursor) digits() bool {
	i := 0
	for i < len(c.rest) && '0' <= c.rest[i] && c.rest[i] <= '9' {
		i++
	}
	c.rest = c.rest[i:]
	return i > 0
}

// number consumes a run of digits and commas and returns it.
func (c *cursor) number() []byte {
	i := 0
	for i < len(c.rest) && ('0' <= c.rest[i] && c.rest[i] <= '9' || c.rest[i] == ',') {
		i++
	}
	n := c.rest[:i]
	c.rest = c.rest[i:]
	return n
}

// until consumes and returns everything before the first sep, or
// nothing if sep does not occur.
func (c *cursor) until(sep byte) []byte {
	i := bytes.IndexByte(c.rest, sep)
	if i < 0 {
		return nil
	}
	f := c.rest[:i]
	c.rest = c.rest[i:]
	return f
}

// end reports whether only trailing whitespace remains.
func (c *cursor) end() bool {
	return len(bytes.TrimSpace(c.rest)) == 0
}
