// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchadapter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/benchunit"
)

// GoBench parses the text output of "go test -bench", as documented
// at https://golang.org/design/14313-benchmark-format:
//
//	goos: linux
//	BenchmarkEncode-8   	  100	  13552735 ns/op	  56.63 MB/s	  512 B/op
//	PASS
//
// A "<time>/op" measurement becomes a benchmetric.Latency metric in
// nanoseconds, "MB/s" becomes benchmetric.Throughput, and any other
// unit becomes a metric of Kind(unit). Benchmark names drop the
// "Benchmark" prefix. Lines that are not benchmark results are
// ignored.
//
// Running with -count produces repeated results; these require a
// Settings.Fold.
type GoBench struct{}

func (GoBench) Name() string { return "go" }

var benchmarkPrefix = []byte("Benchmark")

func (a GoBench) Parse(input []byte, settings Settings) (benchmetric.BenchmarkMetrics, error) {
	c := newCollector(a.Name(), settings)
	for i, line := range splitLines(input) {
		if !bytes.HasPrefix(line, benchmarkPrefix) {
			continue
		}
		if err := a.parseBenchmarkLine(c, i+1, line); err != nil {
			return nil, err
		}
	}
	bm, serr := c.result()
	if serr != nil {
		return nil, serr
	}
	return bm, nil
}

// parseBenchmarkLine parses one "Benchmark" line into c.
func (a GoBench) parseBenchmarkLine(c *collector, lineNo int, line []byte) *SyntaxError {
	fields := bytes.Fields(line[len(benchmarkPrefix):])
	// As a special case, "go test -v" prints the benchmark name on
	// its own line when the benchmark starts.
	if len(fields) <= 1 && !bytes.ContainsAny(line[len(benchmarkPrefix):], " \t") {
		return nil
	}
	if len(fields) < 2 {
		return c.errorf(lineNo, line, "missing iteration count")
	}
	name := string(fields[0])
	if _, err := strconv.Atoi(string(fields[1])); err != nil {
		return c.errorf(lineNo, line, "parsing iteration count: %v", err.(*strconv.NumError).Err)
	}
	fields = fields[2:]
	if len(fields) == 0 {
		return c.errorf(lineNo, line, "missing measurements")
	}
	for len(fields) > 0 {
		val, err := strconv.ParseFloat(string(fields[0]), 64)
		if err != nil {
			return c.errorf(lineNo, line, "parsing measurement: %v", err.(*strconv.NumError).Err)
		}
		if len(fields) < 2 {
			return c.errorf(lineNo, line, "missing units")
		}
		if c.settings.Precision == PrecisionExact && val > benchunit.MaxExact {
			return c.errorf(lineNo, line, "measurement %s exceeds exact float64 range", fields[0])
		}
		kind, val, serr := a.kind(c, lineNo, line, string(fields[1]), val)
		if serr != nil {
			return serr
		}
		if serr := c.add(lineNo, line, name, kind, benchmetric.New(val)); serr != nil {
			return serr
		}
		fields = fields[2:]
	}
	return nil
}

// kind maps a Go benchmark unit to a metric kind, converting time
// per operation to nanoseconds.
func (a GoBench) kind(c *collector, lineNo int, line []byte, unit string, val float64) (benchmetric.Kind, float64, *SyntaxError) {
	if unit == "MB/s" {
		return benchmetric.Throughput, val, nil
	}
	if num, ok := strings.CutSuffix(unit, "/op"); ok {
		if _, isTime := benchunit.TimeFactor(num); isTime {
			if !c.settings.allowUnit(num) {
				return "", 0, c.errorf(lineNo, line, "unsupported time unit %q", num)
			}
			ns, _ := benchunit.ToNanos(val, num)
			return benchmetric.Latency, ns, nil
		}
	}
	return benchmetric.Kind(unit), val, nil
}
