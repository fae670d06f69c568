// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/perfguard/perfguard/benchmetric"
)

// JSON parses input that is already in the canonical
// benchmetric.BenchmarkMetrics JSON form:
//
//	{
//	  "tests::benchmark_a": {
//	    "latency": {"value": 3247, "lower_bound": 1044, "upper_bound": 1044}
//	  }
//	}
//
// Unknown metric fields, a missing "value", mistyped fields,
// duplicate names and trailing data are all syntax errors.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (a JSON) Parse(input []byte, settings Settings) (benchmetric.BenchmarkMetrics, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		return nil, &SyntaxError{Adapter: a.Name(), Line: 1, Msg: "empty input"}
	}
	p := &jsonParser{adapter: a.Name(), input: input, dec: json.NewDecoder(bytes.NewReader(input))}
	bm, serr := p.benchmarks()
	if serr != nil {
		return nil, serr
	}
	if _, err := p.dec.Token(); err != io.EOF {
		return nil, p.errorf(p.dec.InputOffset(), nil, "unexpected data after benchmarks")
	}
	if err := bm.Validate(); err != nil {
		return nil, &SyntaxError{Adapter: a.Name(), Msg: err.Error(), Err: err}
	}
	return bm, nil
}

// A jsonParser walks the benchmark and kind objects token by token
// so that errors inside a metric can be located in the whole input.
type jsonParser struct {
	adapter string
	input   []byte
	dec     *json.Decoder
}

func (p *jsonParser) errorf(offset int64, err error, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Adapter: p.adapter, Line: lineAt(p.input, offset), Msg: fmt.Sprintf(format, args...), Err: err}
}

// tokenError converts an error from dec.Token.
func (p *jsonParser) tokenError(err error) *SyntaxError {
	offset := p.dec.InputOffset()
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return p.errorf(offset, err, "%v", err)
}

func (p *jsonParser) delim(want json.Delim, what string) *SyntaxError {
	tok, err := p.dec.Token()
	if err != nil {
		return p.tokenError(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return p.errorf(p.dec.InputOffset(), nil, "expected %s", what)
	}
	return nil
}

func (p *jsonParser) key(what string) (string, *SyntaxError) {
	tok, err := p.dec.Token()
	if err != nil {
		return "", p.tokenError(err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", p.errorf(p.dec.InputOffset(), nil, "expected %s", what)
	}
	if key == "" {
		return "", p.errorf(p.dec.InputOffset(), nil, "empty %s", what)
	}
	return key, nil
}

func (p *jsonParser) benchmarks() (benchmetric.BenchmarkMetrics, *SyntaxError) {
	if err := p.delim('{', "an object of benchmarks"); err != nil {
		return nil, err
	}
	bm := make(benchmetric.BenchmarkMetrics)
	for p.dec.More() {
		name, err := p.key("benchmark name")
		if err != nil {
			return nil, err
		}
		if _, dup := bm[name]; dup {
			return nil, p.errorf(p.dec.InputOffset(), nil, "duplicate benchmark %s", name)
		}
		ms, err := p.metrics(name)
		if err != nil {
			return nil, err
		}
		bm[name] = ms
	}
	if err := p.delim('}', "end of benchmarks"); err != nil {
		return nil, err
	}
	return bm, nil
}

func (p *jsonParser) metrics(name string) (benchmetric.Metrics, *SyntaxError) {
	if err := p.delim('{', "an object of metric kinds for "+name); err != nil {
		return nil, err
	}
	ms := make(benchmetric.Metrics)
	for p.dec.More() {
		kind, err := p.key("metric kind")
		if err != nil {
			return nil, err
		}
		if _, dup := ms[benchmetric.Kind(kind)]; dup {
			return nil, p.errorf(p.dec.InputOffset(), nil, "benchmark %s: duplicate kind %s", name, kind)
		}
		m, err := p.metric()
		if err != nil {
			return nil, err
		}
		ms[benchmetric.Kind(kind)] = m
	}
	if err := p.delim('}', "end of metric kinds for "+name); err != nil {
		return nil, err
	}
	return ms, nil
}

// metric decodes the metric object that follows the key just read.
func (p *jsonParser) metric() (benchmetric.Metric, *SyntaxError) {
	// The decoder reads the value starting just after the colon;
	// Metric.UnmarshalJSON sees it starting at its first byte.
	afterColon := p.skipSpace(p.dec.InputOffset())
	if afterColon < int64(len(p.input)) && p.input[afterColon] == ':' {
		afterColon++
	}
	start := p.skipSpace(afterColon)

	var m benchmetric.Metric
	err := p.dec.Decode(&m)
	if err == nil {
		return m, nil
	}
	offset := start
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = afterColon + syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = start + typeErr.Offset
	}
	return m, p.errorf(offset, err, "%v", err)
}

func (p *jsonParser) skipSpace(offset int64) int64 {
	for offset < int64(len(p.input)) {
		switch p.input[offset] {
		case ' ', '\t', '\r', '\n':
			offset++
		default:
			return offset
		}
	}
	return offset
}

// lineAt returns the 1-based line number of byte offset in input.
func lineAt(input []byte, offset int64) int {
	if offset > int64(len(input)) {
		offset = int64(len(input))
	}
	if offset < 0 {
		offset = 0
	}
	return bytes.Count(input[:offset], []byte("\n")) + 1
}
