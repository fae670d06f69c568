// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchadapter converts the output of benchmarking tools into
// canonical benchmark metrics.
//
// Each supported output format is an Adapter. Parsing is
// all-or-nothing: an Adapter either returns the complete
// benchmetric.BenchmarkMetrics for its input or a *SyntaxError
// describing the first violation, never a partial result.
//
// The caller picks the Adapter, usually from report metadata, through
// a Registry. Formats are never auto-detected.
package benchadapter

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/benchunit"
)

// An Adapter parses the raw output of one benchmarking tool.
type Adapter interface {
	// Name returns the name the adapter is registered under,
	// such as "json" or "rust".
	Name() string

	// Parse converts input into canonical metrics. On failure it
	// returns a nil map and an error, typically a *SyntaxError.
	Parse(input []byte, settings Settings) (benchmetric.BenchmarkMetrics, error)
}

// Settings controls how adapters interpret their input.
//
// The zero value accepts every time unit, converts numbers to float64
// without precision checks, and rejects repeated benchmarks.
type Settings struct {
	// Units lists the time units an adapter may accept, such as
	// "ns" or "ms". If empty, all units known to benchunit are
	// accepted.
	Units []string `json:"units,omitempty" yaml:"units,omitempty"`

	// Precision states the numeric precision expected of
	// measurements.
	Precision Precision `json:"precision,omitempty" yaml:"precision,omitempty"`

	// Fold selects how repeated results for the same benchmark and
	// metric kind are combined.
	Fold Fold `json:"fold,omitempty" yaml:"fold,omitempty"`
}

// Precision is the numeric precision expected of measurements.
type Precision string

const (
	// PrecisionFloat accepts any value that parses as a float64,
	// rounding if necessary.
	PrecisionFloat Precision = ""
	// PrecisionExact rejects integer measurements too large to be
	// represented exactly as a float64.
	PrecisionExact Precision = "exact"
)

// Fold selects how repeated measurements of one benchmark combine.
type Fold string

const (
	// FoldNone rejects repeated measurements as a syntax error.
	FoldNone   Fold = ""
	FoldMean   Fold = "mean"
	FoldMedian Fold = "median"
	FoldMin    Fold = "min"
	FoldMax    Fold = "max"
)

// Validate checks that s names known time units, precision and
// fold settings.
func (s Settings) Validate() error {
	for _, u := range s.Units {
		if _, ok := benchunit.CanonicalTime(u); !ok {
			return fmt.Errorf("unknown time unit %q", u)
		}
	}
	switch s.Precision {
	case PrecisionFloat, PrecisionExact:
	default:
		return fmt.Errorf("unknown precision %q", s.Precision)
	}
	switch s.Fold {
	case FoldNone, FoldMean, FoldMedian, FoldMin, FoldMax:
	default:
		return fmt.Errorf("unknown fold %q", s.Fold)
	}
	return nil
}

// A SyntaxError reports malformed adapter input.
type SyntaxError struct {
	Adapter string // name of the adapter that failed
	Line    int    // 1-based line number, or 0 if unknown
	Msg     string
	Text    string // offending line, if any
	Err     error  // underlying error, if any
}

func (e *SyntaxError) Error() string {
	s := fmt.Sprintf("%s:%d: %s", e.Adapter, e.Line, e.Msg)
	if e.Text != "" {
		s += fmt.Sprintf(" in %q", e.Text)
	}
	return s
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// ErrUnknownAdapter is returned by Registry.Lookup for unregistered
// adapter names.
var ErrUnknownAdapter = errors.New("unknown adapter")

// A Registry maps adapter names to Adapters. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns a Registry holding adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Default returns a new Registry holding the json, rust and go
// adapters.
func Default() *Registry {
	return NewRegistry(JSON{}, RustBench{}, GoBench{})
}

// Register adds a, replacing any adapter of the same name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAdapter, name)
	}
	return a, nil
}

// Names returns the sorted names of all registered adapters.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse looks up the named adapter and parses input with it.
func (r *Registry) Parse(name string, input []byte, settings Settings) (benchmetric.BenchmarkMetrics, error) {
	a, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return a.Parse(input, settings)
}
