// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threshold

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/perfguard/perfguard/benchmetric"
)

type key struct {
	branch, testbed string
	kind            benchmetric.Kind
}

// A Set is an in-memory collection of thresholds, at most one per
// branch, testbed and kind. It is safe for concurrent use.
type Set struct {
	mu sync.RWMutex
	m  map[key]*Threshold
}

// NewSet returns a Set holding ths. Later thresholds replace earlier
// ones for the same branch, testbed and kind.
func NewSet(ths ...*Threshold) *Set {
	s := &Set{m: make(map[key]*Threshold)}
	for _, th := range ths {
		s.Put(th)
	}
	return s
}

// Put adds th to s, replacing any threshold for the same branch,
// testbed and kind. Put does not validate th.
func (s *Set) Put(th *Threshold) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key{th.Branch, th.Testbed, th.Kind}] = th
}

// Threshold returns the threshold for branch, testbed and kind, or
// nil if there is none.
func (s *Set) Threshold(ctx context.Context, branch, testbed string, kind benchmetric.Kind) (*Threshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key{branch, testbed, kind}], nil
}

// All returns every threshold in s ordered by branch, testbed and
// kind.
func (s *Set) All() []*Threshold {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Threshold, 0, len(s.m))
	for _, th := range s.m {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Branch != b.Branch {
			return a.Branch < b.Branch
		}
		if a.Testbed != b.Testbed {
			return a.Testbed < b.Testbed
		}
		return a.Kind < b.Kind
	})
	return out
}

// Len returns the number of thresholds in s.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

type file struct {
	Thresholds []*Threshold `yaml:"thresholds"`
}

// Parse decodes a YAML threshold list. Thresholds without an ID are
// assigned a random one. Every threshold is validated.
func Parse(data []byte) ([]*Threshold, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing thresholds: %w", err)
	}
	for i, th := range f.Thresholds {
		if th == nil {
			return nil, fmt.Errorf("threshold %d is empty", i)
		}
		if th.ID == uuid.Nil {
			th.ID = uuid.New()
		}
		if err := th.Validate(); err != nil {
			return nil, fmt.Errorf("threshold %d: %w", i, err)
		}
	}
	return f.Thresholds, nil
}

// LoadFile reads and parses the YAML threshold list in path.
func LoadFile(path string) ([]*Threshold, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ths, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ths, nil
}
