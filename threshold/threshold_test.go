// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threshold

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/perfguard/perfguard/benchmetric"
)

func valid() *Threshold {
	return &Threshold{
		ID:        uuid.New(),
		Branch:    "main",
		Testbed:   "ci",
		Kind:      benchmetric.Latency,
		Statistic: Statistic{Type: ZScore, Deviations: 3},
		Side:      Right,
	}
}

func TestValidate(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid threshold: %v", err)
	}

	for _, test := range []struct {
		name   string
		modify func(th *Threshold)
		field  string
	}{
		{"no branch", func(th *Threshold) { th.Branch = "" }, "Branch"},
		{"no kind", func(th *Threshold) { th.Kind = "" }, "Kind"},
		{"unknown statistic", func(th *Threshold) { th.Statistic.Type = "magic" }, "Type"},
		{"unknown side", func(th *Threshold) { th.Side = "up" }, "Side"},
		{"negative z", func(th *Threshold) { th.Statistic.Deviations = -1 }, "Deviations"},
		{"zero z", func(th *Threshold) { th.Statistic.Deviations = 0 }, "Deviations"},
		{"negative percentage", func(th *Threshold) {
			th.Statistic = Statistic{Type: Percentage, Percentage: -0.1}
		}, "Percentage"},
		{"significance 1", func(th *Threshold) {
			th.Statistic = Statistic{Type: TTest, Significance: 1}
		}, "Significance"},
		{"significance 0", func(th *Threshold) {
			th.Statistic = Statistic{Type: TTest}
		}, "Significance"},
		{"sample size too small", func(th *Threshold) { th.MinSampleSize = 1 }, "MinSampleSize"},
		{"negative sample size", func(th *Threshold) { th.MinSampleSize = -3 }, "MinSampleSize"},
		{"window below sample size", func(th *Threshold) {
			th.MinSampleSize = 10
			th.Window = 5
		}, "Window"},
		{"inverted static", func(th *Threshold) {
			th.Statistic = Statistic{Type: Static, Boundary: 1, LeftBoundary: benchmetric.Float(2)}
		}, "LeftBoundary"},
	} {
		t.Run(test.name, func(t *testing.T) {
			th := valid()
			test.modify(th)
			err := th.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want *ConfigError, got %v", err)
			}
			if !strings.HasSuffix(ce.Field, test.field) {
				t.Errorf("want error on field %s, got %s (%v)", test.field, ce.Field, err)
			}
			if ce.Threshold != th.ID || ce.Kind != th.Kind {
				t.Errorf("error does not identify the threshold: %+v", ce)
			}
		})
	}
}

func TestSampleSize(t *testing.T) {
	for typ, want := range map[StatisticType]int{Static: 0, Percentage: 1, ZScore: 2, TTest: 2} {
		th := &Threshold{Statistic: Statistic{Type: typ}}
		if got := th.SampleSize(); got != want {
			t.Errorf("%s: default sample size %d, want %d", typ, got, want)
		}
		if got := th.NeedsHistory(); got != (want > 0) {
			t.Errorf("%s: NeedsHistory = %v", typ, got)
		}
	}
	th := &Threshold{Statistic: Statistic{Type: ZScore}, MinSampleSize: 7}
	if th.SampleSize() != 7 {
		t.Errorf("explicit sample size ignored")
	}
}

func TestMultiplier(t *testing.T) {
	th := valid()
	if z, err := th.Multiplier(); err != nil || z != 3 {
		t.Errorf("Multiplier() = %v, %v; want 3", z, err)
	}
	th.Statistic = Statistic{Type: ZScore, Significance: 0.05}
	th.Side = Both
	z, err := th.Multiplier()
	if err != nil || math.Abs(z-1.96) > 1e-2 {
		t.Errorf("Multiplier() from significance = %v, %v; want 1.96", z, err)
	}
}

func TestLoadFile(t *testing.T) {
	ths, err := LoadFile("testdata/thresholds.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(ths) != 4 {
		t.Fatalf("want 4 thresholds, got %d", len(ths))
	}
	want := &Threshold{
		ID:        uuid.MustParse("6f1c2f0e-52a4-4b43-9a57-2a3f4b0c9d11"),
		Branch:    "main",
		Testbed:   "ci-linux",
		Kind:      benchmetric.Latency,
		Statistic: Statistic{Type: ZScore, Deviations: 3},
		Side:      Right,
		Window:    30,
	}
	if diff := cmp.Diff(want, ths[0]); diff != "" {
		t.Errorf("first threshold (-want +got):\n%s", diff)
	}
	for _, th := range ths {
		if th.ID == uuid.Nil {
			t.Errorf("threshold %s has no ID", th.Kind)
		}
	}
	if lb := ths[2].Statistic.LeftBoundary; lb == nil || *lb != 0 {
		t.Errorf("static left boundary not loaded: %v", lb)
	}

	s := NewSet(ths...)
	ctx := context.Background()
	got, _ := s.Threshold(ctx, "main", "ci-linux", benchmetric.Throughput)
	if got == nil || got.Statistic.Type != TTest || got.MinSampleSize != 5 {
		t.Errorf("Threshold(main, ci-linux, throughput) = %+v", got)
	}
	if got, _ := s.Threshold(ctx, "main", "ci-mac", benchmetric.Latency); got != nil {
		t.Errorf("want no threshold for unknown testbed, got %+v", got)
	}
	all := s.All()
	if len(all) != 4 || all[0].Kind != "B/op" || all[3].Branch != "release" {
		t.Errorf("All() not sorted by branch, testbed, kind")
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"thresholds: [",
		"thresholds:\n  - branch: main\n    testbed: ci\n    kind: latency\n    statistic: {type: z_score, deviations: 3}\n",
		"thresholds:\n  - branch: main\n    testbed: ci\n    kind: latency\n    statistic: {type: t_test}\n    side: both\n",
		"thresholds:\n  - id: not-a-uuid\n",
	} {
		if _, err := Parse([]byte(input)); err == nil {
			t.Errorf("Parse(%q): want error", input)
		}
	}
	input := "thresholds:\n  - branch: main\n    testbed: ci\n    kind: latency\n    statistic: {type: t_test, significance: 2}\n    side: both\n"
	_, err := Parse([]byte(input))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("want ConfigError, got %v", err)
	}
}
