// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/perfguard/perfguard/benchadapter"
	"github.com/perfguard/perfguard/internal/config"
)

// execute runs the perfguard command with args and stdin, and
// returns its standard output and error.
func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// setup points the configuration at a fresh sqlite database.
func setup(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvDSN, filepath.Join(t.TempDir(), "perfguard.db"))
}

func TestParse(t *testing.T) {
	setup(t)
	out, _, err := execute(t, "", "parse", "--adapter", "rust", "testdata/rust.txt")
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile("testdata/rust.golden")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(want), out); diff != "" {
		t.Errorf("parse output mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStdin(t *testing.T) {
	setup(t)
	out, _, err := execute(t, `{"bench":{"latency":{"value":7}}}`, "parse", "--adapter", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"value": 7`) {
		t.Errorf("parse output missing value:\n%s", out)
	}
}

func TestParseErrors(t *testing.T) {
	setup(t)
	_, _, err := execute(t, "", "parse", "--adapter", "nope", "testdata/rust.txt")
	if !errors.Is(err, benchadapter.ErrUnknownAdapter) {
		t.Errorf("unknown adapter: got %v, want %v", err, benchadapter.ErrUnknownAdapter)
	}

	_, _, err = execute(t, "test a ... bench: x ns/iter (+/- 1)\n", "parse", "--adapter", "rust")
	var se *benchadapter.SyntaxError
	if !errors.As(err, &se) {
		t.Errorf("malformed input: got %v, want *SyntaxError", err)
	}

	_, _, err = execute(t, "", "parse", "testdata/rust.txt")
	if err == nil {
		t.Errorf("missing --adapter: got nil error")
	}
}

func TestMetricsFlag(t *testing.T) {
	setup(t)
	_, stderr, err := execute(t, "", "--metrics", "parse", "--adapter", "rust", "testdata/rust.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := `perfguard_parse_total{adapter="rust",result="ok"} 1`
	if !strings.Contains(stderr, want) {
		t.Errorf("metrics output missing %q:\n%s", want, stderr)
	}
}

var reportRE = regexp.MustCompile(`^report ([0-9a-f-]+):`)

func TestRun(t *testing.T) {
	setup(t)

	out, _, err := execute(t, "", "thresholds", "load", "testdata/thresholds.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "0b6a3f58-2d1e-4c36-9a8f-51e0c4d2a7b9") {
		t.Errorf("thresholds load output missing threshold ID:\n%s", out)
	}

	run := func(value float64) (string, error) {
		t.Helper()
		input := fmt.Sprintf(`{"bench":{"latency":{"value":%v}}}`, value)
		out, _, err := execute(t, input, "run", "--adapter", "json", "--branch", "main", "--testbed", "ci", "--hash", "abc123")
		return out, err
	}

	for _, v := range []float64{100, 102, 98, 101, 99} {
		out, err := run(v)
		if err != nil {
			t.Fatalf("run %v: %v\n%s", v, err, out)
		}
		if strings.Contains(out, "ALERT") {
			t.Errorf("run %v: unexpected alert:\n%s", v, out)
		}
	}

	out, err = run(150)
	if !errors.Is(err, errAlerts) {
		t.Fatalf("run 150: got %v, want %v\n%s", err, errAlerts, out)
	}
	if !strings.Contains(out, "ALERT bench latency: 150 above boundary") {
		t.Errorf("run 150: missing alert:\n%s", out)
	}
	m := reportRE.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("run 150: no report ID in output:\n%s", out)
	}

	listed, _, err := execute(t, "", "alerts", m[1])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(listed, "ALERT bench latency: 150 above boundary") {
		t.Errorf("alerts %s: missing alert:\n%s", m[1], listed)
	}

	if _, _, err := execute(t, "", "alerts", "not-a-uuid"); err == nil {
		t.Errorf("alerts with bad ID: got nil error")
	}
}

func TestRunInsufficientHistory(t *testing.T) {
	setup(t)
	if _, _, err := execute(t, "", "thresholds", "load", "testdata/thresholds.yaml"); err != nil {
		t.Fatal(err)
	}
	out, _, err := execute(t, `{"bench":{"latency":{"value":100}}}`, "run", "--adapter", "json", "--branch", "main", "--testbed", "ci")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "latency: 1 benchmarks skipped") {
		t.Errorf("missing skip note:\n%s", out)
	}
}

func TestExitStatus(t *testing.T) {
	setup(t)
	if _, _, err := execute(t, "", "thresholds", "load", "testdata/thresholds.yaml"); err != nil {
		t.Fatal(err)
	}
	run := func(input string, args ...string) (int, string, string) {
		t.Helper()
		var stdout, stderr bytes.Buffer
		status := perfguard(args, strings.NewReader(input), &stdout, &stderr)
		return status, stdout.String(), stderr.String()
	}
	runArgs := []string{"run", "--adapter", "json", "--branch", "main", "--testbed", "ci"}

	for _, v := range []int{100, 102, 98, 101, 99} {
		if status, out, errOut := run(fmt.Sprintf(`{"bench":{"latency":{"value":%d}}}`, v), runArgs...); status != 0 {
			t.Fatalf("run %d: status %d\n%s%s", v, status, out, errOut)
		}
	}
	if status, out, _ := run(`{"bench":{"latency":{"value":150}}}`, runArgs...); status != 1 {
		t.Errorf("run with alert: status %d, want 1\n%s", status, out)
	}

	status, _, errOut := run("", "parse", "--adapter", "nope", "testdata/rust.txt")
	if status != 2 {
		t.Errorf("unknown adapter: status %d, want 2", status)
	}
	if want := `perfguard: unknown adapter "nope"` + "\n"; errOut != want {
		t.Errorf("unknown adapter: stderr %q, want %q", errOut, want)
	}
}
