// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/perfguard/perfguard/benchadapter"
)

func TestDefault(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvDSN, "")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load without file (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvDSN, "")
	t.Setenv(EnvConfig, filepath.Join("testdata", "perfguard.yaml"))
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Database: Database{
			Driver: "postgres",
			DSN:    "dbname=perf host=db.example.com password=secret port=5432 sslmode=disable user=bench",
		},
		Log: Log{Level: "debug", Format: "json"},
		Adapter: benchadapter.Settings{
			Units:     []string{"ns", "μs"},
			Precision: benchadapter.PrecisionExact,
			Fold:      benchadapter.FoldMedian,
		},
		Concurrency: 8,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load (-want +got):\n%s", diff)
	}
}

func TestEnvDSN(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvDSN, ":memory:")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Database.DSN != ":memory:" {
		t.Errorf("DSN = %q, want :memory:", c.Database.DSN)
	}
}

func TestInvalid(t *testing.T) {
	t.Setenv(EnvDSN, "")
	for _, test := range []struct {
		name, yaml, want string
	}{
		{"driver", "database: {driver: oracle, dsn: x}", "Driver"},
		{"level", "log: {level: loud}", "Level"},
		{"concurrency", "concurrency: 0", "Concurrency"},
		{"fold", "adapter: {fold: mode}", "fold"},
		{"unit", "adapter: {units: [ns, nsec]}", "nsec"},
		{"mysql dsn", "database: {driver: mysql, dsn: 'user@bad(('}", "dsn"},
		{"syntax", "database: [", "yaml"},
	} {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "perfguard.yaml")
			if err := os.WriteFile(path, []byte(test.yaml), 0666); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Load: want error mentioning %q, got %v", test.want, err)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load of missing file: want error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := Log{Level: "warn", Format: "json"}.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown", "kind", "latency")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"kind":"latency"`) {
		t.Errorf("unexpected log output %q", out)
	}
	if !log.Enabled(context.Background(), 8) {
		t.Errorf("error level disabled")
	}
}
