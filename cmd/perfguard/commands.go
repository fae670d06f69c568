// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/perfguard/perfguard/benchadapter"
	"github.com/perfguard/perfguard/benchmath"
	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/benchunit"
	"github.com/perfguard/perfguard/detect"
	"github.com/perfguard/perfguard/internal/config"
	"github.com/perfguard/perfguard/internal/metrics"
	"github.com/perfguard/perfguard/report"
	"github.com/perfguard/perfguard/storage/db"
	_ "github.com/perfguard/perfguard/storage/db/sqlite3"
	"github.com/perfguard/perfguard/threshold"
)

// errAlerts is returned by the run command when it emitted alerts.
var errAlerts = errors.New("regressions detected")

// env is the state shared by all commands.
type env struct {
	configPath  string
	dumpMetrics bool

	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newRootCommand() *cobra.Command {
	e := new(env)
	root := &cobra.Command{
		Use:           "perfguard",
		Short:         "Detect benchmark performance regressions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.registry = prometheus.NewRegistry()
			e.metrics = metrics.New(e.registry)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !e.dumpMetrics {
				return nil
			}
			return e.writeMetrics(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "configuration `file` (default $"+config.EnvConfig+")")
	root.PersistentFlags().BoolVar(&e.dumpMetrics, "metrics", false, "print metrics to standard error on success")

	root.AddCommand(e.parseCommand(), e.runCommand(), e.thresholdsCommand(), e.alertsCommand())
	return root
}

func (e *env) writeMetrics(w io.Writer) error {
	mfs, err := e.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) openDB() (*db.DB, error) {
	d, err := db.OpenSQL(e.cfg.Database.Driver, e.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", e.cfg.Database.Driver, err)
	}
	return d, nil
}

// readInput reads the named file, or standard input if args is empty.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func (e *env) parseCommand() *cobra.Command {
	var adapter string
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Print benchmark results in canonical JSON form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			bm, err := benchadapter.Default().Parse(adapter, raw, e.cfg.Adapter)
			if err != nil {
				e.metrics.Parse(adapter, "error")
				return err
			}
			e.metrics.Parse(adapter, "ok")
			return benchmetric.Encode(cmd.OutOrStdout(), bm)
		},
	}
	cmd.Flags().StringVar(&adapter, "adapter", "", "benchmark output `format`: json, rust or go")
	cmd.MarkFlagRequired("adapter")
	return cmd
}

func (e *env) runCommand() *cobra.Command {
	var r report.Report
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Ingest benchmark results and report regressions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r.StartTime = time.Now()
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			r.EndTime = time.Now()

			d, err := e.openDB()
			if err != nil {
				return err
			}
			defer d.Close()

			logger := e.cfg.Log.NewLogger(cmd.ErrOrStderr())
			in := &report.Ingester{
				Adapters: benchadapter.Default(),
				Settings: e.cfg.Adapter,
				Evaluator: &detect.Evaluator{
					Thresholds: d,
					History:    d,
					Logger:     logger,
					Metrics:    e.metrics,
				},
				Sink:        d,
				Recorder:    d,
				Logger:      logger,
				Metrics:     e.metrics,
				Concurrency: e.cfg.Concurrency,
			}
			res, err := in.Ingest(cmd.Context(), &r, raw)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "report %s: %d benchmarks, %d alerts\n", res.Report.ID, len(res.Metrics), len(res.Alerts))
			printAlerts(w, res.Alerts)
			for _, kind := range res.Metrics.Kinds() {
				if n := len(res.Skipped[kind]); n > 0 {
					fmt.Fprintf(w, "%s: %d benchmarks skipped for insufficient history\n", kind, n)
				}
				if err := res.Errors[kind]; err != nil {
					fmt.Fprintf(w, "%s: %v\n", kind, err)
				}
			}
			if len(res.Alerts) > 0 {
				return errAlerts
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&r.Adapter, "adapter", "", "benchmark output `format`: json, rust or go")
	cmd.Flags().StringVar(&r.Branch, "branch", "", "`branch` the benchmarks ran on")
	cmd.Flags().StringVar(&r.Testbed, "testbed", "", "`testbed` the benchmarks ran on")
	cmd.Flags().StringVar(&r.Hash, "hash", "", "commit `hash` of the benchmarked code")
	for _, name := range []string{"adapter", "branch", "testbed"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (e *env) thresholdsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Manage regression thresholds",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load file.yaml",
		Short: "Store the thresholds of a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ths, err := threshold.LoadFile(args[0])
			if err != nil {
				return err
			}
			d, err := e.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			return storeThresholds(cmd.Context(), d, ths, cmd.OutOrStdout())
		},
	})
	return cmd
}

func storeThresholds(ctx context.Context, d *db.DB, ths []*threshold.Threshold, w io.Writer) error {
	for _, th := range ths {
		if err := d.PutThreshold(ctx, th); err != nil {
			return fmt.Errorf("storing threshold %s: %w", th.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s %s\n", th.ID, th.Branch, th.Testbed, th.Kind, th.Statistic.Type, th.Side)
	}
	return nil
}

func (e *env) alertsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts REPORT-ID",
		Short: "List the alerts of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad report ID: %w", err)
			}
			d, err := e.openDB()
			if err != nil {
				return err
			}
			defer d.Close()
			alerts, err := d.ListAlerts(cmd.Context(), id)
			if err != nil {
				return err
			}
			printAlerts(cmd.OutOrStdout(), alerts)
			return nil
		},
	}
}

func printAlerts(w io.Writer, alerts []detect.Alert) {
	for _, a := range alerts {
		fmt.Fprintf(w, "ALERT %s", a)
		if a.Kind == benchmetric.Latency {
			fmt.Fprintf(w, " [%s vs %s]", benchunit.FormatNanos(a.Outlier), benchunit.FormatNanos(a.Boundary))
		} else {
			sc := benchunit.CommonScale([]float64{a.Outlier, a.Boundary})
			fmt.Fprintf(w, " [%s vs %s]", sc.Format(a.Outlier), sc.Format(a.Boundary))
		}
		if a.Baseline.N > 0 {
			fmt.Fprintf(w, " baseline %s, %s", &a.Baseline, benchmath.FormatDelta(a.Baseline.Mean, a.Outlier))
		}
		fmt.Fprintln(w)
	}
}
