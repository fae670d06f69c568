// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Perfguard parses benchmark output and detects performance
// regressions against the history of earlier runs.
//
// Usage:
//
//	perfguard parse --adapter rust [file]
//	perfguard run --adapter rust --branch main --testbed ci [--hash H] [file]
//	perfguard thresholds load thresholds.yaml
//	perfguard alerts REPORT-ID
//
// The parse command prints the canonical JSON form of the benchmark
// results in file, or standard input.
//
// The run command parses the benchmark results, evaluates them
// against the thresholds stored in the database, stores the results
// and prints any alerts. It exits with status 1 if there were alerts.
//
// The thresholds load command stores the thresholds of a YAML file
// such as
//
//	thresholds:
//	  - branch: main
//	    testbed: ci
//	    kind: latency
//	    statistic: {type: t_test, significance: 0.05}
//	    side: right
//
// The alerts command lists the alerts of a stored report.
//
// Configuration is read from the YAML file given by --config or the
// PERFGUARD_CONFIG environment variable. PERFGUARD_DSN overrides the
// database DSN.
package main

import (
	"errors"
	"io"
	"log"
	"os"
)

var exit = os.Exit

func main() {
	exit(perfguard(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// perfguard runs the command line args and returns the exit status:
// 0 on success, 1 if the run command emitted alerts, 2 on error.
func perfguard(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errAlerts):
		return 1
	}
	log.New(stderr, "perfguard: ", 0).Print(err)
	return 2
}
