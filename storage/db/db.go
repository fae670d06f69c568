// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db stores reports, their metrics, thresholds and alerts in
// a SQL database.
//
// A DB implements the collaborators of the regression detector:
// detect.ThresholdStore, detect.HistoryStore and detect.AlertSink, as
// well as report.Recorder.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/perfguard/perfguard/benchmetric"
	"github.com/perfguard/perfguard/detect"
	"github.com/perfguard/perfguard/report"
	"github.com/perfguard/perfguard/threshold"
)

// DB is a high-level interface to a perfguard database. It's safe for
// concurrent use by multiple goroutines.
type DB struct {
	sql    *sql.DB // underlying database connection
	driver string

	// prepared statements
	insertReport    *sql.Stmt
	insertMetric    *sql.Stmt
	selectHistory   *sql.Stmt
	selectThreshold *sql.Stmt
	deleteThreshold *sql.Stmt
	insertThreshold *sql.Stmt
	insertAlert     *sql.Stmt
	selectAlerts    *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. The mysql, postgres and
// sqlite3 drivers are supported; the caller must import the driver.
// For sqlite3, import the sqlite3 subpackage of this package instead
// of the driver so that foreign keys are enforced.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	if driverName == "sqlite3" && strings.Contains(dataSourceName, ":memory:") {
		// Every connection to :memory: opens a distinct database.
		db.SetMaxOpenConns(1)
	}
	d := &DB{sql: db, driver: driverName}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
//
// Times are stored as Unix nanoseconds so that every driver reads
// them back the same way.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Reports (
	Seq {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else if .postgres}}BIGSERIAL PRIMARY KEY{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	ReportID VARCHAR(36) NOT NULL UNIQUE,
	Branch VARCHAR(255) NOT NULL,
	Testbed VARCHAR(255) NOT NULL,
	Hash VARCHAR(255) NOT NULL,
	Adapter VARCHAR(64) NOT NULL,
	StartTime BIGINT NOT NULL,
	EndTime BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS Metrics (
	ReportID VARCHAR(36) NOT NULL,
	Benchmark VARCHAR(255) NOT NULL,
	Kind VARCHAR(255) NOT NULL,
	Value {{.double}} NOT NULL,
	LowerBound {{.double}},
	UpperBound {{.double}},
	PRIMARY KEY (ReportID, Benchmark, Kind),
{{if .mysql}}
	Index (Benchmark(100), Kind(50)),
{{end}}
	FOREIGN KEY (ReportID) REFERENCES Reports(ReportID) ON UPDATE CASCADE ON DELETE CASCADE
);
{{if not .mysql}}
CREATE INDEX IF NOT EXISTS MetricsBenchmarkKind ON Metrics(Benchmark, Kind);
{{end}}
CREATE TABLE IF NOT EXISTS Thresholds (
	ThresholdID VARCHAR(36) PRIMARY KEY,
	Branch VARCHAR(255) NOT NULL,
	Testbed VARCHAR(255) NOT NULL,
	Kind VARCHAR(255) NOT NULL,
	Definition TEXT NOT NULL,
	UNIQUE (Branch, Testbed, Kind)
);
CREATE TABLE IF NOT EXISTS Alerts (
	AlertID VARCHAR(36) PRIMARY KEY,
	ReportID VARCHAR(36) NOT NULL,
	Benchmark VARCHAR(255) NOT NULL,
	Kind VARCHAR(255) NOT NULL,
	ThresholdID VARCHAR(36) NOT NULL,
	Statistic VARCHAR(16) NOT NULL,
	Side VARCHAR(8) NOT NULL,
	Boundary {{.double}} NOT NULL,
	Outlier {{.double}} NOT NULL,
	BaselineN INTEGER NOT NULL,
	BaselineMean {{.double}} NOT NULL,
	BaselineStdDev {{.double}} NOT NULL,
	CreatedAt BIGINT NOT NULL,
	FOREIGN KEY (ReportID) REFERENCES Reports(ReportID) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables creates any missing tables on the connection in
// db.sql. The driver name selects the correct syntax.
func (db *DB) createTables() error {
	params := map[string]interface{}{db.driver: true, "double": "DOUBLE"}
	if db.driver == "postgres" {
		params["double"] = "DOUBLE PRECISION"
	}
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, params); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	for _, s := range []struct {
		stmt  **sql.Stmt
		query string
	}{
		{&db.insertReport, "INSERT INTO Reports(ReportID, Branch, Testbed, Hash, Adapter, StartTime, EndTime) VALUES (?, ?, ?, ?, ?, ?, ?)"},
		{&db.insertMetric, "INSERT INTO Metrics(ReportID, Benchmark, Kind, Value, LowerBound, UpperBound) VALUES (?, ?, ?, ?, ?, ?)"},
		{&db.selectHistory, "SELECT m.Value FROM Metrics m JOIN Reports r ON r.ReportID = m.ReportID WHERE r.Branch = ? AND r.Testbed = ? AND m.Benchmark = ? AND m.Kind = ? ORDER BY r.Seq"},
		{&db.selectThreshold, "SELECT Definition FROM Thresholds WHERE Branch = ? AND Testbed = ? AND Kind = ?"},
		{&db.deleteThreshold, "DELETE FROM Thresholds WHERE ThresholdID = ? OR (Branch = ? AND Testbed = ? AND Kind = ?)"},
		{&db.insertThreshold, "INSERT INTO Thresholds(ThresholdID, Branch, Testbed, Kind, Definition) VALUES (?, ?, ?, ?, ?)"},
		{&db.insertAlert, "INSERT INTO Alerts(AlertID, ReportID, Benchmark, Kind, ThresholdID, Statistic, Side, Boundary, Outlier, BaselineN, BaselineMean, BaselineStdDev, CreatedAt) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"},
		{&db.selectAlerts, "SELECT AlertID, ReportID, Benchmark, Kind, ThresholdID, Statistic, Side, Boundary, Outlier, BaselineN, BaselineMean, BaselineStdDev, CreatedAt FROM Alerts WHERE ReportID = ? ORDER BY Kind, Benchmark"},
	} {
		stmt, err := db.sql.Prepare(rebind(db.driver, s.query))
		if err != nil {
			return fmt.Errorf("preparing %q: %v", s.query, err)
		}
		*s.stmt = stmt
	}
	return nil
}

// rebind rewrites the ? placeholders of query into the $n form used
// by postgres. Queries must not contain literal question marks.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordReport stores r and its metrics in a single transaction.
func (db *DB) RecordReport(ctx context.Context, r *report.Report, bm benchmetric.BenchmarkMetrics) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if _, err = tx.StmtContext(ctx, db.insertReport).ExecContext(ctx,
		r.ID.String(), r.Branch, r.Testbed, r.Hash, r.Adapter,
		unixNano(r.StartTime), unixNano(r.EndTime)); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	insert := tx.StmtContext(ctx, db.insertMetric)
	for _, name := range bm.Benchmarks() {
		for kind, m := range bm[name] {
			if _, err = insert.ExecContext(ctx, r.ID.String(), name, string(kind), m.Value, nullFloat(m.LowerBound), nullFloat(m.UpperBound)); err != nil {
				return fmt.Errorf("inserting metric %s %s: %w", name, kind, err)
			}
		}
	}
	return nil
}

// History returns the values recorded for benchmark and kind on
// branch and testbed, in the order the reports were recorded.
func (db *DB) History(ctx context.Context, branch, testbed, benchmark string, kind benchmetric.Kind) ([]float64, error) {
	rows, err := db.selectHistory.QueryContext(ctx, branch, testbed, benchmark, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ReportMetrics returns the metrics recorded for report id.
func (db *DB) ReportMetrics(ctx context.Context, id uuid.UUID) (benchmetric.BenchmarkMetrics, error) {
	rows, err := db.sql.QueryContext(ctx, rebind(db.driver,
		"SELECT Benchmark, Kind, Value, LowerBound, UpperBound FROM Metrics WHERE ReportID = ?"), id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bm := make(benchmetric.BenchmarkMetrics)
	for rows.Next() {
		var name, kind string
		var m benchmetric.Metric
		var lo, hi sql.NullFloat64
		if err := rows.Scan(&name, &kind, &m.Value, &lo, &hi); err != nil {
			return nil, err
		}
		m.LowerBound, m.UpperBound = floatPtr(lo), floatPtr(hi)
		bm.Set(name, benchmetric.Kind(kind), m)
	}
	return bm, rows.Err()
}

// PutThreshold stores th, replacing any threshold with the same ID or
// for the same branch, testbed and kind. th must be valid.
func (db *DB) PutThreshold(ctx context.Context, th *threshold.Threshold) (err error) {
	if err := th.Validate(); err != nil {
		return err
	}
	def, err := json.Marshal(th)
	if err != nil {
		return err
	}
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if _, err = tx.StmtContext(ctx, db.deleteThreshold).ExecContext(ctx, th.ID.String(), th.Branch, th.Testbed, string(th.Kind)); err != nil {
		return err
	}
	_, err = tx.StmtContext(ctx, db.insertThreshold).ExecContext(ctx, th.ID.String(), th.Branch, th.Testbed, string(th.Kind), string(def))
	return err
}

// Threshold returns the threshold for branch, testbed and kind, or
// nil if none is stored.
func (db *DB) Threshold(ctx context.Context, branch, testbed string, kind benchmetric.Kind) (*threshold.Threshold, error) {
	var def string
	err := db.selectThreshold.QueryRowContext(ctx, branch, testbed, string(kind)).Scan(&def)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	th := new(threshold.Threshold)
	if err := json.Unmarshal([]byte(def), th); err != nil {
		return nil, fmt.Errorf("decoding threshold for %s/%s/%s: %w", branch, testbed, kind, err)
	}
	return th, nil
}

// PutAlert stores a.
func (db *DB) PutAlert(ctx context.Context, a detect.Alert) error {
	_, err := db.insertAlert.ExecContext(ctx,
		a.ID.String(), a.Report.String(), a.Benchmark, string(a.Kind), a.Threshold.String(),
		string(a.Statistic), string(a.Side), a.Boundary, a.Outlier,
		a.Baseline.N, a.Baseline.Mean, a.Baseline.StdDev, unixNano(a.CreatedAt))
	return err
}

// ListAlerts returns the alerts of report id ordered by kind and
// benchmark.
func (db *DB) ListAlerts(ctx context.Context, id uuid.UUID) ([]detect.Alert, error) {
	rows, err := db.selectAlerts.QueryContext(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []detect.Alert
	for rows.Next() {
		var a detect.Alert
		var alertID, reportID, thresholdID, kind, statistic, side string
		var created int64
		if err := rows.Scan(&alertID, &reportID, &a.Benchmark, &kind, &thresholdID, &statistic, &side,
			&a.Boundary, &a.Outlier, &a.Baseline.N, &a.Baseline.Mean, &a.Baseline.StdDev, &created); err != nil {
			return nil, err
		}
		for _, p := range []struct {
			dst *uuid.UUID
			src string
		}{{&a.ID, alertID}, {&a.Report, reportID}, {&a.Threshold, thresholdID}} {
			if *p.dst, err = uuid.Parse(p.src); err != nil {
				return nil, fmt.Errorf("alert %s: %w", alertID, err)
			}
		}
		a.Kind = benchmetric.Kind(kind)
		a.Statistic = threshold.StatisticType(statistic)
		a.Side = threshold.Side(side)
		a.CreatedAt = time.Unix(0, created).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountReports returns the number of reports stored.
func (db *DB) CountReports(ctx context.Context) (int, error) {
	var n int
	err := db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM Reports").Scan(&n)
	return n, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	for _, stmt := range []*sql.Stmt{
		db.insertReport, db.insertMetric, db.selectHistory, db.selectThreshold,
		db.deleteThreshold, db.insertThreshold, db.insertAlert, db.selectAlerts,
	} {
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return db.sql.Close()
}

// unixNano returns t as Unix nanoseconds, or 0 for the zero time.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return benchmetric.Float(n.Float64)
}

var (
	_ detect.ThresholdStore = (*DB)(nil)
	_ detect.HistoryStore   = (*DB)(nil)
	_ detect.AlertSink      = (*DB)(nil)
	_ report.Recorder       = (*DB)(nil)
)

