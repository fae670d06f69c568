// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest opens empty databases for tests.
package dbtest

import (
	"context"
	"flag"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/perfguard/perfguard/storage/db"
	_ "github.com/perfguard/perfguard/storage/db/sqlite3"
)

var (
	driver = flag.String("db.driver", "sqlite3", "database `driver` to run tests on (sqlite3, mysql or postgres)")
	dsn    = flag.String("db.dsn", ":memory:", "data source `name` of an empty test database")
)

// NewDB makes a connection to a testing database, an in-memory
// SQLite database unless the -db.driver and -db.dsn flags select
// another. The database is closed when the test finishes.
func NewDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.OpenSQL(*driver, *dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	// Make sure the database really is empty.
	reports, err := d.CountReports(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reports != 0 {
		t.Fatalf("found %d row(s) in Reports, want 0", reports)
	}
	return d
}
