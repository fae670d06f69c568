// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the perfguard command configuration from a
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/perfguard/perfguard/benchadapter"
)

// Environment variables consulted by Load.
const (
	EnvConfig = "PERFGUARD_CONFIG"
	EnvDSN    = "PERFGUARD_DSN"
)

// Config is the perfguard command configuration.
type Config struct {
	Database Database              `yaml:"database"`
	Log      Log                   `yaml:"log"`
	Adapter  benchadapter.Settings `yaml:"adapter"`

	// Concurrency limits the number of metric kinds evaluated at
	// once.
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=64"`
}

// Database selects the SQL database.
type Database struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite3 mysql postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database:    Database{Driver: "sqlite3", DSN: "perfguard.db"},
		Log:         Log{Level: "info", Format: "text"},
		Concurrency: 4,
	}
}

// Load reads the configuration file at path, or the file named by
// PERFGUARD_CONFIG if path is empty. With neither, it starts from
// Default. PERFGUARD_DSN, if set, overrides the database DSN. The
// result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		c.Database.DSN = dsn
	}
	if err := c.Validate(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks c for consistency. It also normalizes a postgres
// URL DSN into the key=value form.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config %s: invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}
	if err := c.Adapter.Validate(); err != nil {
		return fmt.Errorf("config adapter: %w", err)
	}
	switch c.Database.Driver {
	case "mysql":
		if _, err := mysql.ParseDSN(c.Database.DSN); err != nil {
			return fmt.Errorf("config database dsn: %w", err)
		}
	case "postgres":
		if strings.HasPrefix(c.Database.DSN, "postgres://") || strings.HasPrefix(c.Database.DSN, "postgresql://") {
			dsn, err := pq.ParseURL(c.Database.DSN)
			if err != nil {
				return fmt.Errorf("config database dsn: %w", err)
			}
			c.Database.DSN = dsn
		}
	}
	return nil
}

// NewLogger returns a logger writing to w at the configured level
// and format.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
