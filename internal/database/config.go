// Copyright 2026 The Taskmesh Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package database owns the Postgres connection configuration and pool
// construction shared by the sqlx-backed reporting store and the pgx-backed
// task store.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/taskmesh/orchestrator-core/internal/errortypes"
)

// Config holds the Postgres connection parameters for both the pgx pool
// (task store, lease claims) and the sqlx/lib-pq handle (reporting store).
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the baseline configuration before environment
// overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "taskmesh",
		Database:        "taskmesh",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overlays DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/
// DB_SSL_MODE onto c. Values that fail to parse are left at their current
// setting.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		c.SSLMode = v
	}
}

// Validate checks that c describes a usable connection.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errortypes.NewValidationError("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errortypes.NewValidationError("database port must be between 1 and 65535")
	}
	if c.User == "" {
		return errortypes.NewValidationError("database user is required")
	}
	if c.Database == "" {
		return errortypes.NewValidationError("database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return errortypes.NewValidationError("max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return errortypes.NewValidationError("max idle connections must be non-negative")
	}
	return nil
}

// ConnectionString renders c as a libpq key=value DSN, omitting password
// when unset so default configs don't carry a trailing "password=".
func (c *Config) ConnectionString() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// Connect validates c and opens a sqlx handle over lib/pq, used by the
// reporting (read) store.
func Connect(c *Config, logger *logrus.Logger) (*sqlx.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, errortypes.Wrap(err, errortypes.ErrorTypeValidation, "invalid database configuration")
	}

	db, err := sqlx.Connect("postgres", c.ConnectionString())
	if err != nil {
		return nil, errortypes.NewDatabaseError("connect", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)

	logger.WithFields(logrus.Fields{"host": c.Host, "database": c.Database}).Info("connected to reporting database")
	return db, nil
}

// ConnectPool validates c and opens a pgxpool, used by the task store's
// SKIP LOCKED claim path where pgx's native query protocol and type
// handling matter.
func ConnectPool(ctx context.Context, c *Config, logger *logrus.Logger) (*pgxpool.Pool, error) {
	if err := c.Validate(); err != nil {
		return nil, errortypes.Wrap(err, errortypes.ErrorTypeValidation, "invalid database configuration")
	}

	poolCfg, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, errortypes.NewDatabaseError("parse pool config", err)
	}
	poolCfg.MaxConns = int32(c.MaxOpenConns)
	poolCfg.MaxConnIdleTime = c.ConnMaxIdleTime
	poolCfg.MaxConnLifetime = c.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errortypes.NewDatabaseError("open pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errortypes.NewDatabaseError("ping", err)
	}

	logger.WithFields(logrus.Fields{"host": c.Host, "database": c.Database}).Info("connected to task store pool")
	return pool, nil
}
