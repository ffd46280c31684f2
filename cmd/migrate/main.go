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

// Command migrate applies or rolls back the schema in
// pkg/store/migrations using goose, independent of the worker process's
// own EnsureSchema bootstrap (EnsureSchema covers a fresh dev database;
// this command is the versioned path for a managed deployment).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/taskmesh/orchestrator-core/internal/database"
	"github.com/taskmesh/orchestrator-core/internal/logging"
	"github.com/taskmesh/orchestrator-core/pkg/store/migrations"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|version>")
		os.Exit(1)
	}
	command := os.Args[1]

	cfg := database.DefaultConfig()
	cfg.LoadFromEnv()
	logger := logging.New("info")

	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		logger.WithError(err).Fatal("failed to open database connection")
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.WithError(err).Fatal("failed to set goose dialect")
	}

	ctx := context.Background()
	if err := goose.RunContext(ctx, command, db, "."); err != nil {
		logger.WithError(err).Fatalf("migrate %s failed", command)
	}

	logger.WithField("command", command).Info("migration command completed")
}
