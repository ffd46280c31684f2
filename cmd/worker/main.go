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

// Command worker runs a single taskmesh worker process: it claims tasks
// from Postgres via pkg/lease, dispatches them through pkg/executor, and
// serves health/metrics/reporting over internal/adminserver.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskmesh/orchestrator-core/internal/adminserver"
	"github.com/taskmesh/orchestrator-core/internal/config"
	"github.com/taskmesh/orchestrator-core/internal/database"
	"github.com/taskmesh/orchestrator-core/internal/logging"
	"github.com/taskmesh/orchestrator-core/pkg/executor"
	"github.com/taskmesh/orchestrator-core/pkg/lease"
	"github.com/taskmesh/orchestrator-core/pkg/orchestration"
	"github.com/taskmesh/orchestrator-core/pkg/registry"
	"github.com/taskmesh/orchestrator-core/pkg/store"
	"github.com/taskmesh/orchestrator-core/pkg/worker"
)

func main() {
	cfg := config.DefaultWorkerConfig()
	cfg.LoadFromEnv()

	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid worker configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectPool(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to task store")
	}
	defer pool.Close()

	taskStore := store.NewPostgresTaskStore(pool, logger)
	if err := taskStore.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("failed to ensure task store schema")
	}
	subtaskStore := store.NewPostgresSubtaskStore(pool)
	workflowStateStore := store.NewPostgresWorkflowStateStore(pool)

	reportingDB, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to reporting store")
	}
	defer reportingDB.Close()
	reportingStore := store.NewReportingStore(reportingDB)

	catalog := registry.NewCatalog()
	if cfg.RegistryConfigDir != "" {
		if err := registry.LoadWorkflowDir(cfg.RegistryConfigDir, catalog.Workflows); err != nil {
			logger.WithError(err).Warn("failed to load workflow descriptors")
		}
		watcher := registry.NewDirWatcher(cfg.RegistryConfigDir, catalog.Workflows, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("failed to start workflow descriptor watcher")
		} else {
			defer watcher.Stop()
		}
	}

	var invalidator *registry.Invalidator
	if cfg.RegistryRedisAddr != "" {
		invalidator = registry.NewInvalidator(cfg.RegistryRedisAddr, logger)
		defer invalidator.Close()
		go invalidator.Subscribe(ctx, cfg.RegistryConfigDir, catalog.Workflows)
	}

	schema := registry.NewToolSchema()

	leaseMgr := lease.NewManager(taskStore, cfg.LeaseDuration(), float64(cfg.CircuitBreakerThreshold), cfg.CircuitBreakerResetTimeout(), logger)

	orch := orchestration.New(catalog, workflowStateStore, subtaskStore, 0, logger)
	exec := executor.New(catalog, schema, orch, logger)

	w := worker.New(worker.Config{
		ID:              cfg.WorkerID,
		PollMinInterval: cfg.PollMinInterval(),
		PollMaxInterval: cfg.PollMaxInterval(),
		RecoveryEvery:   cfg.RecoveryInterval(),
	}, leaseMgr, exec, logger)

	admin := adminserver.New(adminserver.Dependencies{
		Reporting:    reportingStore,
		LeaseBreaker: leaseMgr.State,
	}, logger)

	adminErrCh := make(chan error, 1)
	go func() {
		adminErrCh <- adminserver.Serve(ctx, cfg.AdminHTTPAddr, admin, logger)
	}()

	logger.WithField("worker_id", cfg.WorkerID).Info("worker starting")

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-ctx.Done():
		w.RequestShutdown()
		<-done
	case <-done:
	}

	if err := <-adminErrCh; err != nil {
		logger.WithError(err).Warn("admin server exited with error")
	}

	logger.Info("worker stopped")
}
