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

// Package adminserver serves the worker's /healthz, /readyz, /metrics and
// a small read-only reporting API over the task store.
package adminserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/taskmesh/orchestrator-core/internal/telemetry"
	"github.com/taskmesh/orchestrator-core/pkg/orchestration/dependency"
	"github.com/taskmesh/orchestrator-core/pkg/store"
)

// Dependencies the admin server reports on. Readiness depends on the
// database breaker; liveness does not.
type Dependencies struct {
	Reporting     *store.ReportingStore
	LeaseBreaker  func() dependency.CircuitState
}

// New builds the chi router. It does not listen; Serve wraps the returned
// handler in an http.Server.
func New(deps Dependencies, logger *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.LeaseBreaker != nil && deps.LeaseBreaker() == dependency.CircuitStateOpen {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("lease manager circuit open"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/tasks", listTasksHandler(deps.Reporting, logger))
		api.Get("/usage", usageHandler(deps.Reporting, logger))
		api.Get("/queue-depth", queueDepthHandler(deps.Reporting, logger))
	})

	return r
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.WithError(err).Warn("admin server: failed to encode response")
	}
}

func listTasksHandler(reporting *store.ReportingStore, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		limit := 100
		tasks, err := reporting.ListTasks(r.Context(), status, limit)
		if err != nil {
			writeJSON(w, logger, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, logger, http.StatusOK, tasks)
	}
}

func usageHandler(reporting *store.ReportingStore, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totals, err := reporting.UsageByTenant(r.Context())
		if err != nil {
			writeJSON(w, logger, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, logger, http.StatusOK, totals)
	}
}

func queueDepthHandler(reporting *store.ReportingStore, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depth, err := reporting.QueueDepth(r.Context())
		if err != nil {
			writeJSON(w, logger, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]int64{"queue_depth": depth})
	}
}

// Serve runs the admin HTTP server until ctx is canceled, then shuts down
// gracefully with a 5 second drain window.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *logrus.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
