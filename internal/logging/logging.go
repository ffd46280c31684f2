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

// Package logging constructs the structured logrus.Logger every component
// takes as a constructor argument, and carries the field-naming
// conventions (worker_id, task_id, trace_id) used consistently across the
// store, lease manager, executor and worker.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/orchestrator-core/internal/errortypes"
)

// New builds a JSON-formatted logger at the given level ("debug", "info",
// "warn", "error"). An unrecognized level falls back to info.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// WithError attaches an AppError's structured fields (type, status code,
// details, cause) to the entry, falling back to a bare "error" field for
// plain errors.
func WithError(logger *logrus.Logger, err error) *logrus.Entry {
	fields := errortypes.LogFields(err)
	return logger.WithFields(logrus.Fields(fields))
}

// WithTask seeds an entry with the identifiers that should appear on every
// log line touching one task: its id, its worker owner and its trace id.
func WithTask(logger *logrus.Logger, taskID, workerID, traceID string) *logrus.Entry {
	entry := logger.WithField("task_id", taskID)
	if workerID != "" {
		entry = entry.WithField("worker_id", workerID)
	}
	if traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}
