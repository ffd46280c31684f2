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

// Package telemetry wires the worker fleet's prometheus metrics and
// opentelemetry trace spans.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_tasks_claimed_total",
			Help: "Total number of tasks claimed by a worker, by task type",
		},
		[]string{"type"},
	)

	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_tasks_completed_total",
			Help: "Total number of tasks completed successfully, by task type",
		},
		[]string{"type"},
	)

	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_tasks_failed_total",
			Help: "Total number of task attempts that failed, by task type and whether the failure was terminal",
		},
		[]string{"type", "terminal"},
	)

	LeasesReclaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmesh_leases_reclaimed_total",
			Help: "Total number of expired leases swept back to pending",
		},
	)

	TaskProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmesh_task_processing_duration_seconds",
			Help:    "Time spent executing a claimed task, by task type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskmesh_queue_depth",
			Help: "Number of tasks currently pending",
		},
	)

	WorkerBackoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskmesh_worker_backoff_seconds",
			Help:    "Backoff duration a worker slept for after an empty poll",
			Buckets: []float64{1, 2, 4, 8, 16, 30, 60},
		},
	)

	CircuitBreakerStateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmesh_circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state transitions, by breaker name and new state",
		},
		[]string{"name", "state"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksClaimedTotal,
		TasksCompletedTotal,
		TasksFailedTotal,
		LeasesReclaimedTotal,
		TaskProcessingDuration,
		QueueDepth,
		WorkerBackoffSeconds,
		CircuitBreakerStateChanges,
	)
}

// Handler exposes the registered metrics for a prometheus scraper.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's wall-clock duration for later recording
// into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer running now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDurationVec records the elapsed time into a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// ObserveDuration records the elapsed time into an unlabeled histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
