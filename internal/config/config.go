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

// Package config loads the worker process's runtime configuration from
// the environment, the way internal/database loads Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/taskmesh/orchestrator-core/internal/database"
	"github.com/taskmesh/orchestrator-core/internal/validation"
)

// WorkerConfig is the full set of knobs a worker process reads at startup.
type WorkerConfig struct {
	WorkerID string `validate:"required"`

	Database database.Config

	LeaseDurationSeconds    int `validate:"gt=0"`
	RecoveryIntervalSeconds int `validate:"gt=0"`
	PollMinIntervalSeconds  int `validate:"gt=0"`
	PollMaxIntervalSeconds  int `validate:"gtfield=PollMinIntervalSeconds"`
	MaxRetries              int `validate:"gte=0"`

	RegistryConfigDir  string
	RegistryRedisAddr  string

	AdminHTTPAddr string `validate:"required"`

	CircuitBreakerThreshold     uint32 `validate:"gt=0"`
	CircuitBreakerResetSeconds  int    `validate:"gt=0"`

	LogLevel string
}

// DefaultWorkerConfig returns the defaults applied for every env var that
// isn't set.
func DefaultWorkerConfig() *WorkerConfig {
	hostname, _ := os.Hostname()
	return &WorkerConfig{
		WorkerID:                   fmt.Sprintf("worker-%s", hostname),
		Database:                   *database.DefaultConfig(),
		LeaseDurationSeconds:       300,
		RecoveryIntervalSeconds:    60,
		PollMinIntervalSeconds:     1,
		PollMaxIntervalSeconds:     30,
		MaxRetries:                 3,
		RegistryConfigDir:          "/etc/taskmesh/registry",
		AdminHTTPAddr:              ":8080",
		CircuitBreakerThreshold:    5,
		CircuitBreakerResetSeconds: 30,
		LogLevel:                   "info",
	}
}

// LoadFromEnv overlays the WORKER_*, DB_* (via Database.LoadFromEnv),
// REGISTRY_*, ADMIN_HTTP_ADDR and CIRCUIT_BREAKER_* environment variables
// onto c.
func (c *WorkerConfig) LoadFromEnv() {
	c.Database.LoadFromEnv()

	if v := os.Getenv("WORKER_ID"); v != "" {
		c.WorkerID = v
	}
	if v := os.Getenv("WORKER_LEASE_DURATION_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LeaseDurationSeconds = n
		}
	}
	if v := os.Getenv("WORKER_RECOVERY_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RecoveryIntervalSeconds = n
		}
	}
	if v := os.Getenv("WORKER_POLL_MIN_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollMinIntervalSeconds = n
		}
	}
	if v := os.Getenv("WORKER_POLL_MAX_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollMaxIntervalSeconds = n
		}
	}
	if v := os.Getenv("WORKER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("REGISTRY_CONFIG_DIR"); v != "" {
		c.RegistryConfigDir = v
	}
	if v := os.Getenv("REGISTRY_REDIS_ADDR"); v != "" {
		c.RegistryRedisAddr = v
	}
	if v := os.Getenv("ADMIN_HTTP_ADDR"); v != "" {
		c.AdminHTTPAddr = v
	}
	if v := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.CircuitBreakerThreshold = uint32(n)
		}
	}
	if v := os.Getenv("CIRCUIT_BREAKER_RESET_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreakerResetSeconds = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate runs struct-tag validation plus the nested database config's
// own validation.
func (c *WorkerConfig) Validate() error {
	if err := validation.New().Struct(c); err != nil {
		return err
	}
	return c.Database.Validate()
}

// LeaseDuration returns LeaseDurationSeconds as a time.Duration.
func (c *WorkerConfig) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseDurationSeconds) * time.Second
}

// RecoveryInterval returns RecoveryIntervalSeconds as a time.Duration.
func (c *WorkerConfig) RecoveryInterval() time.Duration {
	return time.Duration(c.RecoveryIntervalSeconds) * time.Second
}

// PollMinInterval returns PollMinIntervalSeconds as a time.Duration.
func (c *WorkerConfig) PollMinInterval() time.Duration {
	return time.Duration(c.PollMinIntervalSeconds) * time.Second
}

// PollMaxInterval returns PollMaxIntervalSeconds as a time.Duration.
func (c *WorkerConfig) PollMaxInterval() time.Duration {
	return time.Duration(c.PollMaxIntervalSeconds) * time.Second
}

// CircuitBreakerResetTimeout returns CircuitBreakerResetSeconds as a
// time.Duration.
func (c *WorkerConfig) CircuitBreakerResetTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerResetSeconds) * time.Second
}
