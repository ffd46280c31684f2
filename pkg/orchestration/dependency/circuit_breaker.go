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

// Package dependency gates calls to external dependencies the worker
// cannot control the latency or availability of: the lease manager wraps
// every task-store call in one.
package dependency

import (
	"time"

	"github.com/sony/gobreaker"
)

// CircuitState mirrors gobreaker's three states under names that don't leak
// the underlying library into call sites.
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// minRequestsForTrip is the smallest sample size the failure rate is
// evaluated over; below it a single failure can't trip the circuit.
const minRequestsForTrip = 5

// CircuitBreaker trips open once its rolling failure rate crosses
// failureThreshold, with a minimum sample size so a handful of cold-start
// failures can't open it on their own.
type CircuitBreaker struct {
	name             string
	failureThreshold float64
	resetTimeout     time.Duration
	breaker          *gobreaker.CircuitBreaker
}

// NewCircuitBreaker constructs a breaker named name that opens once its
// failure rate since the last state change reaches failureThreshold (a
// fraction in [0,1])
// and stays open for resetTimeout before allowing a single trial call.
func NewCircuitBreaker(name string, failureThreshold float64, resetTimeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0, // no periodic reset while closed; gobreaker still clears counts on every state change
		Timeout:     resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequestsForTrip {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureThreshold
		},
	})
	return cb
}

// Call executes fn through the breaker: rejected immediately with
// gobreaker's "circuit breaker is open" error while open, otherwise run
// and the result recorded towards the failure rate.
func (cb *CircuitBreaker) Call(fn func() error) error {
	_, err := cb.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	switch cb.breaker.State() {
	case gobreaker.StateOpen:
		return CircuitStateOpen
	case gobreaker.StateHalfOpen:
		return CircuitStateHalfOpen
	default:
		return CircuitStateClosed
	}
}

// GetName returns the breaker's name.
func (cb *CircuitBreaker) GetName() string { return cb.name }

// GetFailureThreshold returns the configured trip threshold.
func (cb *CircuitBreaker) GetFailureThreshold() float64 { return cb.failureThreshold }

// GetResetTimeout returns the configured open-state timeout.
func (cb *CircuitBreaker) GetResetTimeout() time.Duration { return cb.resetTimeout }

// GetFailureRate returns TotalFailures/Requests over the current counting
// window, or 0 if no requests have been made.
func (cb *CircuitBreaker) GetFailureRate() float64 {
	counts := cb.breaker.Counts()
	if counts.Requests == 0 {
		return 0
	}
	return float64(counts.TotalFailures) / float64(counts.Requests)
}

// GetFailures returns the current window's total failure count.
func (cb *CircuitBreaker) GetFailures() int64 {
	return int64(cb.breaker.Counts().TotalFailures)
}
