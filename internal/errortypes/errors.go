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

// Package errortypes provides the structured error taxonomy used across
// the core: the store, lease manager, registry, executor, orchestrator and
// worker all raise and inspect AppError rather than bare errors, so the
// worker's state machine can classify a failure into the right recovery
// path (transient retry, lease conflict, permanent handler failure, ...).
package errortypes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType is one branch of the error taxonomy.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"

	// Additions for task-queue/orchestration failure modes.
	ErrorTypeTransient     ErrorType = "transient"
	ErrorTypeLeaseConflict ErrorType = "lease_conflict"
	ErrorTypeHandler       ErrorType = "handler_failure"
	ErrorTypeLeaseExpired  ErrorType = "lease_expired"
	ErrorTypeRegistryMiss  ErrorType = "registry_miss"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:    http.StatusBadRequest,
	ErrorTypeAuth:          http.StatusUnauthorized,
	ErrorTypeNotFound:      http.StatusNotFound,
	ErrorTypeConflict:      http.StatusConflict,
	ErrorTypeTimeout:       http.StatusRequestTimeout,
	ErrorTypeRateLimit:     http.StatusTooManyRequests,
	ErrorTypeDatabase:      http.StatusInternalServerError,
	ErrorTypeNetwork:       http.StatusInternalServerError,
	ErrorTypeInternal:      http.StatusInternalServerError,
	ErrorTypeTransient:     http.StatusServiceUnavailable,
	ErrorTypeLeaseConflict: http.StatusConflict,
	ErrorTypeHandler:       http.StatusUnprocessableEntity,
	ErrorTypeLeaseExpired:  http.StatusGone,
	ErrorTypeRegistryMiss:  http.StatusNotFound,
}

// AppError is the structured error value every component returns across
// its public boundary.
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Details    string
	Cause      error
}

// New creates an AppError with no cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: statusFor(t)}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap attaches cause to a new AppError of the given type.
func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: statusFor(t), Cause: cause}
}

// Wrapf attaches cause to a new AppError with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func statusFor(t ErrorType) int {
	if code, ok := statusByType[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails sets Details in place and returns e for chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf sets a formatted Details in place and returns e for chaining.
func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Predefined constructors for the most common call sites.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

func NewNotFoundError(resource string) *AppError {
	return Newf(ErrorTypeNotFound, "%s not found", resource)
}

func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

func NewTimeoutError(operation string) *AppError {
	return Newf(ErrorTypeTimeout, "operation timed out: %s", operation)
}

func NewLeaseConflictError(taskID string) *AppError {
	return Newf(ErrorTypeLeaseConflict, "lease no longer held for task %s", taskID)
}

func NewRegistryMissError(kind, name string) *AppError {
	return Newf(ErrorTypeRegistryMiss, "%s %q not registered", kind, name)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// GetType returns err's ErrorType, or ErrorTypeInternal for non-AppError
// values.
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns err's HTTP status code, or 500 for non-AppError
// values.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// ErrorMessages holds the user-facing text for error types whose internal
// Message may carry sensitive detail (table names, DSNs, stack frames).
var ErrorMessages = struct {
	ResourceNotFound        string
	AuthenticationFailed    string
	OperationTimeout        string
	RateLimitExceeded       string
	ConcurrentModification  string
}{
	ResourceNotFound:       "The requested resource was not found",
	AuthenticationFailed:   "Authentication failed",
	OperationTimeout:       "The operation timed out",
	RateLimitExceeded:      "Rate limit exceeded, please retry later",
	ConcurrentModification: "The resource was modified concurrently",
}

// SafeErrorMessage returns a message safe to surface to an external caller:
// validation errors pass their message through since it describes the
// caller's own bad input, everything else maps to a generic phrase.
func SafeErrorMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "An unexpected error occurred"
	}
	switch appErr.Type {
	case ErrorTypeValidation:
		return appErr.Message
	case ErrorTypeNotFound:
		return ErrorMessages.ResourceNotFound
	case ErrorTypeAuth:
		return ErrorMessages.AuthenticationFailed
	case ErrorTypeTimeout:
		return ErrorMessages.OperationTimeout
	case ErrorTypeRateLimit:
		return ErrorMessages.RateLimitExceeded
	case ErrorTypeConflict:
		return ErrorMessages.ConcurrentModification
	default:
		return "An internal error occurred"
	}
}

// LogFields renders err into a logrus.Fields-compatible map.
func LogFields(err error) map[string]any {
	fields := map[string]any{"error": err.Error()}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fields
	}
	fields["error_type"] = string(appErr.Type)
	fields["status_code"] = appErr.StatusCode
	if appErr.Details != "" {
		fields["error_details"] = appErr.Details
	}
	if appErr.Cause != nil {
		fields["underlying_error"] = appErr.Cause.Error()
	}
	return fields
}

// Chain concatenates multiple errors (nils filtered out) into one error
// whose message joins each in turn with " -> ". Used where a cleanup
// sequence can fail at more than one step and every failure needs
// surfacing, not just the first.
func Chain(errs ...error) error {
	var msgs []string
	var nonNil []error
	for _, e := range errs {
		if e == nil {
			continue
		}
		nonNil = append(nonNil, e)
		msgs = append(msgs, e.Error())
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.New(strings.Join(msgs, " -> "))
	}
}
