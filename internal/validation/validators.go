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

// Package validation sanitizes and validates the free-form strings that
// cross the task boundary: envelope type strings, agent/tool/workflow
// names, and anything else that ends up in a log line or a SQL query
// built outside the parameterized query path.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskmesh/orchestrator-core/internal/errortypes"
)

// New returns a validator configured for the struct tags used on config
// types.
func New() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\b.*\bselect\b`),
	regexp.MustCompile(`(?i)\bdrop\s+table\b`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`<script[\s>]`),
	regexp.MustCompile(`['";]`),
}

// ValidateStringInput rejects strings over maxLen, containing a SQL/script
// injection pattern, or carrying non-whitespace control characters.
func ValidateStringInput(field, value string, maxLen int) error {
	if len(value) > maxLen {
		return errortypes.NewValidationError(fmt.Sprintf("%s must be %d characters or less", field, maxLen))
	}
	for _, pattern := range unsafePatterns {
		if pattern.MatchString(value) {
			return errortypes.NewValidationError(fmt.Sprintf("%s contains potentially unsafe characters", field))
		}
	}
	for _, r := range value {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return errortypes.NewValidationError(fmt.Sprintf("%s contains invalid control characters", field))
		}
	}
	return nil
}

var envelopeTypePattern = regexp.MustCompile(`^(agent|tool|workflow):[a-z0-9_]+$`)

// ValidateEnvelopeType checks a task's Type string is one of
// "agent:<name>", "tool:<name>" or "workflow:<name>" with a safe name.
func ValidateEnvelopeType(typ string) error {
	if typ == "" {
		return errortypes.NewValidationError("type is required")
	}
	if err := ValidateStringInput("type", typ, 128); err != nil {
		return err
	}
	if !envelopeTypePattern.MatchString(typ) {
		return errortypes.NewValidationError("type must be of the form \"agent|tool|workflow:<name>\"")
	}
	return nil
}

// SanitizeForLogging replaces non-whitespace control characters with "?"
// and truncates to 200 bytes (197 bytes plus a trailing "...") so untrusted
// task input never corrupts or floods a log stream.
func SanitizeForLogging(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			b.WriteRune('?')
		} else {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 200 {
		out = out[:197] + "..."
	}
	return out
}
