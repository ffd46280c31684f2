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

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/taskmesh/orchestrator-core/pkg/docstore"
)

// Envelope is the wire shape the (out-of-scope) gateway submits: a type
// string of the form "workflow|agent|tool:<name>" plus a free-form input
// document.
type Envelope struct {
	Type  string            `yaml:"type" json:"type"`
	Input docstore.Document `yaml:"input" json:"input"`
}

// TypePrefix splits "agent:research" into ("agent", "research"). An empty
// prefix or name means the envelope is malformed.
func (e Envelope) TypePrefix() (prefix, name string) {
	parts := strings.SplitN(e.Type, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// TraceID extracts input._trace_context.trace_id, or "" if absent.
func (e Envelope) TraceID() string {
	v, ok := e.Input.Lookup("_trace_context", "trace_id")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// HashUserEmail returns the fixed-width hex digest stored in place of the
// plaintext user_email; the plaintext itself is never persisted.
func HashUserEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
