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

package orchestration

import (
	"fmt"

	"github.com/itchyny/gojq"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
	"github.com/taskmesh/orchestrator-core/pkg/docstore"
)

// hasConverged evaluates a workflow definition's convergence expression
// against its accumulated output. An empty expression falls back to
// looking up the conventional "assessment.approved" boolean field, which
// covers the common review-loop shape without forcing every descriptor to
// spell out a jq query.
func hasConverged(expr string, accumulated docstore.Document) (bool, error) {
	if expr == "" {
		v, ok := accumulated.Lookup("assessment", "approved")
		if !ok {
			return false, nil
		}
		approved, _ := v.(bool)
		return approved, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return false, apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "invalid convergence expression %q", expr)
	}

	iter := query.Run(accumulated.Raw())
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, ok := v.(error); ok {
		return false, fmt.Errorf("evaluate convergence expression %q: %w", expr, err)
	}
	result, _ := v.(bool)
	return result, nil
}
