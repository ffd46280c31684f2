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

package registry

import (
	"context"

	"github.com/taskmesh/orchestrator-core/pkg/docstore"
	"github.com/taskmesh/orchestrator-core/pkg/types"
)

// Agent runs one LLM-backed step of a workflow (or stands alone as a
// top-level task). Implementations live in pkg/agents.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, input docstore.Document) (docstore.Document, types.Usage, error)
}

// Tool performs a single deterministic side effect (a notification, a
// lookup) and never raises: failure is reported through its own output
// document so a workflow step can branch on it.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, input docstore.Document) (docstore.Document, error)
}

// WorkflowDefinition is a declarative, named pipeline of steps the
// orchestrator executes. LoadWorkflowDir builds them from YAML descriptors.
type WorkflowDefinition interface {
	Name() string
	Strategy() string // "sequential" | "iterative_refinement" | "parallel_fanout"
	Steps() []StepSpec
	MaxIterations() int
	ConvergenceExpr() string
}

// StepSpec names one step of a workflow definition: which agent or tool
// runs. Every step receives the whole accumulated document.
type StepSpec struct {
	Name      string `yaml:"name" json:"name"`
	AgentType string `yaml:"agent_type,omitempty" json:"agent_type,omitempty"`
	ToolName  string `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
}

// Catalog bundles the three kind-specific registries the executor
// dispatches against.
type Catalog struct {
	Agents    *Registry[Agent]
	Tools     *Registry[Tool]
	Workflows *Registry[WorkflowDefinition]
}

// NewCatalog constructs an empty Catalog. cmd/worker fills its Workflows
// registry from the descriptor directory (LoadWorkflowDir, DirWatcher);
// agents and tools are added by explicit Register calls.
func NewCatalog() *Catalog {
	return &Catalog{
		Agents:    New[Agent]("agent"),
		Tools:     New[Tool]("tool"),
		Workflows: New[WorkflowDefinition]("workflow"),
	}
}
