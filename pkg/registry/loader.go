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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// workflowDescriptor is the on-disk YAML shape of one workflow definition
// file under REGISTRY_CONFIG_DIR.
type workflowDescriptor struct {
	Name            string     `yaml:"name"`
	Strategy        string     `yaml:"strategy"`
	Steps           []StepSpec `yaml:"steps"`
	MaxIterations   int        `yaml:"max_iterations"`
	ConvergenceExpr string     `yaml:"convergence_expr"`
}

// staticWorkflowDefinition is the registry.WorkflowDefinition built from a
// decoded descriptor; the orchestrator reads it, never mutates it.
type staticWorkflowDefinition struct {
	name            string
	strategy        string
	steps           []StepSpec
	maxIterations   int
	convergenceExpr string
}

func (d *staticWorkflowDefinition) Name() string            { return d.name }
func (d *staticWorkflowDefinition) Strategy() string        { return d.strategy }
func (d *staticWorkflowDefinition) Steps() []StepSpec        { return d.steps }
func (d *staticWorkflowDefinition) MaxIterations() int       { return d.maxIterations }
func (d *staticWorkflowDefinition) ConvergenceExpr() string  { return d.convergenceExpr }

// ParseWorkflowDescriptor decodes one YAML document into a
// WorkflowDefinition. Exported so tests and the admin API can validate a
// descriptor without touching the filesystem.
func ParseWorkflowDescriptor(raw []byte) (WorkflowDefinition, error) {
	var desc workflowDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("decode workflow descriptor: %w", err)
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("workflow descriptor missing required field: name")
	}
	if desc.Strategy == "" {
		desc.Strategy = "sequential"
	}
	if desc.MaxIterations <= 0 {
		desc.MaxIterations = 3
	}
	return &staticWorkflowDefinition{
		name:            desc.Name,
		strategy:        desc.Strategy,
		steps:           desc.Steps,
		maxIterations:   desc.MaxIterations,
		convergenceExpr: desc.ConvergenceExpr,
	}, nil
}

// LoadWorkflowDir reads every *.yaml/*.yml file in dir and registers the
// workflow it describes into reg, overwriting any prior entry of the same
// name. It is called once at startup and again on every filesystem change
// reported by DirWatcher.
func LoadWorkflowDir(dir string, reg *Registry[WorkflowDefinition]) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read registry config dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read workflow descriptor %q: %w", name, err)
		}
		def, err := ParseWorkflowDescriptor(raw)
		if err != nil {
			return fmt.Errorf("parse workflow descriptor %q: %w", name, err)
		}
		reg.Replace(def.Name(), def)
	}
	return nil
}
