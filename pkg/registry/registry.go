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

// Package registry is the process-local, thread-safe catalog of agents,
// tools and workflow definitions the executor dispatches envelopes
// against. Workflow definitions load from a directory of YAML descriptor
// files, which a filesystem watcher reloads on change; agents and tools
// are added by direct Register calls.
package registry

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/taskmesh/orchestrator-core/internal/errortypes"
)

// Registry is a generic, thread-safe name-to-value catalog. One instance
// backs the agent registry, the tool registry and the workflow registry.
type Registry[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]T
}

// New constructs an empty registry. kind names what T is ("agent", "tool",
// "workflow") for error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, items: make(map[string]T)}
}

// Register adds name to the registry, failing if name is already taken.
func (r *Registry[T]) Register(name string, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; exists {
		return apperrors.Newf(apperrors.ErrorTypeConflict, "%s %q already registered", r.kind, name)
	}
	r.items[name] = item
	return nil
}

// Replace adds or overwrites name unconditionally, used when reloading
// descriptors after a filesystem change or a redis invalidation event.
func (r *Registry[T]) Replace(name string, item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[name] = item
}

// Unregister removes name, a no-op if it isn't present.
func (r *Registry[T]) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, name)
}

// Get returns the item registered under name, or a registry-miss AppError.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	if !ok {
		return item, apperrors.NewRegistryMissError(r.kind, name)
	}
	return item, nil
}

// IsRegistered reports whether name is currently registered.
func (r *Registry[T]) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[name]
	return ok
}

// Count returns the number of registered items.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Names returns every registered name, sorted for deterministic output.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders a human-readable summary, handy in admin endpoints and
// startup logs.
func (r *Registry[T]) String() string {
	return fmt.Sprintf("%s registry (%d entries)", r.kind, r.Count())
}
