// Copyright 2025 Tom Barlow
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

// Package executor runs a planned task DAG against registered tool
// handlers with bounded parallelism, fail-fast error handling, and
// per-kind timeouts.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modforge/modforge/pkg/errors"
)

// Param declares one parameter a tool accepts. Required params missing at
// invocation time fail the task before the tool runs.
type Param struct {
	Name     string
	Required bool
}

// Invocation carries the bound parameters for one task execution.
type Invocation struct {
	RunID  string
	TaskID string
	Params map[string]any
}

// Tool is a task handler. Execute returns the task's outputs, which are
// recorded in the run's output table.
type Tool interface {
	// Name is the task kind this tool handles.
	Name() string

	// Params declares the parameters the tool reads. Binding passes only
	// declared parameters through.
	Params() []Param

	Execute(ctx context.Context, inv Invocation) (map[string]any, error)
}

// Registry maps task kinds to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice is a wiring defect.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return errors.New(fmt.Sprintf("tool %q already registered", t.Name()))
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool for a task kind.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered kinds, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bind resolves a tool's declared parameters from the task inputs first,
// then the run context. Undeclared keys are dropped; missing required
// parameters are an error.
func bind(tool Tool, inputs, runContext map[string]any) (map[string]any, error) {
	params := make(map[string]any)
	for _, p := range tool.Params() {
		if v, ok := inputs[p.Name]; ok {
			params[p.Name] = v
			continue
		}
		if v, ok := runContext[p.Name]; ok {
			params[p.Name] = v
			continue
		}
		if p.Required {
			return nil, &errors.MissingParameterError{Tool: tool.Name(), Parameter: p.Name}
		}
	}
	return params, nil
}
