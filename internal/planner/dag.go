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

// Package planner converts a compiled ModIR into a task DAG with explicit
// dependencies and parallelism hints. Planning is deterministic and performs
// no I/O.
package planner

import (
	"fmt"

	"github.com/modforge/modforge/pkg/errors"
)

// TaskStatus tracks a task through its lifecycle. Tasks never restart
// within a run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskReady     TaskStatus = "ready"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task is one unit of work bound to a named tool handler.
type Task struct {
	// ID is stable within the DAG.
	ID string `json:"id"`

	// Kind names the tool handler invoked for this task.
	Kind string `json:"kind"`

	// Inputs are the task-specific parameters merged with dispatched IR
	// context at invocation time.
	Inputs map[string]any `json:"inputs,omitempty"`

	// DependsOn lists task ids that must succeed first.
	DependsOn []string `json:"depends_on,omitempty"`

	// Parallelizable tasks may run concurrently with each other up to the
	// executor's fan-out. Serial tasks run alone.
	Parallelizable bool `json:"parallelizable"`

	// Priority orders dispatch within the ready set, higher first.
	Priority int `json:"priority"`

	Status TaskStatus `json:"status"`
}

// DAG is the planned task graph. Tasks holds them in deterministic plan
// order; byID indexes them.
type DAG struct {
	Tasks []*Task `json:"tasks"`

	byID map[string]*Task
}

// NewDAG builds a DAG from tasks, indexing by id. Duplicate ids are a
// planning defect.
func NewDAG(tasks []*Task) (*DAG, error) {
	byID := make(map[string]*Task, len(tasks))
	for _, task := range tasks {
		if _, exists := byID[task.ID]; exists {
			return nil, errors.New(fmt.Sprintf("duplicate task id %q", task.ID))
		}
		if task.Status == "" {
			task.Status = TaskPending
		}
		byID[task.ID] = task
	}
	d := &DAG{Tasks: tasks, byID: byID}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns a task by id.
func (d *DAG) Get(id string) (*Task, bool) {
	t, ok := d.byID[id]
	return t, ok
}

// Entries returns the tasks with no dependencies.
func (d *DAG) Entries() []*Task {
	var out []*Task
	for _, t := range d.Tasks {
		if len(t.DependsOn) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// Terminals returns the tasks no other task depends on.
func (d *DAG) Terminals() []*Task {
	depended := make(map[string]bool)
	for _, t := range d.Tasks {
		for _, dep := range t.DependsOn {
			depended[dep] = true
		}
	}
	var out []*Task
	for _, t := range d.Tasks {
		if !depended[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks that every dependency exists, the graph is acyclic, and
// every task is reachable from some entry.
func (d *DAG) Validate() error {
	for _, t := range d.Tasks {
		for _, dep := range t.DependsOn {
			if _, ok := d.byID[dep]; !ok {
				return errors.New(fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep))
			}
		}
	}

	// Kahn's algorithm: if not every task is consumed, the remainder holds
	// a cycle.
	indegree := make(map[string]int, len(d.Tasks))
	dependents := make(map[string][]string)
	for _, t := range d.Tasks {
		indegree[t.ID] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var queue []string
	for _, t := range d.Tasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(d.Tasks) {
		var cyclic []string
		for id, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		return errors.New(fmt.Sprintf("task graph contains a cycle involving %v", cyclic))
	}

	// Kahn's traversal from the zero-indegree set doubles as the
	// reachability check: a task unreachable from any entry would sit on a
	// cycle and fail above. Entries themselves must exist for non-empty
	// graphs.
	if len(d.Tasks) > 0 && len(d.Entries()) == 0 {
		return errors.New("task graph has no entry tasks")
	}
	return nil
}

// Counts returns the number of completed and failed tasks.
func (d *DAG) Counts() (completed, failed int) {
	for _, t := range d.Tasks {
		switch t.Status {
		case TaskSucceeded:
			completed++
		case TaskFailed:
			failed++
		}
	}
	return completed, failed
}
