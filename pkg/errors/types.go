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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workspace", "run", "spec version")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// PathOp identifies which delta operation a path error occurred under.
type PathOp string

const (
	PathOpAdd    PathOp = "add"
	PathOpUpdate PathOp = "update"
	PathOpRemove PathOp = "remove"
)

// PathError represents a failure to resolve or mutate a spec path.
// Use this for delta application failures on the versioned mod spec.
type PathError struct {
	// Op is the delta operation that failed
	Op PathOp

	// Path is the dotted spec path (e.g., "items[0].rarity")
	Path string

	// Reason explains why the path could not be resolved or mutated
	Reason string

	// TypeMismatch distinguishes "path exists with the wrong container type"
	// from "path does not exist"
	TypeMismatch bool
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Op, e.Path, e.Reason)
}

// CompilationError represents a spec that could not be lowered to IR.
// Compilation failures are fatal for the run and are never retried.
type CompilationError struct {
	// Element identifies the spec element at fault (e.g., a registry id),
	// empty for whole-spec failures
	Element string

	// Reason is the human-readable cause
	Reason string
}

// Error implements the error interface.
func (e *CompilationError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("compilation failed for %s: %s", e.Element, e.Reason)
	}
	return fmt.Sprintf("compilation failed: %s", e.Reason)
}

// ToolError represents a tool handler failure during task execution.
// External failures (builder non-zero exit, texture service errors) are
// surfaced as ToolErrors with the underlying cause attached.
type ToolError struct {
	// Tool is the tool handler name (e.g., "build", "generate_texture")
	Tool string

	// TaskID is the task that invoked the handler
	TaskID string

	// Message is the human-readable error message
	Message string

	// LogTail carries the last lines of captured output, if any
	LogTail string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed on task %s: %s", e.Tool, e.TaskID, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

// MissingParameterError represents a required tool parameter absent from
// the union of task inputs and dispatched IR context.
type MissingParameterError struct {
	// Tool is the tool handler name
	Tool string

	// Parameter is the declared-required parameter that was missing
	Parameter string
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("tool %s: required parameter %q missing", e.Tool, e.Parameter)
}

// DeadlockError represents a task graph with pending tasks but an empty
// ready set. This is a defect in planner output, not a transient condition.
type DeadlockError struct {
	// Pending lists the task ids that can never become ready
	Pending []string
}

// Error implements the error interface.
func (e *DeadlockError) Error() string {
	return fmt.Sprintf("execution deadlock: %d task(s) pending with empty ready set: %v", len(e.Pending), e.Pending)
}

// RunStateError represents an operation applied to a run in a state that
// does not accept it (e.g., approve on a RUNNING run).
type RunStateError struct {
	// RunID is the run the operation targeted
	RunID string

	// State is the run's state at the time of the operation
	State string

	// Op is the rejected operation (e.g., "approve", "cancel")
	Op string
}

// Error implements the error interface.
func (e *RunStateError) Error() string {
	return fmt.Sprintf("run %s: cannot %s in state %s", e.RunID, e.Op, e.State)
}

// RunInProgressError represents a trigger on a workspace that already has
// a non-terminal run. At most one run per workspace may be active.
type RunInProgressError struct {
	// Workspace is the workspace with the active run
	Workspace string

	// RunID is the active run's id
	RunID string
}

// Error implements the error interface.
func (e *RunInProgressError) Error() string {
	return fmt.Sprintf("workspace %s already has an active run: %s", e.Workspace, e.RunID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "executor.fan_out")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when a task or external call exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "build", "generate_texture")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
