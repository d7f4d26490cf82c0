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

// Package run owns the run lifecycle: triggering generate and build runs,
// the approval gate, cancellation, and the state machine every run moves
// through.
package run

import (
	"context"
	"sync"
	"time"

	"github.com/modforge/modforge/internal/spec"
)

// State is a run lifecycle state.
type State string

const (
	StateQueued           State = "QUEUED"
	StateRunning          State = "RUNNING"
	StateAwaitingInput    State = "AWAITING_INPUT"
	StateAwaitingApproval State = "AWAITING_APPROVAL"
	StateSucceeded        State = "SUCCEEDED"
	StateFailed           State = "FAILED"
	StateCanceled         State = "CANCELED"
	StateRejected         State = "REJECTED"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateRejected:
		return true
	}
	return false
}

// Kind distinguishes the two run flavors.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindBuild    Kind = "build"
)

// Artifact describes a built mod jar.
type Artifact struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

// logTailLen bounds the per-run log snapshot kept on the run itself; the
// full stream lives on the event bus.
const logTailLen = 20

// Run is the mutable run record. All access goes through its methods; the
// controller never hands the struct out directly.
type Run struct {
	mu sync.Mutex

	id        string
	workspace string
	kind      Kind
	prompt    string

	state    State
	progress int

	pendingDeltas []spec.Delta
	questions     []string
	artifact      *Artifact
	errMsg        string
	rejectReason  string
	logTail       []string

	tasksTotal     int
	tasksCompleted int

	createdAt time.Time
	updatedAt time.Time

	cancel context.CancelFunc

	// finished guards the one-shot bookkeeping done when a run reaches a
	// terminal state.
	finished bool
}

// Snapshot is an immutable copy of a run's externally visible state.
type Snapshot struct {
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
	Kind      Kind   `json:"kind"`
	Prompt    string `json:"prompt,omitempty"`
	State     State  `json:"state"`
	Progress  int    `json:"progress"`

	PendingDeltas []spec.Delta `json:"pending_deltas,omitempty"`
	Questions     []string     `json:"clarifying_questions,omitempty"`
	Artifact      *Artifact    `json:"artifact,omitempty"`
	Error         string       `json:"error,omitempty"`
	RejectReason  string       `json:"reject_reason,omitempty"`
	LogTail       []string     `json:"log_tail,omitempty"`

	TasksTotal     int `json:"tasks_total"`
	TasksCompleted int `json:"tasks_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newRun(id, workspace string, kind Kind, prompt string, cancel context.CancelFunc) *Run {
	now := time.Now().UTC()
	return &Run{
		id:        id,
		workspace: workspace,
		kind:      kind,
		prompt:    prompt,
		state:     StateQueued,
		createdAt: now,
		updatedAt: now,
		cancel:    cancel,
	}
}

// Snapshot returns a deep copy of the run's visible state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		ID:             r.id,
		Workspace:      r.workspace,
		Kind:           r.kind,
		Prompt:         r.prompt,
		State:          r.state,
		Progress:       r.progress,
		Error:          r.errMsg,
		RejectReason:   r.rejectReason,
		TasksTotal:     r.tasksTotal,
		TasksCompleted: r.tasksCompleted,
		CreatedAt:      r.createdAt,
		UpdatedAt:      r.updatedAt,
	}
	if len(r.pendingDeltas) > 0 {
		snap.PendingDeltas = make([]spec.Delta, len(r.pendingDeltas))
		copy(snap.PendingDeltas, r.pendingDeltas)
	}
	if len(r.questions) > 0 {
		snap.Questions = make([]string, len(r.questions))
		copy(snap.Questions, r.questions)
	}
	if len(r.logTail) > 0 {
		snap.LogTail = make([]string, len(r.logTail))
		copy(snap.LogTail, r.logTail)
	}
	if r.artifact != nil {
		a := *r.artifact
		snap.Artifact = &a
	}
	return snap
}

// setState transitions the run. Terminal states are sticky: once reached,
// later transitions are ignored so a cancelled run cannot be revived by
// its still-draining goroutine.
func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = s
	r.updatedAt = time.Now().UTC()
}

// markFinished reports whether this call was the first to finish the run.
func (r *Run) markFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.finished = true
	return true
}

// compareAndSetState transitions only if the run is currently in from.
func (r *Run) compareAndSetState(from, to State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return false
	}
	r.state = to
	r.updatedAt = time.Now().UTC()
	return true
}

func (r *Run) currentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setProgress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p > r.progress {
		r.progress = p
	}
	r.updatedAt = time.Now().UTC()
}

func (r *Run) setError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = msg
	r.updatedAt = time.Now().UTC()
}

func (r *Run) setPendingDeltas(deltas []spec.Delta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingDeltas = deltas
	r.updatedAt = time.Now().UTC()
}

func (r *Run) takePendingDeltas() []spec.Delta {
	r.mu.Lock()
	defer r.mu.Unlock()
	deltas := r.pendingDeltas
	r.pendingDeltas = nil
	return deltas
}

func (r *Run) setRejectReason(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectReason = reason
	r.updatedAt = time.Now().UTC()
}

func (r *Run) setQuestions(qs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = qs
	r.updatedAt = time.Now().UTC()
}

func (r *Run) setArtifact(a *Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifact = a
	r.updatedAt = time.Now().UTC()
}

func (r *Run) setTasks(total, completed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if total > 0 {
		r.tasksTotal = total
	}
	if completed > r.tasksCompleted {
		r.tasksCompleted = completed
	}
	r.updatedAt = time.Now().UTC()
}

func (r *Run) appendLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logTail) == logTailLen {
		copy(r.logTail, r.logTail[1:])
		r.logTail = r.logTail[:logTailLen-1]
	}
	r.logTail = append(r.logTail, line)
}
