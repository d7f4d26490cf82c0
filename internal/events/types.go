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

// Package events implements the per-run append-only event log with live
// fan-out and late-join replay by sequence number.
package events

import (
	"time"

	"github.com/modforge/modforge/internal/spec"
)

// Type identifies an event on a run's stream.
type Type string

const (
	TypeRunStatus        Type = "run.status"
	TypeRunProgress      Type = "run.progress"
	TypeLogAppend        Type = "log.append"
	TypeSpecPreview      Type = "spec.preview"
	TypeSpecSaved        Type = "spec.saved"
	TypeAwaitingApproval Type = "run.awaiting_approval"
	TypeAwaitingInput    Type = "run.awaiting_input"
	TypeArtifactCreated  Type = "artifact.created"
	TypeTaskStarted      Type = "task.started"
	TypeTaskFinished     Type = "task.finished"
	TypeError            Type = "error"
)

// Event is a single sequenced record on a run's stream. Seq is strictly
// increasing within a run, starting at 1, assigned at publish time.
type Event struct {
	RunID     string    `json:"run_id"`
	Seq       int64     `json:"seq"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusPayload is the payload for run.status events.
type StatusPayload struct {
	Status string `json:"status"`
}

// ProgressPayload is the payload for run.progress events.
type ProgressPayload struct {
	Progress int `json:"progress"`
}

// LogPayload is the payload for log.append events.
type LogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
	Phase   string `json:"phase"`
}

// SpecPreviewPayload is the payload for spec.preview events, one per
// pending delta.
type SpecPreviewPayload struct {
	Delta       spec.Delta `json:"delta"`
	DeltaIndex  int        `json:"delta_index"`
	TotalDeltas int        `json:"total_deltas"`
}

// SpecSavedPayload is the payload for spec.saved events.
type SpecSavedPayload struct {
	SpecVersion int `json:"spec_version"`
	ItemsCount  int `json:"items_count"`
	BlocksCount int `json:"blocks_count"`
	ToolsCount  int `json:"tools_count"`
}

// AwaitingApprovalPayload is the payload for run.awaiting_approval events.
type AwaitingApprovalPayload struct {
	PendingDeltas []spec.Delta `json:"pending_deltas"`
	DeltasCount   int          `json:"deltas_count"`
}

// AwaitingInputPayload is the payload for run.awaiting_input events.
type AwaitingInputPayload struct {
	ClarifyingQuestions []string `json:"clarifying_questions"`
	Reasoning           string   `json:"reasoning"`
}

// ArtifactPayload is the payload for artifact.created events.
type ArtifactPayload struct {
	ArtifactID   string `json:"artifact_id"`
	FileName     string `json:"file_name"`
	ArtifactType string `json:"artifact_type"`
	FileSize     int64  `json:"file_size"`
}

// TaskPayload is the payload for task.started and task.finished events.
type TaskPayload struct {
	TaskID     string `json:"task_id"`
	Kind       string `json:"kind"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Message string `json:"message"`
	Phase   string `json:"phase"`
	Cause   string `json:"cause,omitempty"`
}
