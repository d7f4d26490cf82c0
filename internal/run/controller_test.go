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

package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/internal/builder"
	"github.com/modforge/modforge/internal/events"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/orchestrator"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/internal/texture"
	"github.com/modforge/modforge/internal/tools"
	"github.com/modforge/modforge/pkg/errors"
)

type fakeProposer struct {
	proposal *orchestrator.Proposal
	err      error
}

func (f *fakeProposer) Propose(_ context.Context, _ orchestrator.ProposeRequest) (*orchestrator.Proposal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.proposal, nil
}

type fakeBuilder struct {
	fail    bool
	started chan struct{}
	block   bool
}

func (f *fakeBuilder) Build(ctx context.Context, dir string) (*builder.Result, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return &builder.Result{}, ctx.Err()
	}
	if f.fail {
		return &builder.Result{LogTail: []string{"error: bad source"}}, errors.New("gradle exited with status 1")
	}
	jar := filepath.Join(dir, "build", "libs", "ruby_mod-1.0.0.jar")
	if err := os.MkdirAll(filepath.Dir(jar), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(jar, []byte("jar-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &builder.Result{JarPath: jar, LogTail: []string{"BUILD SUCCESSFUL"}}, nil
}

type env struct {
	controller *Controller
	store      *spec.Store
	bus        *events.Bus
}

func newEnv(t *testing.T, proposer orchestrator.Proposer, b builder.Builder) *env {
	t.Helper()
	dataDir := t.TempDir()
	store := spec.NewStore(dataDir, nil)
	bus := events.NewBus(events.Config{}, nil)

	reg := executor.NewRegistry()
	require.NoError(t, tools.Register(reg, tools.Deps{Textures: texture.Placeholder{}, Builder: b}))
	exec := executor.New(reg, executor.Config{}, nil)

	controller := NewController(Config{
		Store:    store,
		Proposer: proposer,
		Executor: exec,
		Bus:      bus,
		DataDir:  dataDir,
	})
	return &env{controller: controller, store: store, bus: bus}
}

func seedSpec(t *testing.T, e *env, workspace string, s *spec.ModSpec) {
	t.Helper()
	_, err := e.store.Initialize(workspace, s)
	require.NoError(t, err)
}

func waitForState(t *testing.T, c *Controller, runID string, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = c.Get(runID)
		return err == nil && snap.State == want
	}, 5*time.Second, 5*time.Millisecond, "run never reached %s (last: %s)", want, snap.State)
	return snap
}

func eventTypes(t *testing.T, bus *events.Bus, runID string) []events.Type {
	t.Helper()
	evs, err := bus.Events(runID, 0)
	require.NoError(t, err)
	out := make([]events.Type, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func addSapphire() *orchestrator.Proposal {
	return &orchestrator.Proposal{
		Deltas: []spec.Delta{
			{Operation: spec.OpAdd, Path: "items[1]", Value: map[string]any{"item_name": "Sapphire"}},
		},
		Reasoning: "added the requested item",
	}
}

func TestGenerateApproveFlow(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: addSapphire()}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)
	assert.Equal(t, KindGenerate, snap.Kind)

	snap = waitForState(t, e.controller, snap.ID, StateAwaitingApproval)
	require.Len(t, snap.PendingDeltas, 1)

	types := eventTypes(t, e.bus, snap.ID)
	assert.Contains(t, types, events.TypeSpecPreview)
	assert.Contains(t, types, events.TypeAwaitingApproval)

	approved, err := e.controller.Approve(context.Background(), snap.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, approved.State)
	assert.Equal(t, 100, approved.Progress)

	updated, version, err := e.store.Current("ws-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Sapphire", updated.Items[1].ItemName)

	assert.Contains(t, eventTypes(t, e.bus, snap.ID), events.TypeSpecSaved)

	// Workspace is free again.
	_, ok := e.controller.Active("ws-1")
	assert.False(t, ok)
}

func TestGenerateRejectDiscardsDeltas(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: addSapphire()}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateAwaitingApproval)

	rejected, err := e.controller.Reject(context.Background(), snap.ID, "wrong gem")
	require.NoError(t, err)
	assert.Equal(t, StateRejected, rejected.State)
	assert.Empty(t, rejected.PendingDeltas)
	assert.Equal(t, "wrong gem", rejected.RejectReason)

	_, version, err := e.store.Current("ws-1")
	require.NoError(t, err)
	assert.Equal(t, 1, version, "spec untouched")
}

func TestApproveWithModifiedDeltas(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: addSapphire()}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateAwaitingApproval)

	// The caller edits the proposal before approving; the modified set
	// replaces the pending deltas wholesale.
	modified := []spec.Delta{
		{Operation: spec.OpAdd, Path: "items[1]", Value: map[string]any{"item_name": "Emerald"}},
	}
	approved, err := e.controller.Approve(context.Background(), snap.ID, modified)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, approved.State)

	updated, version, err := e.store.Current("ws-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Emerald", updated.Items[1].ItemName)
}

func TestApproveRejectsInvalidModifiedDeltas(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: addSapphire()}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateAwaitingApproval)

	bad := []spec.Delta{
		{Operation: spec.OpUpdate, Path: "items[7].item_name", Value: "Ghost"},
	}
	_, err = e.controller.Approve(context.Background(), snap.ID, bad)
	require.Error(t, err)

	// A bad modified set leaves the run parked; the original pending
	// deltas still apply.
	parked, err := e.controller.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingApproval, parked.State)

	approved, err := e.controller.Approve(context.Background(), snap.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, approved.State)

	updated, _, err := e.store.Current("ws-1")
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Sapphire", updated.Items[1].ItemName)
}

func TestGenerateBatchProposal(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: &orchestrator.Proposal{
		Batch: &spec.BatchDelta{
			AddItems: []spec.ItemSpec{{ItemName: "Sapphire"}},
		},
	}}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)

	// The batch form expands to path deltas before parking for approval.
	snap = waitForState(t, e.controller, snap.ID, StateAwaitingApproval)
	require.Len(t, snap.PendingDeltas, 1)
	assert.Equal(t, spec.OpAdd, snap.PendingDeltas[0].Operation)
	assert.Equal(t, "items[1]", snap.PendingDeltas[0].Path)

	approved, err := e.controller.Approve(context.Background(), snap.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, approved.State)

	updated, version, err := e.store.Current("ws-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Sapphire", updated.Items[1].ItemName)
}

func TestCancelConflictsWhileAwaitingApproval(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: addSapphire()}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateAwaitingApproval)

	// Pending deltas exit only through approve or reject.
	_, err = e.controller.Cancel(context.Background(), snap.ID)
	var stateErr *errors.RunStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "cancel", stateErr.Op)

	rejected, err := e.controller.Reject(context.Background(), snap.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StateRejected, rejected.State)
}

func TestGenerateAmbiguousPromptAwaitsInput(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: &orchestrator.Proposal{
		ClarifyingQuestions: []string{"Which color should the gem be?"},
	}}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod"})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a gem")
	require.NoError(t, err)

	snap = waitForState(t, e.controller, snap.ID, StateAwaitingInput)
	assert.Equal(t, []string{"Which color should the gem be?"}, snap.Questions)
	assert.Contains(t, eventTypes(t, e.bus, snap.ID), events.TypeAwaitingInput)
}

func TestGenerateSupersedesAwaitingInputRun(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: &orchestrator.Proposal{
		ClarifyingQuestions: []string{"Which color?"},
	}}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod"})

	first, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a gem")
	require.NoError(t, err)
	waitForState(t, e.controller, first.ID, StateAwaitingInput)

	second, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a red gem")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	superseded, err := e.controller.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCanceled, superseded.State)
}

func TestGenerateNoChangesSucceeds(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: &orchestrator.Proposal{}}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod"})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "keep everything as is")
	require.NoError(t, err)

	snap = waitForState(t, e.controller, snap.ID, StateSucceeded)
	assert.Equal(t, 100, snap.Progress)
}

func TestTriggerConflictsWithActiveRun(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: addSapphire()}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod", Items: []spec.ItemSpec{{ItemName: "Ruby"}}})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "add a sapphire")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateAwaitingApproval)

	_, err = e.controller.TriggerBuild(context.Background(), "ws-1")
	var conflict *errors.RunInProgressError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, snap.ID, conflict.RunID)

	// Other workspaces are unaffected.
	seedSpec(t, e, "ws-2", &spec.ModSpec{ModName: "Other Mod"})
	_, err = e.controller.TriggerBuild(context.Background(), "ws-2")
	require.NoError(t, err)
}

func TestApproveRejectedInWrongState(t *testing.T) {
	e := newEnv(t, &fakeProposer{proposal: &orchestrator.Proposal{}}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod"})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "noop")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateSucceeded)

	_, err = e.controller.Approve(context.Background(), snap.ID, nil)
	var stateErr *errors.RunStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "approve", stateErr.Op)

	_, err = e.controller.Approve(context.Background(), "ghost", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestBuildRunSucceeds(t *testing.T) {
	e := newEnv(t, &fakeProposer{}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{
		ModName: "Ruby Mod",
		Items:   []spec.ItemSpec{{ItemName: "Ruby"}},
	})

	snap, err := e.controller.TriggerBuild(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, KindBuild, snap.Kind)

	snap = waitForState(t, e.controller, snap.ID, StateSucceeded)
	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.Artifact)
	assert.Equal(t, "ruby_mod-1.0.0.jar", snap.Artifact.FileName)
	assert.FileExists(t, snap.Artifact.Path)
	assert.GreaterOrEqual(t, snap.TasksCompleted, 6)
	assert.Equal(t, snap.TasksTotal, snap.TasksCompleted)

	evs, err := e.bus.Events(snap.ID, 0)
	require.NoError(t, err)

	var finished int
	var sawArtifact bool
	lastSeq := int64(0)
	for _, ev := range evs {
		require.Greater(t, ev.Seq, lastSeq, "seq strictly increasing")
		lastSeq = ev.Seq
		switch ev.Type {
		case events.TypeTaskFinished:
			finished++
		case events.TypeArtifactCreated:
			sawArtifact = true
		}
	}
	assert.GreaterOrEqual(t, finished, 6)
	assert.True(t, sawArtifact)
}

func TestBuildCompilationFailureFailsRun(t *testing.T) {
	e := newEnv(t, &fakeProposer{}, &fakeBuilder{})
	// Duplicate registry ids compile-fail deterministically.
	seedSpec(t, e, "ws-1", &spec.ModSpec{
		ModName: "Ruby Mod",
		Items:   []spec.ItemSpec{{ItemName: "Ruby"}, {ItemName: "ruby"}},
	})

	snap, err := e.controller.TriggerBuild(context.Background(), "ws-1")
	require.NoError(t, err)

	snap = waitForState(t, e.controller, snap.ID, StateFailed)
	assert.Contains(t, snap.Error, "registry id")

	types := eventTypes(t, e.bus, snap.ID)
	assert.Contains(t, types, events.TypeError)
	assert.NotContains(t, types, events.TypeTaskStarted, "no tasks dispatched")
}

func TestBuildToolFailureFailsRun(t *testing.T) {
	e := newEnv(t, &fakeProposer{}, &fakeBuilder{fail: true})
	seedSpec(t, e, "ws-1", &spec.ModSpec{
		ModName: "Ruby Mod",
		Items:   []spec.ItemSpec{{ItemName: "Ruby"}},
	})

	snap, err := e.controller.TriggerBuild(context.Background(), "ws-1")
	require.NoError(t, err)

	snap = waitForState(t, e.controller, snap.ID, StateFailed)
	assert.Contains(t, snap.Error, "gradle")
	assert.Nil(t, snap.Artifact)
}

func TestCancelMidBuild(t *testing.T) {
	b := &fakeBuilder{block: true, started: make(chan struct{})}
	e := newEnv(t, &fakeProposer{}, b)
	seedSpec(t, e, "ws-1", &spec.ModSpec{
		ModName: "Ruby Mod",
		Items:   []spec.ItemSpec{{ItemName: "Ruby"}},
	})

	snap, err := e.controller.TriggerBuild(context.Background(), "ws-1")
	require.NoError(t, err)

	select {
	case <-b.started:
	case <-time.After(5 * time.Second):
		t.Fatal("build task never started")
	}

	_, err = e.controller.Cancel(context.Background(), snap.ID)
	require.NoError(t, err)

	snap = waitForState(t, e.controller, snap.ID, StateCanceled)
	assert.Nil(t, snap.Artifact)

	// Workspace frees up for the next run.
	require.Eventually(t, func() bool {
		_, ok := e.controller.Active("ws-1")
		return !ok
	}, 5*time.Second, 5*time.Millisecond)
}

func TestEventReplayAfterCompletion(t *testing.T) {
	e := newEnv(t, &fakeProposer{}, &fakeBuilder{})
	seedSpec(t, e, "ws-1", &spec.ModSpec{
		ModName: "Ruby Mod",
		Items:   []spec.ItemSpec{{ItemName: "Ruby"}},
	})

	snap, err := e.controller.TriggerBuild(context.Background(), "ws-1")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateSucceeded)
	e.controller.Drain()

	ch, cancel, err := e.bus.Subscribe(snap.ID, 0)
	require.NoError(t, err)
	defer cancel()

	var replayed []events.Event
	for ev := range ch {
		replayed = append(replayed, ev)
	}
	require.NotEmpty(t, replayed)
	for i, ev := range replayed {
		assert.Equal(t, int64(i+1), ev.Seq, "replay has no gaps")
	}
	last := replayed[len(replayed)-1]
	assert.Equal(t, events.TypeRunStatus, last.Type)
}

func TestHistoryRecordsTerminalRuns(t *testing.T) {
	dir := t.TempDir()
	history, err := OpenHistory(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer history.Close()

	e := newEnv(t, &fakeProposer{proposal: &orchestrator.Proposal{}}, &fakeBuilder{})
	e.controller.history = history
	seedSpec(t, e, "ws-1", &spec.ModSpec{ModName: "Ruby Mod"})

	snap, err := e.controller.TriggerGenerate(context.Background(), "ws-1", "noop")
	require.NoError(t, err)
	waitForState(t, e.controller, snap.ID, StateSucceeded)
	e.controller.Drain()

	records, err := history.List("ws-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, snap.ID, records[0].ID)
	assert.Equal(t, StateSucceeded, records[0].State)
	assert.Equal(t, "noop", records[0].Prompt)
}
