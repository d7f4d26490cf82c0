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
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modforge/modforge/internal/compiler"
	"github.com/modforge/modforge/internal/events"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/internal/orchestrator"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/internal/tools"
	"github.com/modforge/modforge/pkg/errors"
)

// Build progress milestones: spec loaded, compiled and planned, then task
// completion fills the window up to just short of done.
const (
	progressSpecLoaded = 20
	progressPlanned    = 30
	progressTasksCeil  = 95
	progressDone       = 100
)

// Controller owns every run and enforces the one-active-run-per-workspace
// rule. Runs execute on background goroutines; the trigger methods return
// as soon as the run is registered.
type Controller struct {
	store    *spec.Store
	proposer orchestrator.Proposer
	exec     *executor.Executor
	bus      *events.Bus
	history  *History
	compat   compiler.CompatConfig
	dataDir  string
	logger   *slog.Logger

	mu          sync.Mutex
	runs        map[string]*Run
	byWorkspace map[string]string

	wg sync.WaitGroup
}

// Config assembles a controller.
type Config struct {
	Store    *spec.Store
	Proposer orchestrator.Proposer
	Executor *executor.Executor
	Bus      *events.Bus

	// History is optional; terminal runs are recorded when set.
	History *History

	Compat  compiler.CompatConfig
	DataDir string
	Logger  *slog.Logger
}

// NewController creates a run controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	compat := cfg.Compat
	if compat.MinecraftVersion == "" {
		compat = compiler.DefaultCompat()
	}
	return &Controller{
		store:       cfg.Store,
		proposer:    cfg.Proposer,
		exec:        cfg.Executor,
		bus:         cfg.Bus,
		history:     cfg.History,
		compat:      compat,
		dataDir:     cfg.DataDir,
		logger:      log.WithComponent(logger, "run"),
		runs:        make(map[string]*Run),
		byWorkspace: make(map[string]string),
	}
}

// Get returns a snapshot of the run.
func (c *Controller) Get(runID string) (Snapshot, error) {
	c.mu.Lock()
	r, ok := c.runs[runID]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, &errors.NotFoundError{Resource: "run", ID: runID}
	}
	return r.Snapshot(), nil
}

// register gates the workspace and records the new run. A run parked in
// AWAITING_INPUT is superseded by the next trigger; any other active run
// is a conflict.
func (c *Controller) register(workspace string, kind Kind, prompt string, cancel context.CancelFunc) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if activeID, ok := c.byWorkspace[workspace]; ok {
		active := c.runs[activeID]
		switch active.currentState() {
		case StateAwaitingInput:
			active.setState(StateCanceled)
			c.finishLocked(active, nil)
			c.bus.Publish(activeID, events.TypeRunStatus, events.StatusPayload{Status: string(StateCanceled)})
			c.bus.Close(activeID)
		default:
			return nil, &errors.RunInProgressError{Workspace: workspace, RunID: activeID}
		}
	}

	r := newRun(uuid.NewString(), workspace, kind, prompt, cancel)
	c.runs[r.id] = r
	c.byWorkspace[workspace] = r.id
	activeRuns.Inc()
	runsStarted.WithLabelValues(string(kind)).Inc()
	return r, nil
}

// finishLocked releases the workspace slot and records terminal
// bookkeeping exactly once. Caller holds c.mu.
func (c *Controller) finishLocked(r *Run, err error) {
	if !r.markFinished() {
		return
	}
	r.cancel()
	if c.byWorkspace[r.workspace] == r.id {
		delete(c.byWorkspace, r.workspace)
	}
	activeRuns.Dec()
	state := r.currentState()
	runsFinished.WithLabelValues(string(r.kind), string(state)).Inc()
	runDuration.WithLabelValues(string(r.kind)).Observe(time.Since(r.createdAt).Seconds())
	if err != nil {
		runFailures.WithLabelValues(errors.Classify(err)).Inc()
	}
	if c.history != nil {
		if herr := c.history.Record(r.Snapshot()); herr != nil {
			c.logger.Warn("recording run history failed",
				slog.String(log.RunIDKey, r.id), log.Error(herr))
		}
	}
}

func (c *Controller) finish(r *Run, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked(r, err)
}

func (c *Controller) publishState(r *Run, s State) {
	r.setState(s)
	c.bus.Publish(r.id, events.TypeRunStatus, events.StatusPayload{Status: string(s)})
}

func (c *Controller) publishProgress(r *Run, p int) {
	r.setProgress(p)
	c.bus.Publish(r.id, events.TypeRunProgress, events.ProgressPayload{Progress: r.Snapshot().Progress})
}

func (c *Controller) publishLog(r *Run, level, phase, message string) {
	r.appendLog(message)
	c.bus.Publish(r.id, events.TypeLogAppend, events.LogPayload{Message: message, Level: level, Phase: phase})
}

// terminate publishes the terminal status, closes the stream, and only
// then makes the terminal state visible on the run. Pollers that observe
// a terminal state can therefore subscribe and rely on the stream ending.
func (c *Controller) terminate(r *Run, s State, err error) {
	c.bus.Publish(r.id, events.TypeRunStatus, events.StatusPayload{Status: string(s)})
	c.bus.Close(r.id)
	r.setState(s)
	c.finish(r, err)
}

// fail moves the run to FAILED with an error event and closes the stream.
func (c *Controller) fail(r *Run, phase string, err error) {
	r.setError(err.Error())
	c.bus.Publish(r.id, events.TypeError, events.ErrorPayload{
		Message: err.Error(),
		Phase:   phase,
		Cause:   errors.Classify(err),
	})
	c.terminate(r, StateFailed, err)
	c.logger.Warn("run failed",
		slog.String(log.RunIDKey, r.id),
		slog.String(log.PhaseKey, phase),
		log.Error(err))
}

// TriggerGenerate starts a generate run for the workspace and returns its
// snapshot immediately.
func (c *Controller) TriggerGenerate(ctx context.Context, workspace, prompt string) (Snapshot, error) {
	if prompt == "" {
		return Snapshot{}, &errors.ValidationError{Field: "prompt", Message: "must not be empty"}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r, err := c.register(workspace, KindGenerate, prompt, cancel)
	if err != nil {
		cancel()
		return Snapshot{}, err
	}

	c.bus.Publish(r.id, events.TypeRunStatus, events.StatusPayload{Status: string(StateQueued)})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runGenerate(runCtx, r)
	}()
	return r.Snapshot(), nil
}

func (c *Controller) runGenerate(ctx context.Context, r *Run) {
	logger := log.WithRunContext(c.logger, r.id, r.workspace)
	c.publishState(r, StateRunning)
	c.publishLog(r, "info", "propose", "interpreting request")

	current, version, err := c.store.Current(r.workspace)
	if err != nil {
		c.fail(r, "propose", err)
		return
	}
	doc, err := spec.ToDocument(current)
	if err != nil {
		c.fail(r, "propose", err)
		return
	}

	proposal, err := c.proposer.Propose(ctx, orchestrator.ProposeRequest{
		WorkspaceID: r.workspace,
		Prompt:      r.prompt,
		CurrentSpec: doc,
		SpecVersion: version,
	})
	if err != nil {
		if ctx.Err() != nil {
			c.complete(r, StateCanceled)
			return
		}
		c.fail(r, "propose", err)
		return
	}

	if proposal.NeedsInput() {
		r.setQuestions(proposal.ClarifyingQuestions)
		c.bus.Publish(r.id, events.TypeAwaitingInput, events.AwaitingInputPayload{
			ClarifyingQuestions: proposal.ClarifyingQuestions,
			Reasoning:           proposal.Reasoning,
		})
		c.publishState(r, StateAwaitingInput)
		logger.Info("run awaiting input", slog.Int("questions", len(proposal.ClarifyingQuestions)))
		return
	}

	deltas := proposal.Deltas
	if proposal.Batch != nil {
		// Batch indices are computed against the current spec, so the
		// expansion goes first and explicit path deltas apply after it.
		expanded, err := proposal.Batch.Expand(current)
		if err != nil {
			c.fail(r, "propose", err)
			return
		}
		deltas = append(expanded, deltas...)
	}

	if len(deltas) == 0 {
		c.publishLog(r, "info", "propose", "request required no spec changes")
		c.publishProgress(r, progressDone)
		c.complete(r, StateSucceeded)
		return
	}

	// Validate the proposed deltas against a scratch copy before parking
	// for approval, so approve cannot fail on a malformed proposal.
	scratch := spec.CopyDocument(doc)
	for _, delta := range deltas {
		if scratch, err = spec.Apply(scratch, delta); err != nil {
			c.fail(r, "propose", err)
			return
		}
	}

	for i, delta := range deltas {
		c.bus.Publish(r.id, events.TypeSpecPreview, events.SpecPreviewPayload{
			Delta:       delta,
			DeltaIndex:  i,
			TotalDeltas: len(deltas),
		})
	}
	r.setPendingDeltas(deltas)
	c.bus.Publish(r.id, events.TypeAwaitingApproval, events.AwaitingApprovalPayload{
		PendingDeltas: deltas,
		DeltasCount:   len(deltas),
	})
	c.publishState(r, StateAwaitingApproval)
	logger.Info("run awaiting approval", slog.Int("deltas", len(deltas)))
}

// complete moves the run to a terminal state and closes its stream.
func (c *Controller) complete(r *Run, s State) {
	c.terminate(r, s, nil)
}

// Approve applies a run's pending deltas and completes it. Valid only in
// AWAITING_APPROVAL. A non-empty modified set replaces the pending deltas
// wholesale; it is validated against the current spec first, and a
// validation failure leaves the run parked.
func (c *Controller) Approve(ctx context.Context, runID string, modified []spec.Delta) (Snapshot, error) {
	c.mu.Lock()
	r, ok := c.runs[runID]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, &errors.NotFoundError{Resource: "run", ID: runID}
	}

	if len(modified) > 0 {
		if err := c.validateDeltas(r.workspace, modified); err != nil {
			return Snapshot{}, err
		}
	}

	if !r.compareAndSetState(StateAwaitingApproval, StateRunning) {
		return Snapshot{}, &errors.RunStateError{RunID: runID, State: string(r.currentState()), Op: "approve"}
	}
	c.bus.Publish(runID, events.TypeRunStatus, events.StatusPayload{Status: string(StateRunning)})

	deltas := r.takePendingDeltas()
	if len(modified) > 0 {
		deltas = modified
	}
	updated, version, err := c.store.ApplyDeltas(r.workspace, deltas)
	if err != nil {
		c.fail(r, "save", err)
		return Snapshot{}, err
	}

	c.bus.Publish(runID, events.TypeSpecSaved, events.SpecSavedPayload{
		SpecVersion: version,
		ItemsCount:  len(updated.Items),
		BlocksCount: len(updated.Blocks),
		ToolsCount:  len(updated.Tools),
	})
	c.publishProgress(r, progressDone)
	c.complete(r, StateSucceeded)
	c.logger.Info("spec updated",
		slog.String(log.RunIDKey, runID),
		slog.String(log.WorkspaceKey, r.workspace),
		slog.Int("spec_version", version))
	return r.Snapshot(), nil
}

// Reject discards a run's pending deltas, recording the caller's reason
// when one is given. Valid only in AWAITING_APPROVAL.
func (c *Controller) Reject(_ context.Context, runID, reason string) (Snapshot, error) {
	c.mu.Lock()
	r, ok := c.runs[runID]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, &errors.NotFoundError{Resource: "run", ID: runID}
	}
	if !r.compareAndSetState(StateAwaitingApproval, StateRejected) {
		return Snapshot{}, &errors.RunStateError{RunID: runID, State: string(r.currentState()), Op: "reject"}
	}
	r.takePendingDeltas()
	r.setRejectReason(reason)
	c.bus.Publish(runID, events.TypeRunStatus, events.StatusPayload{Status: string(StateRejected)})
	c.finish(r, nil)
	c.bus.Close(runID)
	return r.Snapshot(), nil
}

// validateDeltas dry-runs a delta sequence against the workspace's current
// spec without committing anything.
func (c *Controller) validateDeltas(workspace string, deltas []spec.Delta) error {
	current, _, err := c.store.Current(workspace)
	if err != nil {
		return err
	}
	doc, err := spec.ToDocument(current)
	if err != nil {
		return err
	}
	scratch := spec.CopyDocument(doc)
	for _, delta := range deltas {
		if scratch, err = spec.Apply(scratch, delta); err != nil {
			return err
		}
	}
	return nil
}

// Cancel stops a non-terminal run. Parked runs transition immediately;
// executing runs are cancelled cooperatively and transition when their
// goroutine observes the cancellation. A run holding pending deltas exits
// only through approve or reject, so AWAITING_APPROVAL is a conflict.
func (c *Controller) Cancel(_ context.Context, runID string) (Snapshot, error) {
	c.mu.Lock()
	r, ok := c.runs[runID]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, &errors.NotFoundError{Resource: "run", ID: runID}
	}

	switch state := r.currentState(); state {
	case StateQueued, StateAwaitingInput:
		if !r.compareAndSetState(state, StateCanceled) {
			return Snapshot{}, &errors.RunStateError{RunID: runID, State: string(r.currentState()), Op: "cancel"}
		}
		r.cancel()
		r.takePendingDeltas()
		c.bus.Publish(runID, events.TypeRunStatus, events.StatusPayload{Status: string(StateCanceled)})
		c.finish(r, nil)
		c.bus.Close(runID)
	case StateRunning:
		r.cancel()
	default:
		return Snapshot{}, &errors.RunStateError{RunID: runID, State: string(state), Op: "cancel"}
	}
	return r.Snapshot(), nil
}

// TriggerBuild starts a build run for the workspace's current spec.
func (c *Controller) TriggerBuild(ctx context.Context, workspace string) (Snapshot, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r, err := c.register(workspace, KindBuild, "", cancel)
	if err != nil {
		cancel()
		return Snapshot{}, err
	}

	c.bus.Publish(r.id, events.TypeRunStatus, events.StatusPayload{Status: string(StateQueued)})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runBuild(runCtx, r)
	}()
	return r.Snapshot(), nil
}

func (c *Controller) runBuild(ctx context.Context, r *Run) {
	logger := log.WithRunContext(c.logger, r.id, r.workspace)
	c.publishState(r, StateRunning)
	c.publishProgress(r, 0)
	c.publishLog(r, "info", "compile", "loading spec")

	current, version, err := c.store.Current(r.workspace)
	if err != nil {
		c.fail(r, "compile", err)
		return
	}
	c.publishProgress(r, progressSpecLoaded)

	m, err := compiler.Compile(current, c.compat, version)
	if err != nil {
		c.fail(r, "compile", err)
		return
	}
	c.publishLog(r, "info", "plan", fmt.Sprintf("compiled %d elements at spec version %d", m.ElementCount(), version))

	dag, err := planner.Plan(m)
	if err != nil {
		c.fail(r, "plan", err)
		return
	}
	r.setTasks(len(dag.Tasks), 0)
	c.publishProgress(r, progressPlanned)

	runDir := filepath.Join(c.dataDir, "runs", r.id)
	runContext := map[string]any{
		tools.ParamWorkspaceDir: filepath.Join(runDir, "workspace"),
		tools.ParamArtifactsDir: filepath.Join(runDir, "artifacts"),
		tools.ParamIR:           m,
	}

	sink := &progressSink{controller: c, run: r, total: len(dag.Tasks)}
	outputs, err := c.exec.Execute(ctx, r.id, dag, runContext, sink)
	if err != nil {
		if ctx.Err() != nil {
			c.publishLog(r, "warn", "execute", "run cancelled")
			c.complete(r, StateCanceled)
			return
		}
		c.fail(r, "execute", err)
		return
	}

	buildOut := outputs[planner.KindBuild]
	artifact := &Artifact{
		ID:       asString(buildOut["artifact_id"]),
		Path:     asString(buildOut["artifact_path"]),
		FileName: asString(buildOut["file_name"]),
		Size:     asInt64(buildOut["file_size"]),
	}
	r.setArtifact(artifact)
	c.bus.Publish(r.id, events.TypeArtifactCreated, events.ArtifactPayload{
		ArtifactID:   artifact.ID,
		FileName:     artifact.FileName,
		ArtifactType: "jar",
		FileSize:     artifact.Size,
	})
	c.publishProgress(r, progressDone)
	c.complete(r, StateSucceeded)
	logger.Info("build run succeeded",
		slog.String("artifact", artifact.FileName),
		slog.Int64("bytes", artifact.Size))
}

// progressSink forwards task events to the bus and maps task completion
// onto the build progress window.
type progressSink struct {
	controller *Controller
	run        *Run
	total      int

	mu        sync.Mutex
	completed int
}

func (s *progressSink) Publish(runID string, typ events.Type, payload any) events.Event {
	ev := s.controller.bus.Publish(runID, typ, payload)
	if typ != events.TypeTaskFinished {
		return ev
	}

	s.mu.Lock()
	s.completed++
	completed := s.completed
	s.mu.Unlock()

	if tp, ok := payload.(events.TaskPayload); ok {
		outcome := "succeeded"
		if tp.Error != "" {
			outcome = "failed"
		}
		tasksFinished.WithLabelValues(tp.Kind, outcome).Inc()
	}

	s.run.setTasks(s.total, completed)
	window := progressTasksCeil - progressPlanned
	s.controller.publishProgress(s.run, progressPlanned+window*completed/s.total)
	return ev
}

// Drain waits for all in-flight run goroutines to settle. Used on daemon
// shutdown after the listener stops accepting triggers.
func (c *Controller) Drain() {
	c.wg.Wait()
}

// Active returns the active run id for a workspace, if any.
func (c *Controller) Active(workspace string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byWorkspace[workspace]
	return id, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
