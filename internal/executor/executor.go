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

package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/modforge/modforge/internal/events"
	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/pkg/errors"
)

const (
	// DefaultFanOut bounds how many parallelizable tasks run at once.
	DefaultFanOut = 4

	// DefaultTaskTimeout applies to any kind without an explicit entry.
	DefaultTaskTimeout = 30 * time.Second

	// Texture generation calls an external service; builds invoke gradle.
	DefaultTextureTimeout = 90 * time.Second
	DefaultBuildTimeout   = 10 * time.Minute
)

// Config tunes the executor. Zero values take the defaults above.
type Config struct {
	FanOut      int
	TaskTimeout time.Duration

	// KindTimeouts overrides the timeout per task kind.
	KindTimeouts map[string]time.Duration
}

// Sink receives task lifecycle events. *events.Bus satisfies it.
type Sink interface {
	Publish(runID string, typ events.Type, payload any) events.Event
}

// Outputs is the per-run output table, keyed by task id.
type Outputs map[string]map[string]any

// Executor dispatches ready tasks from a DAG to registered tools. Within
// the ready set, higher-priority tasks dispatch first. Parallelizable
// tasks share the fan-out budget; a serial task runs alone. The first
// failure stops new dispatch and in-flight tasks drain before Execute
// returns.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
	cfg      Config
}

// New creates an executor over the given tool registry.
func New(registry *Registry, cfg Config, logger *slog.Logger) *Executor {
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultFanOut
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.KindTimeouts == nil {
		cfg.KindTimeouts = map[string]time.Duration{
			planner.KindGenerateTexture: DefaultTextureTimeout,
			planner.KindBuild:           DefaultBuildTimeout,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry: registry,
		logger:   log.WithComponent(logger, "executor"),
		cfg:      cfg,
	}
}

type result struct {
	task    *planner.Task
	outputs map[string]any
	err     error
}

// Execute runs the DAG to completion, failure, or cancellation. Task
// statuses are updated in place; the output table holds the outputs of
// every task that succeeded, including ones that finished while a failure
// drained.
func (e *Executor) Execute(ctx context.Context, runID string, dag *planner.DAG, runContext map[string]any, sink Sink) (Outputs, error) {
	outputs := make(Outputs)
	succeeded := make(map[string]bool)
	results := make(chan result)

	inFlight := 0
	parallelActive := 0
	serialActive := false
	var firstErr error

	for {
		if firstErr == nil && ctx.Err() == nil && !serialActive {
			for _, task := range e.ready(dag, succeeded) {
				if !task.Parallelizable {
					if inFlight > 0 {
						continue
					}
					serialActive = true
				} else {
					if parallelActive >= e.cfg.FanOut {
						continue
					}
					parallelActive++
				}
				task.Status = planner.TaskRunning
				inFlight++
				e.dispatch(ctx, runID, task, runContext, sink, results)
				if serialActive {
					break
				}
			}
		}

		if inFlight == 0 {
			if firstErr != nil || ctx.Err() != nil {
				break
			}
			pending := pendingIDs(dag)
			if len(pending) == 0 {
				break
			}
			// Work remains but nothing is ready and nothing is running.
			firstErr = &errors.DeadlockError{Pending: pending}
			break
		}

		r := <-results
		inFlight--
		if r.task.Parallelizable {
			parallelActive--
		} else {
			serialActive = false
		}

		if r.err != nil {
			r.task.Status = planner.TaskFailed
			e.logger.Warn("task failed",
				slog.String(log.RunIDKey, runID),
				slog.String(log.TaskIDKey, r.task.ID),
				slog.String("kind", r.task.Kind),
				log.Error(r.err))
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}

		r.task.Status = planner.TaskSucceeded
		succeeded[r.task.ID] = true
		if r.outputs != nil {
			outputs[r.task.ID] = r.outputs
		}
	}

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	return outputs, firstErr
}

// ready returns pending tasks whose dependencies have all succeeded,
// ordered by priority descending, then id for determinism.
func (e *Executor) ready(dag *planner.DAG, succeeded map[string]bool) []*planner.Task {
	var out []*planner.Task
	for _, task := range dag.Tasks {
		if task.Status != planner.TaskPending {
			continue
		}
		ok := true
		for _, dep := range task.DependsOn {
			if !succeeded[dep] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func pendingIDs(dag *planner.DAG) []string {
	var out []string
	for _, task := range dag.Tasks {
		if task.Status == planner.TaskPending {
			out = append(out, task.ID)
		}
	}
	return out
}

func (e *Executor) dispatch(ctx context.Context, runID string, task *planner.Task, runContext map[string]any, sink Sink, results chan<- result) {
	e.logger.Debug("dispatching task",
		slog.String(log.RunIDKey, runID),
		slog.String(log.TaskIDKey, task.ID),
		slog.String("kind", task.Kind))

	go func() {
		started := time.Now()
		sink.Publish(runID, events.TypeTaskStarted, events.TaskPayload{
			TaskID: task.ID,
			Kind:   task.Kind,
		})

		out, err := e.invoke(ctx, runID, task, runContext)

		finished := events.TaskPayload{
			TaskID:     task.ID,
			Kind:       task.Kind,
			DurationMS: time.Since(started).Milliseconds(),
		}
		if err != nil {
			finished.Error = err.Error()
		}
		sink.Publish(runID, events.TypeTaskFinished, finished)
		results <- result{task: task, outputs: out, err: err}
	}()
}

// invoke binds parameters and runs the tool under the kind's timeout.
func (e *Executor) invoke(ctx context.Context, runID string, task *planner.Task, runContext map[string]any) (map[string]any, error) {
	tool, ok := e.registry.Get(task.Kind)
	if !ok {
		return nil, errors.New(fmt.Sprintf("no tool registered for kind %q", task.Kind))
	}

	params, err := bind(tool, task.Inputs, runContext)
	if err != nil {
		return nil, err
	}

	timeout := e.timeoutFor(task.Kind)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := tool.Execute(tctx, Invocation{RunID: runID, TaskID: task.ID, Params: params})
	if err != nil {
		if stderrors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &errors.TimeoutError{Operation: task.ID, Duration: timeout, Cause: err}
		}
		var te *errors.ToolError
		if stderrors.As(err, &te) {
			return nil, err
		}
		return nil, &errors.ToolError{Tool: task.Kind, TaskID: task.ID, Message: err.Error(), Cause: err}
	}
	return out, nil
}

func (e *Executor) timeoutFor(kind string) time.Duration {
	if d, ok := e.cfg.KindTimeouts[kind]; ok && d > 0 {
		return d
	}
	return e.cfg.TaskTimeout
}
