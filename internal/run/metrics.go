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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modforge",
		Name:      "runs_started_total",
		Help:      "Runs started, by kind.",
	}, []string{"kind"})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modforge",
		Name:      "runs_finished_total",
		Help:      "Runs reaching a terminal state, by kind and state.",
	}, []string{"kind", "state"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modforge",
		Name:      "run_duration_seconds",
		Help:      "Wall time from trigger to terminal state.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"kind"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modforge",
		Name:      "run_failures_total",
		Help:      "Failed runs, by error class.",
	}, []string{"class"})

	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modforge",
		Name:      "tasks_finished_total",
		Help:      "Executed tasks, by kind and outcome.",
	}, []string{"kind", "outcome"})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "modforge",
		Name:      "active_runs",
		Help:      "Runs currently in a non-terminal state.",
	})
)
