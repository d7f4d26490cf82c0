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
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/modforge/modforge/pkg/errors"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	workspace       TEXT NOT NULL,
	kind            TEXT NOT NULL,
	state           TEXT NOT NULL,
	prompt          TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	artifact_file   TEXT NOT NULL DEFAULT '',
	artifact_size   INTEGER NOT NULL DEFAULT 0,
	tasks_total     INTEGER NOT NULL DEFAULT 0,
	tasks_completed INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_workspace ON runs(workspace, created_at DESC);
`

// History persists terminal run records to SQLite so past runs survive a
// daemon restart. Live runs are never stored; the controller records a run
// once, when it finishes.
type History struct {
	db *sql.DB
}

// OpenHistory opens (and migrates) the run history database.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "opening run history")
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent recorders.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating run history")
	}
	return &History{db: db}, nil
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record stores a terminal run snapshot.
func (h *History) Record(snap Snapshot) error {
	var artifactFile string
	var artifactSize int64
	if snap.Artifact != nil {
		artifactFile = snap.Artifact.FileName
		artifactSize = snap.Artifact.Size
	}
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO runs
			(id, workspace, kind, state, prompt, error, artifact_file, artifact_size,
			 tasks_total, tasks_completed, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Workspace, string(snap.Kind), string(snap.State),
		snap.Prompt, snap.Error, artifactFile, artifactSize,
		snap.TasksTotal, snap.TasksCompleted,
		snap.CreatedAt.UTC(), snap.UpdatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "recording run")
	}
	return nil
}

// List returns the workspace's recorded runs, newest first.
func (h *History) List(workspace string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(`
		SELECT id, workspace, kind, state, prompt, error, artifact_file, artifact_size,
		       tasks_total, tasks_completed, created_at, finished_at
		FROM runs WHERE workspace = ? ORDER BY created_at DESC LIMIT ?`,
		workspace, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var kind, state, artifactFile string
		var artifactSize int64
		var createdAt, finishedAt time.Time
		if err := rows.Scan(&snap.ID, &snap.Workspace, &kind, &state,
			&snap.Prompt, &snap.Error, &artifactFile, &artifactSize,
			&snap.TasksTotal, &snap.TasksCompleted, &createdAt, &finishedAt); err != nil {
			return nil, errors.Wrap(err, "scanning run row")
		}
		snap.Kind = Kind(kind)
		snap.State = State(state)
		snap.CreatedAt = createdAt
		snap.UpdatedAt = finishedAt
		if artifactFile != "" {
			snap.Artifact = &Artifact{FileName: artifactFile, Size: artifactSize}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
