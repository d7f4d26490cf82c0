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

package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/modforge/modforge/pkg/errors"
	"github.com/modforge/modforge/schemas"
)

// VersionEntry is one record in a workspace's immutable version log.
type VersionEntry struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	SpecHash  string    `json:"spec_hash"`
	Notes     string    `json:"notes,omitempty"`
	Delta     *Delta    `json:"delta,omitempty"`
	Spec      Document  `json:"spec"`
}

// Store holds exactly one current ModSpec per workspace plus an append-only
// version history. Writes for one workspace serialize under a per-workspace
// mutex; reads of the current spec are linearizable with delta applications.
//
// Layout on disk:
//
//	<dataDir>/workspace/<id>/spec/current.json
//	<dataDir>/workspace/<id>/spec/history/<n>.json
type Store struct {
	dataDir string
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dataDir.
func NewStore(dataDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dataDir: dataDir,
		logger:  logger.With("component", "spec_store"),
		locks:   make(map[string]*sync.Mutex),
	}
}

// workspaceLock returns the mutex serializing writes for one workspace.
func (s *Store) workspaceLock(workspace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[workspace]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[workspace] = lock
	}
	return lock
}

func (s *Store) specDir(workspace string) string {
	return filepath.Join(s.dataDir, "workspace", workspace, "spec")
}

// Initialize establishes version 1 for a workspace from a seed spec.
// Fails if a spec already exists. The seed is validated against the
// embedded mod spec JSON Schema before anything is written.
func (s *Store) Initialize(workspace string, seed *ModSpec) (int, error) {
	lock := s.workspaceLock(workspace)
	lock.Lock()
	defer lock.Unlock()

	current := filepath.Join(s.specDir(workspace), "current.json")
	if _, err := os.Stat(current); err == nil {
		return 0, &errors.ValidationError{
			Field:   "workspace",
			Message: fmt.Sprintf("workspace %s already has a spec", workspace),
		}
	}

	doc, err := ToDocument(seed)
	if err != nil {
		return 0, err
	}
	if err := validateDocument(doc); err != nil {
		return 0, err
	}

	if err := s.writeVersion(workspace, doc, 1, nil, "initialized"); err != nil {
		return 0, err
	}
	s.logger.Info("workspace spec initialized", "workspace", workspace)
	return 1, nil
}

// ApplyDelta parses and validates a delta, applies it atomically, persists
// the result, and appends a version entry. The returned spec is the new
// current spec.
func (s *Store) ApplyDelta(workspace string, delta Delta) (*ModSpec, int, error) {
	lock := s.workspaceLock(workspace)
	lock.Lock()
	defer lock.Unlock()

	doc, version, err := s.loadCurrent(workspace)
	if err != nil {
		return nil, 0, err
	}

	next, err := Apply(doc, delta)
	if err != nil {
		return nil, 0, err
	}

	newVersion := version + 1
	if err := s.writeVersion(workspace, next, newVersion, &delta, ""); err != nil {
		return nil, 0, err
	}

	result, err := FromDocument(next)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Info("delta applied",
		"workspace", workspace,
		"operation", string(delta.Operation),
		"path", delta.Path,
		"version", newVersion,
	)
	return result, newVersion, nil
}

// ApplyDeltas applies a sequence of deltas as one atomic unit: either all
// apply (each producing a version entry) or none do. Used by the approval
// path, which commits every pending delta of a generate run together.
func (s *Store) ApplyDeltas(workspace string, deltas []Delta) (*ModSpec, int, error) {
	lock := s.workspaceLock(workspace)
	lock.Lock()
	defer lock.Unlock()

	doc, version, err := s.loadCurrent(workspace)
	if err != nil {
		return nil, 0, err
	}

	// Apply all in memory first so a failure midway leaves the log untouched.
	docs := make([]Document, 0, len(deltas))
	next := doc
	for i, delta := range deltas {
		next, err = Apply(next, delta)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "delta %d", i)
		}
		docs = append(docs, next)
	}

	for i, snapshot := range docs {
		delta := deltas[i]
		if err := s.writeVersion(workspace, snapshot, version+i+1, &delta, ""); err != nil {
			return nil, 0, err
		}
	}

	newVersion := version + len(deltas)
	result, err := FromDocument(next)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Info("deltas applied", "workspace", workspace, "count", len(deltas), "version", newVersion)
	return result, newVersion, nil
}

// Current returns the current spec and its version number.
func (s *Store) Current(workspace string) (*ModSpec, int, error) {
	lock := s.workspaceLock(workspace)
	lock.Lock()
	defer lock.Unlock()

	doc, version, err := s.loadCurrent(workspace)
	if err != nil {
		return nil, 0, err
	}
	result, err := FromDocument(doc)
	if err != nil {
		return nil, 0, err
	}
	return result, version, nil
}

// Version returns the spec content at a historic version.
func (s *Store) Version(workspace string, n int) (*ModSpec, error) {
	entry, err := s.loadEntry(workspace, n)
	if err != nil {
		return nil, err
	}
	return FromDocument(entry.Spec)
}

// Rollback loads the spec at version n and writes it as a new version.
// History is never deleted.
func (s *Store) Rollback(workspace string, n int) (int, error) {
	lock := s.workspaceLock(workspace)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.loadEntry(workspace, n)
	if err != nil {
		return 0, err
	}
	_, version, err := s.loadCurrent(workspace)
	if err != nil {
		return 0, err
	}

	newVersion := version + 1
	notes := fmt.Sprintf("rollback to version %d", n)
	if err := s.writeVersion(workspace, entry.Spec, newVersion, nil, notes); err != nil {
		return 0, err
	}
	s.logger.Info("spec rolled back", "workspace", workspace, "to_version", n, "new_version", newVersion)
	return newVersion, nil
}

// loadCurrent reads the workspace's current document and version (caller
// holds the workspace lock).
func (s *Store) loadCurrent(workspace string) (Document, int, error) {
	raw, err := os.ReadFile(filepath.Join(s.specDir(workspace), "current.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, &errors.NotFoundError{Resource: "spec", ID: workspace}
		}
		return nil, 0, errors.Wrap(err, "reading current spec")
	}

	var stored struct {
		Version int      `json:"version"`
		Spec    Document `json:"spec"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, 0, errors.Wrap(err, "decoding current spec")
	}
	return stored.Spec, stored.Version, nil
}

func (s *Store) loadEntry(workspace string, n int) (*VersionEntry, error) {
	path := filepath.Join(s.specDir(workspace), "history", fmt.Sprintf("%d.json", n))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "spec version", ID: fmt.Sprintf("%s@%d", workspace, n)}
		}
		return nil, errors.Wrap(err, "reading spec version")
	}
	var entry VersionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, errors.Wrap(err, "decoding spec version")
	}
	return &entry, nil
}

// writeVersion persists a history entry and atomically replaces current.json
// (caller holds the workspace lock).
func (s *Store) writeVersion(workspace string, doc Document, version int, delta *Delta, notes string) error {
	dir := s.specDir(workspace)
	if err := os.MkdirAll(filepath.Join(dir, "history"), 0o755); err != nil {
		return errors.Wrap(err, "creating spec directory")
	}

	entry := VersionEntry{
		Version:   version,
		Timestamp: time.Now().UTC(),
		SpecHash:  HashDocument(doc),
		Notes:     notes,
		Delta:     delta,
		Spec:      doc,
	}

	entryRaw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding version entry")
	}
	historyPath := filepath.Join(dir, "history", fmt.Sprintf("%d.json", version))
	if err := os.WriteFile(historyPath, entryRaw, 0o644); err != nil {
		return errors.Wrap(err, "writing version entry")
	}

	currentRaw, err := json.MarshalIndent(map[string]any{
		"version": version,
		"spec":    doc,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding current spec")
	}
	tmp := filepath.Join(dir, "current.json.tmp")
	if err := os.WriteFile(tmp, currentRaw, 0o644); err != nil {
		return errors.Wrap(err, "writing current spec")
	}
	return os.Rename(tmp, filepath.Join(dir, "current.json"))
}

// HashDocument returns the deterministic content hash of a document.
// encoding/json sorts map keys, so equal documents hash equal.
func HashDocument(doc Document) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// validateDocument checks a spec document against the embedded JSON Schema.
func validateDocument(doc Document) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemas.ModSpecSchema())
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return errors.Wrap(err, "running schema validation")
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return &errors.ValidationError{
			Field:   first.Field(),
			Message: first.Description(),
		}
	}
	return nil
}
