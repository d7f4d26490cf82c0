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

package api

import (
	"net/http"
	"strconv"

	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/pkg/errors"
)

type specResponse struct {
	Workspace string        `json:"workspace"`
	Version   int           `json:"version"`
	Spec      *spec.ModSpec `json:"spec"`
}

func (s *Server) handleInitSpec(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	var seed spec.ModSpec
	if err := decodeJSON(r, &seed); err != nil {
		s.writeError(w, r, err)
		return
	}
	version, err := s.store.Initialize(workspace, &seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, specResponse{Workspace: workspace, Version: version, Spec: &seed})
}

func (s *Server) handleGetSpec(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	current, version, err := s.store.Current(workspace)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, specResponse{Workspace: workspace, Version: version, Spec: current})
}

func (s *Server) handleGetSpecVersion(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		s.writeError(w, r, &errors.ValidationError{Field: "version", Message: "must be an integer"})
		return
	}
	snapshot, err := s.store.Version(workspace, version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, specResponse{Workspace: workspace, Version: version, Spec: snapshot})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	var req struct {
		Version int `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	newVersion, err := s.store.Rollback(workspace, req.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	current, _, err := s.store.Current(workspace)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, specResponse{Workspace: workspace, Version: newVersion, Spec: current})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.controller.TriggerGenerate(r.Context(), workspace, req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	workspace := r.PathValue("workspace")
	snap, err := s.controller.TriggerBuild(r.Context(), workspace)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	snap, err := s.controller.Get(r.PathValue("run"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModifiedDeltas []spec.Delta `json:"modified_deltas"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.controller.Approve(r.Context(), r.PathValue("run"), req.ModifiedDeltas)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.controller.Reject(r.Context(), r.PathValue("run"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	snap, err := s.controller.Cancel(r.Context(), r.PathValue("run"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []any{}})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, &errors.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := s.history.List(r.PathValue("workspace"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
