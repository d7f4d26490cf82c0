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

// Package api exposes the daemon's HTTP surface: workspace spec
// management, run triggers and lifecycle operations, the SSE event
// stream, and metrics.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modforge/modforge/internal/events"
	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/internal/run"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/pkg/errors"
)

// Server routes HTTP requests to the run controller and spec store.
type Server struct {
	controller *run.Controller
	store      *spec.Store
	bus        *events.Bus
	history    *run.History
	logger     *slog.Logger
}

// New creates the API server. History may be nil.
func New(controller *run.Controller, store *spec.Store, bus *events.Bus, history *run.History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		controller: controller,
		store:      store,
		bus:        bus,
		history:    history,
		logger:     log.WithComponent(logger, "api"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/workspaces/{workspace}/spec", s.handleInitSpec)
	mux.HandleFunc("GET /v1/workspaces/{workspace}/spec", s.handleGetSpec)
	mux.HandleFunc("GET /v1/workspaces/{workspace}/spec/versions/{version}", s.handleGetSpecVersion)
	mux.HandleFunc("POST /v1/workspaces/{workspace}/spec/rollback", s.handleRollback)

	mux.HandleFunc("POST /v1/workspaces/{workspace}/generate", s.handleGenerate)
	mux.HandleFunc("POST /v1/workspaces/{workspace}/build", s.handleBuild)
	mux.HandleFunc("GET /v1/workspaces/{workspace}/runs", s.handleListRuns)

	mux.HandleFunc("GET /v1/runs/{run}", s.handleGetRun)
	mux.HandleFunc("POST /v1/runs/{run}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/runs/{run}/reject", s.handleReject)
	mux.HandleFunc("DELETE /v1/runs/{run}", s.handleCancel)
	mux.HandleFunc("GET /v1/runs/{run}/events", s.handleEvents)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withLogging(mux)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Error struct {
		Class   string `json:"class"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class := errors.Classify(err)
	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsConflict(err):
		status = http.StatusConflict
	case errors.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			log.Error(err))
	}

	var body errorBody
	body.Error.Class = class
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

// decodeJSON reads a request body into dst with unknown fields rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &errors.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body is optional:
// an empty body leaves dst at its zero value.
func decodeOptionalJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return &errors.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}
