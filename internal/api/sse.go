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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/pkg/errors"
)

// handleEvents streams a run's events as SSE. The optional since query
// parameter resumes after a previously delivered sequence number; the
// stream replays the retained backlog first, then follows live events
// until the run's stream closes or the client disconnects. Event ids
// carry the sequence number so clients can resume with since=<id>.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run")

	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, r, &errors.ValidationError{Field: "since", Message: "must be a non-negative integer"})
			return
		}
		since = n
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New("streaming unsupported by connection"))
		return
	}

	ch, cancel, err := s.bus.Subscribe(runID, since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("dropping unencodable event",
					slog.String(log.RunIDKey, runID), log.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %d\n", ev.Seq)
			fmt.Fprintf(w, "event: %s\n", ev.Type)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
