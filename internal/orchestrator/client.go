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

// Package orchestrator turns natural-language requests into proposed spec
// deltas through the external orchestrator service.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/pkg/errors"
)

// ProposeRequest carries the user's prompt and the spec it applies to.
type ProposeRequest struct {
	WorkspaceID string        `json:"workspace_id"`
	Prompt      string        `json:"prompt"`
	CurrentSpec spec.Document `json:"current_spec"`
	SpecVersion int           `json:"spec_version"`
}

// Proposal is the orchestrator's answer: either changes to apply, or
// clarifying questions when the prompt was too ambiguous to act on.
// Neither means the prompt required no changes. Changes arrive as path
// deltas, as the older batch schema, or both; the controller expands a
// batch to path deltas against the current spec before validation.
type Proposal struct {
	Deltas              []spec.Delta     `json:"deltas"`
	Batch               *spec.BatchDelta `json:"batch,omitempty"`
	ClarifyingQuestions []string         `json:"clarifying_questions,omitempty"`
	Reasoning           string           `json:"reasoning,omitempty"`
}

// NeedsInput reports whether the orchestrator asked for clarification
// instead of proposing changes.
func (p *Proposal) NeedsInput() bool {
	return len(p.Deltas) == 0 && p.Batch == nil && len(p.ClarifyingQuestions) > 0
}

// Proposer is the interface the run controller depends on.
type Proposer interface {
	Propose(ctx context.Context, req ProposeRequest) (*Proposal, error)
}

// Client calls the orchestrator service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientConfig tunes the orchestrator client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates an orchestrator client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  log.WithComponent(logger, "orchestrator"),
	}
}

// Propose implements Proposer. A response that parses but carries neither
// deltas nor questions is returned as-is; the controller treats it as a
// benign no-change outcome. A malformed response is degraded to a generic
// clarifying question rather than failing the run.
func (c *Client) Propose(ctx context.Context, req ProposeRequest) (*Proposal, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding propose request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/propose", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building propose request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "calling orchestrator")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(fmt.Sprintf("orchestrator returned %d: %s", resp.StatusCode, snippet))
	}

	var proposal Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		c.logger.Warn("malformed orchestrator response, asking for clarification",
			slog.String(log.WorkspaceKey, req.WorkspaceID),
			log.Error(err))
		return &Proposal{
			ClarifyingQuestions: []string{"Could you rephrase what you would like to change in the mod?"},
			Reasoning:           "the previous request could not be interpreted",
		}, nil
	}

	c.logger.Debug("proposal received",
		slog.String(log.WorkspaceKey, req.WorkspaceID),
		slog.Int("deltas", len(proposal.Deltas)),
		slog.Int("questions", len(proposal.ClarifyingQuestions)),
		log.Duration("duration", time.Since(started).Milliseconds()))
	return &proposal, nil
}
