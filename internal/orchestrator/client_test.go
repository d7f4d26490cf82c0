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

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/internal/spec"
)

func TestClientPropose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/propose", r.URL.Path)

		var req ProposeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ws-1", req.WorkspaceID)
		assert.Equal(t, "add a ruby sword", req.Prompt)

		json.NewEncoder(w).Encode(Proposal{
			Deltas: []spec.Delta{
				{Operation: spec.OpAdd, Path: "tools[0]", Value: map[string]any{"tool_name": "Ruby Sword"}},
			},
			Reasoning: "added the requested tool",
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	p, err := c.Propose(context.Background(), ProposeRequest{
		WorkspaceID: "ws-1",
		Prompt:      "add a ruby sword",
		CurrentSpec: spec.Document{"mod_name": "Ruby Mod"},
		SpecVersion: 1,
	})
	require.NoError(t, err)
	require.Len(t, p.Deltas, 1)
	assert.Equal(t, "tools[0]", p.Deltas[0].Path)
	assert.False(t, p.NeedsInput())
}

func TestClientProposeDecodesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"batch": map[string]any{
				"add_items": []map[string]any{{"item_name": "Sapphire"}},
			},
			"reasoning": "batch schema",
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	p, err := c.Propose(context.Background(), ProposeRequest{WorkspaceID: "ws-1", Prompt: "add a sapphire"})
	require.NoError(t, err)
	require.NotNil(t, p.Batch)
	require.Len(t, p.Batch.AddItems, 1)
	assert.Equal(t, "Sapphire", p.Batch.AddItems[0].ItemName)
	assert.False(t, p.NeedsInput())
}

func TestClientProposeMalformedResponseDegradesToQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	p, err := c.Propose(context.Background(), ProposeRequest{WorkspaceID: "ws-1", Prompt: "???"})
	require.NoError(t, err)
	assert.True(t, p.NeedsInput())
	assert.NotEmpty(t, p.ClarifyingQuestions)
}

func TestClientProposeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	_, err := c.Propose(context.Background(), ProposeRequest{WorkspaceID: "ws-1", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestProposalNeedsInput(t *testing.T) {
	assert.False(t, (&Proposal{}).NeedsInput(), "empty proposal is a no-change outcome")
	assert.True(t, (&Proposal{ClarifyingQuestions: []string{"which color?"}}).NeedsInput())
	assert.False(t, (&Proposal{
		Deltas:              []spec.Delta{{Operation: spec.OpAdd, Path: "items[0]"}},
		ClarifyingQuestions: []string{"ignored"},
	}).NeedsInput(), "deltas win over questions")
	assert.False(t, (&Proposal{
		Batch:               &spec.BatchDelta{AddItems: []spec.ItemSpec{{ItemName: "Ruby"}}},
		ClarifyingQuestions: []string{"ignored"},
	}).NeedsInput(), "a batch also counts as proposed changes")
}
