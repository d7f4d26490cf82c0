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

package texture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGenerate(t *testing.T) {
	want := [][]byte{[]byte("variant-zero"), []byte("variant-one")}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/textures/generate", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a ruby", req.Prompt)
		assert.Equal(t, 16, req.Size)
		assert.Equal(t, 2, req.VariantCount)

		json.NewEncoder(w).Encode(map[string]any{
			"images_b64": []string{
				base64.StdEncoding.EncodeToString(want[0]),
				base64.StdEncoding.EncodeToString(want[1]),
			},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	got, err := c.Generate(context.Background(), Request{Prompt: "a ruby", VariantCount: 2})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClientGenerateDefaultsVariantCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1, req.VariantCount)

		json.NewEncoder(w).Encode(map[string]any{
			"images_b64": []string{base64.StdEncoding.EncodeToString([]byte("only"))},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	got, err := c.Generate(context.Background(), Request{Prompt: "a ruby"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("only"), got[0])
}

func TestClientGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	_, err := c.Generate(context.Background(), Request{Prompt: "a ruby"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClientGenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"images_b64": []string{}})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	_, err := c.Generate(context.Background(), Request{Prompt: "a ruby"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no images")
}

func TestPlaceholderIsValidPNG(t *testing.T) {
	variants, err := Placeholder{}.Generate(context.Background(), Request{Prompt: "a ruby"})
	require.NoError(t, err)
	require.Len(t, variants, 1)

	img, err := png.Decode(bytes.NewReader(variants[0]))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestPlaceholderVariants(t *testing.T) {
	variants, err := Placeholder{}.Generate(context.Background(), Request{Prompt: "a ruby", VariantCount: 3})
	require.NoError(t, err)
	require.Len(t, variants, 3)

	assert.NotEqual(t, variants[0], variants[1])
	assert.NotEqual(t, variants[1], variants[2])
	for _, data := range variants {
		_, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
	}
}

func TestPlaceholderDeterministic(t *testing.T) {
	a, err := Placeholder{}.Generate(context.Background(), Request{Prompt: "a ruby"})
	require.NoError(t, err)
	b, err := Placeholder{}.Generate(context.Background(), Request{Prompt: "a ruby"})
	require.NoError(t, err)
	c, err := Placeholder{}.Generate(context.Background(), Request{Prompt: "an emerald"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
