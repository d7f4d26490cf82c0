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

// Package texture generates element textures through the external texture
// service.
package texture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/pkg/errors"
)

// Request describes one texture to generate.
type Request struct {
	// Prompt is the full synthesis prompt, including style hints.
	Prompt string `json:"prompt"`

	// ReferenceIDs name uploaded reference images the service may condition
	// on.
	ReferenceIDs []string `json:"reference_ids,omitempty"`

	// Size is the square pixel dimension, default 16.
	Size int `json:"size,omitempty"`

	// VariantCount is how many candidate images to synthesize, default 1.
	// Non-interactive callers take the first variant.
	VariantCount int `json:"variant_count,omitempty"`
}

// Generator produces PNG variants for a texture request. A successful
// call returns at least one image.
type Generator interface {
	Generate(ctx context.Context, req Request) ([][]byte, error)
}

// Client calls the texture service over HTTP. Requests are rate limited so
// a texture-heavy plan does not overwhelm the service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ClientConfig tunes the texture client.
type ClientConfig struct {
	BaseURL string

	// RequestsPerSecond bounds the request rate, default 2 with a burst
	// equal to the executor's texture fan-out.
	RequestsPerSecond float64
	Burst             int

	Timeout time.Duration
}

// NewClient creates a texture service client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  log.WithComponent(logger, "texture"),
	}
}

type generateResponse struct {
	ImagesB64 []string `json:"images_b64"`
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, req Request) ([][]byte, error) {
	if req.Size <= 0 {
		req.Size = 16
	}
	if req.VariantCount <= 0 {
		req.VariantCount = 1
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding texture request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/textures/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building texture request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "calling texture service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(fmt.Sprintf("texture service returned %d: %s", resp.StatusCode, snippet))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding texture response")
	}
	if len(out.ImagesB64) == 0 {
		return nil, errors.New("texture service returned no images")
	}
	variants := make([][]byte, len(out.ImagesB64))
	for i, encoded := range out.ImagesB64 {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errors.Wrap(err, "decoding texture image")
		}
		variants[i] = data
	}

	c.logger.Debug("textures generated",
		slog.Int("variants", len(variants)),
		slog.Int("bytes", len(variants[0])),
		log.Duration("duration", time.Since(started).Milliseconds()))
	return variants, nil
}

// Placeholder synthesizes a deterministic solid-tint checker texture from
// the prompt. It stands in for the texture service in tests and when no
// service endpoint is configured, so plans still produce loadable packs.
type Placeholder struct{}

// Generate implements Generator. Each variant hashes the prompt plus the
// variant index, so requesting more variants yields distinct images.
func (Placeholder) Generate(_ context.Context, req Request) ([][]byte, error) {
	size := req.Size
	if size <= 0 {
		size = 16
	}
	count := req.VariantCount
	if count <= 0 {
		count = 1
	}

	variants := make([][]byte, count)
	for v := 0; v < count; v++ {
		h := fnv.New32a()
		h.Write([]byte(req.Prompt))
		h.Write([]byte{byte(v)})
		seed := h.Sum32()
		base := color.NRGBA{
			R: uint8(seed >> 16),
			G: uint8(seed >> 8),
			B: uint8(seed),
			A: 0xff,
		}
		alt := color.NRGBA{R: base.R / 2, G: base.G / 2, B: base.B / 2, A: 0xff}

		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if (x/4+y/4)%2 == 0 {
					img.SetNRGBA(x, y, base)
				} else {
					img.SetNRGBA(x, y, alt)
				}
			}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, errors.Wrap(err, "encoding placeholder texture")
		}
		variants[v] = buf.Bytes()
	}
	return variants, nil
}
