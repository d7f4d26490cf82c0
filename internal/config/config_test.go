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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 4, cfg.Executor.FanOut)
	assert.Equal(t, 10*time.Minute, cfg.Executor.BuildTimeout.Std())
	assert.Equal(t, time.Hour, cfg.Events.Retention.Std())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
data_dir: /var/lib/modforge
executor:
  fan_out: 8
  build_timeout: 20m
services:
  orchestrator:
    url: http://orchestrator:8100
  texture:
    url: http://texture:8200
    requests_per_second: 5
builder:
  command: ["./gradlew", "build"]
  grace: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/var/lib/modforge", cfg.DataDir)
	assert.Equal(t, 8, cfg.Executor.FanOut)
	assert.Equal(t, 20*time.Minute, cfg.Executor.BuildTimeout.Std())
	assert.Equal(t, 90*time.Second, cfg.Executor.TextureTimeout.Std(), "untouched default survives")
	assert.Equal(t, "http://orchestrator:8100", cfg.Services.Orchestrator.URL)
	assert.Equal(t, 5.0, cfg.Services.Texture.RequestsPerSecond)
	assert.Equal(t, []string{"./gradlew", "build"}, cfg.Builder.Command)
	assert.Equal(t, 30*time.Second, cfg.Builder.Grace.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "executor:\n  build_timeout: soon\n")
	_, err := Load(path)
	var ce *errors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "soon")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	var ce *errors.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"zero fan out", func(c *Config) { c.Executor.FanOut = 0 }, "executor.fan_out"},
		{"zero buffer", func(c *Config) { c.Events.SubscriberBuffer = 0 }, "events.subscriber_buffer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *errors.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}
