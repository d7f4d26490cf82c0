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

// Package config loads and validates the daemon configuration.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modforge/modforge/internal/compiler"
	"github.com/modforge/modforge/pkg/errors"
)

// Duration wraps time.Duration for yaml values like "90s" or "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return &errors.ConfigError{Reason: "invalid duration " + raw, Cause: err}
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DataDir roots all persistent state: specs, run workspaces,
	// artifacts, history.
	DataDir string `yaml:"data_dir"`

	Executor ExecutorConfig        `yaml:"executor"`
	Events   EventsConfig          `yaml:"events"`
	Services ServicesConfig        `yaml:"services"`
	Builder  BuilderConfig         `yaml:"builder"`
	Compat   compiler.CompatConfig `yaml:"compat"`
}

// ExecutorConfig tunes task execution.
type ExecutorConfig struct {
	FanOut         int      `yaml:"fan_out"`
	TaskTimeout    Duration `yaml:"task_timeout"`
	TextureTimeout Duration `yaml:"texture_timeout"`
	BuildTimeout   Duration `yaml:"build_timeout"`
}

// EventsConfig tunes the event bus.
type EventsConfig struct {
	SubscriberBuffer int      `yaml:"subscriber_buffer"`
	Retention        Duration `yaml:"retention"`
}

// ServicesConfig holds the external collaborator endpoints.
type ServicesConfig struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Texture      TextureConfig      `yaml:"texture"`
}

// OrchestratorConfig configures the propose service client.
type OrchestratorConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// TextureConfig configures the texture service client. An empty URL falls
// back to deterministic placeholder textures.
type TextureConfig struct {
	URL               string   `yaml:"url"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	Timeout           Duration `yaml:"timeout"`
}

// BuilderConfig configures the toolchain build.
type BuilderConfig struct {
	Command []string `yaml:"command"`
	Grace   Duration `yaml:"grace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:  ":8080",
		DataDir: "data",
		Executor: ExecutorConfig{
			FanOut:         4,
			TaskTimeout:    Duration(30 * time.Second),
			TextureTimeout: Duration(90 * time.Second),
			BuildTimeout:   Duration(10 * time.Minute),
		},
		Events: EventsConfig{
			SubscriberBuffer: 256,
			Retention:        Duration(time.Hour),
		},
		Services: ServicesConfig{
			Orchestrator: OrchestratorConfig{Timeout: Duration(120 * time.Second)},
			Texture: TextureConfig{
				RequestsPerSecond: 2,
				Burst:             4,
				Timeout:           Duration(60 * time.Second),
			},
		},
		Builder: BuilderConfig{
			Grace: Duration(10 * time.Second),
		},
		Compat: compiler.DefaultCompat(),
	}
}

// Load reads a yaml config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ConfigError{Reason: "config file not found: " + path, Cause: err}
		}
		return nil, &errors.ConfigError{Reason: "reading config file", Cause: err}
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, &errors.ConfigError{Reason: "parsing config file", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return &errors.ConfigError{Key: "listen", Reason: "must not be empty"}
	}
	if c.DataDir == "" {
		return &errors.ConfigError{Key: "data_dir", Reason: "must not be empty"}
	}
	if c.Executor.FanOut < 1 {
		return &errors.ConfigError{Key: "executor.fan_out", Reason: "must be at least 1"}
	}
	if c.Events.SubscriberBuffer < 1 {
		return &errors.ConfigError{Key: "events.subscriber_buffer", Reason: "must be at least 1"}
	}
	return nil
}
