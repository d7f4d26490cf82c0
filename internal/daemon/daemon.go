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

// Package daemon assembles the service from configuration and runs it
// until shutdown.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/modforge/modforge/internal/api"
	"github.com/modforge/modforge/internal/builder"
	"github.com/modforge/modforge/internal/config"
	"github.com/modforge/modforge/internal/events"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/internal/orchestrator"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/internal/run"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/internal/texture"
	"github.com/modforge/modforge/internal/tools"
	"github.com/modforge/modforge/pkg/errors"
)

// shutdownGrace bounds how long open HTTP connections get to finish
// after the listener stops accepting.
const shutdownGrace = 30 * time.Second

// Daemon is the assembled service.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	server     *http.Server
	controller *run.Controller
	bus        *events.Bus
	history    *run.History
}

// New builds a daemon from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	store := spec.NewStore(cfg.DataDir, logger)
	bus := events.NewBus(events.Config{
		SubscriberBuffer: cfg.Events.SubscriberBuffer,
		Retention:        cfg.Events.Retention.Std(),
	}, logger)

	reg := executor.NewRegistry()
	if err := tools.Register(reg, tools.Deps{
		Textures: textureGenerator(cfg, logger),
		Builder: &builder.Gradle{
			Command: cfg.Builder.Command,
			Grace:   cfg.Builder.Grace.Std(),
			Logger:  logger,
		},
		Logger: logger,
	}); err != nil {
		return nil, err
	}

	exec := executor.New(reg, executor.Config{
		FanOut:      cfg.Executor.FanOut,
		TaskTimeout: cfg.Executor.TaskTimeout.Std(),
		KindTimeouts: map[string]time.Duration{
			planner.KindGenerateTexture: cfg.Executor.TextureTimeout.Std(),
			planner.KindBuild:           cfg.Executor.BuildTimeout.Std(),
		},
	}, logger)

	history, err := run.OpenHistory(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return nil, err
	}

	if cfg.Services.Orchestrator.URL == "" {
		logger.Warn("no orchestrator configured, generate runs will fail until services.orchestrator.url is set")
	}

	controller := run.NewController(run.Config{
		Store: store,
		Proposer: orchestrator.NewClient(orchestrator.ClientConfig{
			BaseURL: cfg.Services.Orchestrator.URL,
			Timeout: cfg.Services.Orchestrator.Timeout.Std(),
		}, logger),
		Executor: exec,
		Bus:      bus,
		History:  history,
		Compat:   cfg.Compat,
		DataDir:  cfg.DataDir,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(controller, store, bus, history, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Daemon{
		cfg:        cfg,
		logger:     log.WithComponent(logger, "daemon"),
		server:     server,
		controller: controller,
		bus:        bus,
		history:    history,
	}, nil
}

// textureGenerator picks the configured texture service, falling back to
// deterministic placeholders when no endpoint is set.
func textureGenerator(cfg *config.Config, logger *slog.Logger) texture.Generator {
	if cfg.Services.Texture.URL == "" {
		logger.Warn("no texture service configured, using placeholder textures")
		return texture.Placeholder{}
	}
	return texture.NewClient(texture.ClientConfig{
		BaseURL:           cfg.Services.Texture.URL,
		RequestsPerSecond: cfg.Services.Texture.RequestsPerSecond,
		Burst:             cfg.Services.Texture.Burst,
		Timeout:           cfg.Services.Texture.Timeout.Std(),
	}, logger)
}

// Run serves until the context is cancelled, then drains: the listener
// stops accepting, open requests get the shutdown grace, and in-flight
// runs finish before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("listening", slog.String("addr", d.cfg.Listen))
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	d.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("forced listener close", log.Error(err))
	}

	d.controller.Drain()
	if err := d.history.Close(); err != nil {
		d.logger.Warn("closing run history", log.Error(err))
	}
	d.logger.Info("shutdown complete")
	return nil
}
