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

// Package tools implements the task handlers the executor dispatches to:
// workspace setup, texture and source generation, asset and build-file
// materialization, and the final toolchain build.
package tools

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modforge/modforge/internal/builder"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/texture"
	"github.com/modforge/modforge/pkg/errors"
)

// Context keys the run controller supplies to every task. Task inputs
// override these when both declare the same name.
const (
	ParamWorkspaceDir = "workspace_dir"
	ParamArtifactsDir = "artifacts_dir"
	ParamIR           = "ir"
)

// Deps are the collaborators the handlers share.
type Deps struct {
	Textures texture.Generator
	Builder  builder.Builder
	Logger   *slog.Logger
}

// Register wires all handlers into the registry.
func Register(reg *executor.Registry, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	handlers := []executor.Tool{
		&setupWorkspaceTool{},
		&generateTextureTool{generator: deps.Textures},
		&generateCodeTool{},
		&generateAssetsTool{},
		&generateBuildFilesTool{},
		&generateFabricMetadataTool{},
		&generateMixinsTool{},
		&setupGradleWrapperTool{},
		&buildTool{builder: deps.Builder, logger: deps.Logger},
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func stringParam(inv executor.Invocation, name string) (string, error) {
	v, ok := inv.Params[name].(string)
	if !ok || v == "" {
		return "", errors.New(fmt.Sprintf("parameter %q is not a string", name))
	}
	return v, nil
}

func irParam(inv executor.Invocation) (*ir.ModIR, error) {
	m, ok := inv.Params[ParamIR].(*ir.ModIR)
	if !ok || m == nil {
		return nil, errors.New(fmt.Sprintf("parameter %q is not a compiled blueprint", ParamIR))
	}
	return m, nil
}

func stringSliceParam(inv executor.Invocation, name string) []string {
	switch v := inv.Params[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// writeFile writes data under dir/rel, creating parent directories.
func writeFile(dir, rel string, data []byte, perm os.FileMode) error {
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return errors.Wrap(err, "writing file")
	}
	return nil
}
