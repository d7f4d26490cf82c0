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

package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/pkg/errors"
)

// setupWorkspaceTool lays out the gradle project skeleton every other task
// writes into.
type setupWorkspaceTool struct{}

func (t *setupWorkspaceTool) Name() string { return planner.KindSetupWorkspace }

func (t *setupWorkspaceTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamIR, Required: true},
	}
}

func (t *setupWorkspaceTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	m, err := irParam(inv)
	if err != nil {
		return nil, err
	}

	javaRoot := filepath.Join(dir, "src", "main", "java",
		filepath.FromSlash(strings.ReplaceAll(m.BasePackage, ".", "/")))
	for _, sub := range []string{
		javaRoot,
		filepath.Join(dir, "src", "main", "resources"),
		filepath.Join(dir, "gradle", "wrapper"),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating workspace layout")
		}
	}
	return map[string]any{"workspace_dir": dir}, nil
}
