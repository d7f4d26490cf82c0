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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/modforge/modforge/internal/builder"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/pkg/errors"
)

// buildTool runs the toolchain build and copies the resulting jar into the
// run's artifact directory.
type buildTool struct {
	builder builder.Builder
	logger  *slog.Logger
}

func (t *buildTool) Name() string { return planner.KindBuild }

func (t *buildTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamArtifactsDir, Required: true},
	}
}

func (t *buildTool) Execute(ctx context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	artifactsDir, err := stringParam(inv, ParamArtifactsDir)
	if err != nil {
		return nil, err
	}

	result, err := t.builder.Build(ctx, dir)
	if err != nil {
		var tail string
		if result != nil {
			tail = strings.Join(result.LogTail, "\n")
		}
		return nil, &errors.ToolError{
			Tool:    t.Name(),
			TaskID:  inv.TaskID,
			Message: err.Error(),
			LogTail: tail,
			Cause:   err,
		}
	}

	artifactID := uuid.NewString()
	fileName := filepath.Base(result.JarPath)
	dest := filepath.Join(artifactsDir, fileName)
	size, err := copyFile(result.JarPath, dest)
	if err != nil {
		return nil, errors.Wrap(err, "archiving artifact")
	}

	t.logger.Info("artifact archived",
		slog.String(log.RunIDKey, inv.RunID),
		slog.String("artifact_id", artifactID),
		slog.String("file", fileName),
		slog.Int64("bytes", size))

	return map[string]any{
		"artifact_id":   artifactID,
		"artifact_path": dest,
		"file_name":     fileName,
		"file_size":     size,
		"log_tail":      result.LogTail,
	}, nil
}

func copyFile(src, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	n, err := io.Copy(out, in)
	if err != nil {
		return 0, err
	}
	return n, out.Close()
}
