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
	"path"

	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/internal/texture"
	"github.com/modforge/modforge/pkg/errors"
)

// generateTextureTool renders one element texture through the generator
// and writes it into the resource pack.
type generateTextureTool struct {
	generator texture.Generator
}

func (t *generateTextureTool) Name() string { return planner.KindGenerateTexture }

func (t *generateTextureTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: "asset_path", Required: true},
		{Name: "prompt", Required: true},
		{Name: "reference_ids"},
		{Name: "element_id"},
	}
}

func (t *generateTextureTool) Execute(ctx context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	assetPath, err := stringParam(inv, "asset_path")
	if err != nil {
		return nil, err
	}
	prompt, err := stringParam(inv, "prompt")
	if err != nil {
		return nil, err
	}

	variants, err := t.generator.Generate(ctx, texture.Request{
		Prompt:       prompt,
		ReferenceIDs: stringSliceParam(inv, "reference_ids"),
		VariantCount: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, errors.New("texture generator returned no variants")
	}

	// Runs are non-interactive; the first variant wins.
	data := variants[0]

	// Texture asset paths are resource-pack relative.
	rel := path.Join("src", "main", "resources", assetPath)
	if err := writeFile(dir, rel, data, 0o644); err != nil {
		return nil, err
	}
	return map[string]any{
		"path":     rel,
		"bytes":    len(data),
		"variants": len(variants),
	}, nil
}
