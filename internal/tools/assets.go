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
	"encoding/json"
	"path"

	"github.com/modforge/modforge/internal/compiler"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/pkg/errors"
)

// generateAssetsTool writes every JSON asset in the blueprint (models,
// blockstates, loot tables, lang) plus the synthesized crafting recipes
// into the resource pack.
type generateAssetsTool struct{}

func (t *generateAssetsTool) Name() string { return planner.KindGenerateAssets }

func (t *generateAssetsTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamIR, Required: true},
	}
}

func (t *generateAssetsTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	m, err := irParam(inv)
	if err != nil {
		return nil, err
	}

	written := 0
	for _, asset := range m.JSONAssets() {
		payload, err := json.MarshalIndent(asset.JSON, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "encoding asset")
		}
		rel := path.Join("src", "main", "resources", asset.Path)
		if err := writeFile(dir, rel, append(payload, '\n'), 0o644); err != nil {
			return nil, err
		}
		written++
	}

	for _, recipe := range m.Recipes {
		payload, err := json.MarshalIndent(compiler.RecipeJSON(recipe), "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "encoding recipe")
		}
		rel := path.Join("src", "main", "resources", recipe.Path)
		if err := writeFile(dir, rel, append(payload, '\n'), 0o644); err != nil {
			return nil, err
		}
		written++
	}

	return map[string]any{"assets": written}, nil
}
