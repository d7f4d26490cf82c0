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

package planner

import (
	"fmt"

	"github.com/modforge/modforge/internal/ir"
)

// Task kinds bound to tool handlers.
const (
	KindSetupWorkspace     = "setup_workspace"
	KindGenerateTexture    = "generate_texture"
	KindGenerateCode       = "generate_code"
	KindGenerateAssets     = "generate_assets"
	KindGenerateBuildFiles = "generate_build_files"
	KindGenerateFabricMeta = "generate_fabric_metadata"
	KindGenerateMixins     = "generate_mixins"
	KindSetupGradleWrapper = "setup_gradle_wrapper"
	KindBuild              = "build"
)

// Phase priorities: within the ready set, higher runs first.
const (
	prioritySetup      = 100
	priorityTexture    = 80
	priorityCode       = 70
	priorityAssets     = 60
	priorityBuildFiles = 50
	priorityGradle     = 40
	priorityBuild      = 10
)

// Plan converts an IR into the task DAG driving a build run.
//
// Phases: workspace setup first; one parallel texture task per textured
// element; a single code task and a single JSON asset task (the latter
// after all textures); build metadata tasks in parallel; the gradle
// wrapper; finally the build, gated on everything else.
func Plan(m *ir.ModIR) (*DAG, error) {
	var tasks []*Task

	setup := &Task{
		ID:       KindSetupWorkspace,
		Kind:     KindSetupWorkspace,
		Priority: prioritySetup,
	}
	tasks = append(tasks, setup)

	var textureIDs []string
	for _, asset := range m.TextureAssets() {
		id := fmt.Sprintf("%s:%s", KindGenerateTexture, asset.ElementID)
		textureIDs = append(textureIDs, id)
		tasks = append(tasks, &Task{
			ID:   id,
			Kind: KindGenerateTexture,
			Inputs: map[string]any{
				"asset_path":    asset.Path,
				"prompt":        asset.TexturePrompt,
				"reference_ids": asset.ReferenceIDs,
				"element_id":    asset.ElementID,
			},
			DependsOn:      []string{setup.ID},
			Parallelizable: true,
			Priority:       priorityTexture,
		})
	}

	code := &Task{
		ID:        KindGenerateCode,
		Kind:      KindGenerateCode,
		DependsOn: []string{setup.ID},
		Priority:  priorityCode,
	}
	tasks = append(tasks, code)

	assetDeps := []string{setup.ID}
	if len(textureIDs) > 0 {
		assetDeps = textureIDs
	}
	assets := &Task{
		ID:        KindGenerateAssets,
		Kind:      KindGenerateAssets,
		DependsOn: assetDeps,
		Priority:  priorityAssets,
	}
	tasks = append(tasks, assets)

	meta := []string{KindGenerateBuildFiles, KindGenerateFabricMeta, KindGenerateMixins}
	for _, kind := range meta {
		tasks = append(tasks, &Task{
			ID:             kind,
			Kind:           kind,
			DependsOn:      []string{setup.ID},
			Parallelizable: true,
			Priority:       priorityBuildFiles,
		})
	}

	gradle := &Task{
		ID:        KindSetupGradleWrapper,
		Kind:      KindSetupGradleWrapper,
		DependsOn: []string{setup.ID},
		Priority:  priorityGradle,
	}
	tasks = append(tasks, gradle)

	// The build gates on every other task.
	var buildDeps []string
	for _, t := range tasks {
		buildDeps = append(buildDeps, t.ID)
	}
	tasks = append(tasks, &Task{
		ID:        KindBuild,
		Kind:      KindBuild,
		DependsOn: buildDeps,
		Priority:  priorityBuild,
	})

	return NewDAG(tasks)
}
