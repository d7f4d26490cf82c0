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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/internal/builder"
	"github.com/modforge/modforge/internal/compiler"
	"github.com/modforge/modforge/internal/events"
	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/internal/texture"
	"github.com/modforge/modforge/pkg/errors"
)

type fakeBuilder struct {
	fail bool
}

func (f *fakeBuilder) Build(_ context.Context, dir string) (*builder.Result, error) {
	if f.fail {
		return &builder.Result{LogTail: []string{"error: cannot find symbol"}}, errors.New("gradle exited with status 1")
	}
	jar := filepath.Join(dir, "build", "libs", "ruby_mod-1.0.0.jar")
	if err := os.MkdirAll(filepath.Dir(jar), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(jar, []byte("jar-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &builder.Result{JarPath: jar, LogTail: []string{"BUILD SUCCESSFUL"}}, nil
}

type nullSink struct{ mu sync.Mutex }

func (s *nullSink) Publish(runID string, typ events.Type, payload any) events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return events.Event{}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func compiled(t *testing.T) *ir.ModIR {
	t.Helper()
	m, err := compiler.Compile(&spec.ModSpec{
		ModName: "Ruby Mod",
		Author:  strPtr("tester"),
		Items: []spec.ItemSpec{
			{ItemName: "Ruby", Description: strPtr("a glowing red gem")},
		},
		Blocks: []spec.BlockSpec{
			{BlockName: "Ruby Ore", Luminance: intPtr(7)},
		},
		Tools: []spec.ToolSpec{
			{ToolName: "Ruby Sword", ToolKind: strPtr("sword"), Material: strPtr("DIAMOND")},
		},
	}, compiler.DefaultCompat(), 1)
	require.NoError(t, err)
	return m
}

func runPipeline(t *testing.T, b builder.Builder) (string, string, executor.Outputs, error) {
	t.Helper()
	m := compiled(t)
	dag, err := planner.Plan(m)
	require.NoError(t, err)

	reg := executor.NewRegistry()
	require.NoError(t, Register(reg, Deps{Textures: texture.Placeholder{}, Builder: b}))

	root := t.TempDir()
	workspace := filepath.Join(root, "workspace")
	artifacts := filepath.Join(root, "artifacts")
	runContext := map[string]any{
		ParamWorkspaceDir: workspace,
		ParamArtifactsDir: artifacts,
		ParamIR:           m,
	}

	exec := executor.New(reg, executor.Config{}, nil)
	outputs, err := exec.Execute(context.Background(), "run-1", dag, runContext, &nullSink{})
	return workspace, artifacts, outputs, err
}

func TestPipelineProducesCompleteWorkspace(t *testing.T) {
	workspace, artifacts, outputs, err := runPipeline(t, &fakeBuilder{})
	require.NoError(t, err)

	javaDir := filepath.Join(workspace, "src", "main", "java", "com", "example", "ruby_mod")
	for _, f := range []string{
		"RubyModMod.java", "ModItems.java", "ModBlocks.java", "ModTools.java", "ModToolMaterial.java",
	} {
		assert.FileExists(t, filepath.Join(javaDir, f))
	}

	resources := filepath.Join(workspace, "src", "main", "resources")
	assert.FileExists(t, filepath.Join(resources, "fabric.mod.json"))
	assert.FileExists(t, filepath.Join(resources, "ruby_mod.mixins.json"))
	assert.FileExists(t, filepath.Join(resources, "assets", "ruby_mod", "textures", "item", "ruby.png"))
	assert.FileExists(t, filepath.Join(resources, "assets", "ruby_mod", "lang", "en_us.json"))
	assert.FileExists(t, filepath.Join(resources, "data", "ruby_mod", "recipes", "ruby_sword.json"))

	assert.FileExists(t, filepath.Join(workspace, "build.gradle"))
	assert.FileExists(t, filepath.Join(workspace, "gradle.properties"))
	assert.FileExists(t, filepath.Join(workspace, "gradle", "wrapper", "gradle-wrapper.properties"))

	assert.FileExists(t, filepath.Join(artifacts, "ruby_mod-1.0.0.jar"))
	buildOut := outputs[planner.KindBuild]
	require.NotNil(t, buildOut)
	assert.Equal(t, "ruby_mod-1.0.0.jar", buildOut["file_name"])
	assert.NotEmpty(t, buildOut["artifact_id"])
}

func TestPipelineBuildFailureCarriesLogTail(t *testing.T) {
	_, artifacts, _, err := runPipeline(t, &fakeBuilder{fail: true})
	require.Error(t, err)

	var te *errors.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "build", te.Tool)
	assert.Contains(t, te.LogTail, "cannot find symbol")

	entries, readErr := os.ReadDir(artifacts)
	if readErr == nil {
		assert.Empty(t, entries, "no artifact on failure")
	}
}

func TestGeneratedCodeReflectsBlueprint(t *testing.T) {
	workspace, _, _, err := runPipeline(t, &fakeBuilder{})
	require.NoError(t, err)

	javaDir := filepath.Join(workspace, "src", "main", "java", "com", "example", "ruby_mod")

	main, err := os.ReadFile(filepath.Join(javaDir, "RubyModMod.java"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `public static final String MOD_ID = "ruby_mod";`)
	assert.Contains(t, string(main), "implements ModInitializer")

	items, err := os.ReadFile(filepath.Join(javaDir, "ModItems.java"))
	require.NoError(t, err)
	assert.Contains(t, string(items), `register("ruby",`)
	assert.Contains(t, string(items), ".maxCount(64).rarity(Rarity.COMMON)")

	blocks, err := os.ReadFile(filepath.Join(javaDir, "ModBlocks.java"))
	require.NoError(t, err)
	assert.Contains(t, string(blocks), ".strength(3.0f, 3.0f)")
	assert.Contains(t, string(blocks), ".luminance(state -> 7)")
	assert.Contains(t, string(blocks), ".requiresTool()")

	tools, err := os.ReadFile(filepath.Join(javaDir, "ModTools.java"))
	require.NoError(t, err)
	assert.Contains(t, string(tools), "new SwordItem(new ModToolMaterial(1561, 8.0f, 3.0f)")
}

func TestFabricMetadataShape(t *testing.T) {
	workspace, _, _, err := runPipeline(t, &fakeBuilder{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(workspace, "src", "main", "resources", "fabric.mod.json"))
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "ruby_mod", meta["id"])
	assert.Equal(t, "Ruby Mod", meta["name"])
	assert.Equal(t, []any{"tester"}, meta["authors"])

	entrypoints := meta["entrypoints"].(map[string]any)
	assert.Equal(t, []any{"com.example.ruby_mod.RubyModMod"}, entrypoints["main"])

	depends := meta["depends"].(map[string]any)
	assert.Equal(t, "~1.20.1", depends["minecraft"])
}

func TestRecipePayloadWritten(t *testing.T) {
	workspace, _, _, err := runPipeline(t, &fakeBuilder{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(workspace, "src", "main", "resources",
		"data", "ruby_mod", "recipes", "ruby_sword.json"))
	require.NoError(t, err)

	var recipe map[string]any
	require.NoError(t, json.Unmarshal(raw, &recipe))
	assert.Equal(t, "minecraft:crafting_shaped", recipe["type"])
	assert.Equal(t, []any{" M ", " M ", " S "}, recipe["pattern"])
}

func TestGradlePropertiesPinToolchain(t *testing.T) {
	workspace, _, _, err := runPipeline(t, &fakeBuilder{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(workspace, "gradle.properties"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "minecraft_version=1.20.1")
	assert.Contains(t, string(raw), "loader_version=0.15.11")
	assert.Contains(t, string(raw), "archives_base_name=ruby_mod")
}
