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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/internal/compiler"
	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/spec"
)

func strPtr(s string) *string { return &s }

func compiled(t *testing.T) *ir.ModIR {
	t.Helper()
	m, err := compiler.Compile(&spec.ModSpec{
		ModName: "Ruby Mod",
		Items:   []spec.ItemSpec{{ItemName: "Ruby"}},
		Tools: []spec.ToolSpec{
			{ToolName: "Ruby Sword", ToolKind: strPtr("sword"), Material: strPtr("IRON")},
		},
	}, compiler.DefaultCompat(), 1)
	require.NoError(t, err)
	return m
}

func TestPlanShape(t *testing.T) {
	dag, err := Plan(compiled(t))
	require.NoError(t, err)

	// setup + 2 textures + code + assets + 3 meta + gradle + build
	assert.Len(t, dag.Tasks, 10)

	entries := dag.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, KindSetupWorkspace, entries[0].ID)

	terminals := dag.Terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, KindBuild, terminals[0].ID)
}

func TestPlanTextureTasksParallel(t *testing.T) {
	dag, err := Plan(compiled(t))
	require.NoError(t, err)

	var textures []*Task
	for _, task := range dag.Tasks {
		if task.Kind == KindGenerateTexture {
			textures = append(textures, task)
		}
	}
	require.Len(t, textures, 2)
	for _, task := range textures {
		assert.True(t, task.Parallelizable, task.ID)
		assert.Equal(t, []string{KindSetupWorkspace}, task.DependsOn)
		assert.Equal(t, priorityTexture, task.Priority)
		assert.NotEmpty(t, task.Inputs["prompt"], task.ID)
		assert.NotEmpty(t, task.Inputs["asset_path"], task.ID)
	}
}

func TestPlanAssetsAfterTextures(t *testing.T) {
	dag, err := Plan(compiled(t))
	require.NoError(t, err)

	assets, ok := dag.Get(KindGenerateAssets)
	require.True(t, ok)
	assert.Len(t, assets.DependsOn, 2)
	for _, dep := range assets.DependsOn {
		task, ok := dag.Get(dep)
		require.True(t, ok)
		assert.Equal(t, KindGenerateTexture, task.Kind)
	}
}

func TestPlanNoTextures(t *testing.T) {
	m, err := compiler.Compile(&spec.ModSpec{ModName: "Empty Mod"}, compiler.DefaultCompat(), 1)
	require.NoError(t, err)

	dag, err := Plan(m)
	require.NoError(t, err)

	assets, _ := dag.Get(KindGenerateAssets)
	assert.Equal(t, []string{KindSetupWorkspace}, assets.DependsOn)
}

func TestPlanBuildGatesOnEverything(t *testing.T) {
	dag, err := Plan(compiled(t))
	require.NoError(t, err)

	build, ok := dag.Get(KindBuild)
	require.True(t, ok)
	assert.Len(t, build.DependsOn, len(dag.Tasks)-1)
	assert.Equal(t, priorityBuild, build.Priority)
	assert.False(t, build.Parallelizable)
}

func TestDAGValidateRejectsCycle(t *testing.T) {
	_, err := NewDAG([]*Task{
		{ID: "a", Kind: "x", DependsOn: []string{"b"}},
		{ID: "b", Kind: "x", DependsOn: []string{"a"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDAGValidateRejectsUnknownDependency(t *testing.T) {
	_, err := NewDAG([]*Task{
		{ID: "a", Kind: "x", DependsOn: []string{"ghost"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestDAGValidateRejectsDuplicateID(t *testing.T) {
	_, err := NewDAG([]*Task{
		{ID: "a", Kind: "x"},
		{ID: "a", Kind: "y"},
	})
	assert.Error(t, err)
}

func TestDAGCounts(t *testing.T) {
	dag, err := NewDAG([]*Task{
		{ID: "a", Kind: "x", Status: TaskSucceeded},
		{ID: "b", Kind: "x", Status: TaskFailed},
		{ID: "c", Kind: "x"},
	})
	require.NoError(t, err)

	completed, failed := dag.Counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}

func TestPlanDeterministic(t *testing.T) {
	a, err := Plan(compiled(t))
	require.NoError(t, err)
	b, err := Plan(compiled(t))
	require.NoError(t, err)

	require.Len(t, b.Tasks, len(a.Tasks))
	for i := range a.Tasks {
		assert.Equal(t, a.Tasks[i].ID, b.Tasks[i].ID)
		assert.Equal(t, a.Tasks[i].DependsOn, b.Tasks[i].DependsOn)
	}
}
