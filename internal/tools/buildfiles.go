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
	"fmt"

	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/planner"
	"github.com/modforge/modforge/pkg/errors"
)

const buildGradle = `plugins {
    id 'fabric-loom' version '1.4-SNAPSHOT'
    id 'maven-publish'
}

version = project.mod_version
group = project.maven_group

base {
    archivesName = project.archives_base_name
}

repositories {
}

dependencies {
    minecraft "com.mojang:minecraft:${project.minecraft_version}"
    mappings "net.fabricmc:yarn:${project.yarn_mappings}:v2"
    modImplementation "net.fabricmc:fabric-loader:${project.loader_version}"
    modImplementation "net.fabricmc.fabric-api:fabric-api:${project.fabric_version}"
}

processResources {
    inputs.property "version", project.version

    filesMatching("fabric.mod.json") {
        expand "version": project.version
    }
}

tasks.withType(JavaCompile).configureEach {
    it.options.release = 17
}

java {
    withSourcesJar()
    sourceCompatibility = JavaVersion.VERSION_17
    targetCompatibility = JavaVersion.VERSION_17
}

jar {
    from("LICENSE") {
        rename { "${it}_${project.base.archivesName.get()}" }
    }
}
`

const settingsGradle = `pluginManagement {
    repositories {
        maven {
            name = 'Fabric'
            url = 'https://maven.fabricmc.net/'
        }
        mavenCentral()
        gradlePluginPortal()
    }
}
`

const gradleWrapperProperties = `distributionBase=GRADLE_USER_HOME
distributionPath=wrapper/dists
distributionUrl=https\://services.gradle.org/distributions/gradle-8.1.1-bin.zip
networkTimeout=10000
zipStoreBase=GRADLE_USER_HOME
zipStorePath=wrapper/dists
`

// generateBuildFilesTool writes the gradle project files from the pinned
// toolchain versions in the blueprint.
type generateBuildFilesTool struct{}

func (t *generateBuildFilesTool) Name() string { return planner.KindGenerateBuildFiles }

func (t *generateBuildFilesTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamIR, Required: true},
	}
}

func (t *generateBuildFilesTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	m, err := irParam(inv)
	if err != nil {
		return nil, err
	}

	properties := fmt.Sprintf(`org.gradle.jvmargs=-Xmx1G
org.gradle.parallel=true

minecraft_version=%s
yarn_mappings=%s
loader_version=%s
fabric_version=%s

mod_version=%s
maven_group=%s
archives_base_name=%s
`, m.MinecraftVersion, m.YarnMappings, m.LoaderVersion, m.FabricAPIVersion,
		m.ModVersion, m.BasePackage, m.ModID)

	files := map[string]string{
		"build.gradle":      buildGradle,
		"settings.gradle":   settingsGradle,
		"gradle.properties": properties,
	}
	for name, content := range files {
		if err := writeFile(dir, name, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return map[string]any{"files": len(files)}, nil
}

// generateFabricMetadataTool writes fabric.mod.json.
type generateFabricMetadataTool struct{}

func (t *generateFabricMetadataTool) Name() string { return planner.KindGenerateFabricMeta }

func (t *generateFabricMetadataTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamIR, Required: true},
	}
}

func (t *generateFabricMetadataTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	m, err := irParam(inv)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"schemaVersion": 1,
		"id":            m.ModID,
		"version":       "${version}",
		"name":          m.ModName,
		"description":   fmt.Sprintf("%s, generated by modforge.", m.ModName),
		"authors":       authorList(m),
		"license":       "MIT",
		"environment":   "*",
		"entrypoints": map[string]any{
			"main": []string{m.BasePackage + "." + m.MainClassName},
		},
		"mixins": []string{m.ModID + ".mixins.json"},
		"depends": map[string]any{
			"fabricloader": ">=" + m.LoaderVersion,
			"fabric-api":   "*",
			"minecraft":    "~" + m.MinecraftVersion,
			"java":         ">=17",
		},
	}
	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding fabric metadata")
	}
	if err := writeFile(dir, "src/main/resources/fabric.mod.json", append(payload, '\n'), 0o644); err != nil {
		return nil, err
	}
	return map[string]any{"files": 1}, nil
}

func authorList(m *ir.ModIR) []string {
	if m.Author == "" {
		return []string{}
	}
	return []string{m.Author}
}

// generateMixinsTool writes the empty mixin manifest the loader expects.
type generateMixinsTool struct{}

func (t *generateMixinsTool) Name() string { return planner.KindGenerateMixins }

func (t *generateMixinsTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamIR, Required: true},
	}
}

func (t *generateMixinsTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	m, err := irParam(inv)
	if err != nil {
		return nil, err
	}

	manifest := map[string]any{
		"required":           true,
		"package":            m.BasePackage + ".mixin",
		"compatibilityLevel": "JAVA_17",
		"mixins":             []string{},
		"client":             []string{},
		"injectors":          map[string]any{"defaultRequire": 1},
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding mixin manifest")
	}
	rel := fmt.Sprintf("src/main/resources/%s.mixins.json", m.ModID)
	if err := writeFile(dir, rel, append(payload, '\n'), 0o644); err != nil {
		return nil, err
	}
	return map[string]any{"files": 1}, nil
}

// setupGradleWrapperTool pins the wrapper distribution. The wrapper jar
// itself is provisioned by the build image; only the properties and launch
// scripts are generated here.
type setupGradleWrapperTool struct{}

func (t *setupGradleWrapperTool) Name() string { return planner.KindSetupGradleWrapper }

func (t *setupGradleWrapperTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
	}
}

func (t *setupGradleWrapperTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	if err := writeFile(dir, "gradle/wrapper/gradle-wrapper.properties", []byte(gradleWrapperProperties), 0o644); err != nil {
		return nil, err
	}
	gradlew := "#!/bin/sh\nexec gradle \"$@\"\n"
	if err := writeFile(dir, "gradlew", []byte(gradlew), 0o755); err != nil {
		return nil, err
	}
	return map[string]any{"files": 2}, nil
}
