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

// Package ir defines the fully-determined mod blueprint produced by the
// compiler. Every field is present: all identifiers derived, all defaults
// filled, all asset paths resolved. An IR is immutable once produced and
// lives for the duration of a single run.
package ir

import "time"

// ModIR is the compiled mod blueprint.
type ModIR struct {
	ModID         string `json:"mod_id"`
	ModName       string `json:"mod_name"`
	ModVersion    string `json:"mod_version"`
	Author        string `json:"author"`
	BasePackage   string `json:"base_package"`
	MainClassName string `json:"main_class_name"`

	MinecraftVersion string `json:"minecraft_version"`
	LoaderVersion    string `json:"loader_version"`
	YarnMappings     string `json:"yarn_mappings"`
	FabricAPIVersion string `json:"fabric_api_version"`

	Items   []Item   `json:"items"`
	Blocks  []Block  `json:"blocks"`
	Tools   []Tool   `json:"tools"`
	Recipes []Recipe `json:"recipes"`
	Assets  []Asset  `json:"assets"`

	// SpecVersion is the spec store version this IR was compiled from.
	SpecVersion int `json:"spec_version"`

	// CompiledAt is provenance only; it is excluded from determinism
	// comparisons.
	CompiledAt time.Time `json:"compiled_at"`
}

// Element is the identity shared by items, blocks, and tools.
type Element struct {
	// RegistryID is "<mod_id>:<registry_name>", globally unique in the IR.
	RegistryID string `json:"registry_id"`

	// RegistryName is the snake_case path component of the registry id.
	RegistryName string `json:"registry_name"`

	// ClassName is the Java class name (PascalCase + kind suffix).
	ClassName string `json:"class_name"`

	// ConstantName is the SCREAMING_SNAKE_CASE registration constant.
	ConstantName string `json:"constant_name"`

	// DisplayName is the human-readable name for the lang file.
	DisplayName string `json:"display_name"`

	Description string `json:"description"`
}

// Item is a fully-determined inventory item.
type Item struct {
	Element

	MaxStackSize int    `json:"max_stack_size"`
	Fireproof    bool   `json:"fireproof"`
	Rarity       string `json:"rarity"`
	CreativeTab  string `json:"creative_tab"`
}

// Block is a fully-determined placeable block.
type Block struct {
	Element

	Hardness     float64 `json:"hardness"`
	Resistance   float64 `json:"resistance"`
	Luminance    int     `json:"luminance"`
	RequiresTool bool    `json:"requires_tool"`
	SoundGroup   string  `json:"sound_group"`
	CreativeTab  string  `json:"creative_tab"`
}

// Tool is a fully-determined tool with tier-derived stats.
type Tool struct {
	Element

	Kind         string  `json:"kind"`
	Material     string  `json:"material"`
	Durability   int     `json:"durability"`
	MiningSpeed  float64 `json:"mining_speed"`
	AttackDamage float64 `json:"attack_damage"`
	Rarity       string  `json:"rarity"`
}

// Recipe is a shaped crafting recipe referencing IR elements.
type Recipe struct {
	// ResultID is the registry id of the crafted element.
	ResultID string `json:"result_id"`

	// Pattern is the 3x3 (or smaller) shaped crafting grid.
	Pattern []string `json:"pattern"`

	// Key maps pattern symbols to ingredient item ids.
	Key map[string]string `json:"key"`

	Count int `json:"count"`

	// Path is the data-pack file the recipe is written to.
	Path string `json:"path"`
}

// AssetKind classifies a synthesized asset.
type AssetKind string

const (
	AssetTexture    AssetKind = "texture"
	AssetModel      AssetKind = "model"
	AssetBlockstate AssetKind = "blockstate"
	AssetItemModel  AssetKind = "item_model"
	AssetLootTable  AssetKind = "loot_table"
	AssetLang       AssetKind = "lang"
)

// Asset is a file the executor materializes under the run workspace.
// Texture assets carry a generation prompt; JSON assets carry their complete
// payload. The two are mutually exclusive.
type Asset struct {
	Kind AssetKind `json:"kind"`

	// Path is relative to the run workspace root.
	Path string `json:"path"`

	// JSON is the complete payload for JSON assets, nil for textures.
	JSON map[string]any `json:"json,omitempty"`

	// TexturePrompt is the generation prompt for texture assets.
	TexturePrompt string `json:"texture_prompt,omitempty"`

	// ReferenceIDs are optional reference-texture identifiers passed to the
	// texture generator.
	ReferenceIDs []string `json:"reference_ids,omitempty"`

	// ElementID is the registry name of the element this asset belongs to.
	ElementID string `json:"element_id,omitempty"`
}

// TextureAssets returns the assets that require texture generation.
func (m *ModIR) TextureAssets() []Asset {
	var out []Asset
	for _, a := range m.Assets {
		if a.Kind == AssetTexture {
			out = append(out, a)
		}
	}
	return out
}

// JSONAssets returns the assets carrying a JSON payload.
func (m *ModIR) JSONAssets() []Asset {
	var out []Asset
	for _, a := range m.Assets {
		if a.JSON != nil {
			out = append(out, a)
		}
	}
	return out
}

// ElementCount returns the number of registered elements.
func (m *ModIR) ElementCount() int {
	return len(m.Items) + len(m.Blocks) + len(m.Tools)
}
