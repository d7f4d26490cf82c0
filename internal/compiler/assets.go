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

package compiler

import (
	"fmt"
	"strings"

	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/spec"
)

// synthesizeAssets produces the complete asset manifest for a compiled mod:
// texture, model, and lang assets for every element; blocks additionally get
// a blockstate, an item-form model, and a minimal drops-self loot table.
// Texture assets carry a generation prompt; JSON assets carry their payload.
func synthesizeAssets(m *ir.ModIR, s *spec.ModSpec) []ir.Asset {
	var assets []ir.Asset
	lang := map[string]any{}

	for i, item := range m.Items {
		var hint string
		var refs []string
		if i < len(s.Items) {
			hint = strVal(s.Items[i].StyleHint)
			refs = s.Items[i].ReferenceIDs
		}
		assets = append(assets,
			textureAsset(m.ModID, "item", item.Element, hint, refs),
			itemModelAsset(m.ModID, item.RegistryName, "item/generated"),
		)
		lang[fmt.Sprintf("item.%s.%s", m.ModID, item.RegistryName)] = item.DisplayName
	}

	for i, block := range m.Blocks {
		var hint string
		var refs []string
		if i < len(s.Blocks) {
			hint = strVal(s.Blocks[i].StyleHint)
			refs = s.Blocks[i].ReferenceIDs
		}
		assets = append(assets,
			textureAsset(m.ModID, "block", block.Element, hint, refs),
			blockModelAsset(m.ModID, block.RegistryName),
			blockItemModelAsset(m.ModID, block.RegistryName),
			blockstateAsset(m.ModID, block.RegistryName),
			lootTableAsset(m.ModID, block.RegistryName),
		)
		lang[fmt.Sprintf("block.%s.%s", m.ModID, block.RegistryName)] = block.DisplayName
	}

	for i, tool := range m.Tools {
		var hint string
		var refs []string
		if i < len(s.Tools) {
			hint = strVal(s.Tools[i].StyleHint)
			refs = s.Tools[i].ReferenceIDs
		}
		assets = append(assets,
			textureAsset(m.ModID, "item", tool.Element, hint, refs),
			itemModelAsset(m.ModID, tool.RegistryName, "item/handheld"),
		)
		lang[fmt.Sprintf("item.%s.%s", m.ModID, tool.RegistryName)] = tool.DisplayName
	}

	lang["itemGroup."+m.ModID] = m.ModName
	assets = append(assets, ir.Asset{
		Kind: ir.AssetLang,
		Path: fmt.Sprintf("assets/%s/lang/en_us.json", m.ModID),
		JSON: lang,
	})

	return assets
}

// texturePrompt derives the generation prompt from the element's name,
// description, and optional style hint.
func texturePrompt(elem ir.Element, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "16x16 pixel art game texture of %s", elem.DisplayName)
	if elem.Description != "" {
		fmt.Fprintf(&b, ", %s", elem.Description)
	}
	if hint != "" {
		fmt.Fprintf(&b, ", style: %s", hint)
	}
	b.WriteString(", transparent background, crisp pixels")
	return b.String()
}

func textureAsset(modID, category string, elem ir.Element, hint string, refs []string) ir.Asset {
	return ir.Asset{
		Kind:          ir.AssetTexture,
		Path:          fmt.Sprintf("assets/%s/textures/%s/%s.png", modID, category, elem.RegistryName),
		TexturePrompt: texturePrompt(elem, hint),
		ReferenceIDs:  refs,
		ElementID:     elem.RegistryName,
	}
}

func itemModelAsset(modID, name, parent string) ir.Asset {
	return ir.Asset{
		Kind: ir.AssetItemModel,
		Path: fmt.Sprintf("assets/%s/models/item/%s.json", modID, name),
		JSON: map[string]any{
			"parent": parent,
			"textures": map[string]any{
				"layer0": fmt.Sprintf("%s:item/%s", modID, name),
			},
		},
		ElementID: name,
	}
}

func blockModelAsset(modID, name string) ir.Asset {
	return ir.Asset{
		Kind: ir.AssetModel,
		Path: fmt.Sprintf("assets/%s/models/block/%s.json", modID, name),
		JSON: map[string]any{
			"parent": "block/cube_all",
			"textures": map[string]any{
				"all": fmt.Sprintf("%s:block/%s", modID, name),
			},
		},
		ElementID: name,
	}
}

func blockItemModelAsset(modID, name string) ir.Asset {
	return ir.Asset{
		Kind: ir.AssetItemModel,
		Path: fmt.Sprintf("assets/%s/models/item/%s.json", modID, name),
		JSON: map[string]any{
			"parent": fmt.Sprintf("%s:block/%s", modID, name),
		},
		ElementID: name,
	}
}

func blockstateAsset(modID, name string) ir.Asset {
	return ir.Asset{
		Kind: ir.AssetBlockstate,
		Path: fmt.Sprintf("assets/%s/blockstates/%s.json", modID, name),
		JSON: map[string]any{
			"variants": map[string]any{
				"": map[string]any{
					"model": fmt.Sprintf("%s:block/%s", modID, name),
				},
			},
		},
		ElementID: name,
	}
}

// lootTableAsset synthesizes the minimal drops-self loot table: one pool,
// one entry, survives-explosion condition.
func lootTableAsset(modID, name string) ir.Asset {
	return ir.Asset{
		Kind: ir.AssetLootTable,
		Path: fmt.Sprintf("data/%s/loot_tables/blocks/%s.json", modID, name),
		JSON: map[string]any{
			"type": "minecraft:block",
			"pools": []any{
				map[string]any{
					"rolls": 1,
					"entries": []any{
						map[string]any{
							"type": "minecraft:item",
							"name": fmt.Sprintf("%s:%s", modID, name),
						},
					},
					"conditions": []any{
						map[string]any{"condition": "minecraft:survives_explosion"},
					},
				},
			},
		},
		ElementID: name,
	}
}
