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

	"github.com/modforge/modforge/internal/ir"
)

// Shaped patterns per tool kind: M is the tier ingredient, S a stick.
var recipePatterns = map[string][]string{
	"pickaxe": {"MMM", " S ", " S "},
	"axe":     {"MM ", "MS ", " S "},
	"sword":   {" M ", " M ", " S "},
	"shovel":  {" M ", " S ", " S "},
	"hoe":     {"MM ", " S ", " S "},
}

// Tier ingredients are derived from the material tier, never hard-coded.
var tierIngredients = map[string]string{
	"WOOD":      "minecraft:oak_planks",
	"STONE":     "minecraft:cobblestone",
	"IRON":      "minecraft:iron_ingot",
	"GOLD":      "minecraft:gold_ingot",
	"DIAMOND":   "minecraft:diamond",
	"NETHERITE": "minecraft:netherite_ingot",
}

// synthesizeRecipe produces the shaped crafting recipe for a compiled tool.
// The tool kind selects the pattern and the material tier the ingredient.
func synthesizeRecipe(modID string, tool ir.Tool) ir.Recipe {
	return ir.Recipe{
		ResultID: tool.RegistryID,
		Pattern:  recipePatterns[tool.Kind],
		Key: map[string]string{
			"M": tierIngredients[tool.Material],
			"S": "minecraft:stick",
		},
		Count: 1,
		Path:  fmt.Sprintf("data/%s/recipes/%s.json", modID, tool.RegistryName),
	}
}

// RecipeJSON renders a recipe as the data-pack JSON payload written by the
// asset generation task.
func RecipeJSON(r ir.Recipe) map[string]any {
	key := make(map[string]any, len(r.Key))
	for symbol, item := range r.Key {
		key[symbol] = map[string]any{"item": item}
	}
	return map[string]any{
		"type":    "minecraft:crafting_shaped",
		"pattern": r.Pattern,
		"key":     key,
		"result": map[string]any{
			"item":  r.ResultID,
			"count": r.Count,
		},
	}
}
