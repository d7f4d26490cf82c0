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

package spec

import (
	"fmt"
	"strings"

	"github.com/modforge/modforge/pkg/errors"
)

// Enum leaf fields are normalized to canonical form at write time. Canonical
// values are the SCREAMING_SNAKE forms the compiler expects; a documented set
// of legacy aliases is accepted and rewritten.

var enumFields = map[string]enumDef{
	"rarity": {
		canonical: []string{"COMMON", "UNCOMMON", "RARE", "EPIC"},
		aliases: map[string]string{
			"NORMAL":    "COMMON",
			"MAGIC":     "RARE",
			"LEGENDARY": "EPIC",
		},
	},
	"creative_tab": {
		canonical: []string{"BUILDING_BLOCKS", "COLORED_BLOCKS", "NATURAL", "FUNCTIONAL", "REDSTONE", "TOOLS", "COMBAT", "FOOD_AND_DRINK", "INGREDIENTS", "SPAWN_EGGS", "MISC"},
		aliases: map[string]string{
			"BUILDING":            "BUILDING_BLOCKS",
			"DECORATIONS":         "COLORED_BLOCKS",
			"TOOLS_AND_UTILITIES": "TOOLS",
			"FOOD":                "FOOD_AND_DRINK",
			"MATERIALS":           "INGREDIENTS",
		},
	},
	"material": {
		canonical: []string{"WOOD", "STONE", "IRON", "GOLD", "DIAMOND", "NETHERITE"},
		aliases: map[string]string{
			"WOODEN": "WOOD",
			"GOLDEN": "GOLD",
		},
	},
	"sound_group": {
		canonical: []string{"STONE", "WOOD", "METAL", "GLASS", "WOOL", "SAND", "GRAVEL", "GRASS"},
		aliases:   map[string]string{},
	},
}

type enumDef struct {
	canonical []string
	aliases   map[string]string
}

// normalize maps a raw string to its canonical form, or fails for values
// outside the enum and its aliases.
func (d enumDef) normalize(field, raw string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	for _, c := range d.canonical {
		if upper == c {
			return c, nil
		}
	}
	if canonical, ok := d.aliases[upper]; ok {
		return canonical, nil
	}
	return "", &errors.ValidationError{
		Field:      field,
		Message:    fmt.Sprintf("unknown enum value %q", raw),
		Suggestion: fmt.Sprintf("use one of %s", strings.Join(d.canonical, ", ")),
	}
}

// coerceEnum normalizes enum values in a delta before it reaches the
// document. A delta addressed directly at an enum leaf has its scalar
// rewritten; a delta carrying a whole element has recognized keys inside the
// payload rewritten recursively.
func coerceEnum(path string, value any) (any, error) {
	tokens, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	leaf := tokens[len(tokens)-1]

	if def, ok := enumFields[leaf]; ok {
		raw, isStr := value.(string)
		if !isStr {
			if value == nil {
				return value, nil
			}
			return nil, &errors.ValidationError{
				Field:   path,
				Message: fmt.Sprintf("enum field expects a string, got %T", value),
			}
		}
		return def.normalize(path, raw)
	}

	return coerceEnumsIn(path, value)
}

// coerceEnumsIn walks a payload value and normalizes any recognized enum
// keys it contains.
func coerceEnumsIn(path string, value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		for key, elem := range v {
			if def, ok := enumFields[key]; ok {
				raw, isStr := elem.(string)
				if !isStr {
					continue
				}
				normalized, err := def.normalize(path+"."+key, raw)
				if err != nil {
					return nil, err
				}
				v[key] = normalized
				continue
			}
			coerced, err := coerceEnumsIn(path+"."+key, elem)
			if err != nil {
				return nil, err
			}
			v[key] = coerced
		}
		return v, nil
	case []any:
		for i, elem := range v {
			coerced, err := coerceEnumsIn(fmt.Sprintf("%s[%d]", path, i), elem)
			if err != nil {
				return nil, err
			}
			v[i] = coerced
		}
		return v, nil
	default:
		return value, nil
	}
}
