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

// Package spec owns the canonical mod specification for each workspace:
// a versioned document mutated only through typed path-addressed deltas.
package spec

import (
	"encoding/json"
	"fmt"
)

// ModSpec is the human-authored mod specification. Every leaf field is
// optional; the compiler fills defaults and derives the rest. Elements are
// identified positionally by (kind, index).
type ModSpec struct {
	ModName string  `json:"mod_name"`
	ModID   *string `json:"mod_id,omitempty"`
	Version *string `json:"version,omitempty"`
	Author  *string `json:"author,omitempty"`

	Items  []ItemSpec  `json:"items,omitempty"`
	Blocks []BlockSpec `json:"blocks,omitempty"`
	Tools  []ToolSpec  `json:"tools,omitempty"`
}

// ItemSpec describes a basic inventory item.
type ItemSpec struct {
	ItemName     string   `json:"item_name"`
	Description  *string  `json:"description,omitempty"`
	Rarity       *string  `json:"rarity,omitempty"`
	CreativeTab  *string  `json:"creative_tab,omitempty"`
	MaxStackSize *int     `json:"max_stack_size,omitempty"`
	Fireproof    *bool    `json:"fireproof,omitempty"`
	StyleHint    *string  `json:"style_hint,omitempty"`
	ReferenceIDs []string `json:"reference_ids,omitempty"`
}

// BlockSpec describes a placeable block.
type BlockSpec struct {
	BlockName    string   `json:"block_name"`
	Description  *string  `json:"description,omitempty"`
	Hardness     *float64 `json:"hardness,omitempty"`
	Resistance   *float64 `json:"resistance,omitempty"`
	Luminance    *int     `json:"luminance,omitempty"`
	RequiresTool *bool    `json:"requires_tool,omitempty"`
	SoundGroup   *string  `json:"sound_group,omitempty"`
	CreativeTab  *string  `json:"creative_tab,omitempty"`
	StyleHint    *string  `json:"style_hint,omitempty"`
	ReferenceIDs []string `json:"reference_ids,omitempty"`
}

// ToolSpec describes a tool (pickaxe, axe, sword, shovel, hoe) with a
// material tier supplying stat defaults.
type ToolSpec struct {
	ToolName     string   `json:"tool_name"`
	ToolKind     *string  `json:"tool_kind,omitempty"`
	Material     *string  `json:"material,omitempty"`
	Durability   *int     `json:"durability,omitempty"`
	MiningSpeed  *float64 `json:"mining_speed,omitempty"`
	AttackDamage *float64 `json:"attack_damage,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Rarity       *string  `json:"rarity,omitempty"`
	StyleHint    *string  `json:"style_hint,omitempty"`
	ReferenceIDs []string `json:"reference_ids,omitempty"`
}

// Document is the generic JSON form of a ModSpec that the path algebra acts
// on. Maps and slices only; scalars are string/bool/float64 as produced by
// encoding/json.
type Document = map[string]any

// ToDocument converts a ModSpec to its generic document form.
func ToDocument(s *ModSpec) (Document, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding spec: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding spec document: %w", err)
	}
	return doc, nil
}

// FromDocument converts a generic document back to a typed ModSpec.
// Unknown keys are ignored; the document itself remains the canonical form
// persisted in the version log.
func FromDocument(doc Document) (*ModSpec, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding spec document: %w", err)
	}
	var s ModSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding spec: %w", err)
	}
	return &s, nil
}

// CopyDocument returns a deep copy of a document. Mutations on the copy
// never alias the original.
func CopyDocument(doc Document) Document {
	return copyValue(doc).(Document)
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = copyValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return val
	}
}
