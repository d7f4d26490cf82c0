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

// Package compiler lowers a ModSpec to a fully-determined ModIR. Compilation
// is pure and deterministic: equal spec and configuration produce equal IR
// apart from the provenance timestamp. It fails loudly on missing or
// conflicting fields and never guesses semantics.
package compiler

import (
	"fmt"
	"time"

	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/spec"
	"github.com/modforge/modforge/pkg/errors"
)

// CompatConfig pins the toolchain versions the IR targets.
type CompatConfig struct {
	MinecraftVersion string `yaml:"minecraft_version"`
	LoaderVersion    string `yaml:"loader_version"`
	YarnMappings     string `yaml:"yarn_mappings"`
	FabricAPIVersion string `yaml:"fabric_api_version"`

	// BasePackagePrefix is prepended to the mod id to form the Java package.
	BasePackagePrefix string `yaml:"base_package_prefix"`
}

// DefaultCompat returns the pinned default toolchain versions.
func DefaultCompat() CompatConfig {
	return CompatConfig{
		MinecraftVersion:  "1.20.1",
		LoaderVersion:     "0.15.11",
		YarnMappings:      "1.20.1+build.10",
		FabricAPIVersion:  "0.92.2+1.20.1",
		BasePackagePrefix: "com.example",
	}
}

// Element defaults.
const (
	defaultMaxStackSize = 64
	defaultRarity       = "COMMON"
	defaultCreativeTab  = "MISC"
	defaultHardness     = 3.0
	defaultResistance   = 3.0
	defaultLuminance    = 0
	defaultRequiresTool = true
	defaultSoundGroup   = "STONE"
	defaultModVersion   = "1.0.0"
	defaultAuthor       = "modforge"
)

// tierStats supplies tool stat defaults per material tier; explicit spec
// fields override.
type tierStats struct {
	durability   int
	miningSpeed  float64
	attackDamage float64
}

var toolTiers = map[string]tierStats{
	"WOOD":      {durability: 59, miningSpeed: 2.0, attackDamage: 0.0},
	"STONE":     {durability: 131, miningSpeed: 4.0, attackDamage: 1.0},
	"IRON":      {durability: 250, miningSpeed: 6.0, attackDamage: 2.0},
	"GOLD":      {durability: 32, miningSpeed: 12.0, attackDamage: 0.0},
	"DIAMOND":   {durability: 1561, miningSpeed: 8.0, attackDamage: 3.0},
	"NETHERITE": {durability: 2031, miningSpeed: 9.0, attackDamage: 4.0},
}

// toolKinds maps a tool kind to its Java class suffix.
var toolKinds = map[string]string{
	"pickaxe": "PickaxeItem",
	"axe":     "AxeItem",
	"sword":   "SwordItem",
	"shovel":  "ShovelItem",
	"hoe":     "HoeItem",
}

// Compile lowers a spec to IR. specVersion records provenance only.
func Compile(s *spec.ModSpec, compat CompatConfig, specVersion int) (*ir.ModIR, error) {
	if s == nil || s.ModName == "" {
		return nil, &errors.CompilationError{Reason: "mod_name is required"}
	}

	modID := strDefault(s.ModID, DeriveModID(s.ModName))
	if modID == "" {
		return nil, &errors.CompilationError{Reason: "mod_id derivation produced an empty id"}
	}
	basePackage := compat.BasePackagePrefix + "." + modID
	if compat.BasePackagePrefix == "" {
		return nil, &errors.CompilationError{Reason: "base package prefix is empty"}
	}

	out := &ir.ModIR{
		ModID:            modID,
		ModName:          s.ModName,
		ModVersion:       strDefault(s.Version, defaultModVersion),
		Author:           strDefault(s.Author, defaultAuthor),
		BasePackage:      basePackage,
		MainClassName:    PascalCase(modID) + "Mod",
		MinecraftVersion: compat.MinecraftVersion,
		LoaderVersion:    compat.LoaderVersion,
		YarnMappings:     compat.YarnMappings,
		FabricAPIVersion: compat.FabricAPIVersion,
		Items:            []ir.Item{},
		Blocks:           []ir.Block{},
		Tools:            []ir.Tool{},
		Recipes:          []ir.Recipe{},
		Assets:           []ir.Asset{},
		SpecVersion:      specVersion,
		CompiledAt:       time.Now().UTC(),
	}

	for i, item := range s.Items {
		compiled, err := compileItem(modID, i, item)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, compiled)
	}
	for i, block := range s.Blocks {
		compiled, err := compileBlock(modID, i, block)
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, compiled)
	}
	for i, tool := range s.Tools {
		compiled, err := compileTool(modID, i, tool)
		if err != nil {
			return nil, err
		}
		out.Tools = append(out.Tools, compiled)
		out.Recipes = append(out.Recipes, synthesizeRecipe(modID, compiled))
	}

	if err := validateRegistryIDs(out); err != nil {
		return nil, err
	}

	out.Assets = synthesizeAssets(out, s)
	return out, nil
}

func compileItem(modID string, index int, item spec.ItemSpec) (ir.Item, error) {
	elem, err := deriveElement(modID, item.ItemName, "Item", fmt.Sprintf("items[%d]", index), strVal(item.Description))
	if err != nil {
		return ir.Item{}, err
	}
	return ir.Item{
		Element:      elem,
		MaxStackSize: intDefault(item.MaxStackSize, defaultMaxStackSize),
		Fireproof:    boolDefault(item.Fireproof, false),
		Rarity:       strDefault(item.Rarity, defaultRarity),
		CreativeTab:  strDefault(item.CreativeTab, defaultCreativeTab),
	}, nil
}

func compileBlock(modID string, index int, block spec.BlockSpec) (ir.Block, error) {
	elem, err := deriveElement(modID, block.BlockName, "Block", fmt.Sprintf("blocks[%d]", index), strVal(block.Description))
	if err != nil {
		return ir.Block{}, err
	}
	return ir.Block{
		Element:      elem,
		Hardness:     floatDefault(block.Hardness, defaultHardness),
		Resistance:   floatDefault(block.Resistance, defaultResistance),
		Luminance:    intDefault(block.Luminance, defaultLuminance),
		RequiresTool: boolDefault(block.RequiresTool, defaultRequiresTool),
		SoundGroup:   strDefault(block.SoundGroup, defaultSoundGroup),
		CreativeTab:  strDefault(block.CreativeTab, defaultCreativeTab),
	}, nil
}

func compileTool(modID string, index int, tool spec.ToolSpec) (ir.Tool, error) {
	at := fmt.Sprintf("tools[%d]", index)

	kind := strDefault(tool.ToolKind, "sword")
	suffix, ok := toolKinds[kind]
	if !ok {
		return ir.Tool{}, &errors.CompilationError{
			Element: at,
			Reason:  fmt.Sprintf("unknown tool kind %q", kind),
		}
	}

	material := strDefault(tool.Material, "IRON")
	tier, ok := toolTiers[material]
	if !ok {
		return ir.Tool{}, &errors.CompilationError{
			Element: at,
			Reason:  fmt.Sprintf("unknown material tier %q", material),
		}
	}

	elem, err := deriveElement(modID, tool.ToolName, suffix, at, strVal(tool.Description))
	if err != nil {
		return ir.Tool{}, err
	}
	return ir.Tool{
		Element:      elem,
		Kind:         kind,
		Material:     material,
		Durability:   intDefault(tool.Durability, tier.durability),
		MiningSpeed:  floatDefault(tool.MiningSpeed, tier.miningSpeed),
		AttackDamage: floatDefault(tool.AttackDamage, tier.attackDamage),
		Rarity:       strDefault(tool.Rarity, defaultRarity),
	}, nil
}

func deriveElement(modID, name, classSuffix, at, description string) (ir.Element, error) {
	if name == "" {
		return ir.Element{}, &errors.CompilationError{Element: at, Reason: "name is required"}
	}
	registryName := SnakeCase(name)
	if registryName == "" {
		return ir.Element{}, &errors.CompilationError{
			Element: at,
			Reason:  fmt.Sprintf("name %q produces an empty registry name", name),
		}
	}
	return ir.Element{
		RegistryID:   modID + ":" + registryName,
		RegistryName: registryName,
		ClassName:    PascalCase(registryName) + classSuffix,
		ConstantName: ScreamingSnakeCase(registryName),
		DisplayName:  name,
		Description:  description,
	}, nil
}

// validateRegistryIDs enforces global uniqueness across items, blocks,
// and tools.
func validateRegistryIDs(m *ir.ModIR) error {
	seen := make(map[string]string)
	check := func(id, at string) error {
		if prev, ok := seen[id]; ok {
			return &errors.CompilationError{
				Element: at,
				Reason:  fmt.Sprintf("registry id %q already used by %s", id, prev),
			}
		}
		seen[id] = at
		return nil
	}
	for i, item := range m.Items {
		if err := check(item.RegistryID, fmt.Sprintf("items[%d]", i)); err != nil {
			return err
		}
	}
	for i, block := range m.Blocks {
		if err := check(block.RegistryID, fmt.Sprintf("blocks[%d]", i)); err != nil {
			return err
		}
	}
	for i, tool := range m.Tools {
		if err := check(tool.RegistryID, fmt.Sprintf("tools[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strDefault(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func intDefault(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func boolDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
