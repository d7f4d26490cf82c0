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
	"fmt"
	"path"
	"strings"

	"github.com/modforge/modforge/internal/executor"
	"github.com/modforge/modforge/internal/ir"
	"github.com/modforge/modforge/internal/planner"
)

// toolItemClasses maps tool kinds to the vanilla item classes.
var toolItemClasses = map[string]string{
	"pickaxe": "PickaxeItem",
	"axe":     "AxeItem",
	"sword":   "SwordItem",
	"shovel":  "ShovelItem",
	"hoe":     "HoeItem",
}

// generateCodeTool renders the Java sources for the compiled blueprint:
// the mod entrypoint plus one registration class per element group.
type generateCodeTool struct{}

func (t *generateCodeTool) Name() string { return planner.KindGenerateCode }

func (t *generateCodeTool) Params() []executor.Param {
	return []executor.Param{
		{Name: ParamWorkspaceDir, Required: true},
		{Name: ParamIR, Required: true},
	}
}

func (t *generateCodeTool) Execute(_ context.Context, inv executor.Invocation) (map[string]any, error) {
	dir, err := stringParam(inv, ParamWorkspaceDir)
	if err != nil {
		return nil, err
	}
	m, err := irParam(inv)
	if err != nil {
		return nil, err
	}

	files := map[string]string{
		m.MainClassName + ".java": renderMainClass(m),
		"ModItems.java":           renderModItems(m),
		"ModBlocks.java":          renderModBlocks(m),
	}
	if len(m.Tools) > 0 {
		files["ModTools.java"] = renderModTools(m)
		files["ModToolMaterial.java"] = renderToolMaterial(m)
	}

	javaDir := path.Join("src", "main", "java", strings.ReplaceAll(m.BasePackage, ".", "/"))
	var written []string
	for name, source := range files {
		if err := writeFile(dir, path.Join(javaDir, name), []byte(source), 0o644); err != nil {
			return nil, err
		}
		written = append(written, name)
	}
	return map[string]any{"files": len(written)}, nil
}

func renderMainClass(m *ir.ModIR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", m.BasePackage)
	b.WriteString("import net.fabricmc.api.ModInitializer;\n\n")
	fmt.Fprintf(&b, "public class %s implements ModInitializer {\n", m.MainClassName)
	fmt.Fprintf(&b, "    public static final String MOD_ID = %q;\n\n", m.ModID)
	b.WriteString("    @Override\n    public void onInitialize() {\n")
	b.WriteString("        ModItems.registerAll();\n")
	b.WriteString("        ModBlocks.registerAll();\n")
	if len(m.Tools) > 0 {
		b.WriteString("        ModTools.registerAll();\n")
	}
	b.WriteString("    }\n}\n")
	return b.String()
}

func renderModItems(m *ir.ModIR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", m.BasePackage)
	b.WriteString("import net.minecraft.item.Item;\n")
	b.WriteString("import net.minecraft.item.Rarity;\n")
	b.WriteString("import net.minecraft.registry.Registries;\n")
	b.WriteString("import net.minecraft.registry.Registry;\n")
	b.WriteString("import net.minecraft.util.Identifier;\n\n")
	b.WriteString("public final class ModItems {\n")
	for _, item := range m.Items {
		settings := fmt.Sprintf(".maxCount(%d).rarity(Rarity.%s)", item.MaxStackSize, item.Rarity)
		if item.Fireproof {
			settings += ".fireproof()"
		}
		fmt.Fprintf(&b, "    public static final Item %s = register(%q,\n", item.ConstantName, item.RegistryName)
		fmt.Fprintf(&b, "            new Item(new Item.Settings()%s));\n", settings)
	}
	b.WriteString("\n    private ModItems() {\n    }\n\n")
	b.WriteString("    private static Item register(String name, Item item) {\n")
	fmt.Fprintf(&b, "        return Registry.register(Registries.ITEM, new Identifier(%s.MOD_ID, name), item);\n", m.MainClassName)
	b.WriteString("    }\n\n")
	b.WriteString("    public static void registerAll() {\n    }\n}\n")
	return b.String()
}

func renderModBlocks(m *ir.ModIR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", m.BasePackage)
	b.WriteString("import net.minecraft.block.AbstractBlock;\n")
	b.WriteString("import net.minecraft.block.Block;\n")
	b.WriteString("import net.minecraft.item.BlockItem;\n")
	b.WriteString("import net.minecraft.item.Item;\n")
	b.WriteString("import net.minecraft.registry.Registries;\n")
	b.WriteString("import net.minecraft.registry.Registry;\n")
	b.WriteString("import net.minecraft.sound.BlockSoundGroup;\n")
	b.WriteString("import net.minecraft.util.Identifier;\n\n")
	b.WriteString("public final class ModBlocks {\n")
	for _, block := range m.Blocks {
		settings := fmt.Sprintf(".strength(%.1ff, %.1ff).sounds(BlockSoundGroup.%s)",
			block.Hardness, block.Resistance, block.SoundGroup)
		if block.RequiresTool {
			settings += ".requiresTool()"
		}
		if block.Luminance > 0 {
			settings += fmt.Sprintf(".luminance(state -> %d)", block.Luminance)
		}
		fmt.Fprintf(&b, "    public static final Block %s = register(%q,\n", block.ConstantName, block.RegistryName)
		fmt.Fprintf(&b, "            new Block(AbstractBlock.Settings.create()%s));\n", settings)
	}
	b.WriteString("\n    private ModBlocks() {\n    }\n\n")
	b.WriteString("    private static Block register(String name, Block block) {\n")
	fmt.Fprintf(&b, "        Identifier id = new Identifier(%s.MOD_ID, name);\n", m.MainClassName)
	b.WriteString("        Registry.register(Registries.ITEM, id, new BlockItem(block, new Item.Settings()));\n")
	b.WriteString("        return Registry.register(Registries.BLOCK, id, block);\n")
	b.WriteString("    }\n\n")
	b.WriteString("    public static void registerAll() {\n    }\n}\n")
	return b.String()
}

func renderModTools(m *ir.ModIR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", m.BasePackage)
	b.WriteString("import net.minecraft.item.AxeItem;\n")
	b.WriteString("import net.minecraft.item.HoeItem;\n")
	b.WriteString("import net.minecraft.item.Item;\n")
	b.WriteString("import net.minecraft.item.PickaxeItem;\n")
	b.WriteString("import net.minecraft.item.ShovelItem;\n")
	b.WriteString("import net.minecraft.item.SwordItem;\n")
	b.WriteString("import net.minecraft.registry.Registries;\n")
	b.WriteString("import net.minecraft.registry.Registry;\n")
	b.WriteString("import net.minecraft.util.Identifier;\n\n")
	b.WriteString("public final class ModTools {\n")
	for _, tool := range m.Tools {
		class := toolItemClasses[tool.Kind]
		fmt.Fprintf(&b, "    public static final Item %s = register(%q,\n", tool.ConstantName, tool.RegistryName)
		fmt.Fprintf(&b, "            new %s(new ModToolMaterial(%d, %.1ff, %.1ff), 1, -2.8f, new Item.Settings()));\n",
			class, tool.Durability, tool.MiningSpeed, tool.AttackDamage)
	}
	b.WriteString("\n    private ModTools() {\n    }\n\n")
	b.WriteString("    private static Item register(String name, Item item) {\n")
	fmt.Fprintf(&b, "        return Registry.register(Registries.ITEM, new Identifier(%s.MOD_ID, name), item);\n", m.MainClassName)
	b.WriteString("    }\n\n")
	b.WriteString("    public static void registerAll() {\n    }\n}\n")
	return b.String()
}

func renderToolMaterial(m *ir.ModIR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", m.BasePackage)
	b.WriteString("import net.minecraft.item.ToolMaterial;\n")
	b.WriteString("import net.minecraft.recipe.Ingredient;\n\n")
	b.WriteString(`public class ModToolMaterial implements ToolMaterial {
    private final int durability;
    private final float miningSpeed;
    private final float attackDamage;

    public ModToolMaterial(int durability, float miningSpeed, float attackDamage) {
        this.durability = durability;
        this.miningSpeed = miningSpeed;
        this.attackDamage = attackDamage;
    }

    @Override
    public int getDurability() {
        return durability;
    }

    @Override
    public float getMiningSpeedMultiplier() {
        return miningSpeed;
    }

    @Override
    public float getAttackDamage() {
        return attackDamage;
    }

    @Override
    public int getMiningLevel() {
        return 2;
    }

    @Override
    public int getEnchantability() {
        return 10;
    }

    @Override
    public Ingredient getRepairIngredient() {
        return Ingredient.EMPTY;
    }
}
`)
	return b.String()
}
