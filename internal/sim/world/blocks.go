package world

import "strings"

// Block is a palette id.
type Block uint16

const (
	Air Block = iota
	CaveAir
	Stone
	Dirt
	Grass
	Sand
	Gravel
	Cobblestone
	Bedrock
	Log
	Planks
	CoalOre
	IronOre
	CopperOre
	GoldOre
	DiamondOre
	Torch
	Furnace
	CraftingTable
	Fence

	blockCount
)

var blockNames = [blockCount]string{
	Air:           "AIR",
	CaveAir:       "CAVE_AIR",
	Stone:         "STONE",
	Dirt:          "DIRT",
	Grass:         "GRASS",
	Sand:          "SAND",
	Gravel:        "GRAVEL",
	Cobblestone:   "COBBLESTONE",
	Bedrock:       "BEDROCK",
	Log:           "LOG",
	Planks:        "PLANKS",
	CoalOre:       "COAL_ORE",
	IronOre:       "IRON_ORE",
	CopperOre:     "COPPER_ORE",
	GoldOre:       "GOLD_ORE",
	DiamondOre:    "DIAMOND_ORE",
	Torch:         "TORCH",
	Furnace:       "FURNACE",
	CraftingTable: "CRAFTING_TABLE",
	Fence:         "FENCE",
}

func (b Block) String() string {
	if b < blockCount {
		return blockNames[b]
	}
	return "UNKNOWN"
}

// ParseBlock resolves a palette name (case-insensitive).
func ParseBlock(name string) (Block, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range blockNames {
		if n == name {
			return Block(i), true
		}
	}
	return Air, false
}

// Palette lists block names in id order.
func Palette() []string {
	out := make([]string, len(blockNames))
	copy(out, blockNames[:])
	return out
}

func (b Block) IsAir() bool { return b == Air || b == CaveAir }

// Solid blocks support footing and obstruct movement.
func (b Block) Solid() bool {
	switch b {
	case Air, CaveAir, Torch:
		return false
	}
	return b < blockCount
}

// Opaque blocks stop sight lines.
func (b Block) Opaque() bool {
	switch b {
	case Fence:
		return false
	}
	return b.Solid()
}

func (b Block) IsOre() bool {
	switch b {
	case CoalOre, IronOre, CopperOre, GoldOre, DiamondOre:
		return true
	}
	return false
}

// Emission is the block light level a block emits.
func (b Block) Emission() int {
	switch b {
	case Torch:
		return 14
	case Furnace:
		return 7
	}
	return 0
}
