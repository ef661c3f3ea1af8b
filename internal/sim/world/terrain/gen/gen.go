package gen

import (
	"unseen.ai/internal/sim/world"
	"unseen.ai/internal/sim/world/logic/mathx"
)

// Terrain is a deterministic seeded generator: value-noise heightmap, layered strata,
// clustered ore deposits and noise-carved cave pockets.
type Terrain struct {
	Seed int64 `yaml:"seed" json:"seed"`

	BaseHeight int `yaml:"base_height" json:"base_height"` // mean surface y
	Amplitude  int `yaml:"amplitude" json:"amplitude"`     // surface relief
	DirtDepth  int `yaml:"dirt_depth" json:"dirt_depth"`

	CaveMaxY      int     `yaml:"cave_max_y" json:"cave_max_y"`         // no cave pockets above this y
	CaveThreshold float64 `yaml:"cave_threshold" json:"cave_threshold"` // 0..1, higher means fewer pockets
	CaveCell      float64 `yaml:"cave_cell" json:"cave_cell"`

	OreGrid         int `yaml:"ore_grid" json:"ore_grid"`
	OreRadius       int `yaml:"ore_radius" json:"ore_radius"`
	OreProbPermille int `yaml:"ore_prob_permille" json:"ore_prob_permille"`
}

func Defaults(seed int64) Terrain {
	return Terrain{
		Seed:            seed,
		BaseHeight:      64,
		Amplitude:       10,
		DirtDepth:       3,
		CaveMaxY:        48,
		CaveThreshold:   0.68,
		CaveCell:        11,
		OreGrid:         9,
		OreRadius:       2,
		OreProbPermille: 120,
	}
}

// SurfaceAt returns the generated surface y for a column.
func (t Terrain) SurfaceAt(x, z int) int {
	n := mathx.ValueNoise2(t.Seed, float64(x), float64(z), 48)
	d := mathx.ValueNoise2(t.Seed+1, float64(x), float64(z), 13)
	h := t.BaseHeight + int((n-0.5)*2*float64(t.Amplitude)+(d-0.5)*4)
	return h
}

func (t Terrain) Generate(ch *world.Chunk) {
	for z := 0; z < world.ChunkSize; z++ {
		for x := 0; x < world.ChunkSize; x++ {
			wx := ch.CX*world.ChunkSize + x
			wz := ch.CZ*world.ChunkSize + z
			surface := mathx.ClampInt(t.SurfaceAt(wx, wz), 4, ch.Height-2)

			for y := 0; y <= surface; y++ {
				b := world.Stone
				switch {
				case y == 0:
					b = world.Bedrock
				case y == surface:
					b = world.Grass
				case y > surface-t.DirtDepth:
					b = world.Dirt
				default:
					if ore, ok := t.oreAt(wx, y, wz); ok {
						b = ore
					} else if y > 2 && y <= t.CaveMaxY && t.isCave(wx, y, wz) {
						b = world.CaveAir
					}
				}
				ch.Set(x, y, z, b)
			}
		}
	}
}

func (t Terrain) isCave(x, y, z int) bool {
	v := mathx.ValueNoise3(t.Seed+300, float64(x), float64(y)*1.6, float64(z), t.CaveCell)
	return v > t.CaveThreshold
}

func (t Terrain) oreAt(x, y, z int) (world.Block, bool) {
	if t.OreProbPermille <= 0 {
		return world.Air, false
	}
	type band struct {
		b    world.Block
		maxY int
		salt int64
	}
	bands := []band{
		{b: world.DiamondOre, maxY: 16, salt: 11},
		{b: world.GoldOre, maxY: 32, salt: 12},
		{b: world.IronOre, maxY: 56, salt: 13},
		{b: world.CopperOre, maxY: 60, salt: 14},
		{b: world.CoalOre, maxY: 96, salt: 15},
	}
	for _, bd := range bands {
		if y > bd.maxY {
			continue
		}
		if InCluster3(t.Seed+bd.salt, x, y, z, t.OreGrid, t.OreRadius, uint64(t.OreProbPermille)) {
			return bd.b, true
		}
	}
	return world.Air, false
}

// InCluster3 reports whether (x,y,z) falls inside a hashed cluster centered in a
// neighboring grid cell.
func InCluster3(seed int64, x, y, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gy := mathx.FloorDiv(y, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dy := -1; dy <= 1; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				cgx, cgy, cgz := gx+dx, gy+dy, gz+dz
				h := mathx.Hash3(seed, cgx, cgy, cgz)
				if h%1000 >= probPermille {
					continue
				}
				cx := cgx*grid + int((h>>10)%uint64(grid))
				cy := cgy*grid + int((h>>20)%uint64(grid))
				cz := cgz*grid + int((h>>30)%uint64(grid))
				ddx, ddy, ddz := x-cx, y-cy, z-cz
				if ddx*ddx+ddy*ddy+ddz*ddz <= r2 {
					return true
				}
			}
		}
	}
	return false
}
