package cave

import (
	"github.com/zyedidia/generic/mapset"

	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
	"unseen.ai/internal/sim/world/logic/mathx"
)

type cell struct{ X, Y, Z int }

// torchGrid buckets torch positions by coarse cell so a spacing check only looks at
// the 27 cells around a candidate.
type torchGrid struct {
	size    int
	minSq   int
	buckets map[cell][]voxel.Pos
}

func newTorchGrid(size, minSpacing int) *torchGrid {
	if size < minSpacing {
		size = minSpacing
	}
	if size <= 0 {
		size = 1
	}
	return &torchGrid{size: size, minSq: minSpacing * minSpacing, buckets: map[cell][]voxel.Pos{}}
}

func (t *torchGrid) cellOf(p voxel.Pos) cell {
	return cell{mathx.FloorDiv(p.X, t.size), mathx.FloorDiv(p.Y, t.size), mathx.FloorDiv(p.Z, t.size)}
}

func (t *torchGrid) clear(p voxel.Pos) bool {
	c := t.cellOf(p)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				for _, q := range t.buckets[cell{c.X + dx, c.Y + dy, c.Z + dz}] {
					if q.DistSq(p) < t.minSq {
						return false
					}
				}
			}
		}
	}
	return true
}

func (t *torchGrid) add(p voxel.Pos) {
	c := t.cellOf(p)
	t.buckets[c] = append(t.buckets[c], p)
}

// lightCache holds light levels for the pocket, bucketed like the torch grid so a
// placement refreshes only nearby samples.
type lightCache struct {
	size    int
	levels  map[voxel.Pos]int
	buckets map[cell][]voxel.Pos
}

func (g *Generator) newLightCache(samples []voxel.Pos, size int) *lightCache {
	lc := &lightCache{size: size, levels: make(map[voxel.Pos]int, len(samples)), buckets: map[cell][]voxel.Pos{}}
	for _, p := range samples {
		lc.levels[p] = g.world.LightLevel(p)
		c := lc.cellOf(p)
		lc.buckets[c] = append(lc.buckets[c], p)
	}
	return lc
}

func (lc *lightCache) cellOf(p voxel.Pos) cell {
	return cell{mathx.FloorDiv(p.X, lc.size), mathx.FloorDiv(p.Y, lc.size), mathx.FloorDiv(p.Z, lc.size)}
}

// refresh re-reads light for samples within reach voxels (per axis) of p.
func (g *Generator) refreshLight(lc *lightCache, p voxel.Pos, reach int) {
	cells := (reach + lc.size - 1) / lc.size
	c := lc.cellOf(p)
	for dx := -cells; dx <= cells; dx++ {
		for dy := -cells; dy <= cells; dy++ {
			for dz := -cells; dz <= cells; dz++ {
				for _, q := range lc.buckets[cell{c.X + dx, c.Y + dy, c.Z + dz}] {
					lc.levels[q] = g.world.LightLevel(q)
				}
			}
		}
	}
}

func (lc *lightCache) level(g *Generator, p voxel.Pos) int {
	if l, ok := lc.levels[p]; ok {
		return l
	}
	return g.world.LightLevel(p)
}

// torchSpot is the static part of torch eligibility: loaded, open, below the depth
// ceiling, solid non-ore footing and unseen.
func (g *Generator) torchSpot(p voxel.Pos) bool {
	if p.Y > g.cfg.DepthCeilingY || !g.world.IsChunkLoaded(p) {
		return false
	}
	if !g.world.BlockAt(p).IsAir() {
		return false
	}
	below := g.world.BlockAt(p.Down(1))
	if !below.Solid() || below.IsOre() {
		return false
	}
	return !g.seen(p)
}

func (g *Generator) placeTorches(pk *pocket, rep *Report) {
	cfg := g.cfg
	grid := newTorchGrid(cfg.TorchGridCell, cfg.TorchMinSpacing)
	lc := g.newLightCache(pk.air, grid.size)
	reach := world.Torch.Emission() - cfg.TorchMaxLight
	rejected := mapset.New[voxel.Pos]()

	eligible := func(p voxel.Pos) bool {
		if rejected.Has(p) {
			return false
		}
		if !g.torchSpot(p) {
			rejected.Put(p)
			return false
		}
		return grid.clear(p) && lc.level(g, p) <= cfg.TorchMaxLight
	}

	for i, p := range pk.air {
		// Cheap filters on the sample itself decide whether it is worth trying.
		if !grid.clear(p) || lc.level(g, p) > cfg.TorchMaxLight {
			continue
		}
		if i > 0 && g.roll(cfg.TorchSkipChance) {
			// Leave this area dark on purpose.
			grid.add(p)
			continue
		}
		spot, ok := p, eligible(p)
		if !ok {
			spot, ok = g.perturbTorch(p, eligible)
		}
		if !ok {
			continue
		}
		if !g.write(spot, world.Torch, world.Block.IsAir) {
			rep.Skipped++
			rejected.Put(spot)
			continue
		}
		grid.add(spot)
		g.refreshLight(lc, spot, reach)
		rep.Torches++
	}
}

// perturbTorch looks for an alternate footing within the perturb radius and a short
// vertical window around p.
func (g *Generator) perturbTorch(p voxel.Pos, eligible func(voxel.Pos) bool) (voxel.Pos, bool) {
	r := g.cfg.TorchPerturbRadius
	w := g.cfg.TorchVerticalWindow
	for dist := 1; dist <= r; dist++ {
		for dx := -dist; dx <= dist; dx++ {
			for dz := -dist; dz <= dist; dz++ {
				if mathx.AbsInt(dx) != dist && mathx.AbsInt(dz) != dist {
					continue
				}
				for dy := 0; dy <= w; dy++ {
					for _, s := range [2]int{-1, 1} {
						if dy == 0 && s == 1 {
							continue
						}
						q := voxel.Pos{X: p.X + dx, Y: p.Y + s*dy, Z: p.Z + dz}
						if eligible(q) {
							return q, true
						}
					}
				}
			}
		}
	}
	return voxel.Pos{}, false
}

type extraKind uint8

const (
	extraFurnace extraKind = iota
	extraWorkbench
	extraPillar
)

func (g *Generator) pickExtra() extraKind {
	w := g.cfg.ExtraWeights
	total := w.total()
	if total <= 0 {
		return extraPillar
	}
	n := g.rng.IntN(total)
	switch {
	case n < w.Furnace:
		return extraFurnace
	case n < w.Furnace+w.Workbench:
		return extraWorkbench
	default:
		return extraPillar
	}
}

// placeExtras drops up to ExtraMax fixtures on random pocket voxels, independent of
// the torch pass.
func (g *Generator) placeExtras(pk *pocket, rep *Report) {
	if g.cfg.ExtraMax <= 0 || len(pk.air) == 0 {
		return
	}
	want := g.rng.IntN(g.cfg.ExtraMax + 1)
	for tries := 0; want > 0 && tries < g.cfg.ExtraAttempts; tries++ {
		p := pk.air[g.rng.IntN(len(pk.air))]
		if !g.world.IsChunkLoaded(p) || !g.world.BlockAt(p).IsAir() {
			continue
		}
		if !g.world.BlockAt(p.Down(1)).Solid() || g.seen(p) {
			continue
		}
		var placed bool
		switch g.pickExtra() {
		case extraFurnace:
			placed = g.write(p, world.Furnace, world.Block.IsAir)
		case extraWorkbench:
			placed = g.write(p, world.CraftingTable, world.Block.IsAir)
		default:
			placed = g.placePillar(p)
		}
		if placed {
			rep.Extras++
			want--
		} else {
			rep.Skipped++
		}
	}
}

// placePillar stacks logs from p up to the ceiling, at most MaxHeadroom tall.
func (g *Generator) placePillar(p voxel.Pos) bool {
	n := 0
	for i := 0; i < g.cfg.MaxHeadroom; i++ {
		q := p.Up(i)
		if !g.world.IsChunkLoaded(q) || !g.world.BlockAt(q).IsAir() {
			break
		}
		if !g.write(q, world.Log, world.Block.IsAir) {
			break
		}
		n++
	}
	return n > 0
}
