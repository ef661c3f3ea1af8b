package cave

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"unseen.ai/internal/sim/floodfill"
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

type harvestKind uint8

const (
	harvestOre harvestKind = iota + 1
	harvestRubble
)

type harvestOp struct {
	pos  voxel.Pos
	was  world.Block
	kind harvestKind
}

// pocket is the validated result of exploration. Nothing in it has touched the world.
type pocket struct {
	anchor  voxel.Pos
	air     []voxel.Pos // BFS order, anchor first
	harvest []harvestOp
}

// explore runs the single BFS over open voxels from the anchor, planning ore and
// rubble removal for every vein it brushes against.
func (g *Generator) explore(anchor voxel.Pos) (*pocket, error) {
	cfg := g.cfg
	pk := &pocket{anchor: anchor}
	processed := mapset.New[voxel.Pos]()
	planned := mapset.New[voxel.Pos]()
	observers := g.world.Observers()

	hSq := cfg.ExploreHRadius * cfg.ExploreHRadius
	within := func(p voxel.Pos) bool {
		dy := p.Y - anchor.Y
		if dy < -cfg.ExploreVRadius || dy > cfg.ExploreVRadius {
			return false
		}
		return p.PlanarDistSq(anchor) <= hSq
	}

	veinAccept := func(p voxel.Pos) bool {
		return !processed.Has(p) && g.world.IsChunkLoaded(p) && g.world.BlockAt(p).IsOre()
	}

	harvestVein := func(start voxel.Pos) error {
		vein, err := floodfill.Explore(start, floodfill.Orthogonal, veinAccept, nil, floodfill.Options{
			Radius:     cfg.VeinRadius,
			MaxVisited: cfg.MaxVisited,
		})
		if err != nil {
			return err
		}
		for _, v := range vein.Order {
			processed.Put(v)
			if g.oracle.VisibleToAny(observers, v) {
				continue
			}
			pk.harvest = append(pk.harvest, harvestOp{pos: v, was: g.world.BlockAt(v), kind: harvestOre})
			planned.Put(v)
			if !g.roll(cfg.RubbleChance) {
				continue
			}
			for _, d := range voxel.Faces {
				n := v.Add(d)
				if planned.Has(n) || !g.world.IsChunkLoaded(n) {
					continue
				}
				b := g.world.BlockAt(n)
				if !b.Solid() || b.IsOre() || b == world.Bedrock {
					continue
				}
				if g.oracle.VisibleToAny(observers, n) {
					continue
				}
				pk.harvest = append(pk.harvest, harvestOp{pos: n, was: b, kind: harvestRubble})
				planned.Put(n)
				break
			}
		}
		return nil
	}

	var veinErr error
	accept := func(p voxel.Pos) bool {
		if !g.world.IsChunkLoaded(p) {
			return false
		}
		b := g.world.BlockAt(p)
		if b.IsOre() {
			if !processed.Has(p) && veinErr == nil {
				veinErr = harvestVein(p)
			}
			return false
		}
		if !b.IsAir() {
			return false
		}
		return g.headroomOK(p)
	}

	radius := isqrtCeil(hSq + cfg.ExploreVRadius*cfg.ExploreVRadius)
	if radius > floodfill.MaxRadius {
		radius = floodfill.MaxRadius
	}
	res, err := floodfill.Explore(anchor, floodfill.Orthogonal, accept, within, floodfill.Options{
		Radius:     radius,
		MaxVisited: cfg.MaxVisited,
	})
	if err != nil {
		return nil, fmt.Errorf("cave: explore: %w", err)
	}
	if veinErr != nil {
		return nil, fmt.Errorf("cave: vein: %w", veinErr)
	}
	pk.air = res.Order
	return pk, nil
}

// headroomOK accepts p when solid ground lies at most MaxHeadroom voxels below it.
func (g *Generator) headroomOK(p voxel.Pos) bool {
	for d := 1; d <= g.cfg.MaxHeadroom; d++ {
		if g.world.BlockAt(p.Down(d)).Solid() {
			return true
		}
	}
	return false
}

func (g *Generator) applyHarvest(pk *pocket, rep *Report) {
	for _, op := range pk.harvest {
		was := op.was
		if !g.write(op.pos, world.CaveAir, func(b world.Block) bool { return b == was }) {
			rep.Skipped++
			continue
		}
		switch op.kind {
		case harvestOre:
			rep.Harvested++
		case harvestRubble:
			rep.Rubble++
		}
	}
}

func isqrtCeil(n int) int {
	r := 0
	for r*r < n {
		r++
	}
	return r
}
