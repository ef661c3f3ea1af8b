package cave

import (
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

// planStaircase climbs from the anchor one up and one forward per step until the
// walker stands above the column surface. Climbing past StairCeilingY first stops
// the stair where it is and reports it incomplete; the partial stair is still built.
func (g *Generator) planStaircase(anchor voxel.Pos) (plan []voxel.Tagged, steps int, complete bool) {
	cfg := g.cfg
	dir := voxel.Cardinals[g.rng.IntN(len(voxel.Cardinals))]
	cur := anchor
	turns, run := 0, 0

	for steps < g.world.Height() {
		next := cur.Add(dir).Up(1)
		if !g.world.IsChunkLoaded(next) {
			break
		}
		surface, ok := world.SurfaceY(g.world, next.X, next.Z)
		if !ok {
			break
		}
		if next.Y <= surface && next.Y > cfg.StairCeilingY {
			break
		}

		plan = append(plan,
			voxel.Tagged{Pos: next.Down(1), Category: voxel.CategoryFill},
			voxel.Tagged{Pos: cur.Up(2), Category: voxel.CategoryHeadroom},
			voxel.Tagged{Pos: next, Category: voxel.CategoryHeadroom},
			voxel.Tagged{Pos: next.Up(1), Category: voxel.CategoryHeadroom},
			voxel.Tagged{Pos: next, Category: voxel.CategoryStep},
		)
		steps++
		run++
		if cfg.StairTorchEvery > 0 && steps%cfg.StairTorchEvery == 0 {
			plan = append(plan, voxel.Tagged{Pos: next, Category: voxel.CategoryLight})
		}
		cur = next

		if next.Y > surface {
			complete = true
			break
		}
		if turns < cfg.StairMaxTurns && run >= cfg.StairMinRun && g.roll(cfg.StairTurnChance) {
			if g.rng.IntN(2) == 0 {
				dir = voxel.TurnCW(dir)
			} else {
				dir = voxel.TurnCCW(dir)
			}
			turns++
			run = 0
		}
	}

	if complete {
		plan = append(plan, g.planExitTorches(cur)...)
	}
	return plan, steps, complete
}

func (g *Generator) planExitTorches(exit voxel.Pos) []voxel.Tagged {
	r := g.cfg.ExitTorchRadius
	if r <= 0 || g.cfg.ExitTorches <= 0 {
		return nil
	}
	var out []voxel.Tagged
	taken := map[voxel.Pos]bool{}
	for tries := 0; len(out) < g.cfg.ExitTorches && tries < g.cfg.ExitTorches*8; tries++ {
		x := exit.X + g.rng.IntN(2*r+1) - r
		z := exit.Z + g.rng.IntN(2*r+1) - r
		if x == exit.X && z == exit.Z {
			continue
		}
		s, ok := world.SurfaceY(g.world, x, z)
		if !ok {
			continue
		}
		p := voxel.Pos{X: x, Y: s + 1, Z: z}
		if taken[p] {
			continue
		}
		taken[p] = true
		out = append(out, voxel.Tagged{Pos: p, Category: voxel.CategoryExitLight})
	}
	return out
}

func (g *Generator) carveStaircase(anchor voxel.Pos, rep *Report) {
	plan, steps, complete := g.planStaircase(anchor)
	rep.StairSteps = steps
	rep.StairComplete = complete
	g.applyStaircase(plan, rep)
}

func (g *Generator) applyStaircase(plan []voxel.Tagged, rep *Report) {
	for _, t := range plan {
		p := t.Pos
		if !g.world.IsChunkLoaded(p) {
			rep.Skipped++
			continue
		}
		b := g.world.BlockAt(p)
		switch t.Category {
		case voxel.CategoryHeadroom:
			if !b.Solid() || b == world.Bedrock {
				continue
			}
			if !g.write(p, world.CaveAir, func(cur world.Block) bool { return cur == b }) {
				rep.Skipped++
			}
		case voxel.CategoryFill:
			if b.Solid() {
				continue
			}
			if !g.write(p, world.Cobblestone, func(cur world.Block) bool { return cur == b }) {
				rep.Skipped++
			}
		case voxel.CategoryLight, voxel.CategoryExitLight:
			if !b.IsAir() || !g.world.BlockAt(p.Down(1)).Solid() {
				continue
			}
			if g.write(p, world.Torch, world.Block.IsAir) {
				rep.Torches++
			} else {
				rep.Skipped++
			}
		}
	}
}
