// Package pathing finds hidden walking routes for the pursuer.
//
// Routes are breadth-first searches over walkable voxels that no observer can see.
// A search scores every visited voxel whose planar distance from the start falls in
// a band and keeps the one most aligned with a bias direction.
package pathing

import (
	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/sim/floodfill"
	"unseen.ai/internal/sim/visibility"
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

type Config struct {
	BandMin         float64 `yaml:"band_min" json:"band_min"`
	BandMax         float64 `yaml:"band_max" json:"band_max"`
	ExtendBandMin   float64 `yaml:"extend_band_min" json:"extend_band_min"`
	ExtendBandMax   float64 `yaml:"extend_band_max" json:"extend_band_max"`
	RadiusCap       int     `yaml:"radius_cap" json:"radius_cap"`
	ExtendRadiusCap int     `yaml:"extend_radius_cap" json:"extend_radius_cap"`
	MinLength       int     `yaml:"min_length" json:"min_length"`
	MaxVisited      int     `yaml:"max_visited" json:"max_visited"`
}

func DefaultConfig() Config {
	return Config{
		BandMin:         20,
		BandMax:         30,
		ExtendBandMin:   3,
		ExtendBandMax:   10,
		RadiusCap:       40,
		ExtendRadiusCap: 16,
		MinLength:       3,
		MaxVisited:      8000,
	}
}

// Segment is an ordered run of voxels in walking order.
type Segment struct {
	Steps []voxel.Pos `json:"steps"`
}

func (s Segment) Len() int { return len(s.Steps) }

type Planner struct {
	world  world.Access
	oracle *visibility.Oracle
	cfg    Config
}

func New(w world.Access, oracle *visibility.Oracle, cfg Config) *Planner {
	if cfg.RadiusCap <= 0 || cfg.RadiusCap > floodfill.MaxRadius {
		cfg.RadiusCap = floodfill.MaxRadius
	}
	if cfg.ExtendRadiusCap <= 0 || cfg.ExtendRadiusCap > floodfill.MaxRadius {
		cfg.ExtendRadiusCap = cfg.RadiusCap
	}
	return &Planner{world: w, oracle: oracle, cfg: cfg}
}

func (pl *Planner) Config() Config { return pl.cfg }

// Snap returns the walkable voxel at p's level, one below, or one above, in that order.
func (pl *Planner) Snap(p voxel.Pos) (voxel.Pos, bool) {
	for _, q := range [3]voxel.Pos{p, p.Down(1), p.Up(1)} {
		if world.Walkable(pl.world, q) {
			return q, true
		}
	}
	return voxel.Pos{}, false
}

func (pl *Planner) neighbors(p voxel.Pos) []voxel.Pos {
	out := make([]voxel.Pos, 0, len(voxel.Planar8))
	for _, d := range voxel.Planar8 {
		q, ok := pl.Snap(p.Add(d))
		if !ok {
			continue
		}
		// Stepping up needs clearance above the current head, stepping down
		// above the target's head.
		if q.Y > p.Y && pl.world.BlockAt(p.Up(2)).Solid() {
			continue
		}
		if q.Y < p.Y && pl.world.BlockAt(q.Up(2)).Solid() {
			continue
		}
		// No cutting corners: both columns a diagonal passes between must be walkable.
		if d.X != 0 && d.Z != 0 {
			if _, ok := pl.Snap(p.Add(voxel.Pos{X: d.X})); !ok {
				continue
			}
			if _, ok := pl.Snap(p.Add(voxel.Pos{Z: d.Z})); !ok {
				continue
			}
		}
		out = append(out, q)
	}
	return out
}

// BodyVisible reports whether a figure standing at p (feet and head) can be seen.
func (pl *Planner) BodyVisible(observers []world.Observer, p voxel.Pos) bool {
	return pl.oracle.VisibleToAny(observers, p) || pl.oracle.VisibleToAny(observers, p.Up(1))
}

type search struct {
	start     voxel.Pos
	bias      mgl64.Vec3
	bandMin   float64
	bandMax   float64
	radius    int
	observers []world.Observer
}

// run explores hidden walkable voxels from s.start and returns the start-to-target
// chain of the best candidate.
func (pl *Planner) run(s search) ([]voxel.Pos, bool) {
	var (
		best    voxel.Pos
		bestDot float64
		found   bool
	)
	score := func(p, _ voxel.Pos) {
		if p == s.start {
			return
		}
		d := p.PlanarDist(s.start)
		if d < s.bandMin || d > s.bandMax {
			return
		}
		dot := s.start.PlanarDir(p).Dot(s.bias)
		if dot <= 0 {
			return
		}
		if !found || dot > bestDot {
			best, bestDot, found = p, dot, true
		}
	}
	accept := func(p voxel.Pos) bool {
		return !pl.BodyVisible(s.observers, p)
	}
	res, err := floodfill.Explore(s.start, pl.neighbors, accept, nil, floodfill.Options{
		Radius:     s.radius,
		MaxVisited: pl.cfg.MaxVisited,
		OnVisit:    score,
	})
	if err != nil || !found {
		return nil, false
	}
	return res.PathTo(best), true
}

func planarUnit(v mgl64.Vec3) (mgl64.Vec3, bool) {
	v[1] = 0
	if v.Len() < 1e-9 {
		return mgl64.Vec3{}, false
	}
	return v.Normalize(), true
}

// BuildInitialPath finds a hidden route that starts in the band behind obs and ends
// next to obs. Steps run from the far end toward the observer; the observer's own
// voxel is not part of the segment.
func (pl *Planner) BuildInitialPath(obs world.Observer, behind mgl64.Vec3) (Segment, bool) {
	if !obs.Valid() || !pl.world.IsChunkLoaded(obs.Voxel()) {
		return Segment{}, false
	}
	bias, ok := planarUnit(behind)
	if !ok {
		return Segment{}, false
	}
	start, ok := pl.Snap(obs.Voxel())
	if !ok {
		return Segment{}, false
	}
	chain, ok := pl.run(search{
		start:     start,
		bias:      bias,
		bandMin:   pl.cfg.BandMin,
		bandMax:   pl.cfg.BandMax,
		radius:    pl.cfg.RadiusCap,
		observers: pl.world.Observers(),
	})
	if !ok {
		return Segment{}, false
	}
	steps := make([]voxel.Pos, 0, len(chain)-1)
	for i := len(chain) - 1; i >= 1; i-- {
		steps = append(steps, chain[i])
	}
	if len(steps) < pl.cfg.MinLength {
		return Segment{}, false
	}
	return Segment{Steps: steps}, true
}

// ExtendPath grows a route from the pursuer's last position toward a target voxel,
// landing in the extension band. The start voxel is excluded.
func (pl *Planner) ExtendPath(from, toward voxel.Pos, observers []world.Observer) (Segment, bool) {
	if !pl.world.IsChunkLoaded(from) {
		return Segment{}, false
	}
	bias, ok := planarUnit(from.PlanarDir(toward))
	if !ok {
		return Segment{}, false
	}
	start, ok := pl.Snap(from)
	if !ok {
		return Segment{}, false
	}
	chain, ok := pl.run(search{
		start:     start,
		bias:      bias,
		bandMin:   pl.cfg.ExtendBandMin,
		bandMax:   pl.cfg.ExtendBandMax,
		radius:    pl.cfg.ExtendRadiusCap,
		observers: observers,
	})
	if !ok || len(chain) < 2 {
		return Segment{}, false
	}
	return Segment{Steps: append([]voxel.Pos(nil), chain[1:]...)}, true
}
