// Package visibility decides whether an observer can currently perceive a voxel.
//
// The oracle is pessimistic: it uses a field of view wider than any real
// display and treats unloaded geometry as transparent, so a "true" answer means
// "assume seen". It never mutates the world.
package visibility

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

type Config struct {
	HorizontalFOV float64 `yaml:"horizontal_fov" json:"horizontal_fov"` // degrees, full angle
	VerticalFOV   float64 `yaml:"vertical_fov" json:"vertical_fov"`     // degrees, full angle
	CornerInset   float64 `yaml:"corner_inset" json:"corner_inset"`     // ray targets are pulled this far inside the voxel
	MaxDistance   float64 `yaml:"max_distance" json:"max_distance"`     // blocks; farther voxels are never visible
}

func DefaultConfig() Config {
	return Config{
		HorizontalFOV: 150,
		VerticalFOV:   130,
		CornerInset:   0.05,
		MaxDistance:   128,
	}
}

// Blocks is the read-only world surface the oracle needs.
type Blocks interface {
	BlockAt(p voxel.Pos) world.Block
	IsChunkLoaded(p voxel.Pos) bool
}

type Oracle struct {
	blocks Blocks
	cfg    Config
	halfH  float64 // radians
	halfV  float64 // radians
}

func New(blocks Blocks, cfg Config) *Oracle {
	def := DefaultConfig()
	if cfg.HorizontalFOV <= 0 {
		cfg.HorizontalFOV = def.HorizontalFOV
	}
	if cfg.VerticalFOV <= 0 {
		cfg.VerticalFOV = def.VerticalFOV
	}
	if cfg.CornerInset <= 0 || cfg.CornerInset >= 0.5 {
		cfg.CornerInset = def.CornerInset
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = def.MaxDistance
	}
	return &Oracle{
		blocks: blocks,
		cfg:    cfg,
		halfH:  mgl64.DegToRad(cfg.HorizontalFOV / 2),
		halfV:  mgl64.DegToRad(cfg.VerticalFOV / 2),
	}
}

func (o *Oracle) Config() Config { return o.cfg }

// Basis returns the forward, right and up unit vectors for a yaw/pitch in degrees.
func Basis(yaw, pitch float64) (forward, right, up mgl64.Vec3) {
	forward = world.Observer{Yaw: yaw, Pitch: pitch}.Forward()
	y := mgl64.DegToRad(yaw)
	right = mgl64.Vec3{-math.Cos(y), 0, -math.Sin(y)}
	up = right.Cross(forward)
	return forward, right, up
}

// InView reports whether dir (from the observer's eye) falls inside the field of view.
func (o *Oracle) InView(obs world.Observer, dir mgl64.Vec3) bool {
	if dir.Len() < 1e-9 {
		return true
	}
	f, r, u := Basis(obs.Yaw, obs.Pitch)
	a := dir.Dot(f)
	h := math.Atan2(math.Abs(dir.Dot(r)), a)
	v := math.Atan2(math.Abs(dir.Dot(u)), a)
	return h <= o.halfH && v <= o.halfV
}

// VoxelVisible reports whether any inset corner of p has an unobstructed sight line
// from the observer's eye.
func (o *Oracle) VoxelVisible(obs world.Observer, p voxel.Pos, maxDistance float64) bool {
	eye := obs.Eye()
	dir := p.Center().Sub(eye)
	if dir.Len() > maxDistance {
		return false
	}
	if !o.InView(obs, dir) {
		return false
	}
	if voxel.FromVec(eye) == p {
		return true
	}

	lo, hi := o.cfg.CornerInset, 1-o.cfg.CornerInset
	base := p.Vec()
	for i := 0; i < 8; i++ {
		off := mgl64.Vec3{lo, lo, lo}
		if i&1 != 0 {
			off[0] = hi
		}
		if i&2 != 0 {
			off[1] = hi
		}
		if i&4 != 0 {
			off[2] = hi
		}
		if o.rayReaches(eye, base.Add(off), p) {
			return true
		}
	}
	return false
}

// Visible is VoxelVisible with the configured max distance.
func (o *Oracle) Visible(obs world.Observer, p voxel.Pos) bool {
	return o.VoxelVisible(obs, p, o.cfg.MaxDistance)
}

// VisibleToAny is the gate used before acting on a voxel. Invalid observers count as
// seeing everything.
func (o *Oracle) VisibleToAny(observers []world.Observer, p voxel.Pos) bool {
	for _, obs := range observers {
		if !obs.Valid() {
			return true
		}
		if o.Visible(obs, p) {
			return true
		}
	}
	return false
}

func (o *Oracle) rayReaches(eye, point mgl64.Vec3, target voxel.Pos) bool {
	tr := NewTraverser(eye, point)
	first := true
	for tr.Next() {
		v := tr.Pos()
		if v == target {
			return true
		}
		if first {
			first = false
			continue
		}
		if o.blocks.IsChunkLoaded(v) && o.blocks.BlockAt(v).Opaque() {
			return false
		}
	}
	// Floating point left the ray short of the target.
	return true
}
