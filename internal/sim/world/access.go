package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/sim/voxel"
)

// EyeHeight is the observer eye offset above the feet position.
const EyeHeight = 1.62

const MaxLight = 15

// Sound names a positioned sound effect.
type Sound string

const (
	SoundFootstep Sound = "step.stone"
)

// Observer is an in-world actor whose perception gates procedural actions.
type Observer struct {
	ID    string
	Pos   mgl64.Vec3 // feet
	Yaw   float64    // degrees; 0 faces +Z, 90 faces -X
	Pitch float64    // degrees; positive looks down
}

func (o Observer) Eye() mgl64.Vec3 {
	return mgl64.Vec3{o.Pos[0], o.Pos[1] + EyeHeight, o.Pos[2]}
}

// Voxel is the voxel containing the observer's feet.
func (o Observer) Voxel() voxel.Pos { return voxel.FromVec(o.Pos) }

// Valid rejects NaN or infinite pose components.
func (o Observer) Valid() bool {
	vals := []float64{o.Pos[0], o.Pos[1], o.Pos[2], o.Yaw, o.Pitch}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Forward is the unit look vector.
func (o Observer) Forward() mgl64.Vec3 {
	yaw := mgl64.DegToRad(o.Yaw)
	pitch := mgl64.DegToRad(o.Pitch)
	return mgl64.Vec3{
		-math.Sin(yaw) * math.Cos(pitch),
		-math.Sin(pitch),
		math.Cos(yaw) * math.Cos(pitch),
	}
}

// Behind is the unit planar vector pointing away from where the observer faces.
func (o Observer) Behind() mgl64.Vec3 {
	yaw := mgl64.DegToRad(o.Yaw)
	return mgl64.Vec3{math.Sin(yaw), 0, -math.Cos(yaw)}
}

// Access is the narrow capability surface the simulation core needs from the host world.
// Callers check IsChunkLoaded before reading or writing a voxel.
type Access interface {
	BlockAt(p voxel.Pos) Block
	SetBlockAt(p voxel.Pos, b Block)
	IsChunkLoaded(p voxel.Pos) bool
	Observers() []Observer
	LightLevel(p voxel.Pos) int
	PlaySoundAt(p voxel.Pos, s Sound)
	Height() int
}

// SurfaceY returns the y of the topmost solid voxel in the column, scanning from the top.
func SurfaceY(a Access, x, z int) (int, bool) {
	top := voxel.Pos{X: x, Y: a.Height() - 1, Z: z}
	if !a.IsChunkLoaded(top) {
		return 0, false
	}
	for y := a.Height() - 1; y >= 0; y-- {
		if a.BlockAt(voxel.Pos{X: x, Y: y, Z: z}).Solid() {
			return y, true
		}
	}
	return 0, false
}

// Walkable reports solid footing below p and two clear voxels at p and above.
func Walkable(a Access, p voxel.Pos) bool {
	if !a.IsChunkLoaded(p) {
		return false
	}
	if !a.BlockAt(p.Down(1)).Solid() {
		return false
	}
	return !a.BlockAt(p).Solid() && !a.BlockAt(p.Up(1)).Solid()
}
