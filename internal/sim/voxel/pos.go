package voxel

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/sim/world/logic/mathx"
)

// Pos is an integer voxel coordinate in world space.
type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }
func (p Pos) Sub(o Pos) Pos { return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z} }
func (p Pos) Up(n int) Pos  { return Pos{X: p.X, Y: p.Y + n, Z: p.Z} }
func (p Pos) Down(n int) Pos {
	return Pos{X: p.X, Y: p.Y - n, Z: p.Z}
}

func (p Pos) DistSq(o Pos) int {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

func (p Pos) PlanarDistSq(o Pos) int {
	dx, dz := p.X-o.X, p.Z-o.Z
	return dx*dx + dz*dz
}

func (p Pos) PlanarDist(o Pos) float64 {
	return math.Sqrt(float64(p.PlanarDistSq(o)))
}

func (p Pos) Manhattan(o Pos) int {
	return mathx.AbsInt(p.X-o.X) + mathx.AbsInt(p.Y-o.Y) + mathx.AbsInt(p.Z-o.Z)
}

// Center is the midpoint of the voxel cube.
func (p Pos) Center() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y) + 0.5, float64(p.Z) + 0.5}
}

// Floor is the center of the voxel's bottom face (where an entity stands).
func (p Pos) Floor() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y), float64(p.Z) + 0.5}
}

func (p Pos) Vec() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X), float64(p.Y), float64(p.Z)}
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// FromVec returns the voxel containing v.
func FromVec(v mgl64.Vec3) Pos {
	return Pos{X: int(math.Floor(v[0])), Y: int(math.Floor(v[1])), Z: int(math.Floor(v[2]))}
}

// MarshalJSON encodes as [x,y,z].
func (p Pos) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{p.X, p.Y, p.Z})
}

func (p *Pos) UnmarshalJSON(b []byte) error {
	var a [3]int
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = Pos{X: a[0], Y: a[1], Z: a[2]}
	return nil
}

// PlanarDir is the unit XZ direction from p toward o, or the zero vector.
func (p Pos) PlanarDir(o Pos) mgl64.Vec3 {
	v := mgl64.Vec3{float64(o.X - p.X), 0, float64(o.Z - p.Z)}
	if v.Len() == 0 {
		return mgl64.Vec3{}
	}
	return v.Normalize()
}
