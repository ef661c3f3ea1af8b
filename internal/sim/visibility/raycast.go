package visibility

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/sim/voxel"
)

// Traverser is an iterator over the voxels a segment passes through, in order
// (Amanatides & Woo). The first voxel yielded contains the segment start.
type Traverser struct {
	cur     voxel.Pos
	step    [3]int
	tMax    [3]float64
	tDelta  [3]float64
	started bool
	done    bool
}

func NewTraverser(from, to mgl64.Vec3) Traverser {
	t := Traverser{cur: voxel.FromVec(from)}
	dir := to.Sub(from)
	for i := 0; i < 3; i++ {
		switch {
		case dir[i] > 0:
			t.step[i] = 1
			t.tDelta[i] = 1 / dir[i]
			t.tMax[i] = (math.Floor(from[i]) + 1 - from[i]) / dir[i]
		case dir[i] < 0:
			t.step[i] = -1
			t.tDelta[i] = -1 / dir[i]
			t.tMax[i] = (from[i] - math.Floor(from[i])) / -dir[i]
		default:
			t.tDelta[i] = math.Inf(1)
			t.tMax[i] = math.Inf(1)
		}
	}
	return t
}

// Next advances to the next voxel. Returns false once the segment end has been passed.
func (t *Traverser) Next() bool {
	if t.done {
		return false
	}
	if !t.started {
		t.started = true
		return true
	}
	axis := 0
	if t.tMax[1] < t.tMax[axis] {
		axis = 1
	}
	if t.tMax[2] < t.tMax[axis] {
		axis = 2
	}
	if t.tMax[axis] > 1 {
		t.done = true
		return false
	}
	switch axis {
	case 0:
		t.cur.X += t.step[0]
	case 1:
		t.cur.Y += t.step[1]
	default:
		t.cur.Z += t.step[2]
	}
	t.tMax[axis] += t.tDelta[axis]
	return true
}

func (t *Traverser) Pos() voxel.Pos { return t.cur }
