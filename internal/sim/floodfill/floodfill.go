// Package floodfill is a bounded breadth-first traversal over voxel adjacency.
//
// It knows nothing about mining: callers that need side effects during the walk (mining,
// scoring) fold them into the predicates or the OnVisit hook. Traversal order is a pure
// function of the start, the neighbor order and the predicate answers.
package floodfill

import (
	"errors"
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"unseen.ai/internal/sim/voxel"
)

// MaxRadius is the largest Euclidean radius a traversal may request.
const MaxRadius = 64

var ErrRadiusOutOfRange = errors.New("floodfill: radius out of range")

// NeighborFunc lists the candidate neighbors of p in a fixed order.
type NeighborFunc func(p voxel.Pos) []voxel.Pos

// Predicate answers a yes/no question about a candidate voxel.
type Predicate func(p voxel.Pos) bool

type Options struct {
	// Radius caps the Euclidean distance from start (inclusive).
	Radius int
	// MaxVisited bounds the result size. Zero means no bound beyond Radius.
	MaxVisited int
	// OnVisit is called for each accepted voxel in discovery order. The start voxel
	// is reported with itself as parent.
	OnVisit func(p, parent voxel.Pos)
}

type Result struct {
	Order     []voxel.Pos
	Visited   mapset.Set[voxel.Pos]
	Parents   map[voxel.Pos]voxel.Pos
	Truncated bool
}

func (r Result) Contains(p voxel.Pos) bool { return r.Visited.Has(p) }

// PathTo returns the discovery chain from the start to p (both included), or nil if
// p was not visited.
func (r Result) PathTo(p voxel.Pos) []voxel.Pos {
	if !r.Visited.Has(p) {
		return nil
	}
	var rev []voxel.Pos
	cur := p
	for {
		rev = append(rev, cur)
		parent := r.Parents[cur]
		if parent == cur {
			break
		}
		cur = parent
	}
	out := make([]voxel.Pos, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// Explore runs a BFS from start. A neighbor joins the result when it is within
// Radius, has not been seen, and both accept and cont hold for it. Each coordinate is
// evaluated by the predicates at most once. The start voxel is always included.
func Explore(start voxel.Pos, neighbors NeighborFunc, accept, cont Predicate, opts Options) (Result, error) {
	if opts.Radius < 0 || opts.Radius > MaxRadius {
		return Result{}, fmt.Errorf("%w: %d (max %d)", ErrRadiusOutOfRange, opts.Radius, MaxRadius)
	}
	r2 := opts.Radius * opts.Radius

	res := Result{
		Order:   make([]voxel.Pos, 0, 256),
		Visited: mapset.New[voxel.Pos](),
		Parents: make(map[voxel.Pos]voxel.Pos, 256),
	}
	rejected := mapset.New[voxel.Pos]()

	visit := func(p, parent voxel.Pos) {
		res.Visited.Put(p)
		res.Parents[p] = parent
		res.Order = append(res.Order, p)
		if opts.OnVisit != nil {
			opts.OnVisit(p, parent)
		}
	}
	visit(start, start)

	for head := 0; head < len(res.Order); head++ {
		cur := res.Order[head]
		for _, n := range neighbors(cur) {
			if res.Visited.Has(n) || rejected.Has(n) {
				continue
			}
			if n.DistSq(start) > r2 {
				rejected.Put(n)
				continue
			}
			if (accept != nil && !accept(n)) || (cont != nil && !cont(n)) {
				rejected.Put(n)
				continue
			}
			if opts.MaxVisited > 0 && len(res.Order) >= opts.MaxVisited {
				res.Truncated = true
				return res, nil
			}
			visit(n, cur)
		}
	}
	return res, nil
}

// Orthogonal yields the six face neighbors.
func Orthogonal(p voxel.Pos) []voxel.Pos {
	out := make([]voxel.Pos, 0, len(voxel.Faces))
	for _, d := range voxel.Faces {
		out = append(out, p.Add(d))
	}
	return out
}

// Horizontal8 yields the eight neighbors on p's level.
func Horizontal8(p voxel.Pos) []voxel.Pos {
	out := make([]voxel.Pos, 0, len(voxel.Planar8))
	for _, d := range voxel.Planar8 {
		out = append(out, p.Add(d))
	}
	return out
}

// WithinSq is a continue predicate bounding squared distance from center.
func WithinSq(center voxel.Pos, maxSq int) Predicate {
	return func(p voxel.Pos) bool { return p.DistSq(center) <= maxSq }
}

// All combines predicates; every one must hold.
func All(ps ...Predicate) Predicate {
	return func(p voxel.Pos) bool {
		for _, f := range ps {
			if f != nil && !f(p) {
				return false
			}
		}
		return true
	}
}
