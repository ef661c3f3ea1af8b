package voxel

// Fixed neighbor orders. Traversal determinism depends on these never changing.
var (
	Faces = [6]Pos{
		{X: 1}, {X: -1},
		{Y: 1}, {Y: -1},
		{Z: 1}, {Z: -1},
	}

	Planar8 = [8]Pos{
		{X: 1}, {X: -1}, {Z: 1}, {Z: -1},
		{X: 1, Z: 1}, {X: 1, Z: -1}, {X: -1, Z: 1}, {X: -1, Z: -1},
	}

	// Cardinals are ordered clockwise starting at north (+Z, yaw 0).
	Cardinals = [4]Pos{
		{Z: 1}, {X: -1}, {Z: -1}, {X: 1},
	}
)

// CardinalIndex returns the index of d in Cardinals, or -1.
func CardinalIndex(d Pos) int {
	for i, c := range Cardinals {
		if c == d {
			return i
		}
	}
	return -1
}

// TurnCW rotates a cardinal direction by 90 degrees clockwise.
func TurnCW(d Pos) Pos {
	i := CardinalIndex(d)
	if i < 0 {
		return d
	}
	return Cardinals[(i+1)%4]
}

// TurnCCW rotates a cardinal direction by 90 degrees counter-clockwise.
func TurnCCW(d Pos) Pos {
	i := CardinalIndex(d)
	if i < 0 {
		return d
	}
	return Cardinals[(i+3)%4]
}

// Category tags a coordinate with the role it plays in a generated structure.
type Category uint8

const (
	CategoryStep Category = iota + 1
	CategoryHeadroom
	CategoryFill
	CategoryLight
	CategoryExitLight
)

func (c Category) String() string {
	switch c {
	case CategoryStep:
		return "STEP"
	case CategoryHeadroom:
		return "HEADROOM"
	case CategoryFill:
		return "FILL"
	case CategoryLight:
		return "LIGHT"
	case CategoryExitLight:
		return "EXIT_LIGHT"
	default:
		return "UNKNOWN"
	}
}

// Tagged is a coordinate plus the category it was planned for.
type Tagged struct {
	Pos      Pos
	Category Category
}
