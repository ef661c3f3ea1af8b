package mathx

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit2 maps a lattice hash into [0,1).
func Unit2(seed int64, x, z int) float64 {
	return float64(Hash2(seed, x, z)>>11) / float64(1<<53)
}

// Unit3 maps a lattice hash into [0,1).
func Unit3(seed int64, x, y, z int) float64 {
	return float64(Hash3(seed, x, y, z)>>11) / float64(1<<53)
}

func smoothstep(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// ValueNoise2 is bilinear value noise over a lattice of the given cell size.
// Output is in [0,1).
func ValueNoise2(seed int64, x, z float64, cell float64) float64 {
	if cell <= 0 {
		cell = 1
	}
	fx, fz := x/cell, z/cell
	x0, z0 := math.Floor(fx), math.Floor(fz)
	tx, tz := smoothstep(fx-x0), smoothstep(fz-z0)
	ix, iz := int(x0), int(z0)

	a := Unit2(seed, ix, iz)
	b := Unit2(seed, ix+1, iz)
	c := Unit2(seed, ix, iz+1)
	d := Unit2(seed, ix+1, iz+1)
	return lerp(lerp(a, b, tx), lerp(c, d, tx), tz)
}

// ValueNoise3 is trilinear value noise. Output is in [0,1).
func ValueNoise3(seed int64, x, y, z float64, cell float64) float64 {
	if cell <= 0 {
		cell = 1
	}
	fx, fy, fz := x/cell, y/cell, z/cell
	x0, y0, z0 := math.Floor(fx), math.Floor(fy), math.Floor(fz)
	tx, ty, tz := smoothstep(fx-x0), smoothstep(fy-y0), smoothstep(fz-z0)
	ix, iy, iz := int(x0), int(y0), int(z0)

	c000 := Unit3(seed, ix, iy, iz)
	c100 := Unit3(seed, ix+1, iy, iz)
	c010 := Unit3(seed, ix, iy+1, iz)
	c110 := Unit3(seed, ix+1, iy+1, iz)
	c001 := Unit3(seed, ix, iy, iz+1)
	c101 := Unit3(seed, ix+1, iy, iz+1)
	c011 := Unit3(seed, ix, iy+1, iz+1)
	c111 := Unit3(seed, ix+1, iy+1, iz+1)

	x00 := lerp(c000, c100, tx)
	x10 := lerp(c010, c110, tx)
	x01 := lerp(c001, c101, tx)
	x11 := lerp(c011, c111, tx)
	return lerp(lerp(x00, x10, ty), lerp(x01, x11, ty), tz)
}
