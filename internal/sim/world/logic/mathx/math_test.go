package mathx

import "testing"

func TestFloorDivMod_Negative(t *testing.T) {
	cases := []struct {
		a, b    int
		div, md int
	}{
		{a: 0, b: 16, div: 0, md: 0},
		{a: 15, b: 16, div: 0, md: 15},
		{a: 16, b: 16, div: 1, md: 0},
		{a: -1, b: 16, div: -1, md: 15},
		{a: -16, b: 16, div: -1, md: 0},
		{a: -17, b: 16, div: -2, md: 15},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.div {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.div)
		}
		if got := Mod(c.a, c.b); got != c.md {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.md)
		}
	}
}

func TestValueNoise_RangeAndDeterminism(t *testing.T) {
	for i := 0; i < 200; i++ {
		x := float64(i)*1.37 - 100
		z := float64(i)*0.73 + 5
		a := ValueNoise2(42, x, z, 16)
		b := ValueNoise2(42, x, z, 16)
		if a != b {
			t.Fatalf("ValueNoise2 not deterministic at (%v,%v)", x, z)
		}
		if a < 0 || a >= 1 {
			t.Fatalf("ValueNoise2=%v out of [0,1)", a)
		}
		v := ValueNoise3(7, x, float64(i%40), z, 12)
		if v < 0 || v >= 1 {
			t.Fatalf("ValueNoise3=%v out of [0,1)", v)
		}
	}
}
