package main

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/observerproto"
)

func TestWander_StaysValid(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 0))
	p := pose{Pos: mgl64.Vec3{0.5, 61, 0.5}}
	for i := 0; i < 500; i++ {
		next := p.wander(rng)
		if next.Yaw < -180 || next.Yaw >= 180 || next.Pitch < -45 || next.Pitch > 45 {
			t.Fatalf("step %d: yaw=%v pitch=%v", i, next.Yaw, next.Pitch)
		}
		if next.Pos[1] != 61 {
			t.Fatalf("step %d: left the spawn plane: %v", i, next.Pos)
		}
		if d := next.Pos.Sub(p.Pos).Len(); d > 0.5+1e-9 {
			t.Fatalf("step %d: moved %v", i, d)
		}
		raw, _ := json.Marshal(next.msg())
		var v map[string]any
		if err := observerproto.Decode(raw, observerproto.TypePose, &v); err != nil {
			t.Fatalf("step %d: pose rejected: %v", i, err)
		}
		p = next
	}
}
