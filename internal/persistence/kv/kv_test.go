package kv

import (
	"testing"

	"unseen.ai/internal/sim/voxel"
)

func TestTypedHelpers(t *testing.T) {
	s := NewMemory()

	if _, ok, err := GetInt(s, "timer.cave"); ok || err != nil {
		t.Fatalf("absent int ok=%v err=%v", ok, err)
	}
	if err := SetInt(s, "timer.cave", -42); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if v, ok, err := GetInt(s, "timer.cave"); err != nil || !ok || v != -42 {
		t.Fatalf("GetInt=%d,%v,%v want -42,true,nil", v, ok, err)
	}

	p := voxel.Pos{X: -3, Y: 12, Z: 900}
	if err := SetPos(s, "last", p); err != nil {
		t.Fatalf("SetPos: %v", err)
	}
	if got, ok, err := GetPos(s, "last"); err != nil || !ok || got != p {
		t.Fatalf("GetPos=%v,%v,%v want %v", got, ok, err, p)
	}

	list, err := PosList(s, "cave.anchors")
	if err != nil || len(list) != 0 {
		t.Fatalf("empty list=%v err=%v", list, err)
	}
	for i := 0; i < 3; i++ {
		if err := AppendPos(s, "cave.anchors", voxel.Pos{X: i}); err != nil {
			t.Fatalf("AppendPos: %v", err)
		}
	}
	list, _ = PosList(s, "cave.anchors")
	if len(list) != 3 || list[2] != (voxel.Pos{X: 2}) {
		t.Fatalf("list=%v", list)
	}
}

func TestGetInt_Malformed(t *testing.T) {
	s := NewMemory()
	_ = s.Set("timer.x", []byte("soon"))
	if _, _, err := GetInt(s, "timer.x"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMemory_KeysAndCopies(t *testing.T) {
	s := NewMemory()
	_ = s.Set("timer.b", []byte("1"))
	_ = s.Set("timer.a", []byte("2"))
	_ = s.Set("cave.anchors", []byte("[]"))

	keys, _ := s.Keys("timer.")
	if len(keys) != 2 || keys[0] != "timer.a" || keys[1] != "timer.b" {
		t.Fatalf("keys=%v", keys)
	}

	v, _, _ := s.Get("timer.a")
	v[0] = 'x'
	if again, _, _ := s.Get("timer.a"); string(again) != "2" {
		t.Fatalf("stored value aliased: %q", again)
	}

	_ = s.Delete("timer.a")
	if _, ok, _ := s.Get("timer.a"); ok {
		t.Fatalf("deleted key still present")
	}
}
