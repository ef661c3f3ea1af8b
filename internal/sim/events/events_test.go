package events

import (
	"testing"

	"unseen.ai/internal/sim/voxel"
)

func TestStampAndMulti(t *testing.T) {
	var a, b Recorder
	tick := uint64(7)
	s := Stamp(func() uint64 { return tick }, Multi{&a, nil, &b})

	s.Emit(Event{Kind: KindPursuitCue, Pos: At(voxel.Pos{X: 1})})
	s.Emit(Event{Kind: KindPursuitCue, Tick: 3})

	if len(a.Events) != 2 || len(b.Events) != 2 {
		t.Fatalf("fanout a=%d b=%d want 2", len(a.Events), len(b.Events))
	}
	if a.Events[0].Tick != 7 {
		t.Fatalf("stamped tick=%d want 7", a.Events[0].Tick)
	}
	if a.Events[1].Tick != 3 {
		t.Fatalf("preset tick overwritten: %d", a.Events[1].Tick)
	}
	if a.Count(KindPursuitCue) != 2 || a.Count(KindPursuitPaused) != 0 {
		t.Fatalf("Count mismatch: %v", a.Kinds())
	}
	if e, ok := b.Last(KindPursuitCue); !ok || e.Tick != 3 {
		t.Fatalf("Last=%v,%v", e, ok)
	}
}

func TestOrDiscard(t *testing.T) {
	OrDiscard(nil).Emit(Event{Kind: KindSound})
	var r Recorder
	OrDiscard(&r).Emit(Event{Kind: KindSound})
	if len(r.Events) != 1 {
		t.Fatalf("events=%d want 1", len(r.Events))
	}
}
