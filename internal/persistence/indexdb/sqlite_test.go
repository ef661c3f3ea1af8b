package indexdb

import (
	"path/filepath"
	"testing"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/voxel"
)

func TestSQLiteIndex_StoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "world.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var store kv.Store = idx
	if err := kv.SetInt(store, "timer.cave", 1200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := kv.AppendPos(store, "cave.anchors", voxel.Pos{X: 1, Y: 30, Z: -4}); err != nil {
		t.Fatalf("AppendPos: %v", err)
	}
	if err := kv.SetInt(store, "timer.cave", 1199); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_ = store.Set("tmp", []byte("x"))
	_ = store.Delete("tmp")
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.Set("late", nil); err != ErrClosed {
		t.Fatalf("Set after close err=%v want ErrClosed", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	if v, ok, err := kv.GetInt(idx, "timer.cave"); err != nil || !ok || v != 1199 {
		t.Fatalf("timer.cave=%d,%v,%v want 1199", v, ok, err)
	}
	anchors, err := kv.PosList(idx, "cave.anchors")
	if err != nil || len(anchors) != 1 || anchors[0] != (voxel.Pos{X: 1, Y: 30, Z: -4}) {
		t.Fatalf("anchors=%v err=%v", anchors, err)
	}
	if _, ok, _ := idx.Get("tmp"); ok {
		t.Fatalf("deleted key survived")
	}
	keys, err := idx.Keys("timer.")
	if err != nil || len(keys) != 1 || keys[0] != "timer.cave" {
		t.Fatalf("keys=%v err=%v", keys, err)
	}
}

func TestSQLiteIndex_EventsAndSnapshots(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.Emit(events.Event{Tick: 10, Kind: events.KindPursuitTriggered, ID: "run-1"})
	idx.Emit(events.Event{Tick: 11, Kind: events.KindPursuitCue, ID: "run-1", Pos: events.At(voxel.Pos{X: 2})})
	idx.Emit(events.Event{Tick: 12, Kind: events.KindPursuitCue, ID: "run-1", Pos: events.At(voxel.Pos{X: 3})})
	idx.RecordSnapshot(100, "/tmp/100.snap.zst", 7, 25, "abcd")
	// Close drains the writer.
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	all, err := idx.Events("", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("events=%d err=%v want 3", len(all), err)
	}
	cues, _ := idx.Events(events.KindPursuitCue, 0)
	if len(cues) != 2 || cues[1].Pos == nil || *cues[1].Pos != (voxel.Pos{X: 3}) {
		t.Fatalf("cues=%+v", cues)
	}
	first, _ := idx.Events("", 1)
	if len(first) != 1 || first[0].Kind != events.KindPursuitTriggered {
		t.Fatalf("limit 1=%+v", first)
	}
	snaps, err := idx.Snapshots()
	if err != nil || len(snaps) != 1 || snaps[0].Tick != 100 || snaps[0].Chunks != 25 {
		t.Fatalf("snapshots=%+v err=%v", snaps, err)
	}
}
