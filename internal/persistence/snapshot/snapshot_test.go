package snapshot

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
	"unseen.ai/internal/sim/world/terrain/gen"
)

func TestSnapshot_RoundTripRestoresCarvedWorld(t *testing.T) {
	terrain := gen.Defaults(42)
	g := world.NewGrid(96, terrain)
	g.LoadAround(voxel.Pos{}, 1)
	carved := voxel.Pos{X: 3, Y: 20, Z: 4}
	g.SetBlockAt(carved, world.Torch)
	want := g.Digest()

	dir := t.TempDir()
	path := Path(dir, 1200)
	if err := WriteSnapshot(path, Capture("w1", 1200, 42, g)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Tick != 1200 || h.WorldID != "w1" || h.Version != Version {
		t.Fatalf("header=%+v", h)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if snap.Digest != hex.EncodeToString(want[:]) || len(snap.Chunks) != 9 {
		t.Fatalf("digest=%s chunks=%d", snap.Digest, len(snap.Chunks))
	}

	restored := world.NewGrid(96, terrain)
	if err := Restore(snap, restored); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := restored.Digest(); got != want {
		t.Fatalf("restored digest differs")
	}
	if restored.IsChunkLoaded(carved) {
		t.Fatalf("restore loaded chunks")
	}
	restored.LoadAround(carved, 0)
	if b := restored.BlockAt(carved); b != world.Torch {
		t.Fatalf("carved block=%v want torch", b)
	}
}

func TestRestore_RejectsHeightMismatch(t *testing.T) {
	g := world.NewGrid(64, nil)
	g.LoadAround(voxel.Pos{}, 0)
	snap := Capture("w1", 1, 1, g)
	if err := Restore(snap, world.NewGrid(96, nil)); err == nil {
		t.Fatalf("restored a 64-high snapshot into a 96-high world")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if _, ok, err := Latest(filepath.Join(dir, "missing")); ok || err != nil {
		t.Fatalf("Latest(missing)=%v,%v", ok, err)
	}
	g := world.NewGrid(64, nil)
	for _, tick := range []uint64{600, 12000, 1800} {
		if err := WriteSnapshot(Path(dir, tick), Capture("w1", tick, 1, g)); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	got, ok, err := Latest(dir)
	if err != nil || !ok || got != Path(dir, 12000) {
		t.Fatalf("Latest=%q,%v,%v want %q", got, ok, err, Path(dir, 12000))
	}
}

func TestRestore_RejectsCorruptChunk(t *testing.T) {
	g := world.NewGrid(64, nil)
	g.LoadAround(voxel.Pos{}, 0)
	snap := Capture("w1", 1, 1, g)
	snap.Chunks[0].Blocks = snap.Chunks[0].Blocks[:1]

	restored := world.NewGrid(64, nil)
	if err := Restore(snap, restored); err == nil {
		t.Fatalf("restored a truncated chunk")
	}
	if len(restored.ChunkKeys()) != 0 {
		t.Fatalf("partial restore installed %d chunks", len(restored.ChunkKeys()))
	}
}
