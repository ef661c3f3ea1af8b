package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"unseen.ai/internal/sim/encoding"
	"unseen.ai/internal/sim/world"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   int64  `json:"seed"`
	Height int    `json:"height"`
	Digest string `json:"digest"` // hex Grid.Digest at capture time

	Chunks []ChunkV1 `json:"chunks"`
}

type ChunkV1 struct {
	CX     int    `json:"cx"`
	CZ     int    `json:"cz"`
	Height int    `json:"height"`
	Blocks []byte `json:"blocks"` // encoding.EncodeRLE of the chunk's block ids
}

// Capture copies every resident chunk of g.
func Capture(worldID string, tick uint64, seed int64, g *world.Grid) SnapshotV1 {
	d := g.Digest()
	snap := SnapshotV1{
		Header: Header{Version: Version, WorldID: worldID, Tick: tick},
		Seed:   seed,
		Height: g.Height(),
		Digest: hex.EncodeToString(d[:]),
	}
	for _, k := range g.ChunkKeys() {
		ch := g.Chunk(k)
		snap.Chunks = append(snap.Chunks, ChunkV1{
			CX:     ch.CX,
			CZ:     ch.CZ,
			Height: ch.Height,
			Blocks: encoding.EncodeRLE(ch.Blocks),
		})
	}
	return snap
}

// Restore installs the snapshot's chunks into g. Chunks stay unloaded until an
// observer comes near them.
func Restore(snap SnapshotV1, g *world.Grid) error {
	if snap.Header.Version != Version {
		return fmt.Errorf("snapshot version %d unsupported", snap.Header.Version)
	}
	if snap.Height != g.Height() {
		return fmt.Errorf("snapshot height %d does not match world height %d", snap.Height, g.Height())
	}
	want := world.ChunkSize * world.ChunkSize * snap.Height
	decoded := make([][]uint16, len(snap.Chunks))
	for i, c := range snap.Chunks {
		ids, err := encoding.DecodeRLE(c.Blocks, want)
		if err != nil {
			return fmt.Errorf("chunk %d,%d: %w", c.CX, c.CZ, err)
		}
		decoded[i] = ids
	}
	for i, c := range snap.Chunks {
		ch := world.NewChunk(c.CX, c.CZ, snap.Height)
		copy(ch.Blocks, decoded[i])
		g.PutChunk(ch)
	}
	return nil
}

// Path names the snapshot file for tick inside dir.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}

// Latest returns the snapshot with the highest tick in dir.
func Latest(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var ticks []uint64
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".snap.zst")
		if !ok || e.IsDir() {
			continue
		}
		t, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		ticks = append(ticks, t)
	}
	if len(ticks) == 0 {
		return "", false, nil
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return Path(dir, ticks[len(ticks)-1]), true, nil
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded snapshot, all
// zstd-compressed. The file is renamed into place once complete.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob payload repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
