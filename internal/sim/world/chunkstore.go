package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world/logic/mathx"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// ChunkKeyOf returns the key of the chunk column containing p.
func ChunkKeyOf(p voxel.Pos) ChunkKey {
	return ChunkKey{CX: mathx.FloorDiv(p.X, ChunkSize), CZ: mathx.FloorDiv(p.Z, ChunkSize)}
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	tops  []int16 // topmost opaque y per column, -1 when open
	dirty bool
	hash  [32]byte
}

func NewChunk(cx, cz, height int) *Chunk {
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: height,
		Blocks: make([]uint16, ChunkSize*ChunkSize*height),
		tops:   make([]int16, ChunkSize*ChunkSize),
		dirty:  true,
	}
	for i := range ch.tops {
		ch.tops[i] = -1
	}
	return ch
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) Block {
	if y < 0 || y >= c.Height {
		return Air
	}
	return Block(c.Blocks[c.index(x, y, z)])
}

func (c *Chunk) Set(x, y, z int, b Block) {
	if y < 0 || y >= c.Height {
		return
	}
	i := c.index(x, y, z)
	if Block(c.Blocks[i]) == b {
		return
	}
	c.Blocks[i] = uint16(b)
	c.dirty = true

	col := x + z*ChunkSize
	top := int(c.tops[col])
	switch {
	case b.Opaque() && y > top:
		c.tops[col] = int16(y)
	case !b.Opaque() && y == top:
		c.tops[col] = int16(c.scanTop(x, z, y-1))
	}
}

func (c *Chunk) scanTop(x, z, from int) int {
	for y := from; y >= 0; y-- {
		if Block(c.Blocks[c.index(x, y, z)]).Opaque() {
			return y
		}
	}
	return -1
}

// RebuildColumns recomputes the per-column sky tops after bulk writes to Blocks.
func (c *Chunk) RebuildColumns() {
	if len(c.tops) != ChunkSize*ChunkSize {
		c.tops = make([]int16, ChunkSize*ChunkSize)
	}
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			c.tops[x+z*ChunkSize] = int16(c.scanTop(x, z, c.Height-1))
		}
	}
	c.dirty = true
}

func (c *Chunk) top(x, z int) int { return int(c.tops[x+z*ChunkSize]) }

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Generator fills freshly created chunks.
type Generator interface {
	Generate(ch *Chunk)
}

// SoundHook receives positioned sounds.
type SoundHook func(p voxel.Pos, s Sound)

// Grid is an in-memory chunked voxel world implementing Access.
// Accessed only from the runtime loop goroutine.
type Grid struct {
	height int
	gen    Generator

	chunks   map[ChunkKey]*Chunk
	loaded   map[ChunkKey]bool
	emitters map[ChunkKey]map[voxel.Pos]int

	observers map[string]Observer
	sound     SoundHook
}

func NewGrid(height int, gen Generator) *Grid {
	if height <= 0 {
		height = 128
	}
	return &Grid{
		height:    height,
		gen:       gen,
		chunks:    map[ChunkKey]*Chunk{},
		loaded:    map[ChunkKey]bool{},
		emitters:  map[ChunkKey]map[voxel.Pos]int{},
		observers: map[string]Observer{},
	}
}

func (g *Grid) Height() int { return g.height }

func (g *Grid) SetSoundHook(h SoundHook) { g.sound = h }

func (g *Grid) ChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(g.chunks))
	for k := range g.chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (g *Grid) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(g.loaded))
	for k := range g.loaded {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

func (g *Grid) Chunk(k ChunkKey) *Chunk { return g.chunks[k] }

// PutChunk installs a chunk (e.g. from a snapshot) without loading it.
func (g *Grid) PutChunk(ch *Chunk) {
	ch.Height = g.height
	ch.RebuildColumns()
	k := ChunkKey{CX: ch.CX, CZ: ch.CZ}
	g.chunks[k] = ch
	g.indexEmitters(ch)
}

// LoadChunk generates the chunk if needed and marks it loaded.
func (g *Grid) LoadChunk(k ChunkKey) *Chunk {
	ch := g.getOrGenChunk(k)
	g.loaded[k] = true
	return ch
}

// LoadAround loads every chunk within a square chunk radius of p.
func (g *Grid) LoadAround(p voxel.Pos, radius int) {
	c := ChunkKeyOf(p)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			g.LoadChunk(ChunkKey{CX: c.CX + dx, CZ: c.CZ + dz})
		}
	}
}

// Retain unloads every chunk not in keep. Chunk data stays resident.
func (g *Grid) Retain(keep map[ChunkKey]bool) {
	for k := range g.loaded {
		if !keep[k] {
			delete(g.loaded, k)
		}
	}
}

func (g *Grid) getOrGenChunk(k ChunkKey) *Chunk {
	if ch, ok := g.chunks[k]; ok {
		return ch
	}
	ch := NewChunk(k.CX, k.CZ, g.height)
	if g.gen != nil {
		g.gen.Generate(ch)
	}
	ch.RebuildColumns()
	_ = ch.Digest()
	g.chunks[k] = ch
	g.indexEmitters(ch)
	return ch
}

func (g *Grid) indexEmitters(ch *Chunk) {
	k := ChunkKey{CX: ch.CX, CZ: ch.CZ}
	delete(g.emitters, k)
	for y := 0; y < ch.Height; y++ {
		for z := 0; z < ChunkSize; z++ {
			for x := 0; x < ChunkSize; x++ {
				if e := ch.Get(x, y, z).Emission(); e > 0 {
					g.trackEmitter(voxel.Pos{X: ch.CX*ChunkSize + x, Y: y, Z: ch.CZ*ChunkSize + z}, e)
				}
			}
		}
	}
}

func (g *Grid) trackEmitter(p voxel.Pos, level int) {
	k := ChunkKeyOf(p)
	m := g.emitters[k]
	if level <= 0 {
		if m != nil {
			delete(m, p)
		}
		return
	}
	if m == nil {
		m = map[voxel.Pos]int{}
		g.emitters[k] = m
	}
	m[p] = level
}

func (g *Grid) IsChunkLoaded(p voxel.Pos) bool {
	return g.loaded[ChunkKeyOf(p)]
}

func (g *Grid) BlockAt(p voxel.Pos) Block {
	if p.Y < 0 {
		return Bedrock
	}
	if p.Y >= g.height {
		return Air
	}
	ch := g.chunks[ChunkKeyOf(p)]
	if ch == nil {
		return Air
	}
	return ch.Get(mathx.Mod(p.X, ChunkSize), p.Y, mathx.Mod(p.Z, ChunkSize))
}

// SetBlockAt writes to loaded chunks only.
func (g *Grid) SetBlockAt(p voxel.Pos, b Block) {
	if p.Y < 0 || p.Y >= g.height {
		return
	}
	k := ChunkKeyOf(p)
	if !g.loaded[k] {
		return
	}
	ch := g.chunks[k]
	if ch == nil {
		return
	}
	ch.Set(mathx.Mod(p.X, ChunkSize), p.Y, mathx.Mod(p.Z, ChunkSize), b)
	g.trackEmitter(p, b.Emission())
}

// Fill sets every voxel in the inclusive box, loading chunks as needed.
func (g *Grid) Fill(min, max voxel.Pos, b Block) {
	for x := min.X; x <= max.X; x++ {
		for z := min.Z; z <= max.Z; z++ {
			g.LoadChunk(ChunkKeyOf(voxel.Pos{X: x, Z: z}))
			for y := min.Y; y <= max.Y; y++ {
				g.SetBlockAt(voxel.Pos{X: x, Y: y, Z: z}, b)
			}
		}
	}
}

// LightLevel combines sky light for columns open above p with block light
// falling off by Manhattan distance from emitters.
func (g *Grid) LightLevel(p voxel.Pos) int {
	k := ChunkKeyOf(p)
	if !g.loaded[k] {
		return 0
	}
	if p.Y >= g.height {
		return MaxLight
	}
	ch := g.chunks[k]
	if ch != nil && p.Y > ch.top(mathx.Mod(p.X, ChunkSize), mathx.Mod(p.Z, ChunkSize)) {
		return MaxLight
	}
	best := 0
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			for e, level := range g.emitters[ChunkKey{CX: k.CX + dx, CZ: k.CZ + dz}] {
				if l := level - e.Manhattan(p); l > best {
					best = l
				}
			}
		}
	}
	return best
}

func (g *Grid) PlaySoundAt(p voxel.Pos, s Sound) {
	if g.sound != nil {
		g.sound(p, s)
	}
}

func (g *Grid) SetObserver(o Observer) { g.observers[o.ID] = o }

func (g *Grid) RemoveObserver(id string) { delete(g.observers, id) }

func (g *Grid) Observer(id string) (Observer, bool) {
	o, ok := g.observers[id]
	return o, ok
}

// Observers returns observers ordered by id.
func (g *Grid) Observers() []Observer {
	out := make([]Observer, 0, len(g.observers))
	for _, o := range g.observers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Digest hashes every resident chunk in key order.
func (g *Grid) Digest() [32]byte {
	h := sha256.New()
	var tmp [8]byte
	for _, k := range g.ChunkKeys() {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(int32(k.CX)))
		binary.LittleEndian.PutUint32(tmp[4:], uint32(int32(k.CZ)))
		h.Write(tmp[:])
		d := g.chunks[k].Digest()
		h.Write(d[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
