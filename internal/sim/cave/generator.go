// Package cave decorates and mines underground pockets before anyone finds them.
//
// An attempt runs FindAnchor, ExploreAndHarvest, Decorate and CarveStaircase, then
// records the anchor. Nothing in the world changes unless exploration validated the
// pocket, and every individual write re-checks that its voxel is loaded and unseen.
package cave

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/visibility"
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

// AnchorsKey holds the append-only list of anchors of every generated cave.
const AnchorsKey = "cave.anchors"

type Outcome string

const (
	OutcomeCreated     Outcome = "CREATED"
	OutcomeNoAnchor    Outcome = "NO_ANCHOR"
	OutcomeTooClose    Outcome = "TOO_CLOSE"
	OutcomeTooSmall    Outcome = "TOO_SMALL"
	OutcomeUnavailable Outcome = "UNAVAILABLE"
)

type Report struct {
	ID       string    `json:"id"`
	Outcome  Outcome   `json:"outcome"`
	Observer string    `json:"observer"`
	Anchor   voxel.Pos `json:"anchor"`

	AirVoxels int `json:"air_voxels"`
	Harvested int `json:"harvested"`
	Rubble    int `json:"rubble"`
	Torches   int `json:"torches"`
	Extras    int `json:"extras"`

	StairSteps    int  `json:"stair_steps"`
	StairComplete bool `json:"stair_complete"`

	// Skipped counts planned writes dropped because the voxel became visible,
	// unloaded or changed since planning.
	Skipped int `json:"skipped"`
}

type Deps struct {
	World  world.Access
	Oracle *visibility.Oracle
	Store  kv.Store
	Rand   *rand.Rand
	Sink   events.Sink
	Logger *log.Logger
}

type Generator struct {
	world  world.Access
	oracle *visibility.Oracle
	store  kv.Store
	rng    *rand.Rand
	sink   events.Sink
	log    *log.Logger
	cfg    Config
}

func New(d Deps, cfg Config) *Generator {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &Generator{
		world:  d.World,
		oracle: d.Oracle,
		store:  d.Store,
		rng:    rng,
		sink:   events.OrDiscard(d.Sink),
		log:    logger,
		cfg:    cfg,
	}
}

func (g *Generator) Config() Config { return g.cfg }

// Attempt tries to generate one cave near obs. Failure outcomes leave the world and
// the store untouched; errors are returned only when the store fails.
func (g *Generator) Attempt(obs world.Observer) (Report, error) {
	rep := Report{ID: uuid.NewString(), Observer: obs.ID}

	if !obs.Valid() || !g.world.IsChunkLoaded(obs.Voxel()) {
		rep.Outcome = OutcomeUnavailable
		g.reject(rep)
		return rep, nil
	}

	anchor, ok := g.findAnchor(obs.Voxel())
	if !ok {
		rep.Outcome = OutcomeNoAnchor
		g.reject(rep)
		return rep, nil
	}
	rep.Anchor = anchor

	prior, err := kv.PosList(g.store, AnchorsKey)
	if err != nil {
		return rep, fmt.Errorf("cave: load anchors: %w", err)
	}
	minSq := g.cfg.MinSeparation * g.cfg.MinSeparation
	for _, a := range prior {
		if a.DistSq(anchor) <= minSq {
			rep.Outcome = OutcomeTooClose
			g.reject(rep)
			return rep, nil
		}
	}

	pocket, err := g.explore(anchor)
	if err != nil {
		return rep, err
	}
	rep.AirVoxels = len(pocket.air)
	if len(pocket.air) < g.cfg.MinAirVoxels {
		rep.Outcome = OutcomeTooSmall
		g.reject(rep)
		return rep, nil
	}

	// The record goes first: a store failure must not leave an unrecorded cave behind.
	if err := kv.AppendPos(g.store, AnchorsKey, anchor); err != nil {
		return rep, fmt.Errorf("cave: record anchor: %w", err)
	}

	g.applyHarvest(pocket, &rep)
	g.placeTorches(pocket, &rep)
	g.placeExtras(pocket, &rep)
	g.carveStaircase(anchor, &rep)

	rep.Outcome = OutcomeCreated
	g.log.Printf("cave %s created at %v: air=%d harvested=%d torches=%d stair=%d complete=%v skipped=%d",
		rep.ID, anchor, rep.AirVoxels, rep.Harvested, rep.Torches, rep.StairSteps, rep.StairComplete, rep.Skipped)
	g.sink.Emit(events.Event{
		Kind:     events.KindCaveCreated,
		ID:       rep.ID,
		Observer: obs.ID,
		Pos:      events.At(anchor),
		Data: map[string]any{
			"air_voxels":     rep.AirVoxels,
			"harvested":      rep.Harvested,
			"torches":        rep.Torches,
			"extras":         rep.Extras,
			"stair_steps":    rep.StairSteps,
			"stair_complete": rep.StairComplete,
		},
	})
	return rep, nil
}

func (g *Generator) reject(rep Report) {
	e := events.Event{
		Kind:     events.KindCaveRejected,
		ID:       rep.ID,
		Observer: rep.Observer,
		Reason:   string(rep.Outcome),
	}
	if rep.Outcome != OutcomeUnavailable && rep.Outcome != OutcomeNoAnchor {
		e.Pos = events.At(rep.Anchor)
	}
	g.sink.Emit(e)
}

// findAnchor walks rings outward from origin and returns the first open voxel below
// the depth ceiling that is covered by terrain and stands on solid ground.
func (g *Generator) findAnchor(origin voxel.Pos) (voxel.Pos, bool) {
	maxR := g.cfg.AnchorChunkRadius * world.ChunkSize
	step := g.cfg.AnchorRingStep
	if step <= 0 {
		step = 8
	}
	samples := g.cfg.AnchorAngularSamples
	if samples <= 0 {
		samples = 12
	}
	for r := g.cfg.AnchorMinRadius; r <= maxR; r += step {
		phase := g.rng.Float64() * 2 * math.Pi
		for i := 0; i < samples; i++ {
			theta := phase + 2*math.Pi*float64(i)/float64(samples)
			x := origin.X + int(math.Round(float64(r)*math.Sin(theta)))
			z := origin.Z + int(math.Round(float64(r)*math.Cos(theta)))
			if p, ok := g.anchorInColumn(x, z); ok {
				return p, true
			}
		}
	}
	return voxel.Pos{}, false
}

func (g *Generator) anchorInColumn(x, z int) (voxel.Pos, bool) {
	if !g.world.IsChunkLoaded(voxel.Pos{X: x, Z: z}) {
		return voxel.Pos{}, false
	}
	surface, ok := world.SurfaceY(g.world, x, z)
	if !ok {
		return voxel.Pos{}, false
	}
	top := g.cfg.DepthCeilingY
	if top >= surface {
		top = surface - 1
	}
	for y := top; y > 0; y-- {
		p := voxel.Pos{X: x, Y: y, Z: z}
		if !g.world.BlockAt(p).IsAir() {
			continue
		}
		for d := 1; d <= g.cfg.GroundSearch && y-d >= 0; d++ {
			b := g.world.BlockAt(p.Down(d))
			if b.Solid() {
				return p.Down(d - 1), true
			}
			if !b.IsAir() {
				break
			}
		}
	}
	return voxel.Pos{}, false
}

// seen is the gate in front of every write.
func (g *Generator) seen(p voxel.Pos) bool {
	return g.oracle.VisibleToAny(g.world.Observers(), p)
}

// write sets p to b if p is loaded, unseen, and its current block satisfies expect.
func (g *Generator) write(p voxel.Pos, b world.Block, expect func(world.Block) bool) bool {
	if !g.world.IsChunkLoaded(p) {
		return false
	}
	if expect != nil && !expect(g.world.BlockAt(p)) {
		return false
	}
	if g.seen(p) {
		return false
	}
	g.world.SetBlockAt(p, b)
	return true
}

func (g *Generator) roll(chance float64) bool {
	return chance > 0 && g.rng.Float64() < chance
}
