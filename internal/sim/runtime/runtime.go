// Package runtime owns the tick loop: it feeds observer poses into the world, keeps
// chunks loaded around observers, runs the director, and fans events out.
//
// All simulation state is touched only from the loop goroutine. Other goroutines talk
// to it through channels (Join, Leave, UpdatePose, Status).
package runtime

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/persistence/snapshot"
	"unseen.ai/internal/sim/cave"
	"unseen.ai/internal/sim/director"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/pathing"
	"unseen.ai/internal/sim/pursuit"
	"unseen.ai/internal/sim/tuning"
	"unseen.ai/internal/sim/visibility"
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

// TickKey persists the last completed tick so numbering continues across restarts.
const TickKey = "runtime.tick"

type Deps struct {
	Grid   *world.Grid
	Store  kv.Store
	Sink   events.Sink // durable sinks: event log, index
	Rand   *rand.Rand
	Logger *log.Logger

	// Optional. Snapshot writing happens off the loop goroutine.
	SnapshotSink chan<- snapshot.SnapshotV1
}

type JoinRequest struct {
	Name string
	Out  chan events.Event // buffered; the oldest event is dropped when full
	Resp chan JoinResponse
}

type JoinResponse struct {
	ObserverID string     `json:"observer_id"`
	Tick       uint64     `json:"tick"`
	Spawn      mgl64.Vec3 `json:"spawn"`
}

type PoseUpdate struct {
	ObserverID string
	Pos        mgl64.Vec3
	Yaw        float64
	Pitch      float64
}

// Input is what StepOnce applies before advancing.
type Input struct {
	Joins  []JoinRequest
	Leaves []string
	Poses  []PoseUpdate
}

type Runtime struct {
	worldID string
	tun     tuning.Tuning

	grid    *world.Grid
	store   kv.Store
	log     *log.Logger
	oracle  *visibility.Oracle
	caves   *cave.Generator
	pursuit *pursuit.Machine
	dir     *director.Director

	sink         events.Sink // stamped fan-out handed to components
	durable      events.Sink
	snapshotSink chan<- snapshot.SnapshotV1

	tick    atomic.Uint64
	nextObs uint64
	subs    map[string]chan events.Event

	join     chan JoinRequest
	leave    chan string
	pose     chan PoseUpdate
	stateReq chan chan Status
}

// Build wires the simulation components around d.Grid.
func Build(worldID string, tun tuning.Tuning, d Deps) (*Runtime, error) {
	if d.Grid == nil || d.Store == nil {
		return nil, fmt.Errorf("runtime: grid and store are required")
	}
	if err := tun.Validate(); err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(tun.Terrain.Seed), 0x5eed))
	}

	r := &Runtime{
		worldID:      worldID,
		tun:          tun,
		grid:         d.Grid,
		store:        d.Store,
		log:          logger,
		durable:      events.OrDiscard(d.Sink),
		snapshotSink: d.SnapshotSink,
		subs:         map[string]chan events.Event{},
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		pose:         make(chan PoseUpdate, 1024),
		stateReq:     make(chan chan Status, 8),
	}
	last, ok, err := kv.GetInt(d.Store, TickKey)
	if err != nil {
		return nil, fmt.Errorf("runtime: load tick: %w", err)
	}
	if ok && last > 0 {
		r.tick.Store(uint64(last))
	}
	r.sink = events.Stamp(r.CurrentTick, events.Multi{r.durable, events.SinkFunc(r.broadcast)})

	r.oracle = visibility.New(d.Grid, tun.Visibility)
	planner := pathing.New(d.Grid, r.oracle, tun.Path)
	r.caves = cave.New(cave.Deps{
		World:  d.Grid,
		Oracle: r.oracle,
		Store:  d.Store,
		Rand:   rng,
		Sink:   r.sink,
		Logger: logger,
	}, tun.Cave)
	r.pursuit = pursuit.New(pursuit.Deps{
		World:   d.Grid,
		Planner: planner,
		Store:   d.Store,
		Sink:    r.sink,
		Logger:  logger,
	}, tun.Pursuit)
	r.dir = director.New(director.Deps{
		World:   d.Grid,
		Caves:   r.caves,
		Pursuit: r.pursuit,
		Store:   d.Store,
		Rand:    rng,
		Sink:    r.sink,
		Logger:  logger,
	}, tun.Schedule)

	d.Grid.SetSoundHook(func(p voxel.Pos, s world.Sound) {
		r.sink.Emit(events.Event{Kind: events.KindSound, Pos: events.At(p), Data: map[string]any{"sound": string(s)}})
	})
	return r, nil
}

func (r *Runtime) ID() string          { return r.worldID }
func (r *Runtime) CurrentTick() uint64 { return r.tick.Load() }
func (r *Runtime) TickRateHz() int     { return r.tun.World.TickRateHz }

func (r *Runtime) Caves() *cave.Generator       { return r.caves }
func (r *Runtime) Pursuit() *pursuit.Machine    { return r.pursuit }
func (r *Runtime) Director() *director.Director { return r.dir }

func (r *Runtime) Run(ctx context.Context) error {
	hz := r.tun.World.TickRateHz
	if hz <= 0 {
		hz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			r.handleLeave(id)
		case p := <-r.pose:
			r.handlePose(p)
		case resp := <-r.stateReq:
			resp <- r.status()
		case <-ticker.C:
			r.step()
		}
	}
}

// StepOnce applies in and advances a single tick with the same ordering as Run.
// Only for use when Run is not running.
func (r *Runtime) StepOnce(in Input) (uint64, []JoinResponse) {
	var joined []JoinResponse
	for _, req := range in.Joins {
		joined = append(joined, r.handleJoin(req))
	}
	for _, id := range in.Leaves {
		r.handleLeave(id)
	}
	for _, p := range in.Poses {
		r.handlePose(p)
	}
	r.step()
	return r.CurrentTick(), joined
}

// Join registers a new observer and returns its id.
func (r *Runtime) Join(ctx context.Context, name string, out chan events.Event) (JoinResponse, error) {
	resp := make(chan JoinResponse, 1)
	select {
	case r.join <- JoinRequest{Name: name, Out: out, Resp: resp}:
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case jr := <-resp:
		return jr, nil
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

// Leave removes an observer. A departed observer must not keep counting as watching,
// so this waits for queue space unless ctx ends first.
func (r *Runtime) Leave(ctx context.Context, id string) {
	select {
	case r.leave <- id:
	case <-ctx.Done():
	}
}

// UpdatePose queues a pose. Poses are dropped when the loop is saturated; the next
// one supersedes it anyway.
func (r *Runtime) UpdatePose(p PoseUpdate) bool {
	select {
	case r.pose <- p:
		return true
	default:
		return false
	}
}

// Status is a point-in-time view for admin endpoints.
type Status struct {
	WorldID      string           `json:"world_id"`
	Tick         uint64           `json:"tick"`
	Digest       string           `json:"digest"`
	LoadedChunks int              `json:"loaded_chunks"`
	Observers    []ObserverStatus `json:"observers"`
	Pursuit      pursuit.State    `json:"pursuit"`
	Timers       map[string]int64 `json:"timers"`
	Caves        []voxel.Pos      `json:"caves"`
	Err          string           `json:"error,omitempty"`
}

type ObserverStatus struct {
	ID    string     `json:"id"`
	Pos   mgl64.Vec3 `json:"pos"`
	Yaw   float64    `json:"yaw"`
	Pitch float64    `json:"pitch"`
}

func (r *Runtime) Status(ctx context.Context) (Status, error) {
	resp := make(chan Status, 1)
	select {
	case r.stateReq <- resp:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (r *Runtime) status() Status {
	d := r.grid.Digest()
	st := Status{
		WorldID:      r.worldID,
		Tick:         r.CurrentTick(),
		Digest:       hex.EncodeToString(d[:]),
		LoadedChunks: len(r.grid.LoadedChunkKeys()),
	}
	for _, o := range r.grid.Observers() {
		st.Observers = append(st.Observers, ObserverStatus{ID: o.ID, Pos: o.Pos, Yaw: o.Yaw, Pitch: o.Pitch})
	}
	var err error
	if st.Pursuit, err = r.pursuit.State(); err == nil {
		if st.Timers, err = r.dir.Timers(); err == nil {
			st.Caves, err = kv.PosList(r.store, cave.AnchorsKey)
		}
	}
	if err != nil {
		st.Err = err.Error()
	}
	return st
}

func (r *Runtime) handleJoin(req JoinRequest) JoinResponse {
	r.nextObs++
	id := fmt.Sprintf("O%d", r.nextObs)
	spawn := r.spawnPoint()
	r.grid.SetObserver(world.Observer{ID: id, Pos: spawn})
	r.grid.LoadAround(voxel.FromVec(spawn), r.tun.World.LoadRadiusChunks)
	if req.Out != nil {
		r.subs[id] = req.Out
	}
	r.log.Printf("observer %s (%s) joined at %v", id, req.Name, spawn)
	r.sink.Emit(events.Event{Kind: events.KindObserverJoin, Observer: id, Pos: events.At(voxel.FromVec(spawn)), Data: map[string]any{"name": req.Name}})

	resp := JoinResponse{ObserverID: id, Tick: r.CurrentTick(), Spawn: spawn}
	if req.Resp != nil {
		req.Resp <- resp
	}
	return resp
}

func (r *Runtime) spawnPoint() mgl64.Vec3 {
	origin := voxel.Pos{}
	r.grid.LoadAround(origin, 0)
	y := r.grid.Height() / 2
	if top, ok := world.SurfaceY(r.grid, 0, 0); ok {
		y = top + 1
	}
	return mgl64.Vec3{0.5, float64(y), 0.5}
}

func (r *Runtime) handleLeave(id string) {
	if _, ok := r.grid.Observer(id); !ok {
		return
	}
	r.grid.RemoveObserver(id)
	delete(r.subs, id)
	r.log.Printf("observer %s left", id)
	r.sink.Emit(events.Event{Kind: events.KindObserverLeave, Observer: id})
}

func (r *Runtime) handlePose(p PoseUpdate) {
	o, ok := r.grid.Observer(p.ObserverID)
	if !ok {
		return
	}
	o.Pos, o.Yaw, o.Pitch = p.Pos, p.Yaw, p.Pitch
	r.grid.SetObserver(o)
}

func (r *Runtime) step() {
	tick := r.tick.Add(1)
	if err := kv.SetInt(r.store, TickKey, int64(tick)); err != nil {
		r.log.Printf("tick %d: %v", tick, err)
	}

	r.loadAroundObservers()

	if err := r.dir.Step(); err != nil {
		// Store failures leave the tick incomplete; the next tick retries from stored state.
		r.log.Printf("tick %d: director: %v", tick, err)
	}

	every := uint64(r.tun.World.SnapshotEveryTicks)
	if r.snapshotSink != nil && every > 0 && tick%every == 0 {
		snap := snapshot.Capture(r.worldID, tick, r.tun.Terrain.Seed, r.grid)
		select {
		case r.snapshotSink <- snap:
		default:
			r.log.Printf("tick %d: snapshot writer busy, skipping", tick)
		}
	}
}

// loadAroundObservers keeps exactly the chunks near valid observers loaded.
func (r *Runtime) loadAroundObservers() {
	keep := map[world.ChunkKey]bool{}
	rad := r.tun.World.LoadRadiusChunks
	for _, o := range r.grid.Observers() {
		if !o.Valid() {
			continue
		}
		c := world.ChunkKeyOf(o.Voxel())
		for dz := -rad; dz <= rad; dz++ {
			for dx := -rad; dx <= rad; dx++ {
				k := world.ChunkKey{CX: c.CX + dx, CZ: c.CZ + dz}
				keep[k] = true
				r.grid.LoadChunk(k)
			}
		}
	}
	r.grid.Retain(keep)
}

// broadcast forwards an event to subscribers. Positioned sounds only reach observers
// within hearing range.
func (r *Runtime) broadcast(e events.Event) {
	if len(r.subs) == 0 {
		return
	}
	audible := e.Kind == events.KindSound || e.Kind == events.KindPursuitCue
	for id, out := range r.subs {
		if audible && e.Pos != nil && !r.hears(id, *e.Pos) {
			continue
		}
		sendLatest(out, e)
	}
}

func (r *Runtime) hears(id string, p voxel.Pos) bool {
	o, ok := r.grid.Observer(id)
	if !ok || !o.Valid() {
		return false
	}
	rad := r.tun.World.HearingRadius
	if rad <= 0 {
		return true
	}
	return p.Center().Sub(o.Pos).Len() <= rad
}

func sendLatest(ch chan events.Event, e events.Event) {
	select {
	case ch <- e:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}
