package pursuit

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/pathing"
	"unseen.ai/internal/sim/visibility"
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

type flat struct{}

func (flat) Generate(ch *world.Chunk) {
	for lz := 0; lz < world.ChunkSize; lz++ {
		for lx := 0; lx < world.ChunkSize; lx++ {
			for y := 0; y <= 60; y++ {
				ch.Set(lx, y, lz, world.Stone)
			}
		}
	}
}

type harness struct {
	grid    *world.Grid
	store   *kv.Memory
	planner *pathing.Planner
	rec     *events.Recorder
	sounds  []voxel.Pos
}

func newHarness(t *testing.T, obs world.Observer) *harness {
	t.Helper()
	h := &harness{store: kv.NewMemory(), rec: &events.Recorder{}}
	h.grid = world.NewGrid(96, flat{})
	h.grid.LoadAround(obs.Voxel(), 4)
	h.grid.SetObserver(obs)
	h.grid.SetSoundHook(func(p voxel.Pos, s world.Sound) { h.sounds = append(h.sounds, p) })
	h.planner = pathing.New(h.grid, visibility.New(h.grid, visibility.DefaultConfig()), pathing.DefaultConfig())
	return h
}

func (h *harness) machine(cfg Config) *Machine {
	return New(Deps{World: h.grid, Planner: h.planner, Store: h.store, Sink: h.rec}, cfg)
}

func (h *harness) tick(t *testing.T, m *Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Tick(h.grid.Observers()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StepEveryTicks = 1
	cfg.VisibilityLookahead = 0
	return cfg
}

func facingNorth() world.Observer {
	return world.Observer{ID: "p1", Pos: mgl64.Vec3{0.5, 61, 0.5}, Yaw: 0}
}

// Two hidden steps behind the observer, then one in plain view ahead.
func scenarioPath() pathing.Segment {
	return pathing.Segment{Steps: []voxel.Pos{
		{X: 0, Y: 61, Z: -20},
		{X: 0, Y: 61, Z: -19},
		{X: 0, Y: 61, Z: 20},
		{X: 0, Y: 61, Z: 21},
		{X: 0, Y: 61, Z: 22},
	}}
}

func behindPath(n int) pathing.Segment {
	var s pathing.Segment
	for i := 0; i < n; i++ {
		s.Steps = append(s.Steps, voxel.Pos{X: 0, Y: 61, Z: -20 - i})
	}
	return s
}

func mustStart(t *testing.T, m *Machine, seg pathing.Segment) {
	t.Helper()
	ok, err := m.Start("p1", seg)
	if err != nil || !ok {
		t.Fatalf("Start=%v err=%v", ok, err)
	}
}

func mustState(t *testing.T, m *Machine) State {
	t.Helper()
	st, err := m.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	return st
}

func TestMachine_PausesAtVisibleThirdStep(t *testing.T) {
	h := newHarness(t, facingNorth())
	m := h.machine(testConfig())
	mustStart(t, m, scenarioPath())

	h.tick(t, m, 3)

	st := mustState(t, m)
	if st.Phase != PhasePaused || st.StepIndex != 2 {
		t.Fatalf("phase=%v step=%d want PAUSED,2", st.Phase, st.StepIndex)
	}
	if n := h.rec.Count(events.KindPursuitCue); n != 2 {
		t.Fatalf("cues=%d want 2", n)
	}
	if len(h.sounds) != 2 || h.sounds[1] != (voxel.Pos{X: 0, Y: 61, Z: -19}) {
		t.Fatalf("sounds=%v", h.sounds)
	}
	if st.PauseStep != (voxel.Pos{X: 0, Y: 61, Z: 20}) || st.PauseReason != PauseStepVisible {
		t.Fatalf("pause step=%v reason=%q", st.PauseStep, st.PauseReason)
	}
}

func TestMachine_LookaheadPausesOneStepEarlier(t *testing.T) {
	h := newHarness(t, facingNorth())
	cfg := testConfig()
	cfg.VisibilityLookahead = 1
	m := h.machine(cfg)
	mustStart(t, m, scenarioPath())

	h.tick(t, m, 3)

	st := mustState(t, m)
	if st.Phase != PhasePaused || st.StepIndex != 1 {
		t.Fatalf("phase=%v step=%d want PAUSED,1", st.Phase, st.StepIndex)
	}
	if n := h.rec.Count(events.KindPursuitCue); n != 1 {
		t.Fatalf("cues=%d want 1", n)
	}
}

func TestMachine_ResumeNeedsHiddenStepAndMovedObserver(t *testing.T) {
	obs := facingNorth()
	h := newHarness(t, obs)
	m := h.machine(testConfig())
	mustStart(t, m, scenarioPath())
	h.tick(t, m, 3)

	// Stationary and still looking at the step.
	h.tick(t, m, 5)
	if n := h.rec.Count(events.KindPursuitCue); n != 2 {
		t.Fatalf("cues while step visible=%d want 2", n)
	}

	// Looking away (+X) hides the step, but the observer has not moved.
	obs.Yaw = -90
	h.grid.SetObserver(obs)
	h.tick(t, m, 5)
	if st := mustState(t, m); st.Phase != PhasePaused {
		t.Fatalf("resumed without observer movement: %v", st.Phase)
	}
	if n := h.rec.Count(events.KindPursuitCue); n != 2 {
		t.Fatalf("cues while observer stationary=%d want 2", n)
	}

	obs.Pos = mgl64.Vec3{1.5, 61, 0.5}
	h.grid.SetObserver(obs)
	h.tick(t, m, 1)
	st := mustState(t, m)
	if st.Phase != PhaseWalking || h.rec.Count(events.KindPursuitResumed) != 1 {
		t.Fatalf("phase=%v resumed=%d want WALKING,1", st.Phase, h.rec.Count(events.KindPursuitResumed))
	}
	if n := h.rec.Count(events.KindPursuitCue); n != 2 {
		t.Fatalf("cue emitted on the resume tick: %d", n)
	}

	h.tick(t, m, 1)
	if n := h.rec.Count(events.KindPursuitCue); n != 3 {
		t.Fatalf("cues after resume=%d want 3", n)
	}
}

func TestMachine_Timeout(t *testing.T) {
	h := newHarness(t, facingNorth())
	cfg := testConfig()
	cfg.TimeoutTicks = 3
	m := h.machine(cfg)
	mustStart(t, m, behindPath(10))

	h.tick(t, m, 3)

	st := mustState(t, m)
	if st.Phase != PhaseIdle || len(st.Path) != 0 {
		t.Fatalf("state=%+v want idle without path", st)
	}
	if h.rec.Count(events.KindPursuitTimeout) != 1 || h.rec.Count(events.KindPursuitCue) != 2 {
		t.Fatalf("events=%v", h.rec.Kinds())
	}
	// Idle ticks are inert.
	h.tick(t, m, 5)
	if h.rec.Count(events.KindPursuitCue) != 2 {
		t.Fatalf("cue after reset")
	}
}

func TestMachine_TimeoutBetweenSteps(t *testing.T) {
	h := newHarness(t, facingNorth())
	cfg := testConfig()
	cfg.StepEveryTicks = 4
	cfg.TimeoutTicks = 6
	m := h.machine(cfg)
	mustStart(t, m, behindPath(10))

	h.tick(t, m, 5)
	if st := mustState(t, m); st.Phase != PhaseWalking {
		t.Fatalf("phase after 5 ticks=%v want WALKING", st.Phase)
	}
	// Tick 6 is not a step tick; the timeout must still fire on it.
	h.tick(t, m, 1)
	if st := mustState(t, m); st.Phase != PhaseIdle {
		t.Fatalf("phase after 6 ticks=%v want IDLE", st.Phase)
	}
	e, ok := h.rec.Last(events.KindPursuitTimeout)
	if !ok || e.Reason != ReasonTimeout {
		t.Fatalf("timeout event=%+v,%v", e, ok)
	}
	if n := h.rec.Count(events.KindPursuitCue); n != 1 {
		t.Fatalf("cues=%d want 1", n)
	}
}

func TestMachine_Caught(t *testing.T) {
	obs := facingNorth()
	h := newHarness(t, obs)
	m := h.machine(testConfig())
	mustStart(t, m, behindPath(10))
	h.tick(t, m, 1)

	obs.Pos = mgl64.Vec3{0.5, 61, -18.5}
	h.grid.SetObserver(obs)
	h.tick(t, m, 1)

	if st := mustState(t, m); st.Phase != PhaseIdle {
		t.Fatalf("phase=%v want IDLE", st.Phase)
	}
	if e, ok := h.rec.Last(events.KindPursuitCaught); !ok || e.Reason != ReasonCaught {
		t.Fatalf("caught event=%+v,%v", e, ok)
	}
}

func TestMachine_StepBudget(t *testing.T) {
	h := newHarness(t, facingNorth())
	cfg := testConfig()
	cfg.StepBudget = 2
	m := h.machine(cfg)
	mustStart(t, m, behindPath(10))

	h.tick(t, m, 3)

	if st := mustState(t, m); st.Phase != PhaseIdle {
		t.Fatalf("phase=%v want IDLE", st.Phase)
	}
	e, ok := h.rec.Last(events.KindPursuitTimeout)
	if !ok || e.Reason != ReasonStepBudget {
		t.Fatalf("budget event=%+v,%v", e, ok)
	}
	if n := h.rec.Count(events.KindPursuitCue); n != 2 {
		t.Fatalf("cues=%d want 2", n)
	}
}

func TestMachine_StepCadence(t *testing.T) {
	h := newHarness(t, facingNorth())
	cfg := testConfig()
	cfg.StepEveryTicks = 4
	m := h.machine(cfg)
	mustStart(t, m, behindPath(10))

	h.tick(t, m, 3)
	if n := h.rec.Count(events.KindPursuitCue); n != 0 {
		t.Fatalf("cues before cadence=%d", n)
	}
	h.tick(t, m, 5)
	if n := h.rec.Count(events.KindPursuitCue); n != 2 {
		t.Fatalf("cues after 8 ticks=%d want 2", n)
	}
}

func TestMachine_ResumesAcrossRestart(t *testing.T) {
	h := newHarness(t, facingNorth())
	first := h.machine(testConfig())
	mustStart(t, first, behindPath(10))
	h.tick(t, first, 1)

	second := h.machine(testConfig())
	h.tick(t, second, 1)

	st := mustState(t, second)
	if st.Phase != PhaseWalking || st.StepIndex != 2 {
		t.Fatalf("after restart phase=%v step=%d want WALKING,2", st.Phase, st.StepIndex)
	}
	if len(h.sounds) != 2 || h.sounds[1] != (voxel.Pos{X: 0, Y: 61, Z: -21}) {
		t.Fatalf("sounds=%v", h.sounds)
	}
}

func TestMachine_ShortPathRejected(t *testing.T) {
	h := newHarness(t, facingNorth())
	m := h.machine(testConfig())
	ok, err := m.Start("p1", behindPath(2))
	if err != nil || ok {
		t.Fatalf("Start=%v err=%v want false", ok, err)
	}
	if active, _ := m.IsActive(); active {
		t.Fatalf("short path activated the pursuit")
	}
	if h.rec.Count(events.KindPursuitRejected) != 1 {
		t.Fatalf("events=%v", h.rec.Kinds())
	}
}

func TestMachine_ExhaustedPathPauses(t *testing.T) {
	obs := facingNorth()
	h := newHarness(t, obs)
	m := h.machine(testConfig())
	mustStart(t, m, behindPath(3))
	h.tick(t, m, 3)

	// Turning around puts every extension candidate in view.
	obs.Yaw = 180
	h.grid.SetObserver(obs)
	h.tick(t, m, 1)

	st := mustState(t, m)
	if st.Phase != PhasePaused || st.PauseReason != PauseExhausted {
		t.Fatalf("phase=%v reason=%q want PAUSED,exhausted", st.Phase, st.PauseReason)
	}
	if h.rec.Count(events.KindPursuitExhausted) != 1 {
		t.Fatalf("events=%v", h.rec.Kinds())
	}
}

func TestMachine_TriggerAndReset(t *testing.T) {
	h := newHarness(t, facingNorth())
	m := h.machine(DefaultConfig())

	ok, err := m.Trigger(h.grid.Observers())
	if err != nil || !ok {
		t.Fatalf("Trigger=%v err=%v", ok, err)
	}
	st := mustState(t, m)
	if st.Phase != PhaseWalking || len(st.Path) < 3 || st.RunID == "" {
		t.Fatalf("state=%+v", st)
	}
	if ok, _ := m.Trigger(h.grid.Observers()); ok {
		t.Fatalf("second trigger while active")
	}
	if err := m.Reset(ReasonExternal); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if active, _ := m.IsActive(); active {
		t.Fatalf("active after reset")
	}
	if h.rec.Count(events.KindPursuitReset) != 1 {
		t.Fatalf("events=%v", h.rec.Kinds())
	}
}

func TestMachine_NeverCuesAtVisibleVoxel(t *testing.T) {
	obs := facingNorth()
	h := newHarness(t, obs)
	rng := rand.New(rand.NewPCG(3, 4))

	observers := func() []world.Observer { return h.grid.Observers() }
	guard := events.SinkFunc(func(e events.Event) {
		if e.Kind != events.KindPursuitCue {
			return
		}
		if h.planner.BodyVisible(observers(), *e.Pos) {
			t.Fatalf("cue at visible voxel %v", *e.Pos)
		}
	})
	cfg := DefaultConfig()
	cfg.StepEveryTicks = 1
	m := New(Deps{World: h.grid, Planner: h.planner, Store: h.store, Sink: guard}, cfg)

	for i := 0; i < 300; i++ {
		if i%7 == 0 {
			obs.Yaw = rng.Float64()*360 - 180
			h.grid.SetObserver(obs)
		}
		if active, _ := m.IsActive(); !active {
			if _, err := m.Trigger(observers()); err != nil {
				t.Fatalf("Trigger: %v", err)
			}
		}
		if err := m.Tick(observers()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
}
