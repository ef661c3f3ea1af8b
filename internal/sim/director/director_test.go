package director

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/cave"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/world"
)

type fakeCaves struct{ attempts []string }

func (f *fakeCaves) Attempt(obs world.Observer) (cave.Report, error) {
	f.attempts = append(f.attempts, obs.ID)
	return cave.Report{Outcome: cave.OutcomeNoAnchor, Observer: obs.ID}, nil
}

type fakePursuit struct {
	active   bool
	ticks    int
	triggers int
}

func (f *fakePursuit) IsActive() (bool, error) { return f.active, nil }

func (f *fakePursuit) Trigger(observers []world.Observer) (bool, error) {
	f.triggers++
	f.active = true
	return true, nil
}

func (f *fakePursuit) Tick(observers []world.Observer) error {
	f.ticks++
	return nil
}

type env struct {
	grid    *world.Grid
	store   *kv.Memory
	caves   *fakeCaves
	pursuit *fakePursuit
	rec     *events.Recorder
	dir     *Director
}

func newEnv(t *testing.T, withObserver bool) *env {
	t.Helper()
	e := &env{
		grid:    world.NewGrid(64, nil),
		store:   kv.NewMemory(),
		caves:   &fakeCaves{},
		pursuit: &fakePursuit{},
		rec:     &events.Recorder{},
	}
	if withObserver {
		obs := world.Observer{ID: "p1", Pos: mgl64.Vec3{0.5, 10, 0.5}}
		e.grid.LoadAround(obs.Voxel(), 1)
		e.grid.SetObserver(obs)
	}
	e.dir = e.director()
	return e
}

func (e *env) director() *Director {
	return New(Deps{
		World:   e.grid,
		Caves:   e.caves,
		Pursuit: e.pursuit,
		Store:   e.store,
		Rand:    rand.New(rand.NewPCG(5, 6)),
		Sink:    e.rec,
	}, Config{CaveMinDelayTicks: 10, CaveMaxDelayTicks: 20, PursuitMinDelayTicks: 30, PursuitMaxDelayTicks: 40})
}

func (e *env) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := e.dir.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
}

func timer(t *testing.T, s kv.Store, key string) int64 {
	t.Helper()
	v, ok, err := kv.GetInt(s, key)
	if err != nil || !ok {
		t.Fatalf("timer %s=%v,%v err=%v", key, v, ok, err)
	}
	return v
}

func TestStep_ArmsMissingTimers(t *testing.T) {
	e := newEnv(t, true)
	e.step(t, 1)

	if v := timer(t, e.store, CaveTimerKey); v < 10 || v > 20 {
		t.Fatalf("cave timer=%d want [10,20]", v)
	}
	if v := timer(t, e.store, PursuitTimerKey); v < 30 || v > 40 {
		t.Fatalf("pursuit timer=%d want [30,40]", v)
	}
	if len(e.caves.attempts) != 0 || e.pursuit.triggers != 0 {
		t.Fatalf("fired on arming: caves=%v triggers=%d", e.caves.attempts, e.pursuit.triggers)
	}
	if e.pursuit.ticks != 1 {
		t.Fatalf("pursuit ticks=%d want 1", e.pursuit.ticks)
	}
}

func TestStep_ExpiredTimerFiresOnceAndRearms(t *testing.T) {
	e := newEnv(t, true)
	if err := kv.SetInt(e.store, CaveTimerKey, 3); err != nil {
		t.Fatal(err)
	}
	if err := kv.SetInt(e.store, PursuitTimerKey, 100); err != nil {
		t.Fatal(err)
	}

	e.step(t, 2)
	if len(e.caves.attempts) != 0 {
		t.Fatalf("fired early")
	}
	e.step(t, 1)
	if len(e.caves.attempts) != 1 || e.caves.attempts[0] != "p1" {
		t.Fatalf("attempts=%v want [p1]", e.caves.attempts)
	}
	if v := timer(t, e.store, CaveTimerKey); v < 10 || v > 20 {
		t.Fatalf("re-armed cave timer=%d want [10,20]", v)
	}
	last, ok := e.rec.Last(events.KindTimerFired)
	if !ok || last.ID != CaveTimerKey {
		t.Fatalf("timer event=%+v,%v", last, ok)
	}
}

func TestStep_SkipsTriggerWhilePursuitActive(t *testing.T) {
	e := newEnv(t, true)
	e.pursuit.active = true
	if err := kv.SetInt(e.store, PursuitTimerKey, 1); err != nil {
		t.Fatal(err)
	}
	e.step(t, 1)
	if e.pursuit.triggers != 0 {
		t.Fatalf("triggered while active")
	}
	if v := timer(t, e.store, PursuitTimerKey); v < 30 || v > 40 {
		t.Fatalf("pursuit timer=%d want re-armed", v)
	}

	e.pursuit.active = false
	if err := kv.SetInt(e.store, PursuitTimerKey, 1); err != nil {
		t.Fatal(err)
	}
	e.step(t, 1)
	if e.pursuit.triggers != 1 {
		t.Fatalf("triggers=%d want 1", e.pursuit.triggers)
	}
}

func TestStep_NoObserversMeansNoAttempt(t *testing.T) {
	e := newEnv(t, false)
	if err := kv.SetInt(e.store, CaveTimerKey, 1); err != nil {
		t.Fatal(err)
	}
	e.step(t, 1)
	if len(e.caves.attempts) != 0 {
		t.Fatalf("attempted without observers")
	}
	if v := timer(t, e.store, CaveTimerKey); v < 10 {
		t.Fatalf("cave timer=%d want re-armed", v)
	}
}

func TestStep_TimersSurviveRestart(t *testing.T) {
	e := newEnv(t, true)
	e.step(t, 1)
	before := timer(t, e.store, CaveTimerKey)

	e.dir = e.director()
	e.step(t, 1)
	if got := timer(t, e.store, CaveTimerKey); got != before-1 {
		t.Fatalf("after restart cave timer=%d want %d", got, before-1)
	}

	got, err := e.dir.Timers()
	if err != nil {
		t.Fatalf("Timers: %v", err)
	}
	if len(got) != 2 || got[CaveTimerKey] != before-1 {
		t.Fatalf("Timers=%v", got)
	}
}
