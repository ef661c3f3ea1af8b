// Package pursuit animates a single hidden presence that follows an observer,
// leaving footstep sounds along a path nobody can see.
//
// The machine is IDLE, WALKING or PAUSED. Every transition is written to the store
// before Tick returns, so a restarted process simply keeps evaluating the stored state.
package pursuit

import (
	"io"
	"log"
	"math"

	"github.com/google/uuid"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/pathing"
	"unseen.ai/internal/sim/voxel"
	"unseen.ai/internal/sim/world"
)

type Config struct {
	StepEveryTicks int `yaml:"step_every_ticks" json:"step_every_ticks"`
	TimeoutTicks   int `yaml:"timeout_ticks" json:"timeout_ticks"`
	StepBudget     int `yaml:"step_budget" json:"step_budget"`
	// VisibilityLookahead is how many steps past the upcoming one must also be hidden.
	VisibilityLookahead int     `yaml:"visibility_lookahead" json:"visibility_lookahead"`
	AbortDistance       float64 `yaml:"abort_distance" json:"abort_distance"`
	MinFollowDistance   float64 `yaml:"min_follow_distance" json:"min_follow_distance"`
	MinPathLength       int     `yaml:"min_path_length" json:"min_path_length"`
}

func DefaultConfig() Config {
	return Config{
		StepEveryTicks:      10,
		TimeoutTicks:        6000,
		StepBudget:          240,
		VisibilityLookahead: 1,
		AbortDistance:       3,
		MinFollowDistance:   6,
		MinPathLength:       3,
	}
}

// Reset reasons.
const (
	ReasonTimeout    = "timeout"
	ReasonStepBudget = "step_budget"
	ReasonCaught     = "caught"
	ReasonExternal   = "external"
)

// Pause reasons.
const (
	PauseStepVisible = "step_visible"
	PauseTooClose    = "too_close"
	PauseExhausted   = "exhausted"
)

type Deps struct {
	World   world.Access
	Planner *pathing.Planner
	Store   kv.Store
	Sink    events.Sink
	Logger  *log.Logger
}

type Machine struct {
	world   world.Access
	planner *pathing.Planner
	store   kv.Store
	sink    events.Sink
	log     *log.Logger
	cfg     Config
}

func New(d Deps, cfg Config) *Machine {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.StepEveryTicks <= 0 {
		cfg.StepEveryTicks = 1
	}
	return &Machine{
		world:   d.World,
		planner: d.Planner,
		store:   d.Store,
		sink:    events.OrDiscard(d.Sink),
		log:     logger,
		cfg:     cfg,
	}
}

func (m *Machine) Config() Config { return m.cfg }

func (m *Machine) State() (State, error) { return loadState(m.store) }

func (m *Machine) IsActive() (bool, error) {
	st, err := loadState(m.store)
	if err != nil {
		return false, err
	}
	return st.Active(), nil
}

// Trigger starts a pursuit behind the first usable observer. It returns false when a
// pursuit is already active or no hidden route of sufficient length exists.
func (m *Machine) Trigger(observers []world.Observer) (bool, error) {
	active, err := m.IsActive()
	if err != nil || active {
		return false, err
	}
	for _, obs := range observers {
		if !obs.Valid() || !m.world.IsChunkLoaded(obs.Voxel()) {
			continue
		}
		seg, ok := m.planner.BuildInitialPath(obs, obs.Behind())
		if !ok {
			m.sink.Emit(events.Event{Kind: events.KindPursuitRejected, Observer: obs.ID, Reason: "no_path"})
			return false, nil
		}
		return m.Start(obs.ID, seg)
	}
	return false, nil
}

// Start begins walking seg toward the observer named target.
func (m *Machine) Start(target string, seg pathing.Segment) (bool, error) {
	if seg.Len() < m.cfg.MinPathLength {
		m.sink.Emit(events.Event{Kind: events.KindPursuitRejected, Observer: target, Reason: "short_path"})
		return false, nil
	}
	st := State{
		Phase:  PhaseWalking,
		RunID:  uuid.NewString(),
		Target: target,
		Path:   append([]voxel.Pos(nil), seg.Steps...),
	}
	if err := saveState(m.store, st); err != nil {
		return false, err
	}
	m.log.Printf("pursuit %s started behind %s: %d steps", st.RunID, target, len(st.Path))
	m.sink.Emit(events.Event{
		Kind:     events.KindPursuitTriggered,
		ID:       st.RunID,
		Observer: target,
		Pos:      events.At(st.Path[0]),
		Data:     map[string]any{"steps": len(st.Path)},
	})
	return true, nil
}

// Reset forces the machine back to IDLE, dropping any path.
func (m *Machine) Reset(reason string) error {
	st, err := loadState(m.store)
	if err != nil {
		return err
	}
	if !st.Active() {
		return nil
	}
	return m.finish(st, events.KindPursuitReset, reason)
}

func (m *Machine) finish(st State, kind events.Kind, reason string) error {
	if err := saveState(m.store, State{Phase: PhaseIdle}); err != nil {
		return err
	}
	e := events.Event{Kind: kind, ID: st.RunID, Observer: st.Target, Reason: reason}
	if st.HasLast {
		e.Pos = events.At(st.LastPos)
	}
	m.log.Printf("pursuit %s ended: %s", st.RunID, reason)
	m.sink.Emit(e)
	return nil
}

// Tick advances the machine by one simulation tick.
func (m *Machine) Tick(observers []world.Observer) error {
	st, err := loadState(m.store)
	if err != nil {
		return err
	}
	switch st.Phase {
	case PhaseWalking:
		return m.tickWalking(st, observers)
	case PhasePaused:
		return m.tickPaused(st, observers)
	default:
		return nil
	}
}

func (m *Machine) tickWalking(st State, observers []world.Observer) error {
	st.Elapsed++
	if m.cfg.TimeoutTicks > 0 && st.Elapsed >= m.cfg.TimeoutTicks {
		return m.finish(st, events.KindPursuitTimeout, ReasonTimeout)
	}
	st.StepTimer++
	if st.StepTimer < m.cfg.StepEveryTicks {
		return saveState(m.store, st)
	}
	st.StepTimer = 0

	origin, _ := st.origin()
	near, ok := nearest(observers, origin)
	if !ok {
		// Nobody to follow; the timeout ends this eventually.
		return saveState(m.store, st)
	}

	if st.StepIndex >= len(st.Path) {
		seg, ok := m.planner.ExtendPath(origin, near.Voxel(), observers)
		if !ok {
			m.sink.Emit(events.Event{Kind: events.KindPursuitExhausted, ID: st.RunID, Observer: near.ID, Pos: events.At(origin)})
			return m.pause(st, near, origin, PauseExhausted)
		}
		st.Path, st.StepIndex = seg.Steps, 0
		m.sink.Emit(events.Event{Kind: events.KindPursuitExtended, ID: st.RunID, Observer: near.ID, Data: map[string]any{"steps": seg.Len()}})
	}

	if st.HasLast && distToFeet(near, st.LastPos) <= m.cfg.AbortDistance {
		return m.finish(st, events.KindPursuitCaught, ReasonCaught)
	}

	if m.cfg.StepBudget > 0 && st.StepsTaken >= m.cfg.StepBudget {
		return m.finish(st, events.KindPursuitTimeout, ReasonStepBudget)
	}

	next := st.Path[st.StepIndex]
	last := st.StepIndex + m.cfg.VisibilityLookahead
	if last >= len(st.Path) {
		last = len(st.Path) - 1
	}
	for i := st.StepIndex; i <= last; i++ {
		if m.planner.BodyVisible(observers, st.Path[i]) {
			return m.pause(st, near, st.Path[i], PauseStepVisible)
		}
	}
	if distToFeet(near, next) < m.cfg.MinFollowDistance {
		return m.pause(st, near, next, PauseTooClose)
	}

	m.world.PlaySoundAt(next, world.SoundFootstep)
	st.StepIndex++
	st.StepsTaken++
	st.LastPos, st.HasLast = next, true
	if err := saveState(m.store, st); err != nil {
		return err
	}
	m.sink.Emit(events.Event{
		Kind:     events.KindPursuitCue,
		ID:       st.RunID,
		Observer: near.ID,
		Pos:      events.At(next),
		Data:     map[string]any{"step": st.StepIndex - 1},
	})
	return nil
}

func (m *Machine) pause(st State, near world.Observer, step voxel.Pos, reason string) error {
	st.Phase = PhasePaused
	st.PauseObserver = near.Voxel()
	st.PauseStep = step
	st.PauseReason = reason
	if err := saveState(m.store, st); err != nil {
		return err
	}
	m.sink.Emit(events.Event{
		Kind:     events.KindPursuitPaused,
		ID:       st.RunID,
		Observer: near.ID,
		Pos:      events.At(step),
		Reason:   reason,
		Data:     map[string]any{"step": st.StepIndex},
	})
	return nil
}

func (m *Machine) tickPaused(st State, observers []world.Observer) error {
	st.Elapsed++
	if m.cfg.TimeoutTicks > 0 && st.Elapsed >= m.cfg.TimeoutTicks {
		return m.finish(st, events.KindPursuitTimeout, ReasonTimeout)
	}
	origin, ok := st.origin()
	if !ok {
		return m.finish(st, events.KindPursuitReset, "no_origin")
	}
	near, ok := nearest(observers, origin)
	if !ok {
		return saveState(m.store, st)
	}

	if (st.HasLast && m.planner.BodyVisible(observers, st.LastPos)) || m.planner.BodyVisible(observers, st.PauseStep) {
		return saveState(m.store, st)
	}
	if near.Voxel() == st.PauseObserver {
		return saveState(m.store, st)
	}
	seg, ok := m.planner.ExtendPath(origin, near.Voxel(), observers)
	if !ok {
		return saveState(m.store, st)
	}

	st.Phase = PhaseWalking
	st.Path, st.StepIndex, st.StepTimer = seg.Steps, 0, 0
	st.PauseReason = ""
	if err := saveState(m.store, st); err != nil {
		return err
	}
	m.sink.Emit(events.Event{
		Kind:     events.KindPursuitResumed,
		ID:       st.RunID,
		Observer: near.ID,
		Pos:      events.At(origin),
		Data:     map[string]any{"steps": seg.Len()},
	})
	return nil
}

// nearest returns the valid observer closest to p.
func nearest(observers []world.Observer, p voxel.Pos) (world.Observer, bool) {
	var (
		best  world.Observer
		bestD = math.Inf(1)
		found bool
	)
	for _, o := range observers {
		if !o.Valid() {
			continue
		}
		if d := distToFeet(o, p); d < bestD {
			best, bestD, found = o, d, true
		}
	}
	return best, found
}

func distToFeet(o world.Observer, p voxel.Pos) float64 {
	c := p.Center()
	c[1] = p.Vec()[1]
	return c.Sub(o.Pos).Len()
}
