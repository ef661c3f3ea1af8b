// Package director decides when the cave generator and the pursuit run.
//
// Both actions are gated by durable countdown timers so the cadence survives restarts.
// An expired timer fires its action once and is re-armed with a random delay.
package director

import (
	"fmt"
	"io"
	"log"
	"math/rand/v2"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/cave"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/world"
)

const (
	CaveTimerKey    = "timer.cave"
	PursuitTimerKey = "timer.pursuit"
)

type Config struct {
	CaveMinDelayTicks    int `yaml:"cave_min_delay_ticks" json:"cave_min_delay_ticks"`
	CaveMaxDelayTicks    int `yaml:"cave_max_delay_ticks" json:"cave_max_delay_ticks"`
	PursuitMinDelayTicks int `yaml:"pursuit_min_delay_ticks" json:"pursuit_min_delay_ticks"`
	PursuitMaxDelayTicks int `yaml:"pursuit_max_delay_ticks" json:"pursuit_max_delay_ticks"`
}

// DefaultConfig is tuned for 20 ticks per second: a cave every one to three minutes
// and a pursuit every three to eight.
func DefaultConfig() Config {
	return Config{
		CaveMinDelayTicks:    1200,
		CaveMaxDelayTicks:    3600,
		PursuitMinDelayTicks: 3600,
		PursuitMaxDelayTicks: 9600,
	}
}

// Caves is the part of the cave generator the director drives.
type Caves interface {
	Attempt(obs world.Observer) (cave.Report, error)
}

// Pursuit is the part of the pursuit machine the director drives.
type Pursuit interface {
	IsActive() (bool, error)
	Trigger(observers []world.Observer) (bool, error)
	Tick(observers []world.Observer) error
}

type Deps struct {
	World   world.Access
	Caves   Caves
	Pursuit Pursuit
	Store   kv.Store
	Rand    *rand.Rand
	Sink    events.Sink
	Logger  *log.Logger
}

type Director struct {
	world   world.Access
	caves   Caves
	pursuit Pursuit
	store   kv.Store
	rng     *rand.Rand
	sink    events.Sink
	log     *log.Logger
	cfg     Config
}

func New(d Deps, cfg Config) *Director {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &Director{
		world:   d.World,
		caves:   d.Caves,
		pursuit: d.Pursuit,
		store:   d.Store,
		rng:     rng,
		sink:    events.OrDiscard(d.Sink),
		log:     logger,
		cfg:     cfg,
	}
}

// Timers returns the remaining ticks of each armed timer.
func (d *Director) Timers() (map[string]int64, error) {
	out := map[string]int64{}
	for _, k := range []string{CaveTimerKey, PursuitTimerKey} {
		v, ok, err := kv.GetInt(d.store, k)
		if err != nil {
			return nil, fmt.Errorf("director: read %s: %w", k, err)
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Step runs one tick: the pursuit advances, then both timers count down.
func (d *Director) Step() error {
	observers := d.observers()
	if d.pursuit != nil {
		if err := d.pursuit.Tick(observers); err != nil {
			return err
		}
	}
	if d.caves != nil {
		fired, err := d.countdown(CaveTimerKey, d.cfg.CaveMinDelayTicks, d.cfg.CaveMaxDelayTicks)
		if err != nil {
			return err
		}
		if fired {
			if err := d.fireCave(observers); err != nil {
				return err
			}
		}
	}
	if d.pursuit != nil {
		fired, err := d.countdown(PursuitTimerKey, d.cfg.PursuitMinDelayTicks, d.cfg.PursuitMaxDelayTicks)
		if err != nil {
			return err
		}
		if fired {
			if err := d.firePursuit(observers); err != nil {
				return err
			}
		}
	}
	return nil
}

// observers are the valid observers standing in loaded chunks.
func (d *Director) observers() []world.Observer {
	all := d.world.Observers()
	out := all[:0:0]
	for _, o := range all {
		if o.Valid() && d.world.IsChunkLoaded(o.Voxel()) {
			out = append(out, o)
		}
	}
	return out
}

// countdown decrements key and reports whether it expired this tick. An expired or
// missing timer is re-armed immediately.
func (d *Director) countdown(key string, minDelay, maxDelay int) (bool, error) {
	v, ok, err := kv.GetInt(d.store, key)
	if err != nil {
		return false, fmt.Errorf("director: read %s: %w", key, err)
	}
	if !ok {
		return false, d.arm(key, minDelay, maxDelay)
	}
	v--
	if v > 0 {
		if err := kv.SetInt(d.store, key, v); err != nil {
			return false, fmt.Errorf("director: write %s: %w", key, err)
		}
		return false, nil
	}
	if err := d.arm(key, minDelay, maxDelay); err != nil {
		return false, err
	}
	d.sink.Emit(events.Event{Kind: events.KindTimerFired, ID: key})
	return true, nil
}

func (d *Director) arm(key string, minDelay, maxDelay int) error {
	delay := d.delay(minDelay, maxDelay)
	if err := kv.SetInt(d.store, key, int64(delay)); err != nil {
		return fmt.Errorf("director: arm %s: %w", key, err)
	}
	return nil
}

func (d *Director) delay(minDelay, maxDelay int) int {
	if minDelay < 1 {
		minDelay = 1
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return minDelay + d.rng.IntN(maxDelay-minDelay+1)
}

func (d *Director) fireCave(observers []world.Observer) error {
	if len(observers) == 0 {
		return nil
	}
	obs := observers[d.rng.IntN(len(observers))]
	rep, err := d.caves.Attempt(obs)
	if err != nil {
		return fmt.Errorf("director: cave attempt: %w", err)
	}
	if rep.Outcome != cave.OutcomeCreated {
		d.log.Printf("cave attempt near %s: %s", obs.ID, rep.Outcome)
	}
	return nil
}

func (d *Director) firePursuit(observers []world.Observer) error {
	if len(observers) == 0 {
		return nil
	}
	active, err := d.pursuit.IsActive()
	if err != nil {
		return fmt.Errorf("director: pursuit state: %w", err)
	}
	if active {
		return nil
	}
	order := append([]world.Observer(nil), observers...)
	d.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	if _, err := d.pursuit.Trigger(order); err != nil {
		return fmt.Errorf("director: pursuit trigger: %w", err)
	}
	return nil
}
