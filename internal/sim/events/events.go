package events

import "unseen.ai/internal/sim/voxel"

type Kind string

const (
	KindObserverJoin  Kind = "OBSERVER_JOIN"
	KindObserverLeave Kind = "OBSERVER_LEAVE"

	KindTimerFired Kind = "TIMER_FIRED"

	KindCaveCreated  Kind = "CAVE_CREATED"
	KindCaveRejected Kind = "CAVE_REJECTED"

	KindPursuitTriggered Kind = "PURSUIT_TRIGGERED"
	KindPursuitRejected  Kind = "PURSUIT_REJECTED"
	KindPursuitCue       Kind = "PURSUIT_CUE"
	KindPursuitPaused    Kind = "PURSUIT_PAUSED"
	KindPursuitResumed   Kind = "PURSUIT_RESUMED"
	KindPursuitExtended  Kind = "PURSUIT_EXTENDED"
	KindPursuitTimeout   Kind = "PURSUIT_TIMEOUT"
	KindPursuitCaught    Kind = "PURSUIT_CAUGHT"
	KindPursuitExhausted Kind = "PURSUIT_EXHAUSTED"
	KindPursuitReset     Kind = "PURSUIT_RESET"

	KindSound Kind = "SOUND"
)

// Event is one domain occurrence. Components leave Tick zero; the runtime stamps it.
type Event struct {
	Tick     uint64         `json:"tick"`
	Kind     Kind           `json:"kind"`
	ID       string         `json:"id,omitempty"`
	Observer string         `json:"observer,omitempty"`
	Pos      *voxel.Pos     `json:"pos,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// At is a convenience for filling Pos.
func At(p voxel.Pos) *voxel.Pos { return &p }

type Sink interface {
	Emit(e Event)
}

type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Stamp sets Tick from clock on every event before forwarding it.
func Stamp(clock func() uint64, next Sink) Sink {
	return SinkFunc(func(e Event) {
		if e.Tick == 0 && clock != nil {
			e.Tick = clock()
		}
		next.Emit(e)
	})
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Recorder keeps every event in memory. Used by tests and the admin state endpoint.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (r *Recorder) Kinds() []Kind {
	out := make([]Kind, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Kind)
	}
	return out
}

// Last returns the most recent event of kind k.
func (r *Recorder) Last(k Kind) (Event, bool) {
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Kind == k {
			return r.Events[i], true
		}
	}
	return Event{}, false
}

func (r *Recorder) Reset() { r.Events = r.Events[:0] }
