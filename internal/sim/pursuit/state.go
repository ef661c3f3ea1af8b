package pursuit

import (
	"fmt"

	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/voxel"
)

// StateKey is where the single pursuit state of a world lives.
const StateKey = "pursuit.state"

type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhaseWalking Phase = "WALKING"
	PhasePaused  Phase = "PAUSED"
)

// State is persisted after every change so a restart resumes mid-pursuit.
type State struct {
	Phase  Phase  `json:"phase"`
	RunID  string `json:"run_id,omitempty"`
	Target string `json:"target,omitempty"`

	// Walking.
	Path      []voxel.Pos `json:"path,omitempty"`
	StepIndex int         `json:"step_index"`
	StepTimer int         `json:"step_timer"`

	Elapsed    int `json:"elapsed"`
	StepsTaken int `json:"steps_taken"`

	HasLast bool      `json:"has_last"`
	LastPos voxel.Pos `json:"last_pos"`

	// Paused.
	PauseObserver voxel.Pos `json:"pause_observer"`
	PauseStep     voxel.Pos `json:"pause_step"`
	PauseReason   string    `json:"pause_reason,omitempty"`
}

func (s State) Active() bool { return s.Phase == PhaseWalking || s.Phase == PhasePaused }

// origin is where the pursuer currently stands for distance checks and extensions.
func (s State) origin() (voxel.Pos, bool) {
	if s.HasLast {
		return s.LastPos, true
	}
	if len(s.Path) > 0 {
		return s.Path[0], true
	}
	return voxel.Pos{}, false
}

func loadState(store kv.Store) (State, error) {
	var st State
	ok, err := kv.GetJSON(store, StateKey, &st)
	if err != nil {
		return State{}, fmt.Errorf("pursuit: load state: %w", err)
	}
	if !ok || st.Phase == "" {
		return State{Phase: PhaseIdle}, nil
	}
	return st, nil
}

func saveState(store kv.Store, st State) error {
	if err := kv.SetJSON(store, StateKey, st); err != nil {
		return fmt.Errorf("pursuit: save state: %w", err)
	}
	return nil
}
