package tuning

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"unseen.ai/internal/sim/cave"
	"unseen.ai/internal/sim/director"
	"unseen.ai/internal/sim/floodfill"
	"unseen.ai/internal/sim/pathing"
	"unseen.ai/internal/sim/pursuit"
	"unseen.ai/internal/sim/visibility"
	"unseen.ai/internal/sim/world/terrain/gen"
)

// ErrInvalid wraps every schema or range violation.
var ErrInvalid = errors.New("invalid tuning")

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	World      World             `yaml:"world" json:"world"`
	Terrain    gen.Terrain       `yaml:"terrain" json:"terrain"`
	Visibility visibility.Config `yaml:"visibility" json:"visibility"`
	Cave       cave.Config       `yaml:"cave" json:"cave"`
	Path       pathing.Config    `yaml:"path" json:"path"`
	Pursuit    pursuit.Config    `yaml:"pursuit" json:"pursuit"`
	Schedule   director.Config   `yaml:"schedule" json:"schedule"`
}

type World struct {
	Height             int     `yaml:"height" json:"height"`
	TickRateHz         int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	LoadRadiusChunks   int     `yaml:"load_radius_chunks" json:"load_radius_chunks"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
	HearingRadius      float64 `yaml:"hearing_radius" json:"hearing_radius"` // cues farther from an observer are not forwarded to it
}

func Defaults() Tuning {
	return Tuning{
		World: World{
			Height:             128,
			TickRateHz:         20,
			LoadRadiusChunks:   6,
			SnapshotEveryTicks: 6000,
			HearingRadius:      48,
		},
		Terrain:    gen.Defaults(1337),
		Visibility: visibility.DefaultConfig(),
		Cave:       cave.DefaultConfig(),
		Path:       pathing.DefaultConfig(),
		Pursuit:    pursuit.DefaultConfig(),
		Schedule:   director.DefaultConfig(),
	}
}

// Load reads a tuning.yaml and overlays it on Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	if path == "" {
		t := Defaults()
		return t, t.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return Tuning{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse validates raw YAML against the embedded schema, overlays it on Defaults
// and range-checks the result.
func Parse(raw []byte) (Tuning, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc != nil {
		if err := validateSchema(doc); err != nil {
			return Tuning{}, err
		}
	}
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func validateSchema(doc any) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("tuning.schema.json", schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile tuning schema: %w", schemaErr)
	}
	// Round-trip through JSON so the validator sees float64 numbers and string keys.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Validate checks relations between fields that the schema cannot express.
func (t Tuning) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if t.World.Height < 32 {
		bad("world.height %d below 32", t.World.Height)
	}
	if t.World.TickRateHz <= 0 {
		bad("world.tick_rate_hz must be positive")
	}
	if t.Terrain.BaseHeight+t.Terrain.Amplitude >= t.World.Height-2 {
		bad("terrain surface reaches world.height %d", t.World.Height)
	}
	if t.Cave.DepthCeilingY >= t.World.Height {
		bad("cave.depth_ceiling_y %d outside world", t.Cave.DepthCeilingY)
	}
	if h, v := t.Cave.ExploreHRadius, t.Cave.ExploreVRadius; h*h+v*v > floodfill.MaxRadius*floodfill.MaxRadius {
		bad("cave explore radii %d/%d exceed flood fill radius %d", h, v, floodfill.MaxRadius)
	}
	if t.Cave.VeinRadius > floodfill.MaxRadius {
		bad("cave.vein_radius %d exceeds %d", t.Cave.VeinRadius, floodfill.MaxRadius)
	}
	if t.Path.BandMin > t.Path.BandMax {
		bad("path.band_min %v > band_max %v", t.Path.BandMin, t.Path.BandMax)
	}
	if t.Path.ExtendBandMin > t.Path.ExtendBandMax {
		bad("path.extend_band_min %v > extend_band_max %v", t.Path.ExtendBandMin, t.Path.ExtendBandMax)
	}
	if t.Path.RadiusCap > floodfill.MaxRadius || t.Path.ExtendRadiusCap > floodfill.MaxRadius {
		bad("path radius caps exceed %d", floodfill.MaxRadius)
	}
	if float64(t.Path.RadiusCap) < t.Path.BandMax {
		bad("path.radius_cap %d cannot reach band_max %v", t.Path.RadiusCap, t.Path.BandMax)
	}
	if t.Pursuit.StepEveryTicks < 1 {
		bad("pursuit.step_every_ticks must be >= 1")
	}
	if t.Pursuit.MinPathLength < 1 {
		bad("pursuit.min_path_length must be >= 1")
	}
	if t.Schedule.CaveMinDelayTicks > t.Schedule.CaveMaxDelayTicks {
		bad("schedule cave delay min %d > max %d", t.Schedule.CaveMinDelayTicks, t.Schedule.CaveMaxDelayTicks)
	}
	if t.Schedule.PursuitMinDelayTicks > t.Schedule.PursuitMaxDelayTicks {
		bad("schedule pursuit delay min %d > max %d", t.Schedule.PursuitMinDelayTicks, t.Schedule.PursuitMaxDelayTicks)
	}
	return errors.Join(errs...)
}
