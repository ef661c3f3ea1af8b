package cave

// ExtraWeights are the relative odds of each extra decoration.
type ExtraWeights struct {
	Furnace   int `yaml:"furnace" json:"furnace"`
	Workbench int `yaml:"workbench" json:"workbench"`
	Pillar    int `yaml:"pillar" json:"pillar"`
}

func (w ExtraWeights) total() int { return w.Furnace + w.Workbench + w.Pillar }

type Config struct {
	// Anchor search.
	AnchorChunkRadius    int `yaml:"anchor_chunk_radius" json:"anchor_chunk_radius"`
	AnchorMinRadius      int `yaml:"anchor_min_radius" json:"anchor_min_radius"`
	AnchorRingStep       int `yaml:"anchor_ring_step" json:"anchor_ring_step"`
	AnchorAngularSamples int `yaml:"anchor_angular_samples" json:"anchor_angular_samples"`
	DepthCeilingY        int `yaml:"depth_ceiling_y" json:"depth_ceiling_y"`
	GroundSearch         int `yaml:"ground_search" json:"ground_search"`
	// MinSeparation is compared squared against every stored anchor.
	MinSeparation int `yaml:"min_separation" json:"min_separation"`

	// Exploration and harvest.
	ExploreHRadius int     `yaml:"explore_h_radius" json:"explore_h_radius"`
	ExploreVRadius int     `yaml:"explore_v_radius" json:"explore_v_radius"`
	MaxHeadroom    int     `yaml:"max_headroom" json:"max_headroom"`
	MaxVisited     int     `yaml:"max_visited" json:"max_visited"`
	MinAirVoxels   int     `yaml:"min_air_voxels" json:"min_air_voxels"`
	VeinRadius     int     `yaml:"vein_radius" json:"vein_radius"`
	RubbleChance   float64 `yaml:"rubble_chance" json:"rubble_chance"`

	// Torches.
	TorchGridCell       int     `yaml:"torch_grid_cell" json:"torch_grid_cell"`
	TorchMinSpacing     int     `yaml:"torch_min_spacing" json:"torch_min_spacing"`
	TorchMaxLight       int     `yaml:"torch_max_light" json:"torch_max_light"`
	TorchSkipChance     float64 `yaml:"torch_skip_chance" json:"torch_skip_chance"`
	TorchPerturbRadius  int     `yaml:"torch_perturb_radius" json:"torch_perturb_radius"`
	TorchVerticalWindow int     `yaml:"torch_vertical_window" json:"torch_vertical_window"`

	// Extras.
	ExtraMax      int          `yaml:"extra_max" json:"extra_max"`
	ExtraAttempts int          `yaml:"extra_attempts" json:"extra_attempts"`
	ExtraWeights  ExtraWeights `yaml:"extra_weights" json:"extra_weights"`

	// Staircase.
	StairMaxTurns   int     `yaml:"stair_max_turns" json:"stair_max_turns"`
	StairMinRun     int     `yaml:"stair_min_run" json:"stair_min_run"`
	StairTurnChance float64 `yaml:"stair_turn_chance" json:"stair_turn_chance"`
	StairTorchEvery int     `yaml:"stair_torch_every" json:"stair_torch_every"`
	StairCeilingY   int     `yaml:"stair_ceiling_y" json:"stair_ceiling_y"`
	ExitTorches     int     `yaml:"exit_torches" json:"exit_torches"`
	ExitTorchRadius int     `yaml:"exit_torch_radius" json:"exit_torch_radius"`
}

func DefaultConfig() Config {
	return Config{
		AnchorChunkRadius:    4,
		AnchorMinRadius:      16,
		AnchorRingStep:       8,
		AnchorAngularSamples: 12,
		DepthCeilingY:        40,
		GroundSearch:         6,
		MinSeparation:        96,

		ExploreHRadius: 24,
		ExploreVRadius: 12,
		MaxHeadroom:    4,
		MaxVisited:     6000,
		MinAirVoxels:   50,
		VeinRadius:     8,
		RubbleChance:   0.25,

		TorchGridCell:       10,
		TorchMinSpacing:     8,
		TorchMaxLight:       3,
		TorchSkipChance:     0.2,
		TorchPerturbRadius:  2,
		TorchVerticalWindow: 3,

		ExtraMax:      2,
		ExtraAttempts: 24,
		ExtraWeights:  ExtraWeights{Furnace: 3, Workbench: 3, Pillar: 2},

		StairMaxTurns:   5,
		StairMinRun:     6,
		StairTurnChance: 0.1,
		StairTorchEvery: 8,
		StairCeilingY:   110,
		ExitTorches:     3,
		ExitTorchRadius: 4,
	}
}
