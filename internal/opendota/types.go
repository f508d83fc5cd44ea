package opendota

import "metabuild/internal/build"

// ItemConstants maps an upstream item key (e.g. "blink") to its numeric id
type ItemConstants map[string]int

// Popularity holds item id -> popularity score per build stage.
// Only finite numeric scores are present.
type Popularity map[build.Stage]map[string]float64

// HeroConstant is one entry of the hero constants payload
type HeroConstant struct {
	ID            int
	Name          string
	LocalizedName string
}

// stageKeys maps build stages to the popularity payload keys
var stageKeys = map[build.Stage]string{
	build.StageStarting: "start_game_items",
	build.StageEarly:    "early_game_items",
	build.StageMid:      "mid_game_items",
	build.StageLate:     "late_game_items",
}
