// Package picker re-ranks candidate items per stage with fixed heuristics,
// without any generative model.
package picker

import (
	"cmp"
	"slices"
	"strings"

	"metabuild/internal/build"
	"metabuild/internal/items"
)

const (
	// Source identifies picker output in responses
	Source = "stat_picker_v1"

	stageLimit     = 6
	preferredSlice = 10
	fallbackNotes  = "stat rerank"
)

// Result is the picked build
type Result struct {
	Build  build.Build `json:"build"`
	Notes  string      `json:"notes"`
	Mode   string      `json:"mode"`
	Source string      `json:"source"`
}

// Pick chooses up to six items per stage from the rule-adjusted build, the
// baseline and the mode's preferred items. Owned items and items chosen for
// an earlier stage are never picked.
func Pick(mc build.MatchContext, final, baseline build.Build, mode string) Result {
	pos := mc.Pos
	if pos == 0 {
		pos = 1
	}
	signals := CollectSignals(mc)

	owned := make(map[string]bool)
	for _, name := range items.NormalizeAll(mc.CurrentItems) {
		owned[name] = true
	}
	chosen := make(map[string]bool)

	preferred := Preferences[mode]
	if len(preferred) > preferredSlice {
		preferred = preferred[:preferredSlice]
	}

	in := scoreInput{mode: mode, signals: signals, pos: pos, support: pos == 4 || pos == 5}

	var out build.Build
	for _, stage := range build.Stages {
		candidates := make([]string, 0, len(final.Items(stage))+len(baseline.Items(stage))+len(preferred))
		candidates = append(candidates, final.Items(stage)...)
		candidates = append(candidates, baseline.Items(stage)...)
		candidates = append(candidates, preferred...)

		in.stage = stage
		out.Set(stage, pickStage(candidates, in, owned, chosen))
	}

	return Result{
		Build:  out,
		Notes:  notes(mode, signals),
		Mode:   mode,
		Source: Source,
	}
}

func pickStage(candidates []string, in scoreInput, owned, chosen map[string]bool) []string {
	pool := make([]string, 0, len(candidates))
	for _, name := range items.NormalizeAll(candidates) {
		if owned[name] || chosen[name] {
			continue
		}
		pool = append(pool, name)
	}

	pool = pruneGroups(pool)

	type scored struct {
		item  string
		score int
	}
	ranked := make([]scored, len(pool))
	for i, item := range pool {
		ranked[i] = scored{item: item, score: score(item, in)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	picked := make([]string, 0, stageLimit)
	for _, r := range ranked {
		if len(picked) >= stageLimit {
			break
		}
		picked = append(picked, r.item)
		chosen[r.item] = true
	}
	return picked
}

// pruneGroups drops items outranked by another member of their group in pool
func pruneGroups(pool []string) []string {
	best := make(map[string]int)
	for _, item := range pool {
		if g, ok := Groups[item]; ok && g.Rank > best[g.Group] {
			best[g.Group] = g.Rank
		}
	}

	out := pool[:0:0]
	for _, item := range pool {
		if g, ok := Groups[item]; ok && g.Rank < best[g.Group] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func notes(mode string, signals Signals) string {
	var parts []string
	if mode != "" {
		parts = append(parts, "mode="+mode)
	}
	if signals[SignalHealing] {
		parts = append(parts, "antiheal=vessel")
	}
	if signals[SignalInvis] {
		parts = append(parts, "vision=dust/gem")
	}
	if signals.Disable() {
		parts = append(parts, "disable=bkb")
	}
	if len(parts) == 0 {
		return fallbackNotes
	}
	return strings.Join(parts, ", ")
}
