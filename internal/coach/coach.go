// Package coach answers build questions from the heuristic picker alone.
package coach

import (
	"fmt"
	"strings"

	"metabuild/internal/build"
	"metabuild/internal/items"
	"metabuild/internal/picker"
)

const (
	Provider = "stat_picker"
	Model    = "stat_coach_v1"

	maxWhy = 180
)

// Input is the recommendation context the coach works from
type Input struct {
	Match    build.MatchContext
	Baseline build.Build
	Final    build.Build
}

// Answer is a rendered coach reply
type Answer struct {
	Text     string            `json:"answer"`
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Mode     string            `json:"mode"`
	Build    build.Build       `json:"build"`
	Notes    string            `json:"notes"`
	Purposes map[string]string `json:"purposes,omitempty"`
}

// Build picks a build for the mode named in question
func Build(in Input, question string) picker.Result {
	return picker.Pick(in.Match, in.Final, in.Baseline, picker.ExtractMode(question))
}

// Ask picks a build and renders it as START/EARLY/MID/LATE/WHY lines
func Ask(in Input, question string) Answer {
	picked := Build(in, question)
	why := Why(in.Match, picked)

	return Answer{
		Text:     Format(picked.Build, why),
		Provider: Provider,
		Model:    Model,
		Mode:     picked.Mode,
		Build:    picked.Build,
		Notes:    picked.Notes,
		Purposes: purposes(picked.Build),
	}
}

// Why summarises the mode, role, facet and picker notes
func Why(mc build.MatchContext, picked picker.Result) string {
	var parts []string
	if picked.Mode != "" {
		parts = append(parts, "mode="+picked.Mode)
	}
	if mc.Pos != 0 {
		parts = append(parts, fmt.Sprintf("pos=%d", mc.Pos))
	}
	if mc.Facet != "" {
		parts = append(parts, "facet="+mc.Facet)
	}
	if picked.Notes != "" {
		parts = append(parts, picked.Notes)
	}

	why := strings.Join(parts, ", ")
	if r := []rune(why); len(r) > maxWhy {
		why = string(r[:maxWhy])
	}
	return why
}

// Format renders one line per stage plus the WHY line
func Format(b build.Build, why string) string {
	lines := []string{
		"START: " + strings.Join(b.Starting, ", "),
		"EARLY: " + strings.Join(b.Early, ", "),
		"MID: " + strings.Join(b.Mid, ", "),
		"LATE: " + strings.Join(b.Late, ", "),
		"WHY: " + strings.TrimSpace(why),
	}
	return strings.Join(lines, "\n")
}

func purposes(b build.Build) map[string]string {
	out := make(map[string]string)
	for _, stage := range build.Stages {
		for _, item := range b.Items(stage) {
			if p, ok := items.Purpose(item); ok {
				out[item] = p
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
