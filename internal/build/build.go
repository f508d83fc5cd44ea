package build

import "strings"

// Stage is one of the four build phases
type Stage string

const (
	StageStarting Stage = "starting"
	StageEarly    Stage = "early"
	StageMid      Stage = "mid"
	StageLate     Stage = "late"
)

// Stages lists every stage in build order
var Stages = []Stage{StageStarting, StageEarly, StageMid, StageLate}

// ParseStage returns the stage named by s. Unknown names report false.
func ParseStage(s string) (Stage, bool) {
	switch Stage(strings.ToLower(strings.TrimSpace(s))) {
	case StageStarting:
		return StageStarting, true
	case StageEarly:
		return StageEarly, true
	case StageMid:
		return StageMid, true
	case StageLate:
		return StageLate, true
	}
	return "", false
}

// Bias orders stages for scoring: starting 0, early 1, mid 2, late 3
func (s Stage) Bias() int {
	switch s {
	case StageStarting:
		return 0
	case StageEarly:
		return 1
	case StageMid:
		return 2
	case StageLate:
		return 3
	}
	return 0
}

// Build holds an ordered item list per stage
type Build struct {
	Starting []string `json:"starting"`
	Early    []string `json:"early"`
	Mid      []string `json:"mid"`
	Late     []string `json:"late"`
}

// Items returns the sequence for a stage
func (b *Build) Items(stage Stage) []string {
	switch stage {
	case StageStarting:
		return b.Starting
	case StageEarly:
		return b.Early
	case StageMid:
		return b.Mid
	case StageLate:
		return b.Late
	}
	return nil
}

// Set replaces a stage sequence with a deduplicated copy of items.
// Unknown stages are ignored.
func (b *Build) Set(stage Stage, items []string) {
	items = Dedupe(items)
	switch stage {
	case StageStarting:
		b.Starting = items
	case StageEarly:
		b.Early = items
	case StageMid:
		b.Mid = items
	case StageLate:
		b.Late = items
	}
}

// Apply removes items matching remove (trimmed, case-insensitive), appends add,
// then dedupes keeping first occurrence. Unknown stages are a no-op.
func (b *Build) Apply(stage Stage, add, remove []string) bool {
	if _, ok := ParseStage(string(stage)); !ok {
		return false
	}
	current := b.Items(stage)

	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[normalizeKey(r)] = true
	}

	next := make([]string, 0, len(current)+len(add))
	for _, item := range current {
		if drop[normalizeKey(item)] {
			continue
		}
		next = append(next, item)
	}
	next = append(next, add...)

	b.Set(stage, next)
	return true
}

// Clone returns a deep copy
func (b Build) Clone() Build {
	return Build{
		Starting: cloneSlice(b.Starting),
		Early:    cloneSlice(b.Early),
		Mid:      cloneSlice(b.Mid),
		Late:     cloneSlice(b.Late),
	}
}

// Truncate returns a copy with each stage capped at max entries
func (b Build) Truncate(max int) Build {
	out := b.Clone()
	for _, stage := range Stages {
		items := out.Items(stage)
		if max >= 0 && len(items) > max {
			out.Set(stage, items[:max])
		}
	}
	return out
}

// Empty reports whether every stage is empty
func (b Build) Empty() bool {
	return len(b.Starting) == 0 && len(b.Early) == 0 && len(b.Mid) == 0 && len(b.Late) == 0
}

// Dedupe returns items without duplicates, keeping first occurrence order
func Dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneSlice(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
