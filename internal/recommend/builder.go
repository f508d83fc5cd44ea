// Package recommend assembles the baseline, rule-adjusted build and patch
// context for one match, and runs the picker over it.
package recommend

import (
	"context"
	"fmt"
	"time"

	"metabuild/internal/build"
	"metabuild/internal/coach"
	"metabuild/internal/metacache"
	"metabuild/internal/patches"
	"metabuild/internal/picker"
	"metabuild/internal/rules"
)

// BaselineItems is how many popular items per stage seed a recommendation
const BaselineItems = 6

// MetaSource returns hero meta snapshots
type MetaSource interface {
	GetHeroMeta(ctx context.Context, heroID, max int, force bool) (*metacache.HeroMeta, error)
}

// RuleApplier applies the rule set to a baseline
type RuleApplier interface {
	Apply(ctx context.Context, baseline build.Build, mc build.MatchContext) (build.Build, []rules.Adjustment, error)
}

// PatchSource returns the tracked patch
type PatchSource interface {
	Current(ctx context.Context) (patches.State, error)
}

// HeroNames resolves hero display names
type HeroNames interface {
	Name(ctx context.Context, id int) string
}

// PatchInfo is the patch the recommendation was built under
type PatchInfo struct {
	ID        string     `json:"id"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Context is everything the picker and coach work from
type Context struct {
	HeroID        int                `json:"hero_id"`
	HeroName      string             `json:"hero_name,omitempty"`
	Patch         PatchInfo          `json:"patch"`
	MetaSource    metacache.Source   `json:"meta_source"`
	MetaUpdatedAt time.Time          `json:"meta_updated_at"`
	Baseline      build.Build        `json:"baseline"`
	Final         build.Build        `json:"final"`
	Adjustments   []rules.Adjustment `json:"adjustments"`
}

// Recommendation is a context plus the picker's build
type Recommendation struct {
	Context
	Picked picker.Result `json:"picked"`
}

// Builder composes the recommendation pipeline
type Builder struct {
	meta    MetaSource
	rules   RuleApplier
	patches PatchSource
	heroes  HeroNames
}

// NewBuilder creates a builder. heroes may be nil.
func NewBuilder(meta MetaSource, applier RuleApplier, patchSource PatchSource, heroes HeroNames) *Builder {
	return &Builder{meta: meta, rules: applier, patches: patchSource, heroes: heroes}
}

// Build reads the hero baseline, applies rules and attaches the patch
func (b *Builder) Build(ctx context.Context, mc build.MatchContext) (*Context, error) {
	meta, err := b.meta.GetHeroMeta(ctx, mc.HeroID, BaselineItems, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load hero meta: %w", err)
	}

	baseline := meta.Build.Clone()
	final, adjustments, err := b.rules.Apply(ctx, baseline, mc)
	if err != nil {
		return nil, err
	}

	patch, err := b.patches.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patch state: %w", err)
	}

	out := &Context{
		HeroID:        mc.HeroID,
		Patch:         PatchInfo{ID: patch.PatchID},
		MetaSource:    meta.Source,
		MetaUpdatedAt: meta.UpdatedAt,
		Baseline:      baseline,
		Final:         final,
		Adjustments:   adjustments,
	}
	if out.Patch.ID == "" {
		out.Patch.ID = patches.UnknownPatch
	}
	if !patch.UpdatedAt.IsZero() {
		updatedAt := patch.UpdatedAt
		out.Patch.UpdatedAt = &updatedAt
	}
	if b.heroes != nil {
		out.HeroName = b.heroes.Name(ctx, mc.HeroID)
	}

	return out, nil
}

// Recommend builds the context and picks a build in the given mode
func (b *Builder) Recommend(ctx context.Context, mc build.MatchContext, mode string) (*Recommendation, error) {
	c, err := b.Build(ctx, mc)
	if err != nil {
		return nil, err
	}

	return &Recommendation{
		Context: *c,
		Picked:  picker.Pick(mc, c.Final, c.Baseline, mode),
	}, nil
}

// Ask builds the context and answers a coach question over it
func (b *Builder) Ask(ctx context.Context, mc build.MatchContext, question string) (*Context, coach.Answer, error) {
	c, err := b.Build(ctx, mc)
	if err != nil {
		return nil, coach.Answer{}, err
	}

	answer := coach.Ask(coach.Input{Match: mc, Baseline: c.Baseline, Final: c.Final}, question)
	return c, answer, nil
}
