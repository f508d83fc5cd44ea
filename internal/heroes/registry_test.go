package heroes

import (
	"context"
	"errors"
	"testing"
	"time"

	"metabuild/internal/opendota"
)

type fakeSource struct {
	heroes []opendota.HeroConstant
	err    error
	calls  int
}

func (f *fakeSource) FetchHeroConstants(ctx context.Context) ([]opendota.HeroConstant, error) {
	f.calls++
	return f.heroes, f.err
}

// TestRegistry_Name tests name resolution and the unknown id fallback
func TestRegistry_Name(t *testing.T) {
	src := &fakeSource{heroes: []opendota.HeroConstant{
		{ID: 1, Name: "npc_dota_hero_antimage", LocalizedName: "Anti-Mage"},
		{ID: 2, Name: "npc_dota_hero_axe", LocalizedName: "  "},
		{ID: 3},
	}}
	r := NewRegistry(src, time.Hour)
	ctx := context.Background()

	if got := r.Name(ctx, 1); got != "Anti-Mage" {
		t.Errorf("expected Anti-Mage, got %q", got)
	}
	if got := r.Name(ctx, 2); got != "axe" {
		t.Errorf("expected axe, got %q", got)
	}
	if got := r.Name(ctx, 3); got != "Hero 3" {
		t.Errorf("expected fallback for nameless hero, got %q", got)
	}
	if src.calls != 1 {
		t.Errorf("expected one fetch while fresh, got %d", src.calls)
	}
}

// TestRegistry_KeepsStaleOnFailure tests that a failed refresh keeps previous names
func TestRegistry_KeepsStaleOnFailure(t *testing.T) {
	src := &fakeSource{heroes: []opendota.HeroConstant{{ID: 1, LocalizedName: "Anti-Mage"}}}
	r := NewRegistry(src, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	now = now.Add(time.Hour)
	src.err = errors.New("down")
	src.heroes = nil

	if got := r.Name(context.Background(), 1); got != "Anti-Mage" {
		t.Errorf("expected stale name, got %q", got)
	}
	if src.calls != 2 {
		t.Errorf("expected a refresh attempt after expiry, got %d calls", src.calls)
	}
	if !r.Loaded() {
		t.Error("expected registry to stay loaded")
	}
}
