package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"metabuild/internal/build"
)

func newTestStore(t *testing.T) *SQL {
	t.Helper()

	ctx := context.Background()
	s, err := NewSQL(ctx, DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return s
}

// TestSQL_CatalogRoundTrip tests that the catalog snapshot is stored and replaced
func TestSQL_CatalogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetCatalog(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty catalog, got %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := CatalogRow{ItemIDMap: map[string]string{"1": "item_blink"}, UpdatedAt: now}
	if err := s.PutCatalog(ctx, first); err != nil {
		t.Fatalf("PutCatalog failed: %v", err)
	}

	second := CatalogRow{ItemIDMap: map[string]string{"116": "item_black_king_bar"}, UpdatedAt: now.Add(time.Hour)}
	if err := s.PutCatalog(ctx, second); err != nil {
		t.Fatalf("PutCatalog failed: %v", err)
	}

	got, err := s.GetCatalog(ctx)
	if err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if len(got.ItemIDMap) != 1 || got.ItemIDMap["116"] != "item_black_king_bar" {
		t.Errorf("expected replaced catalog, got %v", got.ItemIDMap)
	}
	if !got.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("expected updated_at %v, got %v", second.UpdatedAt, got.UpdatedAt)
	}
}

// TestSQL_HeroMetaRoundTrip tests that all four stages survive storage
func TestSQL_HeroMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetHeroMeta(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	row := HeroMetaRow{
		HeroID: 1,
		Build: build.Build{
			Starting: []string{"item_tango"},
			Early:    []string{"item_power_treads"},
			Mid:      []string{"item_black_king_bar", "item_manta"},
			Late:     nil,
		},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.PutHeroMeta(ctx, row); err != nil {
		t.Fatalf("PutHeroMeta failed: %v", err)
	}

	got, err := s.GetHeroMeta(ctx, 1)
	if err != nil {
		t.Fatalf("GetHeroMeta failed: %v", err)
	}
	if len(got.Build.Mid) != 2 || got.Build.Mid[1] != "item_manta" {
		t.Errorf("unexpected mid stage: %v", got.Build.Mid)
	}
	if got.Build.Late == nil || len(got.Build.Late) != 0 {
		t.Errorf("expected empty late stage, got %v", got.Build.Late)
	}
	if got.Build.Starting[0] != "item_tango" {
		t.Errorf("unexpected starting stage: %v", got.Build.Starting)
	}
}

// TestSQL_RulesOrderAndIdempotentInsert tests rule ordering and name-based dedupe
func TestSQL_RulesOrderAndIdempotentInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func(name string, priority int, enabled bool) bool {
		t.Helper()
		ok, err := s.InsertRuleIfMissing(ctx, RuleRow{
			Name:       name,
			Enabled:    enabled,
			Priority:   priority,
			Conditions: []byte(`{}`),
			Actions:    []byte(`{"adjustments":[]}`),
			CreatedAt:  now,
		})
		if err != nil {
			t.Fatalf("InsertRuleIfMissing failed: %v", err)
		}
		return ok
	}

	if !insert("late", 50, true) {
		t.Fatal("expected first insert to succeed")
	}
	insert("early", 10, true)
	insert("same-priority", 10, true)
	insert("disabled", 1, false)

	if insert("late", 99, true) {
		t.Error("expected duplicate name to be skipped")
	}

	rules, err := s.ListEnabledRules(ctx)
	if err != nil {
		t.Fatalf("ListEnabledRules failed: %v", err)
	}

	want := []string{"early", "same-priority", "late"}
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, name := range want {
		if rules[i].Name != name {
			t.Errorf("rule %d: expected %s, got %s", i, name, rules[i].Name)
		}
	}
	if rules[2].Priority != 50 {
		t.Errorf("expected duplicate insert to leave priority 50, got %d", rules[2].Priority)
	}
}

// TestSQL_PatchStateSeededAndReplaced tests the seeded unknown row and its replacement
func TestSQL_PatchStateSeededAndReplaced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetPatchState(ctx)
	if err != nil {
		t.Fatalf("GetPatchState failed: %v", err)
	}
	if st.PatchID != "unknown" {
		t.Errorf("expected seeded patch 'unknown', got %s", st.PatchID)
	}

	next := PatchState{PatchID: "7.39c", UpdatedAt: time.Now().UTC(), PublishedAt: "2026-02-10", RawText: "Patch 7.39c"}
	if err := s.PutPatchState(ctx, next); err != nil {
		t.Fatalf("PutPatchState failed: %v", err)
	}

	st, err = s.GetPatchState(ctx)
	if err != nil {
		t.Fatalf("GetPatchState failed: %v", err)
	}
	if st.PatchID != "7.39c" || st.PublishedAt != "2026-02-10" {
		t.Errorf("unexpected patch state: %+v", st)
	}

	if err := s.PutPatchState(ctx, PatchState{PatchID: "7.40", UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("PutPatchState failed: %v", err)
	}
	st, _ = s.GetPatchState(ctx)
	if st.PublishedAt != "" {
		t.Errorf("expected empty published_at, got %q", st.PublishedAt)
	}
}

// TestBootstrap tests that bootstrapping twice installs defaults exactly once
func TestBootstrap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		if err := Bootstrap(ctx, s, nil, now); err != nil {
			t.Fatalf("Bootstrap run %d failed: %v", i, err)
		}
	}

	rules, err := s.ListEnabledRules(ctx)
	if err != nil {
		t.Fatalf("ListEnabledRules failed: %v", err)
	}
	if len(rules) != len(DefaultRules) {
		t.Errorf("expected %d rules, got %d", len(DefaultRules), len(rules))
	}
	if rules[0].Name != "Counter evasion with MKB" {
		t.Errorf("expected priority 10 rule first, got %s", rules[0].Name)
	}

	heroes, err := s.GetHotHeroes(ctx)
	if err != nil {
		t.Fatalf("GetHotHeroes failed: %v", err)
	}
	if len(heroes) != 3 || heroes[0] != 1 || heroes[1] != 94 || heroes[2] != 114 {
		t.Errorf("unexpected hot heroes: %v", heroes)
	}

	if err := s.AddHotHeroes(ctx, []int{94, 7}, now); err != nil {
		t.Fatalf("AddHotHeroes failed: %v", err)
	}
	heroes, _ = s.GetHotHeroes(ctx)
	if len(heroes) != 4 {
		t.Errorf("expected 4 hot heroes after adding one new id, got %v", heroes)
	}
}
