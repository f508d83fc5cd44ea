package metacache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"metabuild/internal/build"
	"metabuild/internal/opendota"
	"metabuild/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	catalog *store.CatalogRow
	meta    map[int]store.HeroMetaRow
	hot     []int
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{meta: make(map[int]store.HeroMetaRow)}
}

func (m *memStore) GetCatalog(ctx context.Context) (*store.CatalogRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, fmt.Errorf("%w: boom", store.ErrPersistence)
	}
	if m.catalog == nil {
		return nil, store.ErrNotFound
	}
	row := *m.catalog
	return &row, nil
}

func (m *memStore) PutCatalog(ctx context.Context, row store.CatalogRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = &row
	return nil
}

func (m *memStore) GetHeroMeta(ctx context.Context, heroID int) (*store.HeroMetaRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, fmt.Errorf("%w: boom", store.ErrPersistence)
	}
	row, ok := m.meta[heroID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (m *memStore) PutHeroMeta(ctx context.Context, row store.HeroMetaRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[row.HeroID] = row
	return nil
}

func (m *memStore) GetHotHeroes(ctx context.Context) ([]int, error) {
	return m.hot, nil
}

type fakeProvider struct {
	mu         sync.Mutex
	constants  opendota.ItemConstants
	popularity map[int]opendota.Popularity
	failItems  bool
	failHeroes map[int]bool
	itemCalls  int
	heroCalls  int
}

func (f *fakeProvider) FetchItemConstants(ctx context.Context) (opendota.ItemConstants, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls++
	if f.failItems {
		return nil, fmt.Errorf("%w: down", opendota.ErrUnavailable)
	}
	return f.constants, nil
}

func (f *fakeProvider) FetchHeroItemPopularity(ctx context.Context, heroID int) (opendota.Popularity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heroCalls++
	if f.failHeroes[heroID] {
		return nil, fmt.Errorf("%w: down", opendota.ErrUnavailable)
	}
	return f.popularity[heroID], nil
}

func (f *fakeProvider) FetchHeroConstants(ctx context.Context) ([]opendota.HeroConstant, error) {
	return nil, nil
}

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(st *memStore, p *fakeProvider, cfg Config) *Cache {
	c := New(st, p, cfg)
	c.now = func() time.Time { return testNow }
	return c
}

// TestGetHeroMeta_ColdStart tests that an empty cache fetches, maps and orders by score
func TestGetHeroMeta_ColdStart(t *testing.T) {
	st := newMemStore()
	p := &fakeProvider{
		constants: opendota.ItemConstants{"x": 42, "item_y": 7},
		popularity: map[int]opendota.Popularity{
			1: {build.StageMid: {"42": 10, "7": 5, "999": 50}},
		},
	}
	c := newTestCache(st, p, Config{})

	meta, err := c.GetHeroMeta(context.Background(), 1, 6, false)
	if err != nil {
		t.Fatalf("GetHeroMeta failed: %v", err)
	}
	if meta.Source != SourceProvider {
		t.Errorf("expected source provider, got %s", meta.Source)
	}
	if len(meta.Mid) != 2 || meta.Mid[0] != "item_x" || meta.Mid[1] != "item_y" {
		t.Errorf("expected [item_x item_y], got %v", meta.Mid)
	}
	if len(meta.Early) != 0 {
		t.Errorf("expected empty early stage, got %v", meta.Early)
	}
	if _, ok := st.meta[1]; !ok {
		t.Error("expected hero meta to be persisted")
	}
}

// TestGetHeroMeta_FreshCacheSkipsProvider tests that a fresh row is served without upstream calls
func TestGetHeroMeta_FreshCacheSkipsProvider(t *testing.T) {
	st := newMemStore()
	st.meta[1] = store.HeroMetaRow{
		HeroID:    1,
		Build:     build.Build{Mid: []string{"a", "b", "c"}},
		UpdatedAt: testNow.Add(-10 * time.Minute),
	}
	p := &fakeProvider{}
	c := newTestCache(st, p, Config{MetaTTL: time.Hour})

	meta, err := c.GetHeroMeta(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("GetHeroMeta failed: %v", err)
	}
	if meta.Source != SourceCache {
		t.Errorf("expected source cache, got %s", meta.Source)
	}
	if len(meta.Mid) != 2 {
		t.Errorf("expected mid truncated to 2, got %v", meta.Mid)
	}
	if p.itemCalls != 0 || p.heroCalls != 0 {
		t.Errorf("expected no provider calls, got items=%d heroes=%d", p.itemCalls, p.heroCalls)
	}
}

// TestGetHeroMeta_StaleFallback tests that a provider failure serves the old snapshot
func TestGetHeroMeta_StaleFallback(t *testing.T) {
	st := newMemStore()
	st.catalog = &store.CatalogRow{ItemIDMap: map[string]string{"1": "item_blink"}, UpdatedAt: testNow}
	st.meta[1] = store.HeroMetaRow{
		HeroID:    1,
		Build:     build.Build{Late: []string{"item_blink"}},
		UpdatedAt: testNow.Add(-48 * time.Hour),
	}
	p := &fakeProvider{failHeroes: map[int]bool{1: true}}
	c := newTestCache(st, p, Config{MetaTTL: time.Minute, CatalogTTL: 24 * time.Hour})

	meta, err := c.GetHeroMeta(context.Background(), 1, 6, false)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if meta.Source != SourceStale {
		t.Errorf("expected source stale_cache, got %s", meta.Source)
	}
	if len(meta.Late) != 1 || meta.Late[0] != "item_blink" {
		t.Errorf("unexpected stale late stage: %v", meta.Late)
	}
}

// TestGetHeroMeta_NoSnapshotPropagates tests that a provider failure without a snapshot is an error
func TestGetHeroMeta_NoSnapshotPropagates(t *testing.T) {
	st := newMemStore()
	p := &fakeProvider{failItems: true}
	c := newTestCache(st, p, Config{})

	_, err := c.GetHeroMeta(context.Background(), 5, 6, false)
	if !errors.Is(err, opendota.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// TestGetHeroMeta_PersistenceIsFatal tests that store read failures are never masked
func TestGetHeroMeta_PersistenceIsFatal(t *testing.T) {
	st := newMemStore()
	st.failGet = true
	c := newTestCache(st, &fakeProvider{}, Config{})

	_, err := c.GetHeroMeta(context.Background(), 1, 6, false)
	if !errors.Is(err, store.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

// TestGetHeroMeta_ForcedStoresMoreThanReturned tests the forced tag and untruncated persistence
func TestGetHeroMeta_ForcedStoresMoreThanReturned(t *testing.T) {
	st := newMemStore()
	constants := opendota.ItemConstants{}
	scores := map[string]float64{}
	for i := 1; i <= 15; i++ {
		constants[fmt.Sprintf("it%d", i)] = i
		scores[fmt.Sprint(i)] = float64(100 - i)
	}
	p := &fakeProvider{
		constants:  constants,
		popularity: map[int]opendota.Popularity{2: {build.StageLate: scores}},
	}
	c := newTestCache(st, p, Config{StoredItems: 12})

	meta, err := c.GetHeroMeta(context.Background(), 2, 3, true)
	if err != nil {
		t.Fatalf("GetHeroMeta failed: %v", err)
	}
	if meta.Source != SourceProviderForced {
		t.Errorf("expected provider_forced, got %s", meta.Source)
	}
	if len(meta.Late) != 3 || meta.Late[0] != "item_it1" {
		t.Errorf("expected 3 items led by item_it1, got %v", meta.Late)
	}
	if got := len(st.meta[2].Build.Late); got != 12 {
		t.Errorf("expected 12 stored items, got %d", got)
	}
}

// TestEnsureCatalog_StaleOnFailure tests the catalog fallback regardless of age
func TestEnsureCatalog_StaleOnFailure(t *testing.T) {
	st := newMemStore()
	st.catalog = &store.CatalogRow{ItemIDMap: map[string]string{"1": "item_blink"}, UpdatedAt: testNow.Add(-30 * 24 * time.Hour)}
	c := newTestCache(st, &fakeProvider{failItems: true}, Config{CatalogTTL: time.Hour})

	res, err := c.EnsureCatalog(context.Background(), false)
	if err != nil {
		t.Fatalf("EnsureCatalog failed: %v", err)
	}
	if res.Source != SourceStale || res.Catalog["1"] != "item_blink" {
		t.Errorf("unexpected result: %+v", res)
	}
}

// TestTopItemNames tests ordering, tie-breaks, unmapped ids and dedupe
func TestTopItemNames(t *testing.T) {
	catalog := map[string]string{"1": "item_a", "2": "item_b", "3": "item_a", "10": "item_c"}
	scores := map[string]float64{"10": 5, "2": 5, "1": 9, "3": 1, "77": 100}

	got := TopItemNames(scores, catalog, 10)
	want := []string{"item_a", "item_b", "item_c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if got := TopItemNames(scores, catalog, 1); len(got) != 1 {
		t.Errorf("expected cap of 1, got %v", got)
	}
}

// TestCatalogFromConstants tests prefixing and id indexing
func TestCatalogFromConstants(t *testing.T) {
	got := CatalogFromConstants(opendota.ItemConstants{"blink": 1, "item_tango": 44})
	if got["1"] != "item_blink" {
		t.Errorf("expected item_blink, got %q", got["1"])
	}
	if got["44"] != "item_tango" {
		t.Errorf("expected item_tango, got %q", got["44"])
	}
}
