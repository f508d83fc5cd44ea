// Package metacache keeps the item catalog and per-hero item popularity
// fresh against the upstream provider, serving persisted snapshots when the
// provider is down.
package metacache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"metabuild/internal/build"
	"metabuild/internal/items"
	"metabuild/internal/logging"
	"metabuild/internal/metrics"
	"metabuild/internal/opendota"
	"metabuild/internal/store"
)

// Source tells callers where a result came from
type Source string

const (
	SourceCache          Source = "cache"
	SourceProvider       Source = "provider"
	SourceProviderForced Source = "provider_forced"
	SourceStale          Source = "stale_cache"
)

// Store is the slice of persistence the caches need
type Store interface {
	GetCatalog(ctx context.Context) (*store.CatalogRow, error)
	PutCatalog(ctx context.Context, row store.CatalogRow) error
	GetHeroMeta(ctx context.Context, heroID int) (*store.HeroMetaRow, error)
	PutHeroMeta(ctx context.Context, row store.HeroMetaRow) error
	GetHotHeroes(ctx context.Context) ([]int, error)
}

// Config holds TTLs and sizing
type Config struct {
	CatalogTTL  time.Duration
	MetaTTL     time.Duration
	StoredItems int
	HotHeroes   []int
	Concurrency int
}

// DefaultConfig returns a 24h catalog TTL, 45m meta TTL, 20 stored items per
// stage and a sequential hot refresh
func DefaultConfig() Config {
	return Config{
		CatalogTTL:  24 * time.Hour,
		MetaTTL:     45 * time.Minute,
		StoredItems: 20,
		HotHeroes:   []int{1, 94, 114},
		Concurrency: 1,
	}
}

// CatalogResult is the item id -> canonical name map with its origin
type CatalogResult struct {
	Source    Source
	Catalog   map[string]string
	UpdatedAt time.Time
}

// HeroMeta is a hero's popular items per stage, truncated to the requested size
type HeroMeta struct {
	HeroID    int       `json:"hero_id"`
	Source    Source    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
	build.Build
}

// Cache resolves the item catalog and hero meta snapshots
type Cache struct {
	store    Store
	provider opendota.Provider
	cfg      Config
	now      func() time.Time
}

// New creates a cache over st, fetching from provider on miss or expiry
func New(st Store, provider opendota.Provider, cfg Config) *Cache {
	if cfg.StoredItems < 10 {
		cfg.StoredItems = 10
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Cache{
		store:    st,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (c *Cache) fresh(updatedAt time.Time, ttl time.Duration) bool {
	if updatedAt.IsZero() {
		return false
	}
	return c.now().Sub(updatedAt) <= ttl
}

// EnsureCatalog returns the persisted catalog when fresh, otherwise refetches it.
// A provider failure falls back to the persisted catalog regardless of age.
func (c *Cache) EnsureCatalog(ctx context.Context, force bool) (*CatalogResult, error) {
	cached, err := c.store.GetCatalog(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if !force && cached != nil && c.fresh(cached.UpdatedAt, c.cfg.CatalogTTL) {
		metrics.CacheLookups.WithLabelValues("catalog", string(SourceCache)).Inc()
		return &CatalogResult{Source: SourceCache, Catalog: cached.ItemIDMap, UpdatedAt: cached.UpdatedAt}, nil
	}

	constants, fetchErr := c.provider.FetchItemConstants(ctx)
	if fetchErr != nil {
		if cached != nil {
			logging.Warn().Err(fetchErr).Msg("[MetaCache] Item constants unavailable, serving stale catalog")
			metrics.CacheLookups.WithLabelValues("catalog", string(SourceStale)).Inc()
			return &CatalogResult{Source: SourceStale, Catalog: cached.ItemIDMap, UpdatedAt: cached.UpdatedAt}, nil
		}
		metrics.CacheLookups.WithLabelValues("catalog", "error").Inc()
		return nil, fmt.Errorf("failed to fetch item constants: %w", fetchErr)
	}

	row := store.CatalogRow{ItemIDMap: CatalogFromConstants(constants), UpdatedAt: c.now().UTC()}
	if err := c.store.PutCatalog(ctx, row); err != nil {
		return nil, err
	}

	logging.Debug().Int("items", len(row.ItemIDMap)).Msg("[MetaCache] Catalog refreshed")
	metrics.CacheLookups.WithLabelValues("catalog", string(SourceProvider)).Inc()
	return &CatalogResult{Source: SourceProvider, Catalog: row.ItemIDMap, UpdatedAt: row.UpdatedAt}, nil
}

// GetHeroMeta returns a hero's popular items with each stage capped at max.
// The catalog is only consulted when the hero snapshot has to be refetched.
func (c *Cache) GetHeroMeta(ctx context.Context, heroID, max int, force bool) (*HeroMeta, error) {
	cached, err := c.store.GetHeroMeta(ctx, heroID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if !force && cached != nil && c.fresh(cached.UpdatedAt, c.cfg.MetaTTL) {
		metrics.CacheLookups.WithLabelValues("hero_meta", string(SourceCache)).Inc()
		return view(heroID, SourceCache, cached.Build, cached.UpdatedAt, max), nil
	}

	catalog, err := c.EnsureCatalog(ctx, force)
	if errors.Is(err, store.ErrPersistence) {
		return nil, err
	}
	if err != nil {
		return c.staleOrFail(heroID, cached, max, err)
	}

	return c.refreshHero(ctx, heroID, max, force, catalog.Catalog, cached)
}

// refreshHero fetches popularity for one hero and persists it, falling back
// to cached on provider failure
func (c *Cache) refreshHero(ctx context.Context, heroID, max int, force bool, catalog map[string]string, cached *store.HeroMetaRow) (*HeroMeta, error) {
	popularity, err := c.provider.FetchHeroItemPopularity(ctx, heroID)
	if err != nil {
		return c.staleOrFail(heroID, cached, max, err)
	}

	stored := c.cfg.StoredItems
	if max > stored {
		stored = max
	}

	var b build.Build
	for _, stage := range build.Stages {
		b.Set(stage, TopItemNames(popularity[stage], catalog, stored))
	}

	row := store.HeroMetaRow{HeroID: heroID, Build: b, UpdatedAt: c.now().UTC()}
	if err := c.store.PutHeroMeta(ctx, row); err != nil {
		return nil, err
	}

	source := SourceProvider
	if force {
		source = SourceProviderForced
	}
	metrics.CacheLookups.WithLabelValues("hero_meta", string(source)).Inc()
	return view(heroID, source, b, row.UpdatedAt, max), nil
}

func (c *Cache) staleOrFail(heroID int, cached *store.HeroMetaRow, max int, cause error) (*HeroMeta, error) {
	if cached == nil {
		metrics.CacheLookups.WithLabelValues("hero_meta", "error").Inc()
		return nil, fmt.Errorf("failed to fetch meta for hero %d: %w", heroID, cause)
	}

	logging.Warn().Err(cause).Int("hero_id", heroID).Msg("[MetaCache] Provider unavailable, serving stale snapshot")
	metrics.CacheLookups.WithLabelValues("hero_meta", string(SourceStale)).Inc()
	return view(heroID, SourceStale, cached.Build, cached.UpdatedAt, max), nil
}

func view(heroID int, source Source, b build.Build, updatedAt time.Time, max int) *HeroMeta {
	return &HeroMeta{
		HeroID:    heroID,
		Source:    source,
		UpdatedAt: updatedAt,
		Build:     b.Truncate(max),
	}
}

// CatalogFromConstants indexes canonical item names by numeric id
func CatalogFromConstants(constants opendota.ItemConstants) map[string]string {
	out := make(map[string]string, len(constants))
	for key, id := range constants {
		name := key
		if !strings.HasPrefix(name, items.Prefix) {
			name = items.Prefix + name
		}
		out[strconv.Itoa(id)] = name
	}
	return out
}

// TopItemNames orders item ids by descending score (ties by ascending id),
// maps them through catalog dropping unknown ids, dedupes and caps at max
func TopItemNames(scores map[string]float64, catalog map[string]string, max int) []string {
	type entry struct {
		id    string
		score float64
	}

	entries := make([]entry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, entry{id: id, score: score})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return compareIDs(a.id, b.id)
	})

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := catalog[e.id]; ok && name != "" {
			names = append(names, name)
		}
	}

	names = build.Dedupe(names)
	if max >= 0 && len(names) > max {
		names = names[:max]
	}
	return names
}

func compareIDs(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return cmp.Compare(ai, bi)
	}
	return strings.Compare(a, b)
}
