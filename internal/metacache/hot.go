package metacache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metabuild/internal/logging"
	"metabuild/internal/metrics"
	"metabuild/internal/store"

	"golang.org/x/sync/errgroup"
)

// RefreshStatus is the per-hero outcome of a hot refresh
type RefreshStatus string

const (
	StatusOK    RefreshStatus = "ok"
	StatusError RefreshStatus = "error"
)

// HotRefreshResult reports one hero's refresh. A hero that could only be
// served from its stale snapshot counts as StatusError with Source
// SourceStale, since the batch exists to replace that snapshot.
type HotRefreshResult struct {
	HeroID    int           `json:"hero_id"`
	Status    RefreshStatus `json:"status"`
	Source    Source        `json:"source,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// HotHeroes returns the stored hot hero set, or the configured list when none are stored
func (c *Cache) HotHeroes(ctx context.Context) ([]int, error) {
	ids, err := c.store.GetHotHeroes(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return c.cfg.HotHeroes, nil
	}
	return ids, nil
}

// RefreshHotHeroes forces one catalog refresh, then forces a meta refresh for
// every hot hero. A failing hero is reported in its result and does not stop
// the others. Results keep the hot hero order.
func (c *Cache) RefreshHotHeroes(ctx context.Context, max int) ([]HotRefreshResult, error) {
	heroes, err := c.HotHeroes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load hot heroes: %w", err)
	}

	catalog, err := c.EnsureCatalog(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh catalog: %w", err)
	}

	results := make([]HotRefreshResult, len(heroes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for i, heroID := range heroes {
		g.Go(func() error {
			results[i] = c.refreshHot(gctx, heroID, max, catalog.Catalog)
			return nil
		})
	}
	g.Wait()

	ok := 0
	for _, r := range results {
		if r.Status == StatusOK {
			ok++
		}
	}
	logging.Info().
		Int("heroes", len(results)).
		Int("ok", ok).
		Str("catalog_source", string(catalog.Source)).
		Msg("[MetaCache] Hot hero refresh complete")

	return results, nil
}

func (c *Cache) refreshHot(ctx context.Context, heroID, max int, catalog map[string]string) HotRefreshResult {
	result := HotRefreshResult{HeroID: heroID}

	cached, err := c.store.GetHeroMeta(ctx, heroID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return c.failed(result, err)
	}

	meta, err := c.refreshHero(ctx, heroID, max, true, catalog, cached)
	if err != nil {
		return c.failed(result, err)
	}
	result.Source = meta.Source
	if meta.Source == SourceStale {
		return c.failed(result, fmt.Errorf("provider unavailable, kept snapshot from %s", meta.UpdatedAt.Format(time.RFC3339)))
	}

	updatedAt := meta.UpdatedAt
	result.Status = StatusOK
	result.UpdatedAt = &updatedAt
	metrics.HotRefreshResults.WithLabelValues(string(StatusOK)).Inc()
	return result
}

func (c *Cache) failed(result HotRefreshResult, err error) HotRefreshResult {
	logging.Warn().Err(err).Int("hero_id", result.HeroID).Msg("[MetaCache] Hot hero refresh failed")
	metrics.HotRefreshResults.WithLabelValues(string(StatusError)).Inc()
	result.Status = StatusError
	result.Error = err.Error()
	return result
}
