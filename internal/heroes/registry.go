// Package heroes resolves hero ids to display names.
package heroes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"metabuild/internal/logging"
	"metabuild/internal/opendota"
)

// Source provides the hero constants table
type Source interface {
	FetchHeroConstants(ctx context.Context) ([]opendota.HeroConstant, error)
}

// Registry holds the hero ID to name mapping, refreshed when older than its TTL
type Registry struct {
	source   Source
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	names    map[int]string
	loadedAt time.Time
}

// NewRegistry creates an empty registry backed by source
func NewRegistry(source Source, ttl time.Duration) *Registry {
	return &Registry{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		names:  make(map[int]string),
	}
}

// Load fetches hero constants and replaces the mapping.
// On failure the previous mapping is kept.
func (r *Registry) Load(ctx context.Context) error {
	heroes, err := r.source.FetchHeroConstants(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch heroes: %w", err)
	}

	next := make(map[int]string, len(heroes))
	for _, h := range heroes {
		if name := DisplayName(h); name != "" {
			next[h.ID] = name
		}
	}

	r.mu.Lock()
	r.names = next
	r.loadedAt = r.now()
	r.mu.Unlock()

	logging.Info().Int("heroes", len(next)).Msg("[Heroes] Loaded hero names")
	return nil
}

// Name returns the display name for a hero id, refreshing the mapping when it is
// empty or expired. Unknown ids render as "Hero <id>".
func (r *Registry) Name(ctx context.Context, id int) string {
	if !r.fresh() {
		if err := r.Load(ctx); err != nil {
			logging.Warn().Err(err).Msg("[Heroes] Refresh failed, keeping previous names")
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.names[id]; ok {
		return name
	}
	return fmt.Sprintf("Hero %d", id)
}

// Loaded returns whether any names are available
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names) > 0
}

func (r *Registry) fresh() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names) > 0 && r.now().Sub(r.loadedAt) < r.ttl
}

// DisplayName prefers the localized name, falling back to the internal name
// without its npc_dota_hero_ prefix
func DisplayName(h opendota.HeroConstant) string {
	if name := strings.TrimSpace(h.LocalizedName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimPrefix(h.Name, "npc_dota_hero_"))
}
