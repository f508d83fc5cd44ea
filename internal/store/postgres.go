package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metabuild/internal/build"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores cache tables, rules and patch state in PostgreSQL
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and pings the database
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Ping runs a trivial query
func (p *Postgres) Ping(ctx context.Context) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return persistErr("ping database", err)
	}
	return nil
}

// EnsureSchema creates missing tables
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return persistErr("create schema", err)
		}
	}
	return nil
}

// GetCatalog returns the catalog snapshot or ErrNotFound
func (p *Postgres) GetCatalog(ctx context.Context) (*CatalogRow, error) {
	var raw string
	var row CatalogRow
	err := p.pool.QueryRow(ctx, `
		SELECT item_id_map::text, updated_at
		FROM cache_items_constants
		WHERE id = 1
	`).Scan(&raw, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("read catalog", err)
	}

	if err := json.Unmarshal([]byte(raw), &row.ItemIDMap); err != nil {
		return nil, persistErr("decode catalog", err)
	}
	return &row, nil
}

// PutCatalog replaces the catalog snapshot
func (p *Postgres) PutCatalog(ctx context.Context, row CatalogRow) error {
	payload, err := json.Marshal(row.ItemIDMap)
	if err != nil {
		return persistErr("encode catalog", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO cache_items_constants (id, item_id_map, updated_at)
		VALUES (1, $1::jsonb, $2)
		ON CONFLICT (id)
		DO UPDATE SET item_id_map = EXCLUDED.item_id_map, updated_at = EXCLUDED.updated_at
	`, string(payload), row.UpdatedAt)
	if err != nil {
		return persistErr("write catalog", err)
	}
	return nil
}

// GetHeroMeta returns a hero's popularity snapshot or ErrNotFound
func (p *Postgres) GetHeroMeta(ctx context.Context, heroID int) (*HeroMetaRow, error) {
	var starting, early, mid, late string
	row := HeroMetaRow{HeroID: heroID}
	err := p.pool.QueryRow(ctx, `
		SELECT starting_items::text, early_items::text, mid_items::text, late_items::text, updated_at
		FROM cache_hero_item_popularity
		WHERE hero_id = $1
	`, heroID).Scan(&starting, &early, &mid, &late, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("read hero meta", err)
	}

	b, err := decodeStages(starting, early, mid, late)
	if err != nil {
		return nil, persistErr("decode hero meta", err)
	}
	row.Build = b
	return &row, nil
}

// PutHeroMeta replaces a hero's popularity snapshot
func (p *Postgres) PutHeroMeta(ctx context.Context, row HeroMetaRow) error {
	stages, err := encodeStages(row.Build)
	if err != nil {
		return persistErr("encode hero meta", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO cache_hero_item_popularity (hero_id, starting_items, early_items, mid_items, late_items, updated_at)
		VALUES ($1, $2::jsonb, $3::jsonb, $4::jsonb, $5::jsonb, $6)
		ON CONFLICT (hero_id)
		DO UPDATE SET starting_items = EXCLUDED.starting_items,
		              early_items = EXCLUDED.early_items,
		              mid_items = EXCLUDED.mid_items,
		              late_items = EXCLUDED.late_items,
		              updated_at = EXCLUDED.updated_at
	`, row.HeroID, stages[0], stages[1], stages[2], stages[3], row.UpdatedAt)
	if err != nil {
		return persistErr("write hero meta", err)
	}
	return nil
}

// ListEnabledRules returns enabled rules ordered by priority then id
func (p *Postgres) ListEnabledRules(ctx context.Context) ([]RuleRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, enabled, priority, conditions::text, actions::text, created_at
		FROM rules
		WHERE enabled = TRUE
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, persistErr("query rules", err)
	}
	defer rows.Close()

	var rules []RuleRow
	for rows.Next() {
		var r RuleRow
		var conditions, actions string
		if err := rows.Scan(&r.ID, &r.Name, &r.Enabled, &r.Priority, &conditions, &actions, &r.CreatedAt); err != nil {
			return nil, persistErr("scan rule", err)
		}
		r.Conditions = []byte(conditions)
		r.Actions = []byte(actions)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate rules", err)
	}
	return rules, nil
}

// InsertRuleIfMissing inserts a rule unless one with the same name exists
func (p *Postgres) InsertRuleIfMissing(ctx context.Context, rule RuleRow) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO rules (name, enabled, priority, conditions, actions, created_at)
		SELECT $1::text, $2::boolean, $3::integer, $4::jsonb, $5::jsonb, $6::timestamptz
		WHERE NOT EXISTS (SELECT 1 FROM rules WHERE name = $1::text)
	`, rule.Name, rule.Enabled, rule.Priority, string(rule.Conditions), string(rule.Actions), rule.CreatedAt)
	if err != nil {
		return false, persistErr("insert rule", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetHotHeroes returns the hero ids refreshed by the batch job
func (p *Postgres) GetHotHeroes(ctx context.Context) ([]int, error) {
	rows, err := p.pool.Query(ctx, `SELECT hero_id FROM hot_heroes ORDER BY hero_id ASC`)
	if err != nil {
		return nil, persistErr("query hot heroes", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan hot hero", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate hot heroes", err)
	}
	return ids, nil
}

// AddHotHeroes inserts hero ids, ignoring ones already present
func (p *Postgres) AddHotHeroes(ctx context.Context, heroIDs []int, now time.Time) error {
	if len(heroIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range heroIDs {
		batch.Queue(`
			INSERT INTO hot_heroes (hero_id, created_at)
			VALUES ($1, $2)
			ON CONFLICT (hero_id) DO NOTHING
		`, id, now)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return persistErr("insert hot heroes", err)
	}
	return nil
}

// GetPatchState returns the singleton patch row or ErrNotFound
func (p *Postgres) GetPatchState(ctx context.Context) (*PatchState, error) {
	var st PatchState
	var published, raw *string
	err := p.pool.QueryRow(ctx, `
		SELECT current_patch_id, updated_at, published_at, raw_text
		FROM patch_state
		WHERE id = 1
	`).Scan(&st.PatchID, &st.UpdatedAt, &published, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("read patch state", err)
	}
	if published != nil {
		st.PublishedAt = *published
	}
	if raw != nil {
		st.RawText = *raw
	}
	return &st, nil
}

// PutPatchState replaces the singleton patch row
func (p *Postgres) PutPatchState(ctx context.Context, st PatchState) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO patch_state (id, current_patch_id, updated_at, published_at, raw_text)
		VALUES (1, $1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (id)
		DO UPDATE SET current_patch_id = EXCLUDED.current_patch_id,
		              updated_at = EXCLUDED.updated_at,
		              published_at = EXCLUDED.published_at,
		              raw_text = EXCLUDED.raw_text
	`, st.PatchID, st.UpdatedAt, st.PublishedAt, st.RawText)
	if err != nil {
		return persistErr("write patch state", err)
	}
	return nil
}

// encodeStages marshals the four stage arrays in build order
func encodeStages(b build.Build) ([4]string, error) {
	var out [4]string
	for i, stage := range build.Stages {
		items := b.Items(stage)
		if items == nil {
			items = []string{}
		}
		data, err := json.Marshal(items)
		if err != nil {
			return out, err
		}
		out[i] = string(data)
	}
	return out, nil
}

// decodeStages unmarshals the four stage arrays in build order
func decodeStages(raw ...string) (build.Build, error) {
	var b build.Build
	for i, stage := range build.Stages {
		var items []string
		if i < len(raw) && raw[i] != "" {
			if err := json.Unmarshal([]byte(raw[i]), &items); err != nil {
				return b, fmt.Errorf("stage %s: %w", stage, err)
			}
		}
		if items == nil {
			items = []string{}
		}
		b.Set(stage, items)
	}
	return b, nil
}
