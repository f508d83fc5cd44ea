package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQL stores the same tables through database/sql, for the pure-Go sqlite
// driver (local files) and the libsql driver (Turso).
type SQL struct {
	db *sql.DB
}

// NewSQL opens a sqlite or libsql database and pings it
func NewSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQL{db: db}, nil
}

// Close closes the database
func (s *SQL) Close() error {
	return s.db.Close()
}

// Ping runs a trivial query
func (s *SQL) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return persistErr("ping database", err)
	}
	return nil
}

// EnsureSchema creates missing tables
func (s *SQL) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return persistErr("create schema", err)
		}
	}
	return nil
}

// GetCatalog returns the catalog snapshot or ErrNotFound
func (s *SQL) GetCatalog(ctx context.Context) (*CatalogRow, error) {
	var raw, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id_map, updated_at
		FROM cache_items_constants
		WHERE id = 1
	`).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("read catalog", err)
	}

	row := CatalogRow{}
	if row.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, persistErr("decode catalog timestamp", err)
	}
	if err := json.Unmarshal([]byte(raw), &row.ItemIDMap); err != nil {
		return nil, persistErr("decode catalog", err)
	}
	return &row, nil
}

// PutCatalog replaces the catalog snapshot
func (s *SQL) PutCatalog(ctx context.Context, row CatalogRow) error {
	payload, err := json.Marshal(row.ItemIDMap)
	if err != nil {
		return persistErr("encode catalog", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_items_constants (id, item_id_map, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET item_id_map = excluded.item_id_map, updated_at = excluded.updated_at
	`, string(payload), formatTime(row.UpdatedAt))
	if err != nil {
		return persistErr("write catalog", err)
	}
	return nil
}

// GetHeroMeta returns a hero's popularity snapshot or ErrNotFound
func (s *SQL) GetHeroMeta(ctx context.Context, heroID int) (*HeroMetaRow, error) {
	var starting, early, mid, late, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT starting_items, early_items, mid_items, late_items, updated_at
		FROM cache_hero_item_popularity
		WHERE hero_id = ?
	`, heroID).Scan(&starting, &early, &mid, &late, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("read hero meta", err)
	}

	row := HeroMetaRow{HeroID: heroID}
	if row.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, persistErr("decode hero meta timestamp", err)
	}
	if row.Build, err = decodeStages(starting, early, mid, late); err != nil {
		return nil, persistErr("decode hero meta", err)
	}
	return &row, nil
}

// PutHeroMeta replaces a hero's popularity snapshot
func (s *SQL) PutHeroMeta(ctx context.Context, row HeroMetaRow) error {
	stages, err := encodeStages(row.Build)
	if err != nil {
		return persistErr("encode hero meta", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_hero_item_popularity (hero_id, starting_items, early_items, mid_items, late_items, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (hero_id)
		DO UPDATE SET starting_items = excluded.starting_items,
		              early_items = excluded.early_items,
		              mid_items = excluded.mid_items,
		              late_items = excluded.late_items,
		              updated_at = excluded.updated_at
	`, row.HeroID, stages[0], stages[1], stages[2], stages[3], formatTime(row.UpdatedAt))
	if err != nil {
		return persistErr("write hero meta", err)
	}
	return nil
}

// ListEnabledRules returns enabled rules ordered by priority then id
func (s *SQL) ListEnabledRules(ctx context.Context) ([]RuleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabled, priority, conditions, actions, created_at
		FROM rules
		WHERE enabled = 1
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, persistErr("query rules", err)
	}
	defer rows.Close()

	var rules []RuleRow
	for rows.Next() {
		var r RuleRow
		var conditions, actions, createdAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.Enabled, &r.Priority, &conditions, &actions, &createdAt); err != nil {
			return nil, persistErr("scan rule", err)
		}
		r.Conditions = []byte(conditions)
		r.Actions = []byte(actions)
		if t, err := parseTime(createdAt); err == nil {
			r.CreatedAt = t
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate rules", err)
	}
	return rules, nil
}

// InsertRuleIfMissing inserts a rule unless one with the same name exists
func (s *SQL) InsertRuleIfMissing(ctx context.Context, rule RuleRow) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (name, enabled, priority, conditions, actions, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM rules WHERE name = ?)
	`, rule.Name, rule.Enabled, rule.Priority, string(rule.Conditions), string(rule.Actions), formatTime(rule.CreatedAt), rule.Name)
	if err != nil {
		return false, persistErr("insert rule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("insert rule", err)
	}
	return n > 0, nil
}

// GetHotHeroes returns the hero ids refreshed by the batch job
func (s *SQL) GetHotHeroes(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hero_id FROM hot_heroes ORDER BY hero_id ASC`)
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
func (s *SQL) AddHotHeroes(ctx context.Context, heroIDs []int, now time.Time) error {
	if len(heroIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hot_heroes (hero_id, created_at)
		VALUES (?, ?)
		ON CONFLICT (hero_id) DO NOTHING
	`)
	if err != nil {
		return persistErr("prepare hot hero insert", err)
	}
	defer stmt.Close()

	for _, id := range heroIDs {
		if _, err := stmt.ExecContext(ctx, id, formatTime(now)); err != nil {
			return persistErr("insert hot hero", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit hot heroes", err)
	}
	return nil
}

// GetPatchState returns the singleton patch row or ErrNotFound
func (s *SQL) GetPatchState(ctx context.Context) (*PatchState, error) {
	var st PatchState
	var updatedAt string
	var published, raw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT current_patch_id, updated_at, published_at, raw_text
		FROM patch_state
		WHERE id = 1
	`).Scan(&st.PatchID, &updatedAt, &published, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("read patch state", err)
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, persistErr("decode patch timestamp", err)
	}
	st.PublishedAt = published.String
	st.RawText = raw.String
	return &st, nil
}

// PutPatchState replaces the singleton patch row
func (s *SQL) PutPatchState(ctx context.Context, st PatchState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patch_state (id, current_patch_id, updated_at, published_at, raw_text)
		VALUES (1, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT (id)
		DO UPDATE SET current_patch_id = excluded.current_patch_id,
		              updated_at = excluded.updated_at,
		              published_at = excluded.published_at,
		              raw_text = excluded.raw_text
	`, st.PatchID, formatTime(st.UpdatedAt), st.PublishedAt, st.RawText)
	if err != nil {
		return persistErr("write patch state", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
