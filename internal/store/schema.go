package store

// postgresSchema creates the Postgres tables. JSON payloads use JSONB.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS cache_items_constants (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		item_id_map JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cache_hero_item_popularity (
		hero_id INTEGER PRIMARY KEY,
		starting_items JSONB NOT NULL DEFAULT '[]'::jsonb,
		early_items JSONB NOT NULL,
		mid_items JSONB NOT NULL,
		late_items JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE cache_hero_item_popularity
		ADD COLUMN IF NOT EXISTS starting_items JSONB NOT NULL DEFAULT '[]'::jsonb`,
	`CREATE TABLE IF NOT EXISTS rules (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		priority INTEGER NOT NULL DEFAULT 100,
		conditions JSONB NOT NULL,
		actions JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS patch_state (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		current_patch_id TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		published_at TEXT NULL,
		raw_text TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hot_heroes (
		hero_id INTEGER PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO patch_state (id, current_patch_id, updated_at)
		VALUES (1, 'unknown', NOW())
		ON CONFLICT (id) DO NOTHING`,
}

// sqliteSchema creates the same tables for sqlite and libsql.
// JSON payloads are TEXT and timestamps are RFC3339 TEXT.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cache_items_constants (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		item_id_map TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cache_hero_item_popularity (
		hero_id INTEGER PRIMARY KEY,
		starting_items TEXT NOT NULL DEFAULT '[]',
		early_items TEXT NOT NULL,
		mid_items TEXT NOT NULL,
		late_items TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		priority INTEGER NOT NULL DEFAULT 100,
		conditions TEXT NOT NULL,
		actions TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS patch_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current_patch_id TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		published_at TEXT NULL,
		raw_text TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hot_heroes (
		hero_id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL
	)`,
	`INSERT INTO patch_state (id, current_patch_id, updated_at)
		VALUES (1, 'unknown', strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (id) DO NOTHING`,
}
