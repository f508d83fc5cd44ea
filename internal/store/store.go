package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metabuild/internal/build"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrPersistence wraps every read or write failure against the backing database
	ErrPersistence = errors.New("persistence failure")
)

// CatalogRow is the persisted item catalog snapshot (item id -> canonical name)
type CatalogRow struct {
	ItemIDMap map[string]string
	UpdatedAt time.Time
}

// HeroMetaRow is the persisted per-hero popularity snapshot
type HeroMetaRow struct {
	HeroID    int
	Build     build.Build
	UpdatedAt time.Time
}

// RuleRow is a stored rule with its raw JSON condition and action payloads
type RuleRow struct {
	ID         int64
	Name       string
	Enabled    bool
	Priority   int
	Conditions []byte
	Actions    []byte
	CreatedAt  time.Time
}

// PatchState is the singleton game patch row
type PatchState struct {
	PatchID     string
	UpdatedAt   time.Time
	PublishedAt string
	RawText     string
}

// Store is the persistence surface shared by the Postgres and SQL backends
type Store interface {
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	Close() error

	GetCatalog(ctx context.Context) (*CatalogRow, error)
	PutCatalog(ctx context.Context, row CatalogRow) error

	GetHeroMeta(ctx context.Context, heroID int) (*HeroMetaRow, error)
	PutHeroMeta(ctx context.Context, row HeroMetaRow) error

	ListEnabledRules(ctx context.Context) ([]RuleRow, error)
	InsertRuleIfMissing(ctx context.Context, rule RuleRow) (bool, error)

	GetHotHeroes(ctx context.Context) ([]int, error)
	AddHotHeroes(ctx context.Context, heroIDs []int, now time.Time) error

	GetPatchState(ctx context.Context) (*PatchState, error)
	PutPatchState(ctx context.Context, st PatchState) error
}

// Driver names accepted by Open
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
)

// Open connects to the configured backend and verifies the connection
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgres(ctx, dsn)
	case DriverSQLite, DriverLibSQL:
		return NewSQL(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}
