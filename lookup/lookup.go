// Package lookup serves the institutional catalogs select fields bind to:
// facultades, carreras, asignaturas, niveles, paralelos, modalidades.
// Catalogs are seeded idempotently at startup and extended through Add.
package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/idgen"
)

// Schema for lookup catalogs. One table, catalog-discriminated.
const Schema = `
CREATE TABLE IF NOT EXISTS lookup_values (
	id       TEXT PRIMARY KEY,
	catalog  TEXT NOT NULL,
	value    TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	UNIQUE(catalog, value)
);
CREATE INDEX IF NOT EXISTS idx_lookup_catalog ON lookup_values(catalog, position);
`

// ErrUnknownCatalog is returned for a catalog name Catalogs does not list.
var ErrUnknownCatalog = errors.New("lookup: unknown catalog")

// Catalogs are the known catalog names, in presentation order.
var Catalogs = []string{
	"facultades", "carreras", "asignaturas", "niveles", "paralelos", "modalidades",
}

// seed holds the baseline values per catalog. INSERT OR IGNORE makes
// reseeding a no-op; operator-added values survive restarts untouched.
var seed = map[string][]string{
	"niveles":     {"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
	"paralelos":   {"A", "B", "C", "D", "E"},
	"modalidades": {"Presencial", "Semipresencial", "En línea", "Híbrida"},
}

// Store is the lookup catalog database handle.
type Store struct {
	DB *sql.DB

	valueID idgen.Generator
}

// NewStore wraps an open database (schema already applied).
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, valueID: idgen.Prefixed("lkp_", idgen.Default)}
}

// Seed inserts the baseline catalog values, skipping any already present.
func (s *Store) Seed(ctx context.Context) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, catalog := range Catalogs {
			for pos, value := range seed[catalog] {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO lookup_values (id, catalog, value, position)
					VALUES (?, ?, ?, ?)`,
					s.valueID(), catalog, value, pos); err != nil {
					return fmt.Errorf("seed %s: %w", catalog, err)
				}
			}
		}
		return nil
	})
}

// List returns a catalog's values in position order.
func (s *Store) List(ctx context.Context, catalog string) ([]string, error) {
	if !known(catalog) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCatalog, catalog)
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT value FROM lookup_values WHERE catalog = ? ORDER BY position, value`,
		catalog)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", catalog, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Add appends a value to a catalog. Adding an existing value is a no-op.
func (s *Store) Add(ctx context.Context, catalog, value string) error {
	if !known(catalog) {
		return fmt.Errorf("%w: %q", ErrUnknownCatalog, catalog)
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT OR IGNORE INTO lookup_values (id, catalog, value, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM lookup_values WHERE catalog = ?))`,
		s.valueID(), catalog, value, catalog)
	if err != nil {
		return fmt.Errorf("add to %s: %w", catalog, err)
	}
	return nil
}

func known(catalog string) bool {
	for _, c := range Catalogs {
		if c == catalog {
			return true
		}
	}
	return false
}
