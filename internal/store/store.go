// Package store persists catalogs in PostgreSQL, one row per search entry
// and one per match, keyed by docset name and version.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// Schema creates the tables the store needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS docsets (
    name        TEXT        NOT NULL,
    version     TEXT        NOT NULL,
    sections    JSONB       NOT NULL,
    entry_count INTEGER     NOT NULL,
    match_count INTEGER     NOT NULL,
    saved_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (name, version)
);
CREATE TABLE IF NOT EXISTS search_entries (
    docset     TEXT    NOT NULL,
    version    TEXT    NOT NULL,
    file       TEXT    NOT NULL,
    section    TEXT    NOT NULL,
    file_index INTEGER NOT NULL,
    position   INTEGER NOT NULL,
    entry_id   TEXT    NOT NULL,
    key        TEXT    NOT NULL,
    ordinal    INTEGER NOT NULL,
    name       TEXT    NOT NULL,
    PRIMARY KEY (docset, version, file, position)
);
CREATE INDEX IF NOT EXISTS search_entries_key_idx
    ON search_entries (docset, version, section, key text_pattern_ops);
CREATE TABLE IF NOT EXISTS search_matches (
    docset         TEXT    NOT NULL,
    version        TEXT    NOT NULL,
    file           TEXT    NOT NULL,
    position       INTEGER NOT NULL,
    match_position INTEGER NOT NULL,
    url            TEXT    NOT NULL,
    internal       BOOLEAN NOT NULL,
    scope          TEXT    NOT NULL,
    PRIMARY KEY (docset, version, file, position, match_position)
);
`

type DocsetInfo struct {
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Entries int       `json:"entries"`
	Matches int       `json:"matches"`
	SavedAt time.Time `json:"savedAt"`
}

type CatalogStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewCatalogStore(db *postgres.Client) *CatalogStore {
	return &CatalogStore{
		db:     db,
		logger: slog.Default().With("component", "catalog-store"),
	}
}

func (s *CatalogStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveDocset replaces every row of name@version with the content of cat in
// a single transaction.
func (s *CatalogStore) SaveDocset(ctx context.Context, name, version string, cat *catalog.Catalog) error {
	entries, matches := flatten(cat)
	sections, err := json.Marshal(cat.SectionSet())
	if err != nil {
		return fmt.Errorf("marshaling sections: %w", err)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"search_matches", "search_entries", "docsets"} {
			col := "docset"
			if table == "docsets" {
				col = "name"
			}
			q := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND version = $2`, table, col)
			if _, err := tx.ExecContext(ctx, q, name, version); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO docsets (name, version, sections, entry_count, match_count, saved_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			name, version, sections, len(entries), len(matches), time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("inserting docset: %w", err)
		}

		if err := copyRows(ctx, tx, "search_entries",
			[]string{"docset", "version", "file", "section", "file_index", "position", "entry_id", "key", "ordinal", "name"},
			len(entries), func(i int) []any {
				r := entries[i]
				return []any{name, version, r.File, r.Section, r.FileIndex, r.Position, r.ID, r.Key, r.Ordinal, r.Name}
			}); err != nil {
			return err
		}
		return copyRows(ctx, tx, "search_matches",
			[]string{"docset", "version", "file", "position", "match_position", "url", "internal", "scope"},
			len(matches), func(i int) []any {
				r := matches[i]
				return []any{name, version, r.File, r.Position, r.MatchPosition, r.URL, r.Internal, r.Scope}
			})
	})
	if err != nil {
		return fmt.Errorf("saving docset %s@%s: %w", name, version, err)
	}

	s.logger.Info("docset saved",
		"docset", name,
		"version", version,
		"entries", len(entries),
		"matches", len(matches),
	)
	return nil
}

func copyRows(ctx context.Context, tx *sql.Tx, table string, cols []string, n int, row func(int) []any) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, cols...))
	if err != nil {
		return fmt.Errorf("preparing copy into %s: %w", table, err)
	}
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			stmt.Close()
			return fmt.Errorf("copying into %s: %w", table, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flushing copy into %s: %w", table, err)
	}
	return stmt.Close()
}

// LoadDocset rebuilds a catalog. An empty version loads the most recently
// saved one.
func (s *CatalogStore) LoadDocset(ctx context.Context, name, version string) (*catalog.Catalog, string, error) {
	var sectionsJSON []byte
	var err error
	if version == "" {
		err = s.db.DB.QueryRowContext(ctx,
			`SELECT version, sections FROM docsets WHERE name = $1 ORDER BY saved_at DESC LIMIT 1`,
			name,
		).Scan(&version, &sectionsJSON)
	} else {
		err = s.db.DB.QueryRowContext(ctx,
			`SELECT sections FROM docsets WHERE name = $1 AND version = $2`,
			name, version,
		).Scan(&sectionsJSON)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperrors.Newf(apperrors.ErrEntryNotFound, http.StatusNotFound, "docset %s@%s", name, version)
	}
	if err != nil {
		return nil, "", fmt.Errorf("querying docset: %w", err)
	}
	var sections searchdata.SectionSet
	if err := json.Unmarshal(sectionsJSON, &sections); err != nil {
		return nil, "", fmt.Errorf("unmarshaling sections: %w", err)
	}

	entries, err := s.queryEntries(ctx, name, version)
	if err != nil {
		return nil, "", err
	}
	matches, err := s.queryMatches(ctx, name, version)
	if err != nil {
		return nil, "", err
	}
	return assemble(sections, entries, matches), version, nil
}

func (s *CatalogStore) queryEntries(ctx context.Context, name, version string) ([]entryRow, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT file, section, file_index, position, entry_id, key, ordinal, name
		   FROM search_entries
		  WHERE docset = $1 AND version = $2
		  ORDER BY section, file_index, position`,
		name, version,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []entryRow
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.File, &r.Section, &r.FileIndex, &r.Position, &r.ID, &r.Key, &r.Ordinal, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CatalogStore) queryMatches(ctx context.Context, name, version string) ([]matchRow, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT file, position, match_position, url, internal, scope
		   FROM search_matches
		  WHERE docset = $1 AND version = $2
		  ORDER BY file, position, match_position`,
		name, version,
	)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var out []matchRow
	for rows.Next() {
		var r matchRow
		if err := rows.Scan(&r.File, &r.Position, &r.MatchPosition, &r.URL, &r.Internal, &r.Scope); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDocsets returns saved docsets, newest first.
func (s *CatalogStore) ListDocsets(ctx context.Context) ([]DocsetInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, version, entry_count, match_count, saved_at FROM docsets ORDER BY saved_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing docsets: %w", err)
	}
	defer rows.Close()

	var out []DocsetInfo
	for rows.Next() {
		var d DocsetInfo
		if err := rows.Scan(&d.Name, &d.Version, &d.Entries, &d.Matches, &d.SavedAt); err != nil {
			return nil, fmt.Errorf("scanning docset row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
