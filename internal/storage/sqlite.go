package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/models"
)

// SQLiteStore is a single-file Store. The catscout CLI does not construct
// it; the CLI persists through PostgresStore.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return &cerrors.StoreError{Op: "connect", Cause: err, Fatal: true}
	}
	db.SetMaxOpenConns(1) // sqlite3 driver serializes writers regardless
	if err := db.PingContext(ctx); err != nil {
		return &cerrors.StoreError{Op: "connect", Cause: err, Fatal: true}
	}
	s.db = db
	return s.initialize(ctx)
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS retailers (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS categories (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            retailer_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            url TEXT NOT NULL,
            canonical_url TEXT NOT NULL,
            parent_id INTEGER REFERENCES categories(id),
            depth INTEGER NOT NULL,
            enabled INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(retailer_id, canonical_url)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_categories_retailer_id ON categories(retailer_id)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return &cerrors.StoreError{Op: "initialize", Cause: fmt.Errorf("%s: %w", q, err), Fatal: true}
		}
	}
	return nil
}

func (s *SQLiteStore) Persist(ctx context.Context, categories []models.Category) (map[int]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &cerrors.StoreError{Op: "persist/begin", Cause: err}
	}
	defer tx.Rollback()

	const upsert = `
        INSERT INTO categories (retailer_id, name, url, canonical_url, parent_id, depth, enabled)
        VALUES (?, ?, ?, ?, ?, ?, 1)
        ON CONFLICT(retailer_id, canonical_url) DO UPDATE SET
            name = excluded.name,
            url = excluded.url,
            parent_id = excluded.parent_id,
            depth = excluded.depth,
            enabled = 1
    `
	const lookupID = `SELECT id FROM categories WHERE retailer_id = ? AND canonical_url = ?`

	localToDB := make(map[int]int64, len(categories))
	for _, c := range categories {
		var parentDBID any
		if c.ParentLocalID != nil {
			id, ok := localToDB[*c.ParentLocalID]
			if !ok {
				return nil, &cerrors.StoreError{Op: "persist", Cause: fmt.Errorf("category %d references unresolved parent %d", c.LocalID, *c.ParentLocalID)}
			}
			parentDBID = id
		}

		if _, err := tx.ExecContext(ctx, upsert, c.RetailerID, c.Name, c.URL, c.CanonicalURL, parentDBID, c.Depth); err != nil {
			return nil, &cerrors.StoreError{Op: "persist", Cause: fmt.Errorf("category %q: %w", c.CanonicalURL, err)}
		}

		var dbID int64
		if err := tx.QueryRowContext(ctx, lookupID, c.RetailerID, c.CanonicalURL).Scan(&dbID); err != nil {
			return nil, &cerrors.StoreError{Op: "persist", Cause: err}
		}
		localToDB[c.LocalID] = dbID
	}

	if err := tx.Commit(); err != nil {
		return nil, &cerrors.StoreError{Op: "persist/commit", Cause: err}
	}
	return localToDB, nil
}

func (s *SQLiteStore) GetRetailer(ctx context.Context, retailerID int) (*models.Retailer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM retailers WHERE id = ?`, retailerID)
	r := &models.Retailer{}
	if err := row.Scan(&r.ID, &r.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &cerrors.StoreError{Op: "get_retailer", Cause: err}
	}
	return r, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context, retailerID int) ([]models.PersistedCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, url, parent_id, retailer_id, depth, enabled, created_at
        FROM categories WHERE retailer_id = ? ORDER BY depth ASC, id ASC
    `, retailerID)
	if err != nil {
		return nil, &cerrors.StoreError{Op: "list_categories", Cause: err}
	}
	defer rows.Close()

	var out []models.PersistedCategory
	for rows.Next() {
		var c models.PersistedCategory
		var parentID sql.NullInt64
		var enabled int
		if err := rows.Scan(&c.ID, &c.Name, &c.URL, &parentID, &c.RetailerID, &c.Depth, &enabled, &c.CreatedAt); err != nil {
			return nil, &cerrors.StoreError{Op: "list_categories", Cause: err}
		}
		c.Enabled = enabled != 0
		if parentID.Valid {
			id := parentID.Int64
			c.ParentID = &id
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) CountCategories(ctx context.Context, retailerID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE retailer_id = ? AND enabled = 1`, retailerID).Scan(&n)
	if err != nil {
		return 0, &cerrors.StoreError{Op: "count_categories", Cause: err}
	}
	return n, nil
}

func (s *SQLiteStore) MaxDepth(ctx context.Context, retailerID int) (int, error) {
	var d sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(depth) FROM categories WHERE retailer_id = ? AND enabled = 1`, retailerID).Scan(&d)
	if err != nil {
		return 0, &cerrors.StoreError{Op: "max_depth", Cause: err}
	}
	if !d.Valid {
		return 0, nil
	}
	return int(d.Int64), nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
