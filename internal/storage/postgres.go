package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/models"
)

// PostgresStore is the production Store backing a retailer's taxonomy.
type PostgresStore struct {
	db   *sql.DB
	dsn  string
	pool PoolConfig
}

func NewPostgresStore(dsn string, pool PoolConfig) *PostgresStore {
	return &PostgresStore{dsn: dsn, pool: pool}
}

func (s *PostgresStore) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return &cerrors.StoreError{Op: "connect", Cause: err, Fatal: true}
	}
	db.SetMaxOpenConns(s.pool.MaxConns)
	db.SetMaxIdleConns(s.pool.MinConns)
	db.SetConnMaxLifetime(s.pool.AcquireTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, s.pool.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return &cerrors.StoreError{Op: "connect", Cause: err, Fatal: true}
	}
	s.db = db
	return s.initialize(ctx)
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS retailers (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS categories (
            id BIGSERIAL PRIMARY KEY,
            retailer_id INTEGER NOT NULL REFERENCES retailers(id),
            name VARCHAR(500) NOT NULL,
            url VARCHAR(2048) NOT NULL,
            canonical_url VARCHAR(2048) NOT NULL,
            parent_id BIGINT REFERENCES categories(id),
            depth INTEGER NOT NULL,
            enabled BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(retailer_id, canonical_url)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_categories_retailer_id ON categories(retailer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_parent_id ON categories(parent_id)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return &cerrors.StoreError{Op: "initialize", Cause: fmt.Errorf("%s: %w", q, err), Fatal: true}
		}
	}
	return nil
}

// Persist upserts every category in a single transaction, walking in the
// order given without sorting (the Discoverer's level-synchronous
// traversal emits parents before their children), resolving ParentLocalID
// to the database ID assigned to its parent earlier in the same call.
func (s *PostgresStore) Persist(ctx context.Context, categories []models.Category) (map[int]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &cerrors.StoreError{Op: "persist/begin", Cause: err}
	}
	defer tx.Rollback()

	const upsert = `
        INSERT INTO categories (retailer_id, name, url, canonical_url, parent_id, depth, enabled)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE)
        ON CONFLICT (retailer_id, canonical_url) DO UPDATE SET
            name = EXCLUDED.name,
            url = EXCLUDED.url,
            parent_id = EXCLUDED.parent_id,
            depth = EXCLUDED.depth,
            enabled = TRUE
        RETURNING id
    `

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

		var dbID int64
		err := tx.QueryRowContext(ctx, upsert, c.RetailerID, c.Name, c.URL, c.CanonicalURL, parentDBID, c.Depth).Scan(&dbID)
		if err != nil {
			return nil, &cerrors.StoreError{Op: "persist", Cause: fmt.Errorf("category %q: %w", c.CanonicalURL, err)}
		}
		localToDB[c.LocalID] = dbID
	}

	if err := tx.Commit(); err != nil {
		return nil, &cerrors.StoreError{Op: "persist/commit", Cause: err}
	}
	return localToDB, nil
}

func (s *PostgresStore) GetRetailer(ctx context.Context, retailerID int) (*models.Retailer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM retailers WHERE id = $1`, retailerID)
	r := &models.Retailer{}
	if err := row.Scan(&r.ID, &r.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &cerrors.StoreError{Op: "get_retailer", Cause: err}
	}
	return r, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, retailerID int) ([]models.PersistedCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, url, parent_id, retailer_id, depth, enabled, created_at
        FROM categories WHERE retailer_id = $1 ORDER BY depth ASC, id ASC
    `, retailerID)
	if err != nil {
		return nil, &cerrors.StoreError{Op: "list_categories", Cause: err}
	}
	defer rows.Close()

	var out []models.PersistedCategory
	for rows.Next() {
		var c models.PersistedCategory
		var parentID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.URL, &parentID, &c.RetailerID, &c.Depth, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, &cerrors.StoreError{Op: "list_categories", Cause: err}
		}
		if parentID.Valid {
			id := parentID.Int64
			c.ParentID = &id
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *PostgresStore) CountCategories(ctx context.Context, retailerID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE retailer_id = $1 AND enabled`, retailerID).Scan(&n)
	if err != nil {
		return 0, &cerrors.StoreError{Op: "count_categories", Cause: err}
	}
	return n, nil
}

func (s *PostgresStore) MaxDepth(ctx context.Context, retailerID int) (int, error) {
	var d sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(depth) FROM categories WHERE retailer_id = $1 AND enabled`, retailerID).Scan(&d)
	if err != nil {
		return 0, &cerrors.StoreError{Op: "max_depth", Cause: err}
	}
	if !d.Valid {
		return 0, nil
	}
	return int(d.Int64), nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
