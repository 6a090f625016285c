// Package storage persists the categories discovered by a run (spec.md
// §4.8, §6). A run's Discoverer output is local-ID keyed; Store is
// responsible for mapping local IDs to database identity and upserting
// by (retailer_id, canonical_url) so repeated runs converge rather than
// duplicate.
package storage

import (
	"context"
	"time"

	"github.com/romangod6/catscout/internal/models"
)

// Store is the persistence boundary. Implementations must make Persist
// transactional: either every category in a run's result is committed or
// none are. Persist does not sort its input: categories are written in the
// order given, so every parent must appear before the children that
// reference it (the Discoverer's level-by-level output does this).
type Store interface {
	Connect(ctx context.Context) error
	Close() error

	// Persist writes every category produced by a run, resolving
	// ParentLocalID references to database IDs as it walks the slice in
	// order, and returns the local-ID-to-database-ID map it produced.
	Persist(ctx context.Context, categories []models.Category) (map[int]int64, error)

	GetRetailer(ctx context.Context, retailerID int) (*models.Retailer, error)
	ListCategories(ctx context.Context, retailerID int) ([]models.PersistedCategory, error)
	CountCategories(ctx context.Context, retailerID int) (int, error)
	MaxDepth(ctx context.Context, retailerID int) (int, error)
}

// PoolConfig bounds a SQL connection pool (spec.md §6's documented
// defaults: 2..10 connections, 60s acquire timeout).
type PoolConfig struct {
	MinConns       int
	MaxConns       int
	AcquireTimeout time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MinConns: 2, MaxConns: 10, AcquireTimeout: 60 * time.Second}
}
