package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/models"
)

// MemoryStore is a Store backed by plain maps, for Orchestrator and CLI
// tests that should not need a real database.
type MemoryStore struct {
	retailers  map[int]models.Retailer
	categories map[int][]models.PersistedCategory // by retailer ID
	byURL      map[string]int64                   // "retailerID|canonicalURL" -> db id
	nextID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		retailers:  make(map[int]models.Retailer),
		categories: make(map[int][]models.PersistedCategory),
		byURL:      make(map[string]int64),
	}
}

func (m *MemoryStore) Connect(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                      { return nil }

// SeedRetailer registers retailer metadata, for tests that exercise
// GetRetailer without a real database.
func (m *MemoryStore) SeedRetailer(r models.Retailer) { m.retailers[r.ID] = r }

func (m *MemoryStore) Persist(ctx context.Context, categories []models.Category) (map[int]int64, error) {
	// Check every parent reference before writing anything, so a rejected
	// call leaves the store unchanged.
	seen := make(map[int]bool, len(categories))
	for _, c := range categories {
		if c.ParentLocalID != nil && !seen[*c.ParentLocalID] {
			return nil, &cerrors.StoreError{Op: "persist", Cause: fmt.Errorf("category %d references unresolved parent %d", c.LocalID, *c.ParentLocalID)}
		}
		seen[c.LocalID] = true
	}

	localToDB := make(map[int]int64, len(categories))
	for _, c := range categories {
		var parentDBID *int64
		if c.ParentLocalID != nil {
			id, ok := localToDB[*c.ParentLocalID]
			if !ok {
				return nil, &cerrors.StoreError{Op: "persist", Cause: fmt.Errorf("category %d references unresolved parent %d", c.LocalID, *c.ParentLocalID)}
			}
			parentDBID = &id
		}

		key := fmt.Sprintf("%d|%s", c.RetailerID, c.CanonicalURL)
		dbID, exists := m.byURL[key]
		if !exists {
			m.nextID++
			dbID = m.nextID
			m.byURL[key] = dbID
		}

		persisted := models.PersistedCategory{
			ID: dbID, Name: c.Name, URL: c.URL, ParentID: parentDBID,
			RetailerID: c.RetailerID, Depth: c.Depth, Enabled: true,
		}
		list := m.categories[c.RetailerID]
		replaced := false
		for i, existing := range list {
			if existing.ID == dbID {
				list[i] = persisted
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, persisted)
		}
		m.categories[c.RetailerID] = list
		localToDB[c.LocalID] = dbID
	}
	return localToDB, nil
}

func (m *MemoryStore) GetRetailer(ctx context.Context, retailerID int) (*models.Retailer, error) {
	r, ok := m.retailers[retailerID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryStore) ListCategories(ctx context.Context, retailerID int) ([]models.PersistedCategory, error) {
	out := append([]models.PersistedCategory(nil), m.categories[retailerID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CountCategories(ctx context.Context, retailerID int) (int, error) {
	n := 0
	for _, c := range m.categories[retailerID] {
		if c.Enabled {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MaxDepth(ctx context.Context, retailerID int) (int, error) {
	max := 0
	for _, c := range m.categories[retailerID] {
		if c.Enabled && c.Depth > max {
			max = c.Depth
		}
	}
	return max, nil
}
