package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/catscout/internal/models"
)

func sampleRun() []models.Category {
	root := 0
	return []models.Category{
		{LocalID: 0, Name: "Electronics", URL: "http://shop/electronics", CanonicalURL: "http://shop/electronics", Depth: 0, RetailerID: 1},
		{LocalID: 1, Name: "Laptops", URL: "http://shop/electronics/laptops", CanonicalURL: "http://shop/electronics/laptops", Depth: 1, ParentLocalID: &root, RetailerID: 1},
	}
}

func TestMemoryStorePersistResolvesParentIDs(t *testing.T) {
	m := NewMemoryStore()
	localToDB, err := m.Persist(context.Background(), sampleRun())
	require.NoError(t, err)

	persisted, err := m.ListCategories(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, persisted, 2)

	var laptops models.PersistedCategory
	for _, c := range persisted {
		if c.Name == "Laptops" {
			laptops = c
		}
	}
	require.NotNil(t, laptops.ParentID)
	assert.Equal(t, localToDB[0], *laptops.ParentID)
}

func TestMemoryStorePersistIsIdempotentByCanonicalURL(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.Persist(context.Background(), sampleRun())
	require.NoError(t, err)
	_, err = m.Persist(context.Background(), sampleRun())
	require.NoError(t, err)

	n, err := m.CountCategories(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStorePersistRejectsUnresolvedParent(t *testing.T) {
	m := NewMemoryStore()
	orphanParent := 99
	_, err := m.Persist(context.Background(), []models.Category{
		{LocalID: 5, Name: "Orphan", CanonicalURL: "http://shop/orphan", Depth: 1, ParentLocalID: &orphanParent, RetailerID: 1},
	})
	assert.Error(t, err)
}

func TestMemoryStoreMaxDepth(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.Persist(context.Background(), sampleRun())
	require.NoError(t, err)

	d, err := m.MaxDepth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, d)
}
