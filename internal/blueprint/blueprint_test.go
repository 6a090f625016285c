package blueprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/catscout/internal/models"
)

func sampleStrategy() models.Strategy {
	return models.Strategy{
		NavigationType: models.NavHoverMenu,
		Selectors:      models.Selectors{NavContainer: "nav", TopLevelItems: "nav li", CategoryLink: "nav a"},
		Confidence:     0.92,
	}
}

func sampleCategories() []models.Category {
	return []models.Category{
		{LocalID: 0, Name: "Men", CanonicalURL: "http://shop/men", Depth: 0, RetailerID: 1},
		{LocalID: 1, Name: "Shirts", CanonicalURL: "http://shop/men/shirts", Depth: 1, RetailerID: 1},
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	bp := BuildFromRun("http://shop/", 1, "Acme", sampleStrategy(), sampleCategories(), nil, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	path, err := e.Save(bp, bp.Metadata.GeneratedAt)
	require.NoError(t, err)

	loaded, err := e.Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.NavHoverMenu, loaded.ExtractionStrategy.NavigationType)
	assert.Equal(t, 2, loaded.ExtractionStats.TotalCategories)
	assert.Equal(t, 1, loaded.ExtractionStats.MaxDepth)
}

func TestLatestForPicksMostRecentByFilenameTimestamp(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	older := BuildFromRun("http://shop/", 1, "Acme", sampleStrategy(), sampleCategories(), nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := BuildFromRun("http://shop/", 1, "Acme", sampleStrategy(), sampleCategories()[:1], nil, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	_, err := e.Save(older, older.Metadata.GeneratedAt)
	require.NoError(t, err)
	_, err = e.Save(newer, newer.Metadata.GeneratedAt)
	require.NoError(t, err)

	path, bp, err := e.LatestFor(1)
	require.NoError(t, err)
	assert.Contains(t, path, "20260601_000000")
	assert.Equal(t, 1, bp.ExtractionStats.TotalCategories)
}

func TestLatestForReturnsNilWhenDirMissing(t *testing.T) {
	e := New(t.TempDir() + "/does-not-exist")
	path, bp, err := e.LatestFor(7)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Nil(t, bp)
}

func TestWriteManifestWritesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	path, err := e.WriteManifest(RunManifest{
		RunID:           "abc123",
		RetailerID:      1,
		RootURL:         "http://shop/",
		Stage:           "completed",
		TotalCategories: 2,
		CountsByDepth:   map[int]int{0: 1, 1: 1},
		StartedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt:      time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
		ElapsedMS:       5000,
	})
	require.NoError(t, err)
	assert.Contains(t, path, "run_abc123.json")
}

func TestIsStaleFlagsOutOfBoundCount(t *testing.T) {
	rules := models.DeriveValidationRules(20, 2, "")
	assert.False(t, rules.IsStale(20, 2))
	assert.True(t, rules.IsStale(2, 2))  // below min (20/4=5)
	assert.True(t, rules.IsStale(100, 2)) // above max (20*2=40)
	assert.True(t, rules.IsStale(20, 5))  // depth drifted by more than 1
}
