package discoverer

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/catscout/internal/analyzer"
	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/extractor"
	"github.com/romangod6/catscout/internal/models"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type stubLLM struct{ result map[string]any }

func (s *stubLLM) Analyze(ctx context.Context, prompt string, image []byte, schema map[string]any) (map[string]any, error) {
	return s.result, nil
}

func genericLinksLLM() *stubLLM {
	return genericLinksLLMWithSelector("a.cat")
}

func genericLinksLLMWithSelector(selector string) *stubLLM {
	return &stubLLM{result: map[string]any{
		"navigation_type": "generic_links",
		"selectors":       map[string]any{"category_link": selector},
		"confidence":      0.8,
	}}
}

// TestDiscoverCycleAndSelfLinkTerminates mirrors scenario S4: /a links to
// /b and /b links back to /a and to /. Each of /a and /b is visited
// exactly once.
func TestDiscoverCycleAndSelfLinkTerminates(t *testing.T) {
	browser := browseradapter.NewStubAdapter()
	browser.AddPage("http://fix/", &browseradapter.StubPage{
		HTML: "<html><head><title>root</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {{Text: "A", HREF: "http://fix/a"}},
		},
	})
	browser.AddPage("http://fix/a", &browseradapter.StubPage{
		HTML: "<html><head><title>a</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {{Text: "B", HREF: "http://fix/b"}},
		},
	})
	browser.AddPage("http://fix/b", &browseradapter.StubPage{
		HTML: "<html><head><title>b</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {
				{Text: "Back to A", HREF: "http://fix/a"},
				{Text: "Home", HREF: "http://fix/"},
			},
		},
	})

	an := analyzer.New(genericLinksLLM(), 0, silentLogger())
	ex := extractor.New(extractor.DefaultRetryPolicy(), silentLogger())
	d := New(browser, an, ex, DefaultLimits(), silentLogger())

	outcome, err := d.Discover(context.Background(), 1, "http://fix/", nil)
	require.NoError(t, err)

	urls := map[string]int{}
	for _, c := range outcome.Categories {
		urls[c.CanonicalURL]++
	}
	assert.Equal(t, 1, urls["http://fix/a"])
	assert.Equal(t, 1, urls["http://fix/b"])
}

// TestDiscoverMaxDepthZeroOnlyRootCategories mirrors invariant #12:
// max_depth = 0 yields only root-page categories; no child URLs visited.
func TestDiscoverMaxDepthZeroOnlyRootCategories(t *testing.T) {
	browser := browseradapter.NewStubAdapter()
	browser.AddPage("http://fix/", &browseradapter.StubPage{
		HTML: "<html><head><title>root</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {{Text: "A", HREF: "http://fix/a"}},
		},
	})

	an := analyzer.New(genericLinksLLM(), 0, silentLogger())
	ex := extractor.New(extractor.DefaultRetryPolicy(), silentLogger())
	limits := Limits{MaxDepth: 0, MaxCategories: 100, ReanalysisBudget: 3}
	d := New(browser, an, ex, limits, silentLogger())

	outcome, err := d.Discover(context.Background(), 1, "http://fix/", nil)
	require.NoError(t, err)
	require.Len(t, outcome.Categories, 1)
	assert.Equal(t, 0, outcome.Categories[0].Depth)
}

// TestDiscoverFansOutSiblingsWithUniqueLocalIDs exercises the bounded
// worker pool: five depth-1 siblings are visited concurrently and must
// still get unique, stable local ids and correct depths.
func TestDiscoverFansOutSiblingsWithUniqueLocalIDs(t *testing.T) {
	browser := browseradapter.NewStubAdapter()

	rootLinks := make([]browseradapter.Element, 0, 5)
	for i := 0; i < 5; i++ {
		href := fmt.Sprintf("http://fix/c%d", i)
		rootLinks = append(rootLinks, browseradapter.Element{Text: fmt.Sprintf("C%d", i), HREF: href})
		browser.AddPage(href, &browseradapter.StubPage{
			HTML:     "<html><head><title>leaf</title></head></html>",
			Elements: map[string][]browseradapter.Element{"a.cat": {}},
		})
	}
	browser.AddPage("http://fix/", &browseradapter.StubPage{
		HTML:     "<html><head><title>root</title></head></html>",
		Elements: map[string][]browseradapter.Element{"a.cat": rootLinks},
	})

	an := analyzer.New(genericLinksLLM(), 0, silentLogger())
	ex := extractor.New(extractor.DefaultRetryPolicy(), silentLogger())
	limits := Limits{MaxDepth: 5, MaxCategories: 100, ReanalysisBudget: 3, Concurrency: 4}
	d := New(browser, an, ex, limits, silentLogger())

	outcome, err := d.Discover(context.Background(), 1, "http://fix/", nil)
	require.NoError(t, err)
	require.Len(t, outcome.Categories, 5)

	seen := map[int]bool{}
	for _, c := range outcome.Categories {
		assert.False(t, seen[c.LocalID], "duplicate local id %d", c.LocalID)
		seen[c.LocalID] = true
		assert.Equal(t, 0, c.Depth)
	}
}

// TestDiscoverStaleRootStrategyTriggersReanalysis mirrors scenario S6: a
// warm-run blueprint strategy (hover_menu) no longer matches the live
// page because its markup changed; the zero-category result from the
// reused strategy spends one reanalysis budget unit and the fresh
// Analyzer call (falling back to generic_links) recovers the category.
func TestDiscoverStaleRootStrategyTriggersReanalysis(t *testing.T) {
	browser := browseradapter.NewStubAdapter()
	browser.AddPage("http://fix/", &browseradapter.StubPage{
		HTML: "<html><head><title>root</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {{Text: "A", HREF: "http://fix/a"}},
		},
	})

	an := analyzer.New(genericLinksLLM(), 0, silentLogger())
	ex := extractor.New(extractor.DefaultRetryPolicy(), silentLogger())
	limits := Limits{MaxDepth: 5, MaxCategories: 100, ReanalysisBudget: 3, Concurrency: 1}
	d := New(browser, an, ex, limits, silentLogger())

	staleStrategy := &models.Strategy{
		NavigationType: models.NavHoverMenu,
		Selectors: models.Selectors{
			NavContainer:     "nav",
			TopLevelItems:    "nav li",
			CategoryLink:     "nav li a",
			FlyoutPanel:      ".flyout",
			SubcategoryItems: ".flyout .sub a",
		},
	}

	outcome, err := d.Discover(context.Background(), 1, "http://fix/", staleStrategy)
	require.NoError(t, err)
	require.Len(t, outcome.Categories, 1)
	assert.Equal(t, "A", outcome.Categories[0].Name)
	assert.Equal(t, models.NavGenericLinks, outcome.RootStrategy.NavigationType)
}

// TestDiscoverSubtreeReanalysisGovernsOnlyThatSubtree exercises a site
// with a heterogeneous section layout: the root's strategy ("a.cat")
// doesn't match /a's markup, so /a becomes a subtree root and is
// re-analyzed to a different selector ("b.cat"), which finds A1 and A2.
// /a's children inherit that recovered selector directly rather than the
// root's; being empty leaves, each still spends a reanalysis of its own.
// The run-wide root strategy reported on Outcome stays the original root
// selector.
func TestDiscoverSubtreeReanalysisGovernsOnlyThatSubtree(t *testing.T) {
	browser := browseradapter.NewStubAdapter()
	browser.AddPage("http://fix/", &browseradapter.StubPage{
		HTML: "<html><head><title>root</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {{Text: "A", HREF: "http://fix/a"}},
		},
	})
	browser.AddPage("http://fix/a", &browseradapter.StubPage{
		HTML: "<html><head><title>a</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {}, // the inherited root selector finds nothing here
			"b.cat": {
				{Text: "A1", HREF: "http://fix/a/1"},
				{Text: "A2", HREF: "http://fix/a/2"},
			},
		},
	})
	browser.AddPage("http://fix/a/1", &browseradapter.StubPage{
		HTML:     "<html><head><title>a1</title></head></html>",
		Elements: map[string][]browseradapter.Element{"b.cat": {}},
	})
	browser.AddPage("http://fix/a/2", &browseradapter.StubPage{
		HTML:     "<html><head><title>a2</title></head></html>",
		Elements: map[string][]browseradapter.Element{"b.cat": {}},
	})

	an := analyzer.New(genericLinksLLMWithSelector("b.cat"), 0, silentLogger())
	ex := extractor.New(extractor.DefaultRetryPolicy(), silentLogger())
	limits := Limits{MaxDepth: 5, MaxCategories: 100, ReanalysisBudget: 3, Concurrency: 1}
	d := New(browser, an, ex, limits, silentLogger())

	rootStrategy := &models.Strategy{
		NavigationType: models.NavGenericLinks,
		Selectors:      models.Selectors{CategoryLink: "a.cat"},
	}

	outcome, err := d.Discover(context.Background(), 1, "http://fix/", rootStrategy)
	require.NoError(t, err)

	names := map[string]int{}
	for _, c := range outcome.Categories {
		names[c.Name]++
	}
	assert.Equal(t, 1, names["A"])
	assert.Equal(t, 1, names["A1"])
	assert.Equal(t, 1, names["A2"])

	// The run-wide root strategy is unaffected by the subtree's recovery.
	assert.Equal(t, "a.cat", outcome.RootStrategy.Selectors.CategoryLink)
}

// TestDiscoverReusesRootStrategyOnWarmRun exercises the blueprint-replay
// path: passing a non-nil rootStrategy skips Analyzer entirely.
func TestDiscoverReusesRootStrategyOnWarmRun(t *testing.T) {
	browser := browseradapter.NewStubAdapter()
	browser.AddPage("http://fix/", &browseradapter.StubPage{
		HTML: "<html><head><title>root</title></head></html>",
		Elements: map[string][]browseradapter.Element{
			"a.cat": {{Text: "A", HREF: "http://fix/a"}},
		},
	})

	an := analyzer.New(&stubLLM{}, 0, silentLogger()) // would fail if ever called
	ex := extractor.New(extractor.DefaultRetryPolicy(), silentLogger())
	d := New(browser, an, ex, Limits{MaxDepth: 0, MaxCategories: 100, ReanalysisBudget: 3}, silentLogger())

	strategy := &models.Strategy{
		NavigationType: models.NavGenericLinks,
		Selectors:      models.Selectors{CategoryLink: "a.cat"},
	}
	outcome, err := d.Discover(context.Background(), 1, "http://fix/", strategy)
	require.NoError(t, err)
	require.Len(t, outcome.Categories, 1)
}
