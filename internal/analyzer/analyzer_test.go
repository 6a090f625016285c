package analyzer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/catscout/internal/browseradapter"
)

type stubLLM struct {
	results []map[string]any
	calls   int
}

func (s *stubLLM) Analyze(ctx context.Context, prompt string, image []byte, schema map[string]any) (map[string]any, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		return s.results[len(s.results)-1], nil
	}
	return s.results[i], nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestPage(t *testing.T, elements map[string][]browseradapter.Element) browseradapter.Context {
	t.Helper()
	adapter := browseradapter.NewStubAdapter()
	adapter.AddPage("https://shop.example/", &browseradapter.StubPage{
		HTML:       "<nav><li><a href='/a'>A</a></li></nav>",
		Screenshot: []byte("png"),
		Elements:   elements,
	})
	ctx, err := adapter.NewContext(context.Background())
	require.NoError(t, err)
	require.NoError(t, ctx.Goto(context.Background(), "https://shop.example/"))
	return ctx
}

func TestAnalyzeAcceptsValidHoverMenuStrategy(t *testing.T) {
	llm := &stubLLM{results: []map[string]any{
		{
			"navigation_type": "hover_menu",
			"selectors": map[string]any{
				"nav_container":   "nav",
				"top_level_items": "nav li",
				"category_link":   "nav li a",
			},
			"confidence": 0.9,
		},
	}}
	a := New(llm, 0, silentLogger())
	page := newTestPage(t, map[string][]browseradapter.Element{
		"nav li": {{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}, {Text: "E"}, {Text: "F"}},
	})

	strategy, err := a.Analyze(context.Background(), page, "https://shop.example/")
	require.NoError(t, err)
	assert.Equal(t, "hover_menu", string(strategy.NavigationType))
	assert.Equal(t, 1, llm.calls)
}

func TestAnalyzeFallsBackToGenericLinksWhenSchemaInvalidTwice(t *testing.T) {
	llm := &stubLLM{results: []map[string]any{
		{"navigation_type": "hover_menu", "selectors": map[string]any{}},
		{"navigation_type": "hover_menu", "selectors": map[string]any{}},
	}}
	a := New(llm, 0, silentLogger())
	page := newTestPage(t, nil)

	strategy, err := a.Analyze(context.Background(), page, "https://shop.example/")
	require.NoError(t, err)
	assert.Equal(t, "generic_links", string(strategy.NavigationType))
	assert.Equal(t, "fallback", strategy.ExtractionMethod)
	assert.Equal(t, 2, llm.calls)
}

func TestAnalyzeHeuristicOverridesThinStrategy(t *testing.T) {
	llm := &stubLLM{results: []map[string]any{
		{
			"navigation_type": "grid",
			"selectors":       map[string]any{"category_card": ".card", "category_link": ".card a"},
		},
	}}
	a := New(llm, 0, silentLogger())
	page := newTestPage(t, map[string][]browseradapter.Element{
		".card":  {{Text: "only-one"}},
		"nav li a": {
			{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}, {Text: "E"}, {Text: "F"},
		},
	})

	strategy, err := a.Analyze(context.Background(), page, "https://shop.example/")
	require.NoError(t, err)
	assert.Equal(t, "generic_links", string(strategy.NavigationType))
	assert.Equal(t, "fallback", strategy.ExtractionMethod)
}

// TestAnalyzeHeuristicOverrideUsesWinningSelector guards against the
// override strategy hard-coding the first entry in the heuristic battery:
// here the abundant matches live under ".category-card a", not "nav li a",
// so the synthesized fallback must point at the selector that actually
// matched or it would extract nothing at all.
func TestAnalyzeHeuristicOverrideUsesWinningSelector(t *testing.T) {
	llm := &stubLLM{results: []map[string]any{
		{
			"navigation_type": "grid",
			"selectors":       map[string]any{"category_card": ".card", "category_link": ".card a"},
		},
	}}
	a := New(llm, 0, silentLogger())
	page := newTestPage(t, map[string][]browseradapter.Element{
		".card": {{Text: "only-one"}},
		".category-card a": {
			{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}, {Text: "E"}, {Text: "F"},
		},
	})

	strategy, err := a.Analyze(context.Background(), page, "https://shop.example/")
	require.NoError(t, err)
	assert.Equal(t, "generic_links", string(strategy.NavigationType))
	assert.Equal(t, "fallback", strategy.ExtractionMethod)
	assert.Equal(t, ".category-card a", strategy.Selectors.CategoryLink)
}
