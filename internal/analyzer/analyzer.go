package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/llmadapter"
	"github.com/romangod6/catscout/internal/models"
)

// cookieBannerSelectors and navRevealSelectors are the enumerated
// best-effort selector sets spec.md §4.5 names by example; none are
// required to exist on a given page.
var cookieBannerSelectors = []string{
	"button:has-text('Accept')",
	"button:has-text('Allow Cookies')",
	"[id*=cookie] button",
	"[class*=consent] button",
}

var navRevealSelectors = []string{
	"button:has-text('Shop by Products')",
	"button:has-text('Menu')",
	"[aria-label*='menu' i]",
}

// heuristicSelectors is the battery of common navigation patterns probed
// alongside the LLM call, independent of whatever the model proposes.
var heuristicSelectors = []string{
	"nav li a",
	"aside li a",
	"header nav a",
	".category-card a",
	"[class*=sidebar] a",
}

// Analyzer produces a Strategy for a live page.
type Analyzer struct {
	llm    llmadapter.Client
	domCap int
	logger *slog.Logger
}

// New builds an Analyzer. domCap <= 0 uses DefaultDOMByteCap.
func New(llm llmadapter.Client, domCap int, logger *slog.Logger) *Analyzer {
	if domCap <= 0 {
		domCap = DefaultDOMByteCap
	}
	return &Analyzer{llm: llm, domCap: domCap, logger: logger}
}

// Analyze runs the full §4.5 pipeline against ctx's current page: best-
// effort dismissal clicks, screenshot+pruned-DOM capture, one LLM call
// with a strict re-prompt on schema failure, and a heuristic probe that
// can override a thin LLM result.
func (a *Analyzer) Analyze(ctx context.Context, pageCtx browseradapter.Context, url string) (models.Strategy, error) {
	a.dismissBestEffort(ctx, pageCtx, cookieBannerSelectors)
	a.dismissBestEffort(ctx, pageCtx, navRevealSelectors)

	screenshot, err := pageCtx.Screenshot(ctx)
	if err != nil {
		return models.Strategy{}, &cerrors.AnalysisError{URL: url, Cause: err}
	}

	html, err := pageCtx.DOMSnapshot(ctx)
	if err != nil {
		return models.Strategy{}, &cerrors.AnalysisError{URL: url, Cause: err}
	}
	pruned, err := PruneDOM(html, a.domCap)
	if err != nil {
		return models.Strategy{}, &cerrors.AnalysisError{URL: url, Cause: err}
	}

	strategy, err := a.callLLM(ctx, url, pruned, screenshot, promptForStrategy(pruned))
	if err != nil || len(strategy.MissingRequiredSelectors()) > 0 {
		missing := []string{}
		if err == nil {
			missing = strategy.MissingRequiredSelectors()
		}
		a.logger.Warn("analyzer: strategy rejected, retrying with strict re-prompt", "url", url, "missing", missing)
		strategy, err = a.callLLM(ctx, url, pruned, screenshot, promptForStrictRetry(pruned, missing))
		if err != nil || len(strategy.MissingRequiredSelectors()) > 0 {
			a.logger.Warn("analyzer: falling back to generic_links", "url", url)
			strategy = models.GenericLinksFallback()
		}
	}

	heuristicCount, heuristicWinner := a.probeHeuristic(ctx, pageCtx)
	llmCount := a.probeSelectorCount(ctx, pageCtx, strategy)
	if llmCount < 5 && heuristicCount >= llmCount*5 {
		a.logger.Info("analyzer: heuristic probe overrides thin LLM strategy", "url", url, "llm_count", llmCount, "heuristic_count", heuristicCount, "heuristic_selector", heuristicWinner)
		strategy = models.Strategy{
			NavigationType:   models.NavGenericLinks,
			Selectors:        models.Selectors{CategoryLink: heuristicWinner},
			Confidence:       0.3,
			Notes:            []string{"fallback: heuristic probe outperformed analyzer strategy"},
			ExtractionMethod: "fallback",
		}
	}

	return strategy, nil
}

func (a *Analyzer) dismissBestEffort(ctx context.Context, pageCtx browseradapter.Context, selectors []string) {
	for _, sel := range selectors {
		if err := pageCtx.Click(ctx, sel); err == nil {
			return
		}
	}
}

func (a *Analyzer) callLLM(ctx context.Context, url, pruned string, screenshot []byte, prompt string) (models.Strategy, error) {
	result, err := a.llm.Analyze(ctx, prompt, screenshot, strategySchema())
	if err != nil {
		return models.Strategy{}, &cerrors.AnalysisError{URL: url, Cause: err}
	}
	return decodeStrategy(result)
}

func decodeStrategy(result map[string]any) (models.Strategy, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return models.Strategy{}, err
	}
	var s models.Strategy
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.Strategy{}, err
	}
	return s, nil
}

// probeHeuristic counts matches across the common-pattern battery,
// independent of any LLM-proposed selector, and reports which selector in
// the battery actually produced the most matches — the one a synthesized
// override strategy should use, since the battery's members target very
// different page regions and summing them says nothing about where the
// matches actually live.
func (a *Analyzer) probeHeuristic(ctx context.Context, pageCtx browseradapter.Context) (total int, winner string) {
	best := 0
	for _, sel := range heuristicSelectors {
		elements, err := pageCtx.Query(ctx, sel)
		if err != nil {
			continue
		}
		total += len(elements)
		if len(elements) > best {
			best = len(elements)
			winner = sel
		}
	}
	if winner == "" {
		winner = heuristicSelectors[0]
	}
	return total, winner
}

// probeSelectorCount counts matches for the strategy's own top-level
// selector, used to judge whether it under-counts relative to the
// heuristic probe.
func (a *Analyzer) probeSelectorCount(ctx context.Context, pageCtx browseradapter.Context, s models.Strategy) int {
	sel := s.Selectors.TopLevelItems
	if sel == "" {
		sel = s.Selectors.CategoryCard
	}
	if sel == "" {
		sel = s.Selectors.CategoryLink
	}
	if sel == "" {
		return 0
	}
	elements, err := pageCtx.Query(ctx, sel)
	if err != nil {
		return 0
	}
	return len(elements)
}

func strategySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"navigation_type": map[string]any{
				"type": "string",
				"enum": []string{"hover_menu", "sidebar", "accordion", "mega_menu", "grid", "sitemap", "generic_links"},
			},
			"selectors":    map[string]any{"type": "object"},
			"interactions": map[string]any{"type": "array"},
			"confidence":   map[string]any{"type": "number"},
			"notes":        map[string]any{"type": "array"},
		},
		"required": []string{"navigation_type", "selectors"},
	}
}

func promptForStrategy(prunedDOM string) string {
	return fmt.Sprintf(`You are identifying product-group navigation (not individual products, not utility links) on an e-commerce page.

Given the attached screenshot and this pruned DOM snippet, classify the navigation pattern as exactly one of:
hover_menu, sidebar, accordion, mega_menu, grid, sitemap, generic_links.

Recognized selector keys: nav_container, top_level_items, top_level_link, flyout_panel, subcategory_items, subcategory_link, show_more_button, expand_toggle, category_card, category_name, category_link, pagination_next.

Respond with a single JSON object matching the Strategy shape: navigation_type, selectors, interactions, confidence, notes.

Pruned DOM:
%s`, prunedDOM)
}

func promptForStrictRetry(prunedDOM string, missing []string) string {
	return fmt.Sprintf(`Your previous response was missing required selector keys for its declared navigation_type: %v.

Re-examine the page and produce a corrected Strategy JSON object that includes all selectors required by its navigation_type.

Pruned DOM:
%s`, missing, prunedDOM)
}
