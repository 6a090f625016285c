package extractor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/models"
	"github.com/romangod6/catscout/internal/normalize"
	"github.com/romangod6/catscout/internal/validate"
)

// IDAllocator hands out monotonically increasing local ids within a run.
// Owned exclusively by the Discoverer (spec.md §9's "never link categories
// by pointer" rule); the Extractor only consumes it. The Discoverer fans
// pages within a depth level out across a bounded worker pool, so Next
// is called concurrently and must serialize itself.
type IDAllocator struct {
	mu   sync.Mutex
	next int
}

func NewIDAllocator() *IDAllocator { return &IDAllocator{} }

func (a *IDAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// Options parameterizes a single Extract call against one page.
type Options struct {
	RetailerID            int
	ParentLocalID         *int
	Depth                 int
	PageURL               string
	AncestorCanonicalURLs map[string]bool
}

// Result is what the Discoverer consumes: the categories found on this
// page, plus evidence of any skipped items for blueprint edge_cases.
type Result struct {
	Categories  []models.Category
	EdgeCases   []EdgeCase
}

// EdgeCase records a skip for blueprint annotation (§4.9's edge_cases).
type EdgeCase struct {
	Kind     string
	Selector string
	Note     string
}

// Extractor executes a Strategy against a live page.
type Extractor struct {
	retry  RetryPolicy
	logger *slog.Logger
}

func New(retry RetryPolicy, logger *slog.Logger) *Extractor {
	return &Extractor{retry: retry, logger: logger}
}

// Extract dispatches on strategy.NavigationType and post-processes the
// raw candidates per §4.6: trim, resolve, drop noise/invalid/ancestor
// links, dedupe by canonical URL.
func (e *Extractor) Extract(ctx context.Context, pageCtx browseradapter.Context, strategy models.Strategy, opts Options, ids *IDAllocator) (Result, error) {
	if err := checkBotDetection(ctx, pageCtx, opts.PageURL); err != nil {
		return Result{}, err
	}

	var raw []rawCandidate
	var edgeCases []EdgeCase
	var err error

	switch strategy.NavigationType {
	case models.NavHoverMenu:
		raw, edgeCases, err = e.extractHoverMenu(ctx, pageCtx, strategy)
	case models.NavSidebar, models.NavAccordion:
		raw, edgeCases, err = e.extractSidebarAccordion(ctx, pageCtx, strategy)
	case models.NavMegaMenu:
		raw, edgeCases, err = e.extractMegaMenu(ctx, pageCtx, strategy)
	case models.NavGrid:
		raw, edgeCases, err = e.extractGrid(ctx, pageCtx, strategy)
	case models.NavSitemap, models.NavGenericLinks:
		raw, edgeCases, err = e.extractFlat(ctx, pageCtx, strategy)
	default:
		return Result{}, &cerrors.ExtractionError{URL: opts.PageURL, Reason: "unrecognized navigation_type: " + string(strategy.NavigationType)}
	}
	if err != nil {
		return Result{}, err
	}

	categories := e.postProcess(raw, opts, ids)
	return Result{Categories: categories, EdgeCases: edgeCases}, nil
}

// rawCandidate is a pre-normalization extraction hit: a name/href pair,
// the depth offset (0 = same depth as the page's own root category,
// 1 = child) and the selector that matched it.
type rawCandidate struct {
	Name        string
	HREF        string
	DepthOffset int
	Selector    string
}

func (e *Extractor) extractHoverMenu(ctx context.Context, pageCtx browseradapter.Context, s models.Strategy) ([]rawCandidate, []EdgeCase, error) {
	var out []rawCandidate
	var edgeCases []EdgeCase

	items, err := pageCtx.Query(ctx, s.Selectors.TopLevelItems)
	if err != nil {
		return nil, nil, &cerrors.ExtractionError{Reason: "top_level_items query failed: " + err.Error()}
	}

	for i, item := range items {
		itemSel := nthSelector(s.Selectors.TopLevelItems, i)

		if item.HREF != "" {
			out = append(out, rawCandidate{Name: item.Text, HREF: item.HREF, DepthOffset: 0, Selector: s.Selectors.TopLevelItems})
		}

		hoverErr := withRetry(ctx, e.retry, func() error {
			return pageCtx.Hover(ctx, itemSel)
		})
		if hoverErr != nil {
			edgeCases = append(edgeCases, EdgeCase{Kind: "hover_failed", Selector: s.Selectors.TopLevelItems, Note: hoverErr.Error()})
			continue
		}

		// The flyout selector is scoped within the hovered item: only
		// this item's flyout is open at a time.
		scopedFlyout := scopedSelector(itemSel, s.Selectors.FlyoutPanel)
		if scopedFlyout != "" {
			waitErr := pageCtx.WaitFor(ctx, scopedFlyout, flyoutTimeout(s))
			if waitErr != nil {
				edgeCases = append(edgeCases, EdgeCase{Kind: "flyout_timeout", Selector: scopedFlyout, Note: waitErr.Error()})
				continue
			}
		}

		scopedSubs := scopedSelector(itemSel, s.Selectors.SubcategoryItems)
		subs, _ := pageCtx.Query(ctx, scopedSubs)
		for _, sub := range subs {
			if sub.HREF == "" {
				continue
			}
			out = append(out, rawCandidate{Name: sub.Text, HREF: sub.HREF, DepthOffset: 1, Selector: scopedSubs})
		}

		// Dismiss the flyout before moving to the next item.
		_ = pageCtx.Hover(ctx, "body")
	}
	return out, edgeCases, nil
}

func (e *Extractor) extractMegaMenu(ctx context.Context, pageCtx browseradapter.Context, s models.Strategy) ([]rawCandidate, []EdgeCase, error) {
	// Same traversal as hover_menu. Column headings get no parent role:
	// every subcategory anchor in a flyout becomes a depth-1 child of its
	// top-level item, and nothing about the column layout is recorded.
	return e.extractHoverMenu(ctx, pageCtx, s)
}

func (e *Extractor) extractSidebarAccordion(ctx context.Context, pageCtx browseradapter.Context, s models.Strategy) ([]rawCandidate, []EdgeCase, error) {
	var out []rawCandidate
	var edgeCases []EdgeCase

	for _, step := range s.Interactions {
		if step.Action != models.ActionRevealTrigger {
			continue
		}
		err := withRetry(ctx, e.retry, func() error { return pageCtx.Click(ctx, step.Target) })
		if err != nil {
			if step.Optional {
				edgeCases = append(edgeCases, EdgeCase{Kind: "reveal_trigger_skipped", Selector: step.Target, Note: err.Error()})
				continue
			}
			return nil, edgeCases, &cerrors.ExtractionError{Reason: "reveal_trigger failed: " + err.Error()}
		}
		if step.WaitFor != "" {
			_ = pageCtx.WaitFor(ctx, step.WaitFor, timeoutOrDefault(step.TimeoutMS))
		}
	}

	items, err := pageCtx.Query(ctx, s.Selectors.TopLevelItems)
	if err != nil {
		return nil, edgeCases, &cerrors.ExtractionError{Reason: "top_level_items query failed: " + err.Error()}
	}

	expandSelectors := []string{s.Selectors.ExpandToggle, "svg", ".icon", ".arrow", ".chevron", "[class*=expand]"}

	for i, item := range items {
		if item.HREF != "" {
			out = append(out, rawCandidate{Name: item.Text, HREF: item.HREF, DepthOffset: 0, Selector: s.Selectors.TopLevelItems})
		}

		expandable := false
		itemSel := nthSelector(s.Selectors.TopLevelItems, i)
		for _, expandSel := range expandSelectors {
			if expandSel == "" {
				continue
			}
			elements, _ := pageCtx.Query(ctx, itemSel+" "+expandSel)
			if len(elements) > 0 {
				expandable = true
				break
			}
		}
		if !expandable {
			continue
		}

		if err := withRetry(ctx, e.retry, func() error { return pageCtx.Click(ctx, itemSel) }); err != nil {
			edgeCases = append(edgeCases, EdgeCase{Kind: "expand_failed", Selector: itemSel, Note: err.Error()})
			continue
		}
		if s.Selectors.SubcategoryItems != "" {
			scopedSubs := scopedSelector(itemSel, s.Selectors.SubcategoryItems)
			subs, _ := pageCtx.Query(ctx, scopedSubs)
			for _, sub := range subs {
				if sub.HREF == "" {
					continue
				}
				out = append(out, rawCandidate{Name: sub.Text, HREF: sub.HREF, DepthOffset: 1, Selector: scopedSubs})
			}
		}
		_ = pageCtx.Click(ctx, itemSel) // collapse
	}
	return out, edgeCases, nil
}

func (e *Extractor) extractGrid(ctx context.Context, pageCtx browseradapter.Context, s models.Strategy) ([]rawCandidate, []EdgeCase, error) {
	cards, err := pageCtx.Query(ctx, s.Selectors.CategoryCard)
	if err != nil {
		return nil, nil, &cerrors.ExtractionError{Reason: "category_card query failed: " + err.Error()}
	}
	var out []rawCandidate
	for _, card := range cards {
		if card.HREF == "" {
			continue
		}
		out = append(out, rawCandidate{Name: card.Text, HREF: card.HREF, DepthOffset: 0, Selector: s.Selectors.CategoryCard})
	}
	return out, nil, nil
}

func (e *Extractor) extractFlat(ctx context.Context, pageCtx browseradapter.Context, s models.Strategy) ([]rawCandidate, []EdgeCase, error) {
	links, err := pageCtx.Query(ctx, s.Selectors.CategoryLink)
	if err != nil {
		return nil, nil, &cerrors.ExtractionError{Reason: "category_link query failed: " + err.Error()}
	}
	var out []rawCandidate
	for _, link := range links {
		if link.HREF == "" {
			continue
		}
		out = append(out, rawCandidate{Name: link.Text, HREF: link.HREF, DepthOffset: 0, Selector: s.Selectors.CategoryLink})
	}
	return out, nil, nil
}

// postProcess trims, resolves, drops noise/invalid/self-or-ancestor
// links, and dedupes by canonical URL within the page (first occurrence
// wins), assigning local ids and parent linkage per §4.6.
func (e *Extractor) postProcess(raw []rawCandidate, opts Options, ids *IDAllocator) []models.Category {
	pageCanonical, _ := normalize.Canonical(opts.PageURL, "")

	seen := make(map[string]bool)
	// lastRootID tracks the most recently assigned depth-0 category's
	// local id; depth-1 candidates attach to it. This relies on the
	// extraction order invariant that each navigation-type routine emits
	// a top-level item's own link immediately before its flyout/expanded
	// children (see extractHoverMenu, extractSidebarAccordion).
	var lastRootID *int
	var out []models.Category

	for _, cand := range raw {
		name := strings.TrimSpace(cand.Name)
		if name == "" {
			continue
		}
		if validate.LooksLikeNoise(name) {
			continue
		}

		canonical, ok := normalize.Canonical(cand.HREF, opts.PageURL)
		if !ok {
			continue
		}
		if canonical == pageCanonical {
			continue
		}
		if opts.AncestorCanonicalURLs != nil && opts.AncestorCanonicalURLs[canonical] {
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true

		depth := opts.Depth + cand.DepthOffset
		var parentID *int

		if cand.DepthOffset == 0 {
			parentID = opts.ParentLocalID
		} else if lastRootID != nil {
			parentID = lastRootID
		} else {
			parentID = opts.ParentLocalID
		}

		localID := ids.Next()
		category := models.Category{
			LocalID:       localID,
			Name:          name,
			URL:           cand.HREF,
			CanonicalURL:  canonical,
			Depth:         depth,
			ParentLocalID: parentID,
			RetailerID:    opts.RetailerID,
			Evidence: map[string]string{
				"selector":    cand.Selector,
				"source_page": opts.PageURL,
			},
		}
		if err := validate.ValidateCategory(category); err != nil {
			e.logger.Debug("extractor: dropping invalid category", "reason", err.Error(), "url", cand.HREF)
			continue
		}

		if cand.DepthOffset == 0 {
			id := localID
			lastRootID = &id
		}
		out = append(out, category)
	}
	return out
}

func nthSelector(base string, index int) string {
	return base + ":nth-of-type(" + strconv.Itoa(index+1) + ")"
}

// scopedSelector constrains child to the currently hovered/expanded
// item's subtree, so only that item's flyout or expanded panel is
// queried — real DOMs expose one open flyout at a time, and this keeps
// the stub/production adapters consistent about it. Returns "" if child
// is unset.
func scopedSelector(itemSel, child string) string {
	if child == "" {
		return ""
	}
	return itemSel + " " + child
}

func flyoutTimeout(s models.Strategy) time.Duration {
	for _, step := range s.Interactions {
		if step.Action == models.ActionHover && step.TimeoutMS > 0 {
			return time.Duration(step.TimeoutMS) * time.Millisecond
		}
	}
	return 3 * time.Second
}

func timeoutOrDefault(ms int) time.Duration {
	if ms <= 0 {
		return 5 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}
