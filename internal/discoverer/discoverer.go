// Package discoverer drives breadth-first, level-synchronous traversal
// of category URLs over the Extractor (spec.md §4.7): frontier, visited
// set, depth/category bounds, and strategy reuse with a budgeted
// re-analysis escape hatch. Level N+1 never starts before level N fully
// completes — this makes depth invariants hold without per-child
// bookkeeping (spec.md §4.7, §5).
package discoverer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/romangod6/catscout/internal/analyzer"
	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/extractor"
	"github.com/romangod6/catscout/internal/models"
	"github.com/romangod6/catscout/internal/normalize"
)

// Limits bounds a single run's traversal.
type Limits struct {
	MaxDepth         int
	MaxCategories    int
	ReanalysisBudget int
	// Concurrency bounds how many pages within one depth level are
	// visited at once. Level N+1 still never starts before level N
	// fully drains, so this only parallelizes work that was already
	// independent — sibling pages at the same depth share no state
	// but the frontier, visited set, and id allocator.
	Concurrency int
}

// DefaultLimits matches the §4.7/§6/§9 documented defaults.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 5, MaxCategories: 10000, ReanalysisBudget: 3, Concurrency: 4}
}

// frontierItem carries its own depth rather than relying on a shared
// per-round counter: a single page visit can yield two category depths
// at once (a hover_menu's top-level item plus its flyout children), so
// the items a round produces are not all the same depth.
//
// strategy is the strategy this page should be extracted with: the one
// its own parent page was found to work under, or nil only for the
// initial root item on a cold run (no warm-run strategy to reuse yet).
// A page is a "subtree root" exactly when its inherited strategy fails
// and it gets re-analyzed (spec.md §4.7); the resulting strategy is
// then carried forward onto that page's own children, not onto the
// whole run, so a site with heterogeneous section layouts doesn't keep
// re-discovering the same fix for every page in a failing subtree.
type frontierItem struct {
	url           string
	canonical     string
	parentLocalID *int
	depth         int
	strategy      *models.Strategy
}

// Discoverer owns the frontier and visited set exclusively — no other
// component touches them (spec.md §5's single-owner rule).
type Discoverer struct {
	browser   browseradapter.Adapter
	analyzer  *analyzer.Analyzer
	extractor *extractor.Extractor
	limits    Limits
	logger    *slog.Logger
}

func New(browser browseradapter.Adapter, an *analyzer.Analyzer, ex *extractor.Extractor, limits Limits, logger *slog.Logger) *Discoverer {
	return &Discoverer{browser: browser, analyzer: an, extractor: ex, limits: limits, logger: logger}
}

// Outcome is the traversal's return value: every category discovered,
// recorded edge cases, and the strategy observed at the root (for
// blueprint synthesis).
type Outcome struct {
	Categories    []models.Category
	EdgeCases     []extractor.EdgeCase
	RootStrategy  models.Strategy
	CountsByDepth map[int]int
}

// Discover runs the algorithm of §4.7 starting from rootURL with an
// optional root strategy (non-nil means "reuse this instead of calling
// the Analyzer" — the warm-run/blueprint-replay path).
func (d *Discoverer) Discover(ctx context.Context, retailerID int, rootURL string, rootStrategy *models.Strategy) (Outcome, error) {
	rootCanonical, ok := normalize.Canonical(rootURL, "")
	if !ok {
		return Outcome{}, &invalidRootError{url: rootURL}
	}
	rootHost := normalize.Host(rootCanonical)

	ids := extractor.NewIDAllocator()
	visited := map[string]bool{rootCanonical: true}
	frontier := []frontierItem{{url: rootURL, canonical: rootCanonical, parentLocalID: nil, depth: 0, strategy: rootStrategy}}

	var allCategories []models.Category
	var allEdgeCases []extractor.EdgeCase

	// observedRootStrategy is reported on Outcome for blueprint synthesis
	// — the strategy actually used at the root page, whatever it ended up
	// being (reused, freshly analyzed, or recovered by re-analysis).
	observedRootStrategy := models.Strategy{}
	if rootStrategy != nil {
		observedRootStrategy = *rootStrategy
	}
	reanalysisBudget := d.limits.ReanalysisBudget

	workers := d.limits.Concurrency
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	var stop bool

	for len(frontier) > 0 {
		var nextFrontier []frontierItem

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for _, item := range frontier {
			item := item
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if item.depth > d.limits.MaxDepth {
					return nil
				}

				mu.Lock()
				full := len(allCategories) >= d.limits.MaxCategories
				if full {
					stop = true
				}
				mu.Unlock()
				if full {
					return nil
				}

				pageCtx, err := d.browser.NewContext(gctx)
				if err != nil {
					d.logger.Error("discoverer: failed to open context", "url", item.url, "error", err)
					return nil
				}

				if err := pageCtx.Goto(gctx, item.url); err != nil {
					d.logger.Warn("discoverer: goto failed, skipping", "url", item.url, "error", err)
					pageCtx.Close()
					return nil
				}

				reusedStrategy := item.strategy != nil
				var strategy models.Strategy
				if reusedStrategy {
					strategy = *item.strategy
				} else {
					strategy, err = d.analyzer.Analyze(gctx, pageCtx, item.url)
					if err != nil {
						d.logger.Error("discoverer: root analysis failed", "url", item.url, "error", err)
						pageCtx.Close()
						return nil
					}
				}

				mu.Lock()
				ancestors := snapshotVisited(visited)
				mu.Unlock()

				result, err := d.extractor.Extract(gctx, pageCtx, strategy, extractor.Options{
					RetailerID:            retailerID,
					ParentLocalID:         item.parentLocalID,
					Depth:                 item.depth,
					PageURL:               item.url,
					AncestorCanonicalURLs: ancestors,
				}, ids)
				pageCtx.Close()

				if err != nil {
					d.logger.Warn("discoverer: extraction failed", "url", item.url, "error", err)
					return nil
				}

				// Strategy reuse (§4.7): a reused strategy — the warm-run
				// blueprint strategy at the root, or an ancestor page's
				// strategy on any deeper page — is tried first because
				// it's cheap. A zero-category result from a reused
				// strategy makes this page a subtree root: a budgeted
				// re-analysis runs against it, and on success the new
				// strategy governs this page's own children (not the
				// whole run) so a heterogeneous site doesn't keep paying
				// to rediscover the same fix across a failing subtree. A
				// freshly analyzed root's own zero result doesn't
				// escalate — the Analyzer already retried and fell back
				// internally.
				effectiveStrategy := strategy
				if len(result.Categories) == 0 && reusedStrategy {
					mu.Lock()
					canReanalyze := reanalysisBudget > 0
					if canReanalyze {
						reanalysisBudget--
					}
					remaining := reanalysisBudget
					mu.Unlock()
					if canReanalyze {
						d.logger.Info("discoverer: reused strategy yielded nothing, re-analyzing subtree root", "url", item.url, "budget_remaining", remaining)
						reanalyzed, newStrategy, reErr := d.reanalyze(gctx, item.url, retailerID, item.parentLocalID, item.depth, ancestors, ids)
						if reErr == nil {
							result = reanalyzed
							effectiveStrategy = newStrategy
						}
					}
				}

				mu.Lock()
				allCategories = append(allCategories, result.Categories...)
				allEdgeCases = append(allEdgeCases, result.EdgeCases...)
				if item.depth == 0 {
					observedRootStrategy = effectiveStrategy
				}
				for _, child := range result.Categories {
					if child.Depth > d.limits.MaxDepth {
						continue
					}
					if visited[child.CanonicalURL] {
						continue
					}
					childHost := normalize.Host(child.CanonicalURL)
					if childHost == "" || !normalize.SameRegistrableDomain(rootHost, childHost) {
						continue
					}
					visited[child.CanonicalURL] = true
					localID := child.LocalID
					childStrategy := effectiveStrategy
					nextFrontier = append(nextFrontier, frontierItem{
						url:           child.URL,
						canonical:     child.CanonicalURL,
						parentLocalID: &localID,
						depth:         child.Depth + 1,
						strategy:      &childStrategy,
					})
				}
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return buildOutcome(allCategories, allEdgeCases, observedRootStrategy), err
		}
		if stop {
			break
		}
		frontier = nextFrontier
	}

	return buildOutcome(allCategories, allEdgeCases, observedRootStrategy), nil
}

func snapshotVisited(visited map[string]bool) map[string]bool {
	out := make(map[string]bool, len(visited))
	for v := range visited {
		out[v] = true
	}
	return out
}

func buildOutcome(categories []models.Category, edgeCases []extractor.EdgeCase, strategy models.Strategy) Outcome {
	countsByDepth := make(map[int]int)
	for _, c := range categories {
		countsByDepth[c.Depth]++
	}
	return Outcome{
		Categories:    categories,
		EdgeCases:     edgeCases,
		RootStrategy:  strategy,
		CountsByDepth: countsByDepth,
	}
}

// reanalyze opens a fresh context at url and re-invokes the Analyzer,
// then the Extractor with the freshly produced strategy — the expensive
// escape hatch spec.md §4.7 budgets per run.
func (d *Discoverer) reanalyze(ctx context.Context, url string, retailerID int, parentLocalID *int, depth int, ancestors map[string]bool, ids *extractor.IDAllocator) (extractor.Result, models.Strategy, error) {
	pageCtx, err := d.browser.NewContext(ctx)
	if err != nil {
		return extractor.Result{}, models.Strategy{}, err
	}
	defer pageCtx.Close()

	if err := pageCtx.Goto(ctx, url); err != nil {
		return extractor.Result{}, models.Strategy{}, err
	}

	strategy, err := d.analyzer.Analyze(ctx, pageCtx, url)
	if err != nil {
		return extractor.Result{}, models.Strategy{}, err
	}

	result, err := d.extractor.Extract(ctx, pageCtx, strategy, extractor.Options{
		RetailerID:            retailerID,
		ParentLocalID:         parentLocalID,
		Depth:                 depth,
		PageURL:               url,
		AncestorCanonicalURLs: ancestors,
	}, ids)
	return result, strategy, err
}

type invalidRootError struct{ url string }

func (e *invalidRootError) Error() string { return "discoverer: invalid root url: " + e.url }
