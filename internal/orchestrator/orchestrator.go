// Package orchestrator drives one end-to-end run through the lifecycle
// of spec.md §4.10: initialized -> browser_ready -> analyzing ->
// extracting -> discovering -> persisting -> blueprinting -> completed
// (or failed at any stage). It owns cleanup on every exit path and
// bounds how long a cancelled run is given to tear down cleanly.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/romangod6/catscout/internal/analyzer"
	"github.com/romangod6/catscout/internal/blueprint"
	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/discoverer"
	"github.com/romangod6/catscout/internal/extractor"
	"github.com/romangod6/catscout/internal/llmadapter"
	"github.com/romangod6/catscout/internal/models"
	"github.com/romangod6/catscout/internal/runregistry"
	"github.com/romangod6/catscout/internal/storage"
)

// ShutdownGrace bounds how long Run spends on cleanup after ctx is
// cancelled, per spec.md §5.
const ShutdownGrace = 5 * time.Second

// BrowserLauncher abstracts browseradapter.Launch so tests can substitute
// a stub session without starting a real browser process.
type BrowserLauncher func() (browseradapter.Adapter, error)

// Params configures a single run (the `extract` CLI subcommand's flags,
// spec.md §6).
type Params struct {
	RetailerID    int
	RetailerName  string
	RootURL       string
	ForceRefresh  bool
	BlueprintPath string // explicit --blueprint path; "" means "look up the latest for RetailerID"
	BlueprintOnly bool
	MaxDepth      *int // nil means use the Orchestrator's configured default
	MaxCategories *int
}

type Orchestrator struct {
	launch    BrowserLauncher
	llm       llmadapter.Client
	store     storage.Store
	blueprint *blueprint.Engine
	limits    discoverer.Limits
	logger    *slog.Logger
	registry  *runregistry.Registry
}

func New(launch BrowserLauncher, llm llmadapter.Client, store storage.Store, bpEngine *blueprint.Engine, limits discoverer.Limits, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{launch: launch, llm: llm, store: store, blueprint: bpEngine, limits: limits, logger: logger}
}

// WithRegistry attaches a run registry the Orchestrator publishes stage
// transitions to, for the read-only inspection API. Optional — a nil
// registry (the default) disables publishing.
func (o *Orchestrator) WithRegistry(r *runregistry.Registry) *Orchestrator {
	o.registry = r
	return o
}

func (o *Orchestrator) publish(state *models.RunState) {
	if o.registry != nil {
		o.registry.Put(state)
	}
}

// Run executes one full lifecycle and never panics or returns a raw
// error — callers translate RunResult to an exit code (spec.md §6).
func (o *Orchestrator) Run(ctx context.Context, p Params) models.RunResult {
	limits := o.limits
	if p.MaxDepth != nil {
		limits.MaxDepth = *p.MaxDepth
	}
	if p.MaxCategories != nil {
		limits.MaxCategories = *p.MaxCategories
	}

	state := models.NewRunState(newRunID(), p.RetailerID, p.RootURL, limits.ReanalysisBudget)
	logger := o.logger.With("run_id", state.RunID, "retailer_id", p.RetailerID)

	var browserAdapter browseradapter.Adapter
	var storeConnected bool

	// cleanup always runs, even on a cancelled ctx — it runs in its own
	// goroutine raced against ShutdownGrace so a dead browser process can't
	// hang the shutdown path indefinitely.
	defer func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if browserAdapter != nil {
				if err := browserAdapter.CloseAll(); err != nil {
					logger.Warn("orchestrator: browser cleanup failed", "error", err)
				}
			}
			if storeConnected {
				if err := o.store.Close(); err != nil {
					logger.Warn("orchestrator: store cleanup failed", "error", err)
				}
			}
		}()
		select {
		case <-done:
		case <-time.After(ShutdownGrace):
			logger.Warn("orchestrator: cleanup did not finish within grace period", "grace", ShutdownGrace)
		}
	}()

	state.Stage = models.StageInitialized
	o.publish(state)
	logger.Info("run initialized", "root_url", p.RootURL)

	var rootStrategy *models.Strategy
	var loadedBlueprint *models.Blueprint
	var bpEngine = o.blueprint
	if !p.ForceRefresh {
		bp, resolvedPath, err := o.resolveBlueprint(p)
		if err != nil {
			logger.Warn("orchestrator: blueprint lookup failed, proceeding cold", "error", err)
		} else if bp != nil {
			strategy := bp.ToStrategy()
			rootStrategy = &strategy
			loadedBlueprint = bp
			state.BlueprintPath = resolvedPath
			logger.Info("reusing blueprint strategy", "path", resolvedPath)
		}
	}

	if err := o.store.Connect(ctx); err != nil {
		return o.fail(state, err)
	}
	storeConnected = true

	adapter, err := o.launch()
	if err != nil {
		return o.fail(state, &cerrors.NavigationError{URL: p.RootURL, Cause: err})
	}
	browserAdapter = adapter
	state.Stage = models.StageBrowserReady
	o.publish(state)

	an := analyzer.New(o.llm, analyzer.DefaultDOMByteCap, logger)
	ex := extractor.New(extractor.DefaultRetryPolicy(), logger)
	disc := discoverer.New(browserAdapter, an, ex, limits, logger)

	stageFromScratch := rootStrategy == nil
	if stageFromScratch {
		state.Stage = models.StageAnalyzing
	} else {
		state.Stage = models.StageExtracting
	}
	o.publish(state)

	outcome, err := disc.Discover(ctx, p.RetailerID, p.RootURL, rootStrategy)
	if err != nil {
		return o.fail(state, err)
	}
	state.Stage = models.StageDiscovering
	state.CountsByDepth = outcome.CountsByDepth
	o.publish(state)

	// A warm replay's validation_rules were derived from the run that
	// produced the blueprint; a live page whose observed shape has since
	// drifted outside those bounds means the replayed strategy no longer
	// reflects the site and the run falls back to a full cold analysis
	// instead of persisting a stale-looking result.
	if loadedBlueprint != nil {
		maxDepth := state.MaxDepthSeen()
		if maxDepth < 0 {
			maxDepth = 0
		}
		if loadedBlueprint.ValidationRules.IsStale(len(outcome.Categories), maxDepth) {
			logger.Warn("orchestrator: blueprint replay looks stale, falling back to full analysis",
				"observed_total", len(outcome.Categories), "observed_max_depth", maxDepth,
				"min_categories", loadedBlueprint.ValidationRules.MinCategories,
				"max_categories", loadedBlueprint.ValidationRules.MaxCategories,
				"recorded_max_depth", loadedBlueprint.ValidationRules.MaxDepth)
			state.StaleReplay = true
			state.Stage = models.StageAnalyzing
			o.publish(state)

			fresh, ferr := disc.Discover(ctx, p.RetailerID, p.RootURL, nil)
			if ferr != nil || len(fresh.Categories) == 0 {
				if ferr == nil {
					ferr = errors.New("fresh re-analysis after stale replay produced zero categories")
				}
				logger.Warn("orchestrator: fresh re-analysis after stale replay failed, retaining existing blueprint", "error", ferr)
				return o.fail(state, &cerrors.ExtractionError{URL: p.RootURL, Reason: "blueprint replay stale and fresh re-analysis failed: " + ferr.Error()})
			}
			outcome = fresh
			state.CountsByDepth = outcome.CountsByDepth
			state.Stage = models.StageDiscovering
			o.publish(state)
		}
	}

	if len(outcome.Categories) == 0 {
		return o.fail(state, &cerrors.ExtractionError{URL: p.RootURL, Reason: "discovery produced zero categories"})
	}

	if !p.BlueprintOnly {
		state.Stage = models.StagePersisting
		o.publish(state)
		if _, err := o.store.Persist(ctx, outcome.Categories); err != nil {
			return o.fail(state, err)
		}
	}

	state.Stage = models.StageBlueprinting
	o.publish(state)
	if bpEngine != nil {
		edgeCases := convertEdgeCases(outcome.EdgeCases)
		bp := blueprint.BuildFromRun(p.RootURL, p.RetailerID, p.RetailerName, outcome.RootStrategy, outcome.Categories, edgeCases, time.Now())
		path, err := bpEngine.Save(bp, bp.Metadata.GeneratedAt)
		if err != nil {
			// a blueprint write failure doesn't invalidate a successful run
			logger.Warn("orchestrator: blueprint save failed", "error", err)
		} else {
			state.BlueprintPath = path
		}
	}

	state.Stage = models.StageCompleted
	o.publish(state)
	o.writeManifest(state)
	logger.Info("run completed", "total_categories", state.TotalCategories(), "max_depth", state.MaxDepthSeen())
	return models.RunResult{Success: true, State: state}
}

// writeManifest saves a run_<id>.json summary alongside the blueprint
// directory. Manifest write failures are logged, never fatal — the run's
// success or failure was already decided.
func (o *Orchestrator) writeManifest(state *models.RunState) {
	if o.blueprint == nil {
		return
	}
	finished := time.Now()
	manifest := blueprint.RunManifest{
		RunID:           state.RunID,
		RetailerID:      state.RetailerID,
		RootURL:         state.RootURL,
		Stage:           string(state.Stage),
		TotalCategories: state.TotalCategories(),
		CountsByDepth:   state.CountsByDepth,
		Errors:          state.Errors,
		StartedAt:       state.StartedAt,
		FinishedAt:      finished,
		ElapsedMS:       finished.Sub(state.StartedAt).Milliseconds(),
	}
	if _, err := o.blueprint.WriteManifest(manifest); err != nil {
		o.logger.Warn("orchestrator: run manifest write failed", "run_id", state.RunID, "error", err)
	}
}

// resolveBlueprint loads the warm-run blueprint: an explicit path if
// given, otherwise the most recent file for the retailer.
func (o *Orchestrator) resolveBlueprint(p Params) (*models.Blueprint, string, error) {
	if o.blueprint == nil {
		return nil, "", nil
	}
	if p.BlueprintPath != "" {
		bp, err := o.blueprint.Load(p.BlueprintPath)
		if err != nil {
			return nil, "", err
		}
		return bp, p.BlueprintPath, nil
	}
	path, bp, err := o.blueprint.LatestFor(p.RetailerID)
	if err != nil || bp == nil {
		return nil, "", err
	}
	return bp, path, nil
}

func (o *Orchestrator) fail(state *models.RunState, err error) models.RunResult {
	state.Stage = models.StageFailed
	if errors.Is(err, context.Canceled) {
		state.Stage = models.StageCancelled
	}
	state.RecordError(err.Error())
	o.publish(state)
	o.writeManifest(state)
	o.logger.Error("run failed", "run_id", state.RunID, "stage", state.Stage, "error", err)
	return models.RunResult{Success: false, State: state, Error: err}
}

func convertEdgeCases(in []extractor.EdgeCase) []models.EdgeCase {
	out := make([]models.EdgeCase, 0, len(in))
	for _, e := range in {
		out = append(out, models.EdgeCase{Kind: e.Kind, Selector: e.Selector, Note: e.Note})
	}
	return out
}

func newRunID() string {
	return uuid.NewString()
}
