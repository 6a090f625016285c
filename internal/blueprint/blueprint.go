// Package blueprint implements the replay cache of spec.md §4.9: saving
// a run's discovered strategy and stats to disk, finding the most recent
// successful file for a retailer, and judging whether a replay's
// observed shape has drifted too far from what was recorded.
package blueprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/romangod6/catscout/internal/cerrors"
	"github.com/romangod6/catscout/internal/models"
)

// Engine reads and writes blueprint files under a single directory, one
// file per successful run (retailer_{id}_{YYYYMMDD_HHMMSS}_{uuid8}.json,
// where uuid8 is a random 8-character fragment).
type Engine struct {
	dir string
}

func New(dir string) *Engine {
	return &Engine{dir: dir}
}

// Dir returns the directory blueprints (and run manifests) are written
// to.
func (e *Engine) Dir() string { return e.dir }

// RunManifest is a per-run summary written alongside the blueprint:
// counts by depth, errors encountered, and elapsed wall time, for an
// operator comparing runs without loading the full category set.
type RunManifest struct {
	RunID           string      `json:"run_id"`
	RetailerID      int         `json:"retailer_id"`
	RootURL         string      `json:"root_url"`
	Stage           string      `json:"stage"`
	TotalCategories int         `json:"total_categories"`
	CountsByDepth   map[int]int `json:"counts_by_depth"`
	Errors          []string    `json:"errors"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
	ElapsedMS       int64       `json:"elapsed_ms"`
}

// WriteManifest saves m as run_<id>.json in the engine's directory.
func (e *Engine) WriteManifest(m RunManifest) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", &cerrors.BlueprintError{Path: e.dir, Cause: err}
	}
	path := filepath.Join(e.dir, fmt.Sprintf("run_%s.json", m.RunID))
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", &cerrors.BlueprintError{Path: path, Cause: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &cerrors.BlueprintError{Path: path, Cause: err}
	}
	return path, nil
}

// BuildFromRun assembles a Blueprint from the outputs of a completed
// run — the strategy observed at the root page, the categories
// persisted, and any edge cases recorded along the way.
func BuildFromRun(siteURL string, retailerID int, retailerName string, strategy models.Strategy, categories []models.Category, edgeCases []models.EdgeCase, generatedAt time.Time) models.Blueprint {
	byDepth := make(map[int]int)
	maxDepth := 0
	for _, c := range categories {
		byDepth[c.Depth]++
		if c.Depth > maxDepth {
			maxDepth = c.Depth
		}
	}

	return models.Blueprint{
		Version: models.BlueprintVersion,
		Metadata: models.BlueprintMetadata{
			SiteURL:          siteURL,
			RetailerID:       retailerID,
			RetailerName:     retailerName,
			GeneratedAt:      generatedAt,
			GeneratorVersion: models.BlueprintVersion,
			Confidence:       strategy.Confidence,
		},
		ExtractionStrategy: models.ExtractionStrategy{
			NavigationType: strategy.NavigationType,
			Selectors:      strategy.Selectors,
			Interactions:   strategy.Interactions,
			Notes:          strategy.Notes,
		},
		ExtractionStats: models.ExtractionStats{
			TotalCategories: len(categories),
			MaxDepth:        maxDepth,
			ByDepth:         byDepth,
		},
		ValidationRules: models.DeriveValidationRules(len(categories), maxDepth, strategy.URLPattern),
		EdgeCases:       edgeCases,
	}
}

// Save writes bp to the engine's directory and returns the path written.
// A run only reaches here on success (§4.9: "retain on failure" means
// never overwrite an existing good blueprint with a failed run's data —
// the Orchestrator simply never calls Save for a failed run).
func (e *Engine) Save(bp models.Blueprint, at time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", &cerrors.BlueprintError{Path: e.dir, Cause: err}
	}

	// The uuid suffix disambiguates two runs for the same retailer that
	// complete within the same second — the timestamp alone isn't unique
	// enough to guarantee Save never silently overwrites a sibling run.
	suffix := uuid.NewString()[:8]
	name := fmt.Sprintf("retailer_%d_%s_%s.json", bp.Metadata.RetailerID, at.Format("20060102_150405"), suffix)
	path := filepath.Join(e.dir, name)

	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return "", &cerrors.BlueprintError{Path: path, Cause: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &cerrors.BlueprintError{Path: path, Cause: err}
	}
	return path, nil
}

// Load reads and parses a blueprint file.
func (e *Engine) Load(path string) (*models.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &cerrors.BlueprintError{Path: path, Cause: err}
	}
	var bp models.Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, &cerrors.BlueprintError{Path: path, Cause: err}
	}
	if bp.Version != models.BlueprintVersion {
		return nil, &cerrors.BlueprintError{Path: path, Cause: fmt.Errorf("unsupported blueprint version %q", bp.Version)}
	}
	return &bp, nil
}

// LatestFor returns the most recently generated blueprint file for a
// retailer, by the timestamp embedded in its filename (not mtime, so a
// copied or restored file sorts correctly). Returns ("", nil, nil) when
// none exist.
func (e *Engine) LatestFor(retailerID int) (string, *models.Blueprint, error) {
	prefix := fmt.Sprintf("retailer_%d_", retailerID)
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, &cerrors.BlueprintError{Path: e.dir, Cause: err}
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".json") {
			candidates = append(candidates, entry.Name())
		}
	}
	if len(candidates) == 0 {
		return "", nil, nil
	}
	sort.Strings(candidates) // the YYYYMMDD_HHMMSS field sorts lexically == chronologically; files from the same second order by their random uuid fragment
	latest := candidates[len(candidates)-1]
	path := filepath.Join(e.dir, latest)

	bp, err := e.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, bp, nil
}
