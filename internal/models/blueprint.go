package models

import "time"

// BlueprintMetadata is the §6 "metadata" object.
type BlueprintMetadata struct {
	SiteURL          string    `json:"site_url"`
	RetailerID       int       `json:"retailer_id"`
	RetailerName     string    `json:"retailer_name,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
	GeneratorVersion string    `json:"generator_version"`
	Confidence       float64   `json:"confidence"`
}

// ExtractionStrategy is the §6 "extraction_strategy" object — a Strategy
// without its runtime-only ExtractionMethod annotation, its Confidence
// (kept in BlueprintMetadata) and its URLPattern (kept in ValidationRules).
type ExtractionStrategy struct {
	NavigationType NavigationType `json:"navigation_type"`
	Selectors      Selectors      `json:"selectors"`
	Interactions   []Interaction  `json:"interactions"`
	Notes          []string       `json:"notes"`
}

// ExtractionStats is the §6 "extraction_stats" object.
type ExtractionStats struct {
	TotalCategories int         `json:"total_categories"`
	MaxDepth        int         `json:"max_depth"`
	ByDepth         map[int]int `json:"by_depth"`
}

// ValidationRules is the §6 "validation_rules" object — derived bounds
// used by the Blueprint Engine's staleness check.
type ValidationRules struct {
	MinCategories  int      `json:"min_categories"`
	MaxCategories  int      `json:"max_categories"`
	MaxDepth       int      `json:"max_depth"`
	RequiredFields []string `json:"required_fields"`
	URLPattern     string   `json:"url_pattern,omitempty"`
}

// EdgeCase is a recorded skip (bot detection, timeout) kept for operator
// visibility; §6 "edge_cases" entries.
type EdgeCase struct {
	Kind     string `json:"kind"`
	Selector string `json:"selector,omitempty"`
	Note     string `json:"note"`
}

// Blueprint is the full §6 on-disk JSON document.
type Blueprint struct {
	Version            string              `json:"version"`
	Metadata           BlueprintMetadata   `json:"metadata"`
	ExtractionStrategy ExtractionStrategy  `json:"extraction_strategy"`
	ExtractionStats    ExtractionStats     `json:"extraction_stats"`
	ValidationRules    ValidationRules     `json:"validation_rules"`
	EdgeCases          []EdgeCase          `json:"edge_cases"`
}

// BlueprintVersion is the current on-disk schema version this binary
// writes and reads.
const BlueprintVersion = "1.0"

// DeriveValidationRules computes the §4.9 bounds from a completed run:
// min_categories = max(1, total/4), max_categories = total*2.
func DeriveValidationRules(total, maxDepth int, urlPattern string) ValidationRules {
	min := total / 4
	if min < 1 {
		min = 1
	}
	return ValidationRules{
		MinCategories:  min,
		MaxCategories:  total * 2,
		MaxDepth:       maxDepth,
		RequiredFields: []string{"name", "url"},
		URLPattern:     urlPattern,
	}
}

// IsStale reports whether a replay's observed total/maxDepth fall outside
// the recorded bounds, per §4.9's staleness policy.
func (v ValidationRules) IsStale(observedTotal, observedMaxDepth int) bool {
	if observedTotal < v.MinCategories || observedTotal > v.MaxCategories {
		return true
	}
	if abs(observedMaxDepth-v.MaxDepth) > 1 {
		return true
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ToStrategy converts a blueprint's extraction_strategy back into a
// runtime Strategy for the Extractor.
func (b Blueprint) ToStrategy() Strategy {
	return Strategy{
		NavigationType:   b.ExtractionStrategy.NavigationType,
		Selectors:        b.ExtractionStrategy.Selectors,
		Interactions:     b.ExtractionStrategy.Interactions,
		Confidence:       b.Metadata.Confidence,
		Notes:            b.ExtractionStrategy.Notes,
		URLPattern:       b.ValidationRules.URLPattern,
		ExtractionMethod: "blueprint_replay",
	}
}
