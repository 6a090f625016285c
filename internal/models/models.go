package models

import "time"

// NavigationType is the tagged variant an Analyzer emits and an Extractor
// dispatches on (spec.md §3). Modeled as a sum type with one extractor arm
// per tag plus a generic_links fallback, per spec.md §9 — never an
// inheritance hierarchy.
type NavigationType string

const (
	NavHoverMenu     NavigationType = "hover_menu"
	NavSidebar       NavigationType = "sidebar"
	NavAccordion     NavigationType = "accordion"
	NavMegaMenu      NavigationType = "mega_menu"
	NavGrid          NavigationType = "grid"
	NavSitemap       NavigationType = "sitemap"
	NavGenericLinks  NavigationType = "generic_links"
)

// InteractionAction enumerates the step kinds a Strategy's interaction
// script may contain.
type InteractionAction string

const (
	ActionHover          InteractionAction = "hover"
	ActionClick          InteractionAction = "click"
	ActionScroll         InteractionAction = "scroll"
	ActionWait           InteractionAction = "wait"
	ActionRevealTrigger   InteractionAction = "reveal_trigger"
)

// Interaction is one ordered step of a Strategy's interaction script.
type Interaction struct {
	Action    InteractionAction `json:"action"`
	Target    string            `json:"target"`
	WaitFor   string            `json:"wait_for,omitempty"`
	TimeoutMS int               `json:"timeout_ms"`
	Optional  bool              `json:"optional"`
}

// Selectors is the recognized-key selector mapping a Strategy carries.
// A missing or empty key means "not used by this strategy".
type Selectors struct {
	NavContainer     string `json:"nav_container,omitempty"`
	TopLevelItems    string `json:"top_level_items,omitempty"`
	TopLevelLink     string `json:"top_level_link,omitempty"`
	FlyoutPanel      string `json:"flyout_panel,omitempty"`
	SubcategoryItems string `json:"subcategory_items,omitempty"`
	SubcategoryLink  string `json:"subcategory_link,omitempty"`
	ShowMoreButton   string `json:"show_more_button,omitempty"`
	ExpandToggle     string `json:"expand_toggle,omitempty"`
	CategoryCard     string `json:"category_card,omitempty"`
	CategoryName     string `json:"category_name,omitempty"`
	CategoryLink     string `json:"category_link,omitempty"`
	PaginationNext   string `json:"pagination_next,omitempty"`
}

// Strategy is an extraction plan for a page: the Analyzer's output, or a
// Strategy loaded from a Blueprint.
type Strategy struct {
	NavigationType   NavigationType `json:"navigation_type"`
	Selectors        Selectors      `json:"selectors"`
	Interactions     []Interaction  `json:"interactions"`
	Confidence       float64        `json:"confidence"`
	Notes            []string       `json:"notes"`
	URLPattern       string         `json:"url_pattern,omitempty"`
	ExtractionMethod string         `json:"extraction_method,omitempty"`
}

// requiredSelectorKeys returns the selector keys §4.5 declares mandatory
// for a given navigation type.
func requiredSelectorKeys(nt NavigationType) []string {
	switch nt {
	case NavHoverMenu:
		return []string{"nav_container", "top_level_items", "category_link"}
	case NavSidebar, NavAccordion:
		return []string{"nav_container", "top_level_items"}
	case NavMegaMenu:
		return []string{"nav_container", "top_level_items", "flyout_panel"}
	case NavGrid:
		return []string{"category_card", "category_link"}
	case NavSitemap, NavGenericLinks:
		return []string{"category_link"}
	default:
		return nil
	}
}

// MissingRequiredSelectors reports which of the navigation type's required
// selector keys are empty in s.
func (s Strategy) MissingRequiredSelectors() []string {
	values := map[string]string{
		"nav_container":     s.Selectors.NavContainer,
		"top_level_items":   s.Selectors.TopLevelItems,
		"top_level_link":    s.Selectors.TopLevelLink,
		"flyout_panel":      s.Selectors.FlyoutPanel,
		"subcategory_items": s.Selectors.SubcategoryItems,
		"subcategory_link":  s.Selectors.SubcategoryLink,
		"category_card":     s.Selectors.CategoryCard,
		"category_name":     s.Selectors.CategoryName,
		"category_link":     s.Selectors.CategoryLink,
	}
	var missing []string
	for _, key := range requiredSelectorKeys(s.NavigationType) {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// GenericLinksFallback is the low-confidence strategy the Analyzer falls
// back to when it cannot produce a valid strategy for a page (§4.5).
func GenericLinksFallback() Strategy {
	return Strategy{
		NavigationType:   NavGenericLinks,
		Selectors:        Selectors{CategoryLink: "nav a, aside a, header a"},
		Confidence:       0.1,
		Notes:            []string{"fallback: analyzer could not produce a valid strategy"},
		ExtractionMethod: "fallback",
	}
}

// RunStage enumerates the Orchestrator's lifecycle phases (§4.10).
type RunStage string

const (
	StageInitialized RunStage = "initialized"
	StageBrowserReady RunStage = "browser_ready"
	StageAnalyzing   RunStage = "analyzing"
	StageExtracting  RunStage = "extracting"
	StageDiscovering RunStage = "discovering"
	StagePersisting  RunStage = "persisting"
	StageBlueprinting RunStage = "blueprinting"
	StageCompleted   RunStage = "completed"
	StageFailed      RunStage = "failed"
	StageCancelled   RunStage = "cancelled"
)

// RunState is the Orchestrator-owned mutable record of a single run.
type RunState struct {
	RunID            string        `json:"run_id"`
	RetailerID       int           `json:"retailer_id"`
	RootURL          string        `json:"root_url"`
	Stage            RunStage      `json:"stage"`
	StartedAt        time.Time     `json:"started_at"`
	CountsByDepth    map[int]int   `json:"counts_by_depth"`
	QueueSizes       map[int]int   `json:"queue_sizes"`
	Categories       []interface{} `json:"-"`
	Errors           []string      `json:"errors"`
	Provider         string        `json:"provider"`
	BlueprintPath    string        `json:"blueprint_path,omitempty"`
	ReanalysisBudget int           `json:"reanalysis_budget_remaining"`
	StaleReplay      bool          `json:"stale_replay,omitempty"`
}

// NewRunState initializes a RunState in the initialized stage.
func NewRunState(runID string, retailerID int, rootURL string, reanalysisBudget int) *RunState {
	return &RunState{
		RunID:            runID,
		RetailerID:       retailerID,
		RootURL:          rootURL,
		Stage:            StageInitialized,
		StartedAt:        time.Now(),
		CountsByDepth:    make(map[int]int),
		QueueSizes:       make(map[int]int),
		ReanalysisBudget: reanalysisBudget,
	}
}

// RecordError appends a human-readable error to the run's error list. It
// never panics and never unwinds — recoverable errors mutate state only.
func (r *RunState) RecordError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// TotalCategories sums CountsByDepth.
func (r *RunState) TotalCategories() int {
	total := 0
	for _, n := range r.CountsByDepth {
		total += n
	}
	return total
}

// MaxDepthSeen returns the highest depth recorded in CountsByDepth, or -1
// if none.
func (r *RunState) MaxDepthSeen() int {
	max := -1
	for d := range r.CountsByDepth {
		if d > max {
			max = d
		}
	}
	return max
}

// RunResult is the shape handed back to the CLI (§4.10): the Orchestrator
// never re-raises raw errors, it returns this and lets the CLI translate
// to an exit code.
type RunResult struct {
	Success bool
	State   *RunState
	Error   error
}
