package models

import "time"

// Category is a node in a retailer's product-group taxonomy, born during a
// single run. LocalID is assigned monotonically within that run; db
// identity is assigned only at persistence time (see PersistedCategory).
type Category struct {
	LocalID       int               `json:"local_id"`
	Name          string            `json:"name"`
	URL           string            `json:"url"`
	CanonicalURL  string            `json:"canonical_url"`
	Depth         int               `json:"depth"`
	ParentLocalID *int              `json:"parent_local_id,omitempty"`
	RetailerID    int               `json:"retailer_id"`
	Evidence      map[string]string `json:"evidence,omitempty"`
}

// IsRoot reports whether c has no parent in this run.
func (c *Category) IsRoot() bool {
	return c.ParentLocalID == nil
}

// PersistedCategory mirrors a row of the external categories table (§6),
// keyed by database identity rather than the run-local one.
type PersistedCategory struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	RetailerID int       `json:"retailer_id"`
	Depth      int       `json:"depth"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// Retailer is externally-owned retailer metadata used to annotate
// blueprints.
type Retailer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
