// Package validate enforces the per-category and whole-tree invariants of
// spec.md §4.2.
package validate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/romangod6/catscout/internal/models"
)

// ValidationError reports a single broken invariant. Never fatal to a run
// — the offending record is dropped and recorded (spec.md §7).
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ValidateCategory enforces the single-category invariants of §3(v): name
// non-empty after trim, URL has scheme+host, depth non-negative.
func ValidateCategory(c models.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Reason: "empty name"}
	}
	if c.Depth < 0 {
		return &ValidationError{Reason: "negative depth", Detail: fmt.Sprintf("%d", c.Depth)}
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Reason: "url missing scheme or host", Detail: c.URL}
	}
	return nil
}

// ValidateHierarchy enforces the whole-run invariants of §4.2: every
// child's parent resolves within the run, no cycles, depth(child) =
// depth(parent)+1, and no canonical URL carried by two different local
// IDs, whatever their depths or parents (first-seen wins — callers are expected to have
// already applied that tie-break before calling this, so a violation here
// is a genuine caller bug being surfaced, not silently repaired).
func ValidateHierarchy(cs []models.Category) error {
	byLocalID := make(map[int]models.Category, len(cs))
	for _, c := range cs {
		byLocalID[c.LocalID] = c
	}

	seenCanonical := make(map[string]int) // canonical URL -> local id of first-seen owner

	for _, c := range cs {
		if c.ParentLocalID != nil {
			parent, ok := byLocalID[*c.ParentLocalID]
			if !ok {
				return &ValidationError{Reason: "parent not found in run", Detail: fmt.Sprintf("local_id=%d parent=%d", c.LocalID, *c.ParentLocalID)}
			}
			if c.Depth != parent.Depth+1 {
				return &ValidationError{Reason: "depth mismatch", Detail: fmt.Sprintf("local_id=%d depth=%d parent_depth=%d", c.LocalID, c.Depth, parent.Depth)}
			}
		}

		if err := checkAcyclic(c.LocalID, byLocalID); err != nil {
			return err
		}

		if existing, ok := seenCanonical[c.CanonicalURL]; ok && existing != c.LocalID {
			return &ValidationError{Reason: "duplicate canonical URL at different local ids", Detail: c.CanonicalURL}
		}
		seenCanonical[c.CanonicalURL] = c.LocalID
	}

	return nil
}

func checkAcyclic(start int, byLocalID map[int]models.Category) error {
	visited := make(map[int]bool)
	current := start
	for {
		c, ok := byLocalID[current]
		if !ok {
			return nil
		}
		if c.ParentLocalID == nil {
			return nil
		}
		if visited[current] {
			return &ValidationError{Reason: "cycle detected in parent chain", Detail: fmt.Sprintf("local_id=%d", start)}
		}
		visited[current] = true
		current = *c.ParentLocalID
	}
}

// noiseTokens are the case-insensitive navigation-noise substrings
// enumerated in spec.md §4.2.
var noiseTokens = []string{
	"login", "log in", "sign in", "sign up", "register",
	"cart", "checkout", "basket",
	"stores", "store locator", "find a store",
	"rewards", "loyalty",
	"menu", "help", "support", "faq", "contact",
	"wishlist", "favorites", "my account", "track order",
	"gift card", "gift cards",
}

// LooksLikeNoise reports whether name matches a navigation-noise token —
// login, cart, stores, rewards, menu, help, wishlist, and similar.
func LooksLikeNoise(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	for _, tok := range noiseTokens {
		if lower == tok || strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
