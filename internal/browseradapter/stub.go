package browseradapter

import (
	"context"
	"fmt"
	"time"
)

// StubAdapter is an in-memory Adapter for tests that drive the Analyzer
// and Extractor without a real browser. Pages are keyed by URL and
// configured up front with the HTML, screenshot bytes, and queryable
// elements they should return.
type StubAdapter struct {
	Pages  map[string]*StubPage
	closed bool
}

// StubPage is the fixture content served for one URL.
type StubPage struct {
	HTML       string
	Screenshot []byte
	Elements   map[string][]Element
	// Failures names selectors that Hover/Click/WaitFor should report as
	// not found, for tests exercising retry/edge-case paths. Selectors
	// not listed here succeed by default — Hover/Click targets are often
	// synthesized per-index selectors (nth-of-type) that a fixture has
	// no reason to enumerate individually.
	Failures map[string]bool
}

// NewStubAdapter builds an empty stub; call AddPage to register fixtures.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{Pages: make(map[string]*StubPage)}
}

func (s *StubAdapter) AddPage(url string, page *StubPage) {
	s.Pages[url] = page
}

func (s *StubAdapter) NewContext(ctx context.Context) (Context, error) {
	if s.closed {
		return nil, fmt.Errorf("stub adapter: closed")
	}
	return &stubContext{adapter: s}, nil
}

func (s *StubAdapter) CloseAll() error {
	s.closed = true
	return nil
}

type stubContext struct {
	adapter *StubAdapter
	current string
}

func (c *stubContext) Goto(ctx context.Context, url string) error {
	if _, ok := c.adapter.Pages[url]; !ok {
		return fmt.Errorf("stub context: no fixture for %s", url)
	}
	c.current = url
	return nil
}

func (c *stubContext) page() *StubPage {
	return c.adapter.Pages[c.current]
}

func (c *stubContext) Query(ctx context.Context, selector string) ([]Element, error) {
	return c.page().Elements[selector], nil
}

func (c *stubContext) Hover(ctx context.Context, selector string) error {
	if c.page().Failures[selector] {
		return fmt.Errorf("hover: selector %q not found", selector)
	}
	return nil
}

func (c *stubContext) Click(ctx context.Context, selector string) error {
	if c.page().Failures[selector] {
		return fmt.Errorf("click: selector %q not found", selector)
	}
	return nil
}

func (c *stubContext) ScrollToBottom(ctx context.Context) error { return nil }

func (c *stubContext) Screenshot(ctx context.Context) ([]byte, error) {
	return c.page().Screenshot, nil
}

func (c *stubContext) DOMSnapshot(ctx context.Context) (string, error) {
	return c.page().HTML, nil
}

func (c *stubContext) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if c.page().Failures[selector] {
		return fmt.Errorf("wait_for: selector %q never appeared", selector)
	}
	return nil
}

func (c *stubContext) CurrentURL() string { return c.current }

func (c *stubContext) Close() error { return nil }
