// Package browseradapter wraps a stealth headless-Chrome session behind
// the narrow set of operations spec.md §4.3 names (launch, new_context,
// goto, query, hover, click, scroll_to_bottom, screenshot, dom_snapshot,
// wait_for, close_all). Grounded on the rodPool pattern in
// other_examples/15c53eb0_go-mizu-mizu__blueprints-search-pkg-dcrawler-rod.go.go:
// launcher flags to suppress the automation banner, DOMContentLoaded
// over window.load, and title-polling for anti-bot challenge pages. Links
// are read only through Query's CSS selectors; there is no in-page script
// for link extraction.
package browseradapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/romangod6/catscout/config"
)

// Adapter is the operation set an Analyzer/Extractor drives a live page
// through. A context is a single tab; Session owns the underlying
// browser process.
type Adapter interface {
	NewContext(ctx context.Context) (Context, error)
	CloseAll() error
}

// Context is one browser tab/page.
type Context interface {
	Goto(ctx context.Context, url string) error
	Query(ctx context.Context, selector string) ([]Element, error)
	Hover(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	ScrollToBottom(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	DOMSnapshot(ctx context.Context) (string, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	CurrentURL() string
	Close() error
}

// Element is a minimal handle over a matched DOM node: enough for the
// Analyzer/Extractor to read text/href without round-tripping the whole
// page object.
type Element struct {
	Text string
	HREF string
}

// Session is the production Adapter, backed by go-rod + go-rod/stealth.
type Session struct {
	browser *rod.Browser
	cfg     *config.Config
	pages   []*rod.Page
}

// Launch starts a headless Chrome process per cfg.Browser, disabling the
// automation-controlled flag and cross-origin isolation features that
// make naive automation trivially fingerprintable.
func Launch(cfg *config.Config) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Browser.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-features", "IsolateOrigins,site-per-process")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browseradapter: launch: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("browseradapter: connect: %w", err)
	}

	return &Session{browser: browser, cfg: cfg}, nil
}

// NewContext opens a fresh stealth-patched tab with the configured
// viewport.
func (s *Session) NewContext(ctx context.Context) (Context, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browseradapter: new context: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  s.cfg.Browser.ViewportW,
		Height: s.cfg.Browser.ViewportH,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browseradapter: set viewport: %w", err)
	}
	s.pages = append(s.pages, page)
	return &pageContext{page: page, cfg: s.cfg}, nil
}

// CloseAll tears pages down before the browser, then the browser before
// the driver process — reverse of construction order, so a page never
// outlives the connection it needs to close cleanly.
func (s *Session) CloseAll() error {
	for _, p := range s.pages {
		p.Close()
	}
	s.pages = nil
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

type pageContext struct {
	page *rod.Page
	cfg  *config.Config
}

// Goto navigates and waits for DOMContentLoaded rather than window.load
// — ad/tracker-heavy retail sites routinely never fire load within any
// sane timeout, and the category nav is present well before that. It
// then polls the page title for a bot-challenge interstitial
// ("Just a moment...", "Checking your browser...") for up to 8s, the
// window Cloudflare-style JS challenges resolve within.
func (c *pageContext) Goto(ctx context.Context, url string) error {
	timeout := time.Duration(c.cfg.Browser.TimeoutMS) * time.Millisecond
	if err := c.page.Context(ctx).Timeout(timeout).Navigate(url); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}

	_, _ = c.page.Timeout(timeout).Eval(`() => new Promise(r => {
		if (document.readyState !== 'loading') r();
		else document.addEventListener('DOMContentLoaded', r);
	})`)

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		info, err := c.page.Info()
		if err != nil {
			break
		}
		if !isChallengeTitle(info.Title) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	c.page.Timeout(5 * time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return nil
}

func isChallengeTitle(title string) bool {
	switch title {
	case "Just a moment...", "Checking your browser...", "Attention Required! | Cloudflare":
		return true
	default:
		return false
	}
}

func (c *pageContext) Query(ctx context.Context, selector string) ([]Element, error) {
	elements, err := c.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, nil // no match is not an error; callers treat empty as "selector absent"
	}
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		text, _ := el.Text()
		href, _ := el.Attribute("href")
		e := Element{Text: text}
		if href != nil {
			e.HREF = *href
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *pageContext) Hover(ctx context.Context, selector string) error {
	el, err := c.page.Context(ctx).Timeout(5 * time.Second).Element(selector)
	if err != nil {
		return fmt.Errorf("hover: selector %q not found: %w", selector, err)
	}
	return el.Hover()
}

func (c *pageContext) Click(ctx context.Context, selector string) error {
	el, err := c.page.Context(ctx).Timeout(5 * time.Second).Element(selector)
	if err != nil {
		return fmt.Errorf("click: selector %q not found: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ScrollToBottom repeatedly scrolls and waits for network idle, the
// pattern infinite-scroll category/product listings need to render
// fully before extraction.
func (c *pageContext) ScrollToBottom(ctx context.Context) error {
	for i := 0; i < 10; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		prevHeight, err := c.page.Eval(`() => document.body.scrollHeight`)
		if err != nil {
			return err
		}
		if _, err := c.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return err
		}
		c.page.Timeout(3 * time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
		newHeight, err := c.page.Eval(`() => document.body.scrollHeight`)
		if err != nil {
			return err
		}
		if newHeight.Value.String() == prevHeight.Value.String() {
			break
		}
	}
	return nil
}

func (c *pageContext) Screenshot(ctx context.Context) ([]byte, error) {
	return c.page.Context(ctx).Screenshot(true, nil)
}

func (c *pageContext) DOMSnapshot(ctx context.Context) (string, error) {
	return c.page.Context(ctx).HTML()
}

func (c *pageContext) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := c.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (c *pageContext) CurrentURL() string {
	info, err := c.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (c *pageContext) Close() error {
	return c.page.Close()
}
