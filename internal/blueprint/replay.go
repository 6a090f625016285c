// internal/blueprint/replay.go
package blueprint

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/romangod6/catscout/internal/models"
)

// sitemapDoc mirrors the XML shape of a standard sitemap.xml entry list.
type sitemapDoc struct {
	XMLName xml.Name      `xml:"urlset"`
	URLs    []sitemapNode `xml:"url"`
}

type sitemapNode struct {
	Loc string `xml:"loc"`
}

// ReplayResult reports whether a blueprint's recorded link count for a
// retailer's root page still roughly matches what's live, without paying
// for a browser launch.
type ReplayResult struct {
	LinksSeen       int
	ExpectedLinks   int
	WithinTolerance bool
}

// Replayer re-checks a saved blueprint's sitemap/generic_links strategy
// with a plain HTTP collector instead of an interactive browser session.
// A sitemap or a flat anchor list needs no JS execution or hover/click
// simulation, so go-rod is unnecessary overhead for this one check.
type Replayer struct {
	userAgent string
	timeout   time.Duration
}

func NewReplayer(userAgent string, timeout time.Duration) *Replayer {
	if userAgent == "" {
		userAgent = "catscout-replay/1.0"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Replayer{userAgent: userAgent, timeout: timeout}
}

// CanReplay reports whether bp's navigation type is cheap enough to
// re-check without a browser.
func CanReplay(navType models.NavigationType) bool {
	return navType == models.NavSitemap || navType == models.NavGenericLinks
}

// Verify counts anchors matching the blueprint's recorded category_link
// selector against the live root page (or, for a sitemap strategy, the
// sitemap document itself) and compares it against the category count
// the blueprint last recorded at depth 0.
func (r *Replayer) Verify(bp *models.Blueprint) (ReplayResult, error) {
	navType := bp.ExtractionStrategy.NavigationType
	if !CanReplay(navType) {
		return ReplayResult{}, fmt.Errorf("blueprint: navigation_type %q is not replayable without a browser", navType)
	}

	expected := bp.ExtractionStats.ByDepth[0]

	if navType == models.NavSitemap {
		count, err := r.countSitemapURLs(bp.Metadata.SiteURL)
		if err != nil {
			return ReplayResult{}, err
		}
		return ReplayResult{LinksSeen: count, ExpectedLinks: expected, WithinTolerance: withinTolerance(count, expected)}, nil
	}

	count, err := r.countGenericLinks(bp.Metadata.SiteURL, bp.ExtractionStrategy.Selectors.CategoryLink)
	if err != nil {
		return ReplayResult{}, err
	}
	return ReplayResult{LinksSeen: count, ExpectedLinks: expected, WithinTolerance: withinTolerance(count, expected)}, nil
}

func (r *Replayer) countGenericLinks(siteURL, selector string) (int, error) {
	if selector == "" {
		selector = "a"
	}
	c := colly.NewCollector(colly.UserAgent(r.userAgent))
	c.SetRequestTimeout(r.timeout)

	count := 0
	c.OnHTML(selector, func(_ *colly.HTMLElement) {
		count++
	})

	var visitErr error
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(siteURL); err != nil {
		return 0, fmt.Errorf("blueprint: replay visit failed: %w", err)
	}
	c.Wait()
	if visitErr != nil {
		return 0, fmt.Errorf("blueprint: replay fetch failed: %w", visitErr)
	}
	return count, nil
}

func (r *Replayer) countSitemapURLs(sitemapURL string) (int, error) {
	client := &http.Client{Timeout: r.timeout}
	resp, err := client.Get(sitemapURL)
	if err != nil {
		return 0, fmt.Errorf("blueprint: sitemap fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("blueprint: sitemap fetch returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("blueprint: reading sitemap body failed: %w", err)
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("blueprint: parsing sitemap xml failed: %w", err)
	}
	return len(doc.URLs), nil
}

// withinTolerance accepts a live count from 80% of what the blueprint
// recorded up to 120% of it plus one (both bounds rounded down before the
// plus one) — small catalog churn between runs shouldn't force a full
// re-analysis. An expected count of zero accepts only zero.
func withinTolerance(got, expected int) bool {
	if expected == 0 {
		return got == 0
	}
	lower := expected * 8 / 10
	upper := expected*12/10 + 1
	return got >= lower && got <= upper
}
