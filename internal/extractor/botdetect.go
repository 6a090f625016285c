package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/cerrors"
)

// challengeSelectors are DOM markers of a known anti-bot interstitial.
var challengeSelectors = []string{
	"#challenge-form",
	".cf-browser-verification",
	"#cf-wrapper",
	"#px-captcha",
	"div[class*=hcaptcha]",
}

// challengeTitlePhrases holds browseradapter's isChallengeTitle phrases
// plus "access denied" — kept separate deliberately: the Extractor classifies bot detection
// from whatever DOM it was handed, independent of whether the Browser
// Adapter already polled past a challenge during goto.
var challengeTitlePhrases = []string{
	"just a moment",
	"checking your browser",
	"attention required",
	"access denied",
}

var titleTagRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// checkBotDetection raises BotDetectionError if the page's DOM contains
// any element matching a known challenge selector or its title matches the
// anti-bot phrase list (spec.md §4.6).
func checkBotDetection(ctx context.Context, pageCtx browseradapter.Context, url string) error {
	for _, sel := range challengeSelectors {
		elements, err := pageCtx.Query(ctx, sel)
		if err == nil && len(elements) > 0 {
			return &cerrors.BotDetectionError{URL: url, Reason: "challenge selector present: " + sel}
		}
	}

	html, err := pageCtx.DOMSnapshot(ctx)
	if err != nil {
		return nil
	}
	match := titleTagRe.FindStringSubmatch(html)
	if len(match) < 2 {
		return nil
	}
	title := strings.ToLower(strings.TrimSpace(match[1]))
	for _, phrase := range challengeTitlePhrases {
		if strings.Contains(title, phrase) {
			return &cerrors.BotDetectionError{URL: url, Reason: "title matches anti-bot phrase: " + phrase}
		}
	}
	return nil
}
