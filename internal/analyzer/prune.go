// Package analyzer produces an extraction Strategy for a live page
// (spec.md §4.5): cookie/hidden-nav dismissal, screenshot + pruned-DOM
// capture, one LLM call with schema validation and a strict retry, a
// parallel heuristic probe, and a generic_links fallback when nothing
// else works. Grounded on internal/crawler/parser.go's goquery usage for
// DOM traversal and its x/net/html-based cleanHTML comment/script strip.
package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultDOMByteCap is the §4.5 default pruned-DOM size cap (48 KB).
const DefaultDOMByteCap = 48 * 1024

var navClassTokens = []string{"menu", "category", "nav", "drawer", "sidebar"}

// PruneDOM reduces html to the first <nav>, <header>, <aside>, and any
// element whose class/id token matches the navigation vocabulary, then
// truncates the serialized result to byteCap bytes. script/style content
// and comments are stripped first so neither counts against the cap nor
// reaches the LLM prompt.
func PruneDOM(rawHTML string, byteCap int) (string, error) {
	cleaned, err := stripScriptsAndComments(rawHTML)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, tag := range []string{"nav", "header", "aside"} {
		if first := doc.Find(tag).First(); first.Length() > 0 {
			writeSelection(&b, first)
		}
	}

	doc.Find("*").FilterFunction(func(i int, s *goquery.Selection) bool {
		return matchesNavTokens(s)
	}).Each(func(i int, s *goquery.Selection) {
		writeSelection(&b, s)
	})

	out := b.String()
	if byteCap <= 0 {
		byteCap = DefaultDOMByteCap
	}
	if len(out) > byteCap {
		out = out[:byteCap]
	}
	return out, nil
}

func matchesNavTokens(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	haystack := strings.ToLower(class + " " + id)
	for _, token := range navClassTokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

func writeSelection(b *strings.Builder, s *goquery.Selection) {
	outer, err := goquery.OuterHtml(s)
	if err != nil {
		return
	}
	b.WriteString(outer)
	b.WriteString("\n")
}

// stripScriptsAndComments walks the parse tree removing <script>, <style>,
// and comment nodes before the pruning pass runs, mirroring the teacher's
// cleanHTML. Navigation markup never lives inside either, and both waste
// byteCap budget that real nav content should have.
func stripScriptsAndComments(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		child := n.FirstChild
		for child != nil {
			next := child.NextSibling
			switch {
			case child.Type == html.CommentNode:
				n.RemoveChild(child)
			case child.Type == html.ElementNode && (child.Data == "script" || child.Data == "style"):
				n.RemoveChild(child)
			default:
				walk(child)
			}
			child = next
		}
	}
	walk(doc)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return "", err
	}
	return b.String(), nil
}
