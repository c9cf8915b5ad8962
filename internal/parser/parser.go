// Package parser extracts links from HTML documents.
package parser

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/atlas/internal/model"
)

// ErrInvalidBaseURL is returned when the base URL cannot be parsed.
var ErrInvalidBaseURL = errors.New("invalid base url")

// skippedSchemes are href prefixes that never point at a fetchable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parser extracts hyperlinks from HTML content.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. More maintainable than complex regex patterns
//
// A Parser has no state and is safe for concurrent use.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// Result contains the information extracted from one HTML page.
type Result struct {
	// Title is the text of the first <title> element.
	Title string
	// Links are the page's hyperlinks in document order, deduplicated by target.
	Links []model.Link
}

// ExtractLinks returns the absolute, fragment-free targets of every
// <a href> in body, in document order. Relative links are resolved against
// baseURL, or against the document's <base href> when present. Each target
// appears once; the anchor text of its first occurrence is kept.
func (p *Parser) ExtractLinks(body io.Reader, baseURL string) ([]model.Link, error) {
	result, err := p.Parse(body, baseURL)
	if err != nil {
		return nil, err
	}
	return result.Links, nil
}

// Parse parses an HTML document and extracts its title and links.
func (p *Parser) Parse(body io.Reader, baseURL string) (*Result, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	w := &walker{
		base:   base,
		seen:   make(map[string]struct{}),
		result: &Result{Links: make([]model.Link, 0)},
	}
	w.walk(doc)

	return w.result, nil
}

type walker struct {
	base     *url.URL
	baseSeen bool
	seen     map[string]struct{}
	result   *Result
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "base":
			// Only the first <base href> counts.
			if !w.baseSeen {
				if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
					if u, err := url.Parse(href); err == nil {
						w.base = w.base.ResolveReference(u)
						w.baseSeen = true
					}
				}
			}
		case "title":
			if w.result.Title == "" {
				w.result.Title = collapseSpace(nodeText(n))
			}
		case "a":
			w.addLink(n)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *walker) addLink(n *html.Node) {
	target := w.resolveURL(getAttr(n, "href"))
	if target == "" {
		return
	}
	if _, dup := w.seen[target]; dup {
		return
	}
	w.seen[target] = struct{}{}
	w.result.Links = append(w.result.Links, model.Link{
		Target:     target,
		AnchorText: collapseSpace(nodeText(n)),
	})
}

// resolveURL resolves href against the current base and strips the fragment.
// http(s) targets are normalized; other absolute schemes are kept as-is so
// the policy can report them as malformed.
func (w *walker) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := w.base.ResolveReference(u)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if normalized, err := model.NormalizeURL(resolved.String()); err == nil {
		return normalized
	}
	return resolved.String()
}

// nodeText concatenates the text nodes below n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

// collapseSpace trims and collapses whitespace runs, and puts the text in
// NFC form so that visually identical anchors compare equal.
func collapseSpace(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
