package extension

import (
	"context"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

// ExternalDomainsKey is the crawl context key holding every external host
// seen during the run, as a map[string]int of host to page count.
const ExternalDomainsKey = "external_domains"

// ExternalHook records hosts, other than the page's own, that a page links
// to or loads resources from.
//
// Design decision: We inspect the page markup instead of the accepted links
// because:
//  1. Links to other hosts are usually rejected by the domain policy
//  2. Scripts and images are never crawled but still reference other hosts
type ExternalHook struct {
	hook.Base
}

// NewExternalHook creates an ExternalHook.
func NewExternalHook() *ExternalHook {
	return &ExternalHook{}
}

// Name returns the hook name.
func (h *ExternalHook) Name() string {
	return NameExternal
}

// resourceSelectors maps an element selector to the attribute holding its URL.
var resourceSelectors = []struct {
	kind     string
	selector string
	attr     string
}{
	{kind: "links", selector: "a[href]", attr: "href"},
	{kind: "scripts", selector: "script[src]", attr: "src"},
	{kind: "images", selector: "img[src]", attr: "src"},
	{kind: "stylesheets", selector: `link[rel="stylesheet"][href]`, attr: "href"},
}

// OnPage returns {url, links, scripts, images, stylesheets}, each a sorted
// list of external hosts. Pages without external references produce no record.
func (h *ExternalHook) OnPage(_ context.Context, page *model.Page, cc *hook.Context) (model.Record, error) {
	if !page.IsHTML() {
		return nil, nil
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, err
	}

	own := strings.ToLower(base.Hostname())
	record := model.Record{"url": page.URL}
	all := make(map[string]bool)
	for _, rs := range resourceSelectors {
		hosts := make(map[string]bool)
		doc.Find(rs.selector).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(rs.attr)
			if host := externalHost(base, raw); host != "" && host != own {
				hosts[host] = true
				all[host] = true
			}
		})
		if len(hosts) > 0 {
			record[rs.kind] = sortedKeys(hosts)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	cc.Update(ExternalDomainsKey, func(old any) any {
		counts, _ := old.(map[string]int)
		if counts == nil {
			counts = make(map[string]int)
		}
		for host := range all {
			counts[host]++
		}
		return counts
	})
	return record, nil
}

// externalHost resolves raw against base and returns its lower-cased host,
// or "" for non-http(s) references.
func externalHost(base *url.URL, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ExternalDomains returns a copy of the external host counts collected in cc.
// It is safe to call while the crawl is still running.
func ExternalDomains(cc *hook.Context) map[string]int {
	var counts map[string]int
	cc.View(ExternalDomainsKey, func(v any, _ bool) {
		if m, ok := v.(map[string]int); ok {
			counts = maps.Clone(m)
		}
	})
	return counts
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
