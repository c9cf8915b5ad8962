package model

import (
	"bytes"
	"encoding/json"
	"sync"
)

// Graph maps each crawled URL to the ordered links accepted on that page.
//
// The graph is append-only: a URL can be added exactly once, and its link
// slice is never modified afterwards. Key insertion order is remembered so
// snapshots list pages in crawl order.
type Graph struct {
	mu    sync.RWMutex
	order []string
	edges map[string][]Link
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		order: make([]string, 0),
		edges: make(map[string][]Link),
	}
}

// Add records the outgoing links of pageURL.
// It returns false without modifying the graph if pageURL is already present.
func (g *Graph) Add(pageURL string, links []Link) bool {
	stored := make([]Link, len(links))
	copy(stored, links)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[pageURL]; ok {
		return false
	}
	g.edges[pageURL] = stored
	g.order = append(g.order, pageURL)
	return true
}

// Has reports whether pageURL is a key of the graph.
func (g *Graph) Has(pageURL string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[pageURL]
	return ok
}

// Links returns a copy of the links recorded for pageURL.
func (g *Graph) Links(pageURL string) ([]Link, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	links, ok := g.edges[pageURL]
	if !ok {
		return nil, false
	}
	out := make([]Link, len(links))
	copy(out, links)
	return out, true
}

// Targets returns the target URLs recorded for pageURL, in discovery order.
func (g *Graph) Targets(pageURL string) []string {
	links, _ := g.Links(pageURL)
	targets := make([]string, len(links))
	for i, l := range links {
		targets[i] = l.Target
	}
	return targets
}

// Len returns the number of pages in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// EdgeCount returns the total number of links across all pages.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, links := range g.edges {
		n += len(links)
	}
	return n
}

// URLs returns the graph keys in insertion order.
func (g *Graph) URLs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Snapshot returns a deep copy of the graph as a plain map.
func (g *Graph) Snapshot() map[string][]Link {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]Link, len(g.edges))
	for k, links := range g.edges {
		cp := make([]Link, len(links))
		copy(cp, links)
		out[k] = cp
	}
	return out
}

// MarshalJSON encodes the graph as a JSON object whose keys appear in
// crawl order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(g.edges[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a graph snapshot. Key order follows the encoded
// object order.
func (g *Graph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}

	fresh := NewGraph()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var links []Link
		if err := dec.Decode(&links); err != nil {
			return err
		}
		fresh.Add(key, links)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.order = fresh.order
	g.edges = fresh.edges
	return nil
}
