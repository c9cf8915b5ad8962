package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func TestGraph(t *testing.T) {
	t.Parallel()

	t.Run("add is write-once", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		if !g.Add("https://example.com", []Link{{Target: "https://example.com/a"}}) {
			t.Fatal("expected first add to succeed")
		}
		if g.Add("https://example.com", []Link{{Target: "https://example.com/b"}}) {
			t.Error("expected second add to be rejected")
		}

		targets := g.Targets("https://example.com")
		if len(targets) != 1 || targets[0] != "https://example.com/a" {
			t.Errorf("unexpected targets: %v", targets)
		}
	})

	t.Run("stored links are isolated from the caller slice", func(t *testing.T) {
		t.Parallel()

		links := []Link{{Target: "https://example.com/a"}}
		g := NewGraph()
		g.Add("https://example.com", links)
		links[0].Target = "mutated"

		if got := g.Targets("https://example.com")[0]; got != "https://example.com/a" {
			t.Errorf("graph was mutated through caller slice: %q", got)
		}
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		for _, u := range []string{"c", "a", "b"} {
			g.Add(u, nil)
		}

		urls := g.URLs()
		want := []string{"c", "a", "b"}
		for i := range want {
			if urls[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, urls)
			}
		}
	})

	t.Run("marshals keys in crawl order and round-trips", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		g.Add("https://example.com", []Link{{Target: "https://example.com/b", AnchorText: "B"}})
		g.Add("https://example.com/b", nil)

		data, err := json.Marshal(g)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		want := `{"https://example.com":[{"target":"https://example.com/b","anchor_text":"B"}],"https://example.com/b":[]}`
		if string(data) != want {
			t.Errorf("got %s\nwant %s", data, want)
		}

		decoded := NewGraph()
		if err := json.Unmarshal(data, decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if decoded.Len() != 2 || decoded.EdgeCount() != 1 {
			t.Errorf("unexpected decoded graph: len=%d edges=%d", decoded.Len(), decoded.EdgeCount())
		}
	})

	t.Run("concurrent adds of the same key keep one entry", func(t *testing.T) {
		t.Parallel()

		g := NewGraph()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if g.Add("https://example.com", []Link{{Target: fmt.Sprintf("https://example.com/%d", i)}}) {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 || g.Len() != 1 {
			t.Errorf("expected exactly one winner, got wins=%d len=%d", wins, g.Len())
		}
	})
}

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	t.Run("mark claims once", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		if !v.MarkIfNotVisited("https://example.com") {
			t.Error("expected first mark to claim the URL")
		}
		if v.MarkIfNotVisited("https://example.com") {
			t.Error("expected second mark to fail")
		}
		if !v.Contains("https://example.com") {
			t.Error("expected URL to be visited")
		}
	})

	t.Run("concurrent marks have exactly one winner", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v.MarkIfNotVisited("https://example.com/x") {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("expected 1 winner, got %d", wins)
		}
		if v.Len() != 1 {
			t.Errorf("expected 1 visited URL, got %d", v.Len())
		}
	})
}

func TestGraphSnapshot(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Add("https://example.com", []Link{{Target: "https://example.com/a", AnchorText: "a"}})
	g.Add("https://example.com/a", nil)

	snap := g.Snapshot()
	g.Add("https://example.com/b", nil)
	snap["https://example.com"][0].Target = "changed"

	if len(snap) != 2 {
		t.Errorf("snapshot should not see later adds, len=%d", len(snap))
	}
	if got := g.Targets("https://example.com"); got[0] != "https://example.com/a" {
		t.Errorf("mutating the snapshot changed the graph: %v", got)
	}
	if links, ok := snap["https://example.com/a"]; !ok || len(links) != 0 {
		t.Errorf("page without links should map to an empty slice, got %v, %v", links, ok)
	}
}
