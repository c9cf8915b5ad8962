package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/atlas/internal/model"
)

func summaryWithGraph(runID string, pages map[string][]string, errs ...string) *model.Summary {
	g := model.NewGraph()
	for source, targets := range pages {
		links := make([]model.Link, len(targets))
		for i, target := range targets {
			links[i] = model.Link{Target: target}
		}
		g.Add(source, links)
	}
	s := &model.Summary{RunID: runID, SeedURL: "https://example.com", Graph: g, PagesFetched: g.Len()}
	for _, u := range errs {
		s.Errors = append(s.Errors, model.PageError{URL: u})
	}
	return s
}

func TestCompareRuns(t *testing.T) {
	t.Parallel()

	previous := summaryWithGraph("old", map[string][]string{
		"https://example.com":      {"https://example.com/a", "https://example.com/b"},
		"https://example.com/a":    nil,
		"https://example.com/b":    nil,
		"https://example.com/gone": nil,
	}, "https://example.com/b")
	current := summaryWithGraph("new", map[string][]string{
		"https://example.com":     {"https://example.com/a", "https://example.com/c"},
		"https://example.com/a":   nil,
		"https://example.com/b":   nil,
		"https://example.com/c":   nil,
		"https://example.com/new": nil,
	}, "https://example.com/c")

	result := compareRuns(previous, current)

	if result.Change != changeGrown {
		t.Errorf("expected %s, got %s", changeGrown, result.Change)
	}
	if got := strings.Join(result.AddedPages, ","); got != "https://example.com/c,https://example.com/new" {
		t.Errorf("unexpected added pages: %s", got)
	}
	if got := strings.Join(result.RemovedPages, ","); got != "https://example.com/gone" {
		t.Errorf("unexpected removed pages: %s", got)
	}
	if result.UnchangedPages != 3 {
		t.Errorf("expected 3 unchanged pages, got %d", result.UnchangedPages)
	}
	if len(result.AddedLinks) != 1 || result.AddedLinks[0].Target != "https://example.com/c" {
		t.Errorf("unexpected added links: %v", result.AddedLinks)
	}
	if len(result.RemovedLinks) != 1 || result.RemovedLinks[0].Target != "https://example.com/b" {
		t.Errorf("unexpected removed links: %v", result.RemovedLinks)
	}
	if len(result.NewErrors) != 1 || result.NewErrors[0] != "https://example.com/c" {
		t.Errorf("unexpected new errors: %v", result.NewErrors)
	}
	if len(result.FixedErrors) != 1 || result.FixedErrors[0] != "https://example.com/b" {
		t.Errorf("unexpected fixed errors: %v", result.FixedErrors)
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := map[int]string{3: "+3", -2: "-2", 0: "0"}
	for delta, want := range tests {
		if got := formatDelta(delta); got != want {
			t.Errorf("formatDelta(%d) = %q, want %q", delta, got, want)
		}
	}
}

func TestCompareCommand(t *testing.T) {
	t.Parallel()

	t.Run("needs two runs", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dir := t.TempDir()
		crawlSite(t, site, dir)

		_, err := executeCmd(t, "compare", "-s", dir, site.server.URL)
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("expected 'at least 2 runs' error, got %v", err)
		}
	})

	t.Run("reports new pages", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dir := t.TempDir()
		crawlSite(t, site, dir)
		site.extended.Store(true)
		crawlSite(t, site, dir)

		out, err := executeCmd(t, "compare", "-s", dir, "-f", "json", site.server.URL)
		if err != nil {
			t.Fatalf("compare failed: %v", err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(result.AddedPages) != 1 || result.AddedPages[0] != site.server.URL+"/new" {
			t.Errorf("expected /new to be added, got %v", result.AddedPages)
		}
		if result.Change != changeGrown {
			t.Errorf("expected %s, got %s", changeGrown, result.Change)
		}

		out, err = executeCmd(t, "compare", "-s", dir, site.server.URL)
		if err != nil {
			t.Fatalf("compare failed: %v", err)
		}
		if !strings.Contains(out, "[+] "+site.server.URL+"/new") {
			t.Errorf("expected new page in text output, got:\n%s", out)
		}

		out, err = executeCmd(t, "compare", "-s", dir, "-f", "markdown", site.server.URL)
		if err != nil {
			t.Fatalf("compare failed: %v", err)
		}
		if !strings.Contains(out, "## New Pages (1)") {
			t.Errorf("expected markdown section, got:\n%s", out)
		}
	})

	t.Run("rejects run of another seed", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dir := t.TempDir()
		crawlSite(t, site, dir)
		runID := latestRunID(t, dir)

		_, err := executeCmd(t, "compare", "-s", dir, "--with-run", runID, "https://other.example")
		if err == nil {
			t.Error("expected error for a run of another seed")
		}
	})
}
