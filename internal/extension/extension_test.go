package extension

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/log"
	"github.com/nao1215/atlas/internal/model"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  Example Domain </title>
  <link rel="stylesheet" href="https://cdn.example.net/site.css">
  <script src="https://analytics.tracker.io/t.js"></script>
  <script>var hidden = "not visible";</script>
</head>
<body>
  <h1>Hello</h1>
  <p>Some   <b>bold</b> text.</p>
  <a href="/local">local</a>
  <a href="https://Other.com/page">other</a>
  <a href="mailto:me@example.com">mail</a>
  <img src="//img.example.org/logo.png">
</body>
</html>`

func htmlPage(content string) *model.Page {
	p := &model.Page{
		URL:         "https://example.com",
		Depth:       1,
		StatusCode:  200,
		ContentType: "text/html",
		Content:     content,
	}
	p.ComputeHash()
	return p
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("all built-in hooks", func(t *testing.T) {
		t.Parallel()

		hooks, err := Build(Names(), Options{Logger: log.Discard()})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		var names []string
		for _, h := range hooks {
			names = append(names, h.Name())
		}
		if !slices.Equal(names, Names()) {
			t.Errorf("names = %v, want %v", names, Names())
		}
	})

	t.Run("case and duplicates", func(t *testing.T) {
		t.Parallel()

		hooks, err := Build([]string{" Title", "title", "", "LOG"}, Options{})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if len(hooks) != 2 {
			t.Errorf("got %d hooks, want 2", len(hooks))
		}
	})

	t.Run("unknown hook", func(t *testing.T) {
		t.Parallel()

		if _, err := Build([]string{"title", "screenshot"}, Options{}); !errors.Is(err, ErrUnknownHook) {
			t.Errorf("Build() error = %v, want ErrUnknownHook", err)
		}
	})
}

func TestTitleHook(t *testing.T) {
	t.Parallel()

	h := NewTitleHook()
	cc := hook.NewContext("https://example.com")

	t.Run("records title and text length", func(t *testing.T) {
		t.Parallel()

		rec, err := h.OnPage(t.Context(), htmlPage(samplePage), cc)
		if err != nil {
			t.Fatalf("OnPage() error = %v", err)
		}
		if rec["title"] != "Example Domain" {
			t.Errorf("title = %q", rec["title"])
		}
		if rec["url"] != "https://example.com" || rec["depth"] != 1 {
			t.Errorf("unexpected record: %v", rec)
		}
		// "Example Domain Hello Some bold text. local other mail"
		if rec["length"] != 53 {
			t.Errorf("length = %v, want 53", rec["length"])
		}
	})

	t.Run("missing title", func(t *testing.T) {
		t.Parallel()

		rec, err := h.OnPage(t.Context(), htmlPage("<p>no title</p>"), cc)
		if err != nil {
			t.Fatalf("OnPage() error = %v", err)
		}
		if rec["title"] != NoTitle {
			t.Errorf("title = %q, want %q", rec["title"], NoTitle)
		}
	})

	t.Run("non-HTML pages are ignored", func(t *testing.T) {
		t.Parallel()

		page := htmlPage("plain")
		page.ContentType = "text/plain"
		rec, err := h.OnPage(t.Context(), page, cc)
		if err != nil || rec != nil {
			t.Errorf("OnPage() = %v, %v; want nil, nil", rec, err)
		}
	})
}

func TestMarkdownHook(t *testing.T) {
	t.Parallel()

	cc := hook.NewContext("https://example.com")

	t.Run("converts html", func(t *testing.T) {
		t.Parallel()

		rec, err := NewMarkdownHook().OnPage(t.Context(), htmlPage(samplePage), cc)
		if err != nil {
			t.Fatalf("OnPage() error = %v", err)
		}
		out, _ := rec["markdown"].(string)
		if !strings.Contains(out, "# Hello") {
			t.Errorf("markdown missing heading:\n%s", out)
		}
		if !strings.Contains(out, "**bold**") {
			t.Errorf("markdown missing bold text:\n%s", out)
		}
		if strings.Contains(out, "not visible") {
			t.Errorf("script content leaked into markdown:\n%s", out)
		}
		if rec["hash"] == "" || rec["truncated"] != false {
			t.Errorf("unexpected record: %v", rec)
		}
	})

	t.Run("truncates to max length", func(t *testing.T) {
		t.Parallel()

		rec, err := NewMarkdownHook(WithMaxLength(5)).OnPage(t.Context(), htmlPage("<p>héllo world</p>"), cc)
		if err != nil {
			t.Fatalf("OnPage() error = %v", err)
		}
		if rec["markdown"] != "héllo" || rec["truncated"] != true {
			t.Errorf("unexpected record: %v", rec)
		}
	})
}

func TestExternalHook(t *testing.T) {
	t.Parallel()

	h := NewExternalHook()
	cc := hook.NewContext("https://example.com")

	rec, err := h.OnPage(t.Context(), htmlPage(samplePage), cc)
	if err != nil {
		t.Fatalf("OnPage() error = %v", err)
	}

	want := map[string][]string{
		"links":       {"other.com"},
		"scripts":     {"analytics.tracker.io"},
		"images":      {"img.example.org"},
		"stylesheets": {"cdn.example.net"},
	}
	for kind, hosts := range want {
		got, _ := rec[kind].([]string)
		if !slices.Equal(got, hosts) {
			t.Errorf("%s = %v, want %v", kind, got, hosts)
		}
	}

	if _, err := h.OnPage(t.Context(), htmlPage(`<a href="https://other.com/x">x</a>`), cc); err != nil {
		t.Fatalf("OnPage() error = %v", err)
	}
	domains := ExternalDomains(cc)
	if domains["other.com"] != 2 || domains["cdn.example.net"] != 1 {
		t.Errorf("ExternalDomains() = %v", domains)
	}
	domains["other.com"] = 100
	if got := ExternalDomains(cc)["other.com"]; got != 2 {
		t.Errorf("ExternalDomains() must return a copy, stored count became %d", got)
	}

	rec, err = h.OnPage(t.Context(), htmlPage(`<a href="/only/local">x</a>`), cc)
	if err != nil || rec != nil {
		t.Errorf("page without external references: %v, %v", rec, err)
	}
}

func TestMetricsHook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metrics", "atlas.prom")
	h := NewMetricsHook(WithTextfile(path), WithMetricsLogger(log.Discard()))
	cc := hook.NewContext("https://example.com")
	ctx := t.Context()

	if err := h.OnStart(ctx, cc); err != nil {
		t.Fatal(err)
	}
	if _, err := h.OnPage(ctx, htmlPage(samplePage), cc); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.OnLinkDiscovered(ctx, "a", "b", "", cc); v != hook.Pass {
		t.Errorf("verdict = %v, want Pass", v)
	}
	_ = h.OnPageError(ctx, "https://example.com/x", errors.New("boom"), cc)
	_ = h.OnPageSkipped(ctx, "https://other.com", model.SkipOutOfDomain, cc)
	_ = h.OnPageSkipped(ctx, "https://other.com/2", model.SkipOutOfDomain, cc)

	summary := &model.Summary{Elapsed: 1500 * time.Millisecond, FinishedAt: time.Unix(1700000000, 0)}
	if err := h.OnFinish(ctx, summary, cc); err != nil {
		t.Fatalf("OnFinish() error = %v", err)
	}

	if got := testutil.ToFloat64(h.pages); got != 1 {
		t.Errorf("pages = %v", got)
	}
	if got := testutil.ToFloat64(h.skipped.WithLabelValues("out_of_domain")); got != 2 {
		t.Errorf("skipped = %v", got)
	}
	if got := testutil.ToFloat64(h.duration); got != 1.5 {
		t.Errorf("duration = %v", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("textfile not written: %v", err)
	}
	for _, line := range []string{
		"atlas_pages_fetched_total 1",
		"atlas_page_errors_total 1",
		"atlas_links_accepted_total 1",
		`atlas_pages_skipped_total{reason="out_of_domain"} 2`,
		"atlas_runs_total 1",
	} {
		if !strings.Contains(string(data), line) {
			t.Errorf("textfile missing %q", line)
		}
	}
}

func TestMetricsHook_SeparateRegistries(t *testing.T) {
	t.Parallel()

	a, b := NewMetricsHook(), NewMetricsHook()
	if a.Registry() == b.Registry() {
		t.Error("each hook should own its registry")
	}
	if err := a.OnFinish(context.Background(), &model.Summary{}, nil); err != nil {
		t.Errorf("OnFinish() without textfile error = %v", err)
	}
}

func TestLogHook(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewLogHook(log.NewLogger(&buf, true))
	cc := hook.NewContext("https://example.com")
	ctx := t.Context()

	_ = h.OnStart(ctx, cc)
	_, _ = h.OnPage(ctx, htmlPage("<p>x</p>"), cc)
	_ = h.OnPageError(ctx, "https://example.com/broken", errors.New("status 500"), cc)
	_ = h.OnPageSkipped(ctx, "https://other.com", model.SkipOutOfDomain, cc)
	_ = h.OnFinish(ctx, &model.Summary{PagesFetched: 3}, cc)

	out := buf.String()
	for _, want := range []string{
		"run started", "run_id=" + cc.RunID(), "page error", "status 500",
		"page skipped", "reason=out_of_domain", "run finished", "pages=3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestExternalDomains_ConcurrentWithHook(t *testing.T) {
	t.Parallel()

	h := NewExternalHook()
	cc := hook.NewContext("https://example.com")
	if got := ExternalDomains(cc); got != nil {
		t.Errorf("ExternalDomains() before any page = %v, want nil", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.OnPage(context.Background(), htmlPage(`<a href="https://other.com/x">x</a>`), cc)
		}()
		go func() {
			defer wg.Done()
			for range ExternalDomains(cc) {
			}
		}()
	}
	wg.Wait()

	if got := ExternalDomains(cc)["other.com"]; got != 20 {
		t.Errorf("other.com count = %d, want 20", got)
	}
}
