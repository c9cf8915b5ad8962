package hook

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/atlas/internal/log"
	"github.com/nao1215/atlas/internal/model"
)

// recorder appends "<name>:<event>" to a shared log.
type recorder struct {
	Base
	name string
	mu   *sync.Mutex
	log  *[]string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, r.name+":"+event)
}

func (r *recorder) OnStart(context.Context, *Context) error {
	r.add("start")
	return nil
}

func (r *recorder) OnPage(_ context.Context, page *model.Page, _ *Context) (model.Record, error) {
	r.add("page")
	return model.Record{"hook": r.name, "url": page.URL}, nil
}

func (r *recorder) OnFinish(context.Context, *model.Summary, *Context) error {
	r.add("finish")
	return nil
}

// onlyName implements no event interface.
type onlyName struct{}

func (onlyName) Name() string { return "only-name" }

func newTestPipeline() *Pipeline {
	return New(WithLogger(log.Discard()))
}

func TestPipeline_RegistrationOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []string
	p := newTestPipeline()
	p.Register(
		&recorder{name: "a", mu: &mu, log: &events},
		&recorder{name: "b", mu: &mu, log: &events},
		onlyName{},
	)

	cc := NewContext("https://example.com")
	p.Start(t.Context(), cc)
	records := p.Page(t.Context(), &model.Page{URL: "https://example.com"}, cc)
	p.Finish(t.Context(), &model.Summary{}, cc)

	want := []string{"a:start", "b:start", "a:page", "b:page", "a:finish", "b:finish"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
	if len(records) != 2 || records[0]["hook"] != "a" || records[1]["hook"] != "b" {
		t.Errorf("unexpected records: %v", records)
	}
	if got := strings.Join(p.Names(), ","); got != "a,b,only-name" {
		t.Errorf("unexpected names: %s", got)
	}
	if p.Len() != 3 {
		t.Errorf("expected 3 hooks, got %d", p.Len())
	}
}

// TestPipeline_VetoLaw checks that the first veto wins and later hooks
// are not consulted.
func TestPipeline_VetoLaw(t *testing.T) {
	t.Parallel()

	var consulted []string
	mk := func(name string, v Verdict) Hook {
		return &Funcs{
			HookName: name,
			Link: func(_ context.Context, _, _, _ string, _ *Context) (Verdict, error) {
				consulted = append(consulted, name)
				return v, nil
			},
		}
	}

	t.Run("veto after allow rejects", func(t *testing.T) {
		p := newTestPipeline()
		consulted = nil
		p.Register(mk("allow", Allow), mk("veto", Veto), mk("never", Pass))

		vetoed, by := p.Link(t.Context(), "https://a.com", "https://a.com/x", "x", NewContext("https://a.com"))
		if !vetoed || by != "veto" {
			t.Errorf("expected veto by 'veto', got %v %q", vetoed, by)
		}
		if strings.Join(consulted, ",") != "allow,veto" {
			t.Errorf("expected short-circuit, consulted %v", consulted)
		}
	})

	t.Run("no veto accepts", func(t *testing.T) {
		p := newTestPipeline()
		consulted = nil
		p.Register(mk("pass", Pass), mk("allow", Allow))

		vetoed, _ := p.Link(t.Context(), "https://a.com", "https://a.com/x", "x", NewContext("https://a.com"))
		if vetoed {
			t.Error("expected link to be accepted")
		}
	})

	t.Run("empty pipeline accepts", func(t *testing.T) {
		p := newTestPipeline()
		vetoed, _ := p.Link(t.Context(), "https://a.com", "https://a.com/x", "", NewContext("https://a.com"))
		if vetoed {
			t.Error("expected link to be accepted")
		}
	})
}

// TestPipeline_FailureIsolation checks that errors and panics are logged
// and treated as no opinion.
func TestPipeline_FailureIsolation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := New(WithLogger(log.NewLogger(&buf, true)))

	var afterCalled bool
	p.Register(
		&Funcs{
			HookName: "panicker",
			Page: func(context.Context, *model.Page, *Context) (model.Record, error) {
				panic("boom")
			},
			Link: func(context.Context, string, string, string, *Context) (Verdict, error) {
				panic("boom")
			},
		},
		&Funcs{
			HookName: "failer",
			Page: func(context.Context, *model.Page, *Context) (model.Record, error) {
				return model.Record{"ignored": true}, errors.New("failed")
			},
			Link: func(context.Context, string, string, string, *Context) (Verdict, error) {
				return Veto, errors.New("failed")
			},
		},
		&Funcs{
			HookName: "after",
			Page: func(context.Context, *model.Page, *Context) (model.Record, error) {
				afterCalled = true
				return model.Record{"ok": true}, nil
			},
		},
	)

	cc := NewContext("https://example.com")
	records := p.Page(t.Context(), &model.Page{URL: "https://example.com"}, cc)
	if !afterCalled {
		t.Error("hook after a panicking hook was not called")
	}
	if len(records) != 1 || records[0]["ok"] != true {
		t.Errorf("expected only the healthy record, got %v", records)
	}

	vetoed, _ := p.Link(t.Context(), "https://example.com", "https://example.com/a", "", cc)
	if vetoed {
		t.Error("a veto returned together with an error must be ignored")
	}

	output := buf.String()
	if !strings.Contains(output, "hook panicked") || !strings.Contains(output, "panicker") {
		t.Errorf("expected panic to be logged, got: %s", output)
	}
	if !strings.Contains(output, "hook failed") || !strings.Contains(output, "failer") {
		t.Errorf("expected error to be logged, got: %s", output)
	}
}

func TestPipeline_ErrorAndSkipEvents(t *testing.T) {
	t.Parallel()

	var gotURL string
	var gotErr error
	var gotReason model.SkipReason
	p := newTestPipeline()
	p.Register(&Funcs{
		Error: func(_ context.Context, url string, fetchErr error, _ *Context) error {
			gotURL, gotErr = url, fetchErr
			return nil
		},
		Skip: func(_ context.Context, _ string, reason model.SkipReason, _ *Context) error {
			gotReason = reason
			return nil
		},
	})

	cc := NewContext("https://example.com")
	fetchErr := errors.New("404")
	p.PageError(t.Context(), "https://example.com/missing", fetchErr, cc)
	p.Skipped(t.Context(), "https://other.com", model.SkipOutOfDomain, cc)

	if gotURL != "https://example.com/missing" || !errors.Is(gotErr, fetchErr) {
		t.Errorf("unexpected error event: %s %v", gotURL, gotErr)
	}
	if gotReason != model.SkipOutOfDomain {
		t.Errorf("unexpected skip reason: %s", gotReason)
	}
}

func TestBase_NoOps(t *testing.T) {
	t.Parallel()

	var b Base
	cc := NewContext("https://example.com")
	if err := b.OnStart(t.Context(), cc); err != nil {
		t.Error(err)
	}
	if rec, err := b.OnPage(t.Context(), &model.Page{}, cc); rec != nil || err != nil {
		t.Errorf("unexpected OnPage result: %v %v", rec, err)
	}
	if v, err := b.OnLinkDiscovered(t.Context(), "", "", "", cc); v != Pass || err != nil {
		t.Errorf("unexpected OnLinkDiscovered result: %v %v", v, err)
	}
}

func TestVerdictString(t *testing.T) {
	t.Parallel()

	for v, want := range map[Verdict]string{Pass: "pass", Allow: "allow", Veto: "veto", Verdict(42): "unknown"} {
		if v.String() != want {
			t.Errorf("Verdict(%d).String() = %q, want %q", v, v.String(), want)
		}
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	cc := NewContext("https://example.com")
	if cc.Seed() != "https://example.com" {
		t.Errorf("unexpected seed: %s", cc.Seed())
	}
	if len(cc.RunID()) != 36 {
		t.Errorf("expected UUID run id, got %q", cc.RunID())
	}
	if NewContext("x").RunID() == cc.RunID() {
		t.Error("run ids must be unique")
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cc.Update("count", func(old any) any {
				n, _ := old.(int)
				return n + 1
			})
		}()
	}
	wg.Wait()

	v, ok := cc.Get("count")
	if !ok || v.(int) != 100 {
		t.Errorf("expected count 100, got %v", v)
	}

	cc.Set("alpha", 1)
	if got := strings.Join(cc.Keys(), ","); got != "alpha,count" {
		t.Errorf("unexpected keys: %s", got)
	}

	cc.View("count", func(v any, ok bool) {
		if !ok || v.(int) != 100 {
			t.Errorf("View(count) = %v, %v", v, ok)
		}
	})
	cc.View("missing", func(v any, ok bool) {
		if ok || v != nil {
			t.Errorf("View(missing) = %v, %v", v, ok)
		}
	})
}
