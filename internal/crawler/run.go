package crawler

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/atlas/internal/fetch"
	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

// frame is a frontier entry.
type frame struct {
	url   string
	depth int
}

// run holds the state of one Crawl call.
type run struct {
	e    *Engine
	seed string
	home string
	cc   *hook.Context

	graph   *model.Graph
	visited *model.VisitedSet

	// reserved counts fetch slots taken against MaxPages.
	reserved atomic.Int64

	// mu guards the summary fields below.
	mu        sync.Mutex
	started   time.Time
	fetched   int
	errors    []model.PageError
	skipped   map[model.SkipReason]int
	cancelled bool

	// sinkMu serializes sink calls.
	sinkMu  sync.Mutex
	records int
}

func newRun(e *Engine, seed string) *run {
	home, _ := model.HomePrefix(seed) //nolint:errcheck // seed is already normalized
	return &run{
		e:       e,
		seed:    seed,
		home:    home,
		cc:      hook.NewContext(seed),
		graph:   model.NewGraph(),
		visited: model.NewVisitedSet(),
		skipped: make(map[model.SkipReason]int),
		started: time.Now(),
	}
}

// claim decides whether u may be fetched now and marks it visited.
// It fires a skip event and returns false when u was already visited or
// the page cap is exhausted.
func (r *run) claim(ctx context.Context, u string) bool {
	if r.visited.Contains(u) {
		r.skip(ctx, u, model.SkipAlreadyVisited)
		return false
	}
	if !r.reserve() {
		r.skip(ctx, u, model.SkipMaxPagesReached)
		return false
	}
	if !r.visited.MarkIfNotVisited(u) {
		r.release()
		r.skip(ctx, u, model.SkipAlreadyVisited)
		return false
	}
	return true
}

func (r *run) reserve() bool {
	limit := int64(r.e.settings.MaxPages)
	if limit <= 0 {
		return true
	}
	for {
		n := r.reserved.Load()
		if n >= limit {
			return false
		}
		if r.reserved.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (r *run) release() {
	if r.e.settings.MaxPages > 0 {
		r.reserved.Add(-1)
	}
}

// capReached reports whether no further fetch can be scheduled.
func (r *run) capReached() bool {
	limit := int64(r.e.settings.MaxPages)
	return limit > 0 && r.reserved.Load() >= limit
}

// process fetches a claimed URL, filters its links through the policy and
// the link hooks, records the page in the graph and fires OnPage.
// It returns the accepted links, or false if the fetch failed or was
// abandoned because ctx ended.
func (r *run) process(ctx context.Context, u string, depth int) ([]model.Link, bool) {
	logger := r.e.logger

	resp, err := r.e.fetcher.Fetch(fetch.WithRedirectCheck(ctx, r.redirectCheck(ctx)), u)
	if err != nil {
		if ctx.Err() != nil {
			r.markCancelled()
			logger.Debug("fetch abandoned", "url", u, "error", err)
			return nil, false
		}
		logger.Warn("fetch failed", "url", u, "depth", depth, "error", err)
		r.graph.Add(u, nil)
		r.mu.Lock()
		r.errors = append(r.errors, model.PageError{URL: u, Depth: depth, Message: err.Error()})
		r.mu.Unlock()
		r.e.pipeline.PageError(ctx, u, err, r.cc)
		return nil, false
	}

	page := &model.Page{
		URL:         u,
		Depth:       depth,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Content:     string(resp.Body),
	}
	page.ComputeHash()

	var discovered []model.Link
	if page.IsHTML() {
		base := resp.URL
		if base == "" {
			base = u
		}
		discovered, err = r.e.extractor.ExtractLinks(bytes.NewReader(resp.Body), base)
		if err != nil {
			logger.Warn("link extraction failed", "url", u, "error", err)
			discovered = nil
		}
	}

	accepted := r.filter(ctx, u, discovered)
	r.graph.Add(u, accepted)
	page.Links = accepted

	r.mu.Lock()
	r.fetched++
	r.mu.Unlock()
	logger.Debug("page fetched",
		"url", u,
		"depth", depth,
		"status", resp.StatusCode,
		"links", len(accepted),
	)

	for _, rec := range r.e.pipeline.Page(ctx, page, r.cc) {
		r.emit(ctx, rec)
	}
	return accepted, true
}

// redirectCheck refuses redirects to URLs the policy would not fetch.
// Policy lookups run on ctx so robots.txt fetches follow redirects freely.
func (r *run) redirectCheck(ctx context.Context) fetch.RedirectCheck {
	return func(target string) error {
		if d := r.e.policy.Check(ctx, target); !d.Allowed {
			return &fetch.RedirectError{URL: target, Reason: string(d.Reason)}
		}
		return nil
	}
}

// filter applies the policy, then the link hooks, to every discovered link.
func (r *run) filter(ctx context.Context, source string, links []model.Link) []model.Link {
	accepted := make([]model.Link, 0, len(links))
	for _, l := range links {
		if d := r.e.policy.Check(ctx, l.Target); !d.Allowed {
			r.skip(ctx, l.Target, d.Reason)
			continue
		}
		if vetoed, by := r.e.pipeline.Link(ctx, source, l.Target, l.AnchorText, r.cc); vetoed {
			r.e.logger.Debug("link vetoed", "url", l.Target, "source", source, "hook", by)
			r.skip(ctx, l.Target, model.SkipVetoed)
			continue
		}
		accepted = append(accepted, l)
	}
	return accepted
}

// skip counts a skip event and notifies the hooks.
func (r *run) skip(ctx context.Context, u string, reason model.SkipReason) {
	r.mu.Lock()
	r.skipped[reason]++
	r.mu.Unlock()
	r.e.logger.Debug("url skipped", "url", u, "reason", reason)
	r.e.pipeline.Skipped(ctx, u, reason, r.cc)
}

// emit forwards a record to the sink. Sink failures are logged, never fatal.
func (r *run) emit(ctx context.Context, rec model.Record) {
	if !r.e.saving() {
		return
	}
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	if err := r.e.sink.AppendRecord(ctx, rec); err != nil {
		r.e.logger.Error("result sink failed", "op", "append", "error", err)
		return
	}
	r.records++
}

func (r *run) sinkFailed(op string, err error) {
	r.e.logger.Error("result sink failed", "op", op, "error", err)
}

func (r *run) markCancelled() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
}

// finish builds the summary.
func (r *run) finish(ctx context.Context) *model.Summary {
	if ctx.Err() != nil {
		r.markCancelled()
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()

	skipped := make(map[model.SkipReason]int, len(r.skipped))
	for k, v := range r.skipped {
		skipped[k] = v
	}

	return &model.Summary{
		RunID:        r.cc.RunID(),
		SeedURL:      r.seed,
		Strategy:     r.e.settings.Strategy().String(),
		Graph:        r.graph,
		PagesFetched: r.fetched,
		PagesVisited: r.visited.Len(),
		Errors:       append([]model.PageError(nil), r.errors...),
		Skipped:      skipped,
		Records:      r.records,
		Cancelled:    r.cancelled,
		StartedAt:    r.started,
		FinishedAt:   now,
		Elapsed:      now.Sub(r.started),
	}
}
