package hook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/atlas/internal/model"
)

// Pipeline dispatches crawl events to registered hooks in registration order.
// Registration must finish before the crawl starts; dispatch is then safe
// for concurrent use.
type Pipeline struct {
	hooks []Hook

	start  []StartHook
	page   []PageHook
	link   []LinkHook
	errs   []ErrorHook
	skip   []SkipHook
	finish []FinishHook

	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		hooks: make([]Hook, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Register appends hooks. Each hook is added to every event list whose
// interface it implements.
func (p *Pipeline) Register(hooks ...Hook) {
	for _, h := range hooks {
		if h == nil {
			continue
		}
		p.hooks = append(p.hooks, h)
		if v, ok := h.(StartHook); ok {
			p.start = append(p.start, v)
		}
		if v, ok := h.(PageHook); ok {
			p.page = append(p.page, v)
		}
		if v, ok := h.(LinkHook); ok {
			p.link = append(p.link, v)
		}
		if v, ok := h.(ErrorHook); ok {
			p.errs = append(p.errs, v)
		}
		if v, ok := h.(SkipHook); ok {
			p.skip = append(p.skip, v)
		}
		if v, ok := h.(FinishHook); ok {
			p.finish = append(p.finish, v)
		}
	}
}

// Len returns the number of registered hooks.
func (p *Pipeline) Len() int {
	return len(p.hooks)
}

// Names returns the names of all hooks in registration order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.hooks))
	for i, h := range p.hooks {
		names[i] = h.Name()
	}
	return names
}

// Start fires OnStart.
func (p *Pipeline) Start(ctx context.Context, cc *Context) {
	for _, h := range p.start {
		p.guard(h, "start", func() error {
			return h.OnStart(ctx, cc)
		})
	}
}

// Page fires OnPage and returns every non-nil record in hook order.
func (p *Pipeline) Page(ctx context.Context, page *model.Page, cc *Context) []model.Record {
	var records []model.Record
	for _, h := range p.page {
		var rec model.Record
		ok := p.guard(h, "page", func() error {
			var err error
			rec, err = h.OnPage(ctx, page, cc)
			return err
		})
		if ok && rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

// Link fires OnLinkDiscovered and reports whether the link was vetoed and
// by which hook. The first veto short-circuits the remaining hooks.
func (p *Pipeline) Link(ctx context.Context, source, target, anchorText string, cc *Context) (vetoed bool, by string) {
	for _, h := range p.link {
		verdict := Pass
		ok := p.guard(h, "link", func() error {
			var err error
			verdict, err = h.OnLinkDiscovered(ctx, source, target, anchorText, cc)
			return err
		})
		if ok && verdict == Veto {
			return true, h.Name()
		}
	}
	return false, ""
}

// PageError fires OnPageError.
func (p *Pipeline) PageError(ctx context.Context, url string, fetchErr error, cc *Context) {
	for _, h := range p.errs {
		p.guard(h, "page_error", func() error {
			return h.OnPageError(ctx, url, fetchErr, cc)
		})
	}
}

// Skipped fires OnPageSkipped.
func (p *Pipeline) Skipped(ctx context.Context, url string, reason model.SkipReason, cc *Context) {
	for _, h := range p.skip {
		p.guard(h, "page_skipped", func() error {
			return h.OnPageSkipped(ctx, url, reason, cc)
		})
	}
}

// Finish fires OnFinish.
func (p *Pipeline) Finish(ctx context.Context, summary *model.Summary, cc *Context) {
	for _, h := range p.finish {
		p.guard(h, "finish", func() error {
			return h.OnFinish(ctx, summary, cc)
		})
	}
}

// guard runs fn, converting a panic into an error. It logs any failure and
// reports whether fn succeeded.
func (p *Pipeline) guard(h Hook, event string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("hook panicked",
				"hook", h.Name(),
				"event", event,
				"panic", fmt.Sprint(r),
			)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		p.logger.Warn("hook failed",
			"hook", h.Name(),
			"event", event,
			"error", err,
		)
		return false
	}
	return true
}
