package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/atlas/internal/config"
	"github.com/nao1215/atlas/internal/fetch"
	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
	"github.com/nao1215/atlas/internal/parser"
	"github.com/nao1215/atlas/internal/policy"
	"github.com/nao1215/atlas/internal/storage"
)

// LinkPolicy decides whether a URL may be fetched.
type LinkPolicy interface {
	Check(ctx context.Context, rawURL string) policy.Decision
}

// LinkExtractor pulls absolute links out of a fetched page.
type LinkExtractor interface {
	ExtractLinks(body io.Reader, baseURL string) ([]model.Link, error)
}

// PageFunc is a caller-supplied page callback. A non-nil record is sent
// to the result sink like a hook record.
type PageFunc func(ctx context.Context, page *model.Page) (model.Record, error)

// Engine runs crawls. It may be reused for several crawls, one at a time.
type Engine struct {
	settings  *config.Settings
	fetcher   fetch.Fetcher
	policy    LinkPolicy
	extractor LinkExtractor
	sink      storage.Sink
	hooks     []hook.Hook
	pageFunc  PageFunc
	logger    *slog.Logger

	pipeline *hook.Pipeline
	running  sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers hooks. They are invoked in the order given, across
// all WithHooks options.
func WithHooks(hooks ...hook.Hook) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks...)
	}
}

// WithPageFunc sets a page callback invoked after the hooks' OnPage.
func WithPageFunc(fn PageFunc) Option {
	return func(e *Engine) {
		e.pageFunc = fn
	}
}

// WithSink sets the result sink. When SaveResults is enabled and no sink
// is given, a storage.FileSink under StoragePath is used.
func WithSink(sink storage.Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithPolicy replaces the default policy built from the settings.
func WithPolicy(p LinkPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithExtractor replaces the default HTML link extractor.
func WithExtractor(x LinkExtractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// New validates settings and creates an Engine.
// The settings are copied; later changes by the caller have no effect.
func New(settings *config.Settings, fetcher fetch.Fetcher, opts ...Option) (*Engine, error) {
	if settings == nil {
		settings = config.NewSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	e := &Engine{
		settings: settings.Clone(),
		fetcher:  fetcher,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.policy == nil {
		e.policy = policy.New(e.settings, fetcher, policy.WithLogger(e.logger))
	}
	if e.extractor == nil {
		e.extractor = parser.New()
	}
	if e.sink == nil && e.settings.SaveResults {
		e.sink = storage.NewFileSink(e.settings.StoragePath, e.settings.ResultsFilename)
	}

	e.pipeline = hook.New(hook.WithLogger(e.logger))
	e.pipeline.Register(e.hooks...)
	if e.pageFunc != nil {
		fn := e.pageFunc
		e.pipeline.Register(&hook.Funcs{
			HookName: "page_func",
			Page: func(ctx context.Context, page *model.Page, _ *hook.Context) (model.Record, error) {
				return fn(ctx, page)
			},
		})
	}

	return e, nil
}

// Settings returns a copy of the engine's settings.
func (e *Engine) Settings() *config.Settings {
	return e.settings.Clone()
}

// Close releases the sink.
func (e *Engine) Close() error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Close()
}

// Result is the outcome of one crawl.
type Result struct {
	// Graph maps every visited URL to its accepted outgoing links.
	Graph *model.Graph
	// Visited is the set of URLs marked visited during the crawl.
	Visited *model.VisitedSet
	// Summary holds counts, errors and timing.
	Summary *model.Summary
}

// Crawl traverses from seed using the configured strategy.
// An empty seed uses the settings' BaseURL; a relative seed is resolved
// against it.
//
// The returned error is ErrInvalidSeed (before any hook runs), ErrEngineBusy,
// or the context's error when the crawl was cancelled. On cancellation the
// partial Result is returned together with the error, after OnFinish ran.
func (e *Engine) Crawl(ctx context.Context, seed string) (*Result, error) {
	if !e.running.TryLock() {
		return nil, ErrEngineBusy
	}
	defer e.running.Unlock()

	seedURL, err := e.resolveSeed(seed)
	if err != nil {
		return nil, err
	}

	r := newRun(e, seedURL)
	e.logger.Info("crawl started",
		"run_id", r.cc.RunID(),
		"seed", seedURL,
		"strategy", e.settings.Strategy(),
	)

	if e.saving() {
		if err := e.sink.Reset(ctx); err != nil {
			r.sinkFailed("reset", err)
		}
	}
	e.pipeline.Start(ctx, r.cc)

	if d := e.policy.Check(ctx, seedURL); !d.Allowed {
		r.skip(ctx, seedURL, d.Reason)
	} else {
		switch e.settings.Strategy() {
		case config.StrategySite:
			r.crawlSite(ctx)
		case config.StrategyLayered:
			r.crawlLayered(ctx)
		default:
			r.crawlDepth(ctx)
		}
	}

	summary := r.finish(ctx)
	e.pipeline.Finish(ctx, summary, r.cc)

	if e.saving() {
		if err := e.sink.WriteSnapshot(ctx, r.graph); err != nil {
			r.sinkFailed("snapshot", err)
		}
	}

	e.logger.Info("crawl finished",
		"run_id", summary.RunID,
		"pages_fetched", summary.PagesFetched,
		"errors", len(summary.Errors),
		"skipped", summary.TotalSkipped(),
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)

	result := &Result{Graph: r.graph, Visited: r.visited, Summary: summary}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) saving() bool {
	return e.settings.SaveResults && e.sink != nil
}

func (e *Engine) resolveSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		seed = e.settings.BaseURL
	}
	if seed == "" {
		return "", fmt.Errorf("%w: empty seed and no base url", ErrInvalidSeed)
	}

	u, err := url.Parse(seed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if !u.IsAbs() && e.settings.BaseURL != "" {
		base, err := url.Parse(e.settings.BaseURL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
		}
		u = base.ResolveReference(u)
	}

	normalized, err := model.NormalizeURL(u.String())
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	return normalized, nil
}
