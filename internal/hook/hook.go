package hook

import (
	"context"

	"github.com/nao1215/atlas/internal/model"
)

// Verdict is a link hook's opinion on a discovered link.
type Verdict int

const (
	// Pass means no opinion.
	Pass Verdict = iota
	// Allow explicitly accepts the link. Later hooks may still veto it.
	Allow
	// Veto rejects the link. The first veto wins.
	Veto
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Allow:
		return "allow"
	case Veto:
		return "veto"
	default:
		return "unknown"
	}
}

// Hook is the base interface every hook implements.
type Hook interface {
	// Name identifies the hook in logs.
	Name() string
}

// StartHook is notified once before the first fetch.
type StartHook interface {
	Hook
	OnStart(ctx context.Context, cc *Context) error
}

// PageHook is called once per successfully fetched page.
// A non-nil record is forwarded to the result sink.
type PageHook interface {
	Hook
	OnPage(ctx context.Context, page *model.Page, cc *Context) (model.Record, error)
}

// LinkHook is consulted for every link the policy accepted.
type LinkHook interface {
	Hook
	OnLinkDiscovered(ctx context.Context, source, target, anchorText string, cc *Context) (Verdict, error)
}

// ErrorHook is notified when a page fetch fails.
type ErrorHook interface {
	Hook
	OnPageError(ctx context.Context, url string, fetchErr error, cc *Context) error
}

// SkipHook is notified when a URL is not fetched.
type SkipHook interface {
	Hook
	OnPageSkipped(ctx context.Context, url string, reason model.SkipReason, cc *Context) error
}

// FinishHook is notified once after traversal ends, including on cancellation.
type FinishHook interface {
	Hook
	OnFinish(ctx context.Context, summary *model.Summary, cc *Context) error
}

// Base implements every event with a no-op.
// Embed it and override the events of interest.
type Base struct{}

// OnStart does nothing.
func (Base) OnStart(context.Context, *Context) error { return nil }

// OnPage produces no record.
func (Base) OnPage(context.Context, *model.Page, *Context) (model.Record, error) { return nil, nil }

// OnLinkDiscovered has no opinion.
func (Base) OnLinkDiscovered(context.Context, string, string, string, *Context) (Verdict, error) {
	return Pass, nil
}

// OnPageError does nothing.
func (Base) OnPageError(context.Context, string, error, *Context) error { return nil }

// OnPageSkipped does nothing.
func (Base) OnPageSkipped(context.Context, string, model.SkipReason, *Context) error { return nil }

// OnFinish does nothing.
func (Base) OnFinish(context.Context, *model.Summary, *Context) error { return nil }

// Funcs builds a hook from plain functions. Nil fields are no-ops.
type Funcs struct {
	HookName string
	Start    func(ctx context.Context, cc *Context) error
	Page     func(ctx context.Context, page *model.Page, cc *Context) (model.Record, error)
	Link     func(ctx context.Context, source, target, anchorText string, cc *Context) (Verdict, error)
	Error    func(ctx context.Context, url string, fetchErr error, cc *Context) error
	Skip     func(ctx context.Context, url string, reason model.SkipReason, cc *Context) error
	Finish   func(ctx context.Context, summary *model.Summary, cc *Context) error
}

// Name returns HookName, or "funcs" when unset.
func (f *Funcs) Name() string {
	if f.HookName == "" {
		return "funcs"
	}
	return f.HookName
}

// OnStart calls f.Start.
func (f *Funcs) OnStart(ctx context.Context, cc *Context) error {
	if f.Start == nil {
		return nil
	}
	return f.Start(ctx, cc)
}

// OnPage calls f.Page.
func (f *Funcs) OnPage(ctx context.Context, page *model.Page, cc *Context) (model.Record, error) {
	if f.Page == nil {
		return nil, nil
	}
	return f.Page(ctx, page, cc)
}

// OnLinkDiscovered calls f.Link.
func (f *Funcs) OnLinkDiscovered(ctx context.Context, source, target, anchorText string, cc *Context) (Verdict, error) {
	if f.Link == nil {
		return Pass, nil
	}
	return f.Link(ctx, source, target, anchorText, cc)
}

// OnPageError calls f.Error.
func (f *Funcs) OnPageError(ctx context.Context, url string, fetchErr error, cc *Context) error {
	if f.Error == nil {
		return nil
	}
	return f.Error(ctx, url, fetchErr, cc)
}

// OnPageSkipped calls f.Skip.
func (f *Funcs) OnPageSkipped(ctx context.Context, url string, reason model.SkipReason, cc *Context) error {
	if f.Skip == nil {
		return nil
	}
	return f.Skip(ctx, url, reason, cc)
}

// OnFinish calls f.Finish.
func (f *Funcs) OnFinish(ctx context.Context, summary *model.Summary, cc *Context) error {
	if f.Finish == nil {
		return nil
	}
	return f.Finish(ctx, summary, cc)
}
