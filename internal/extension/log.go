package extension

import (
	"context"
	"log/slog"

	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

// LogHook writes every crawl event to a structured logger.
// Pages and skips are logged at debug level, failures at warn level.
type LogHook struct {
	logger *slog.Logger
}

// NewLogHook creates a LogHook. A nil logger uses slog.Default().
func NewLogHook(logger *slog.Logger) *LogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHook{logger: logger.With("hook", NameLog)}
}

// Name returns the hook name.
func (h *LogHook) Name() string {
	return NameLog
}

// OnStart logs the run start.
func (h *LogHook) OnStart(ctx context.Context, cc *hook.Context) error {
	h.logger.InfoContext(ctx, "run started", "run_id", cc.RunID(), "seed", cc.Seed())
	return nil
}

// OnPage logs the page. It produces no record.
func (h *LogHook) OnPage(ctx context.Context, page *model.Page, cc *hook.Context) (model.Record, error) {
	h.logger.DebugContext(ctx, "page",
		"run_id", cc.RunID(),
		"url", page.URL,
		"depth", page.Depth,
		"status", page.StatusCode,
		"content_type", page.ContentType,
		"links", len(page.Links),
	)
	return nil, nil
}

// OnPageError logs the failure.
func (h *LogHook) OnPageError(ctx context.Context, url string, fetchErr error, cc *hook.Context) error {
	h.logger.WarnContext(ctx, "page error", "run_id", cc.RunID(), "url", url, "error", fetchErr)
	return nil
}

// OnPageSkipped logs the skip.
func (h *LogHook) OnPageSkipped(ctx context.Context, url string, reason model.SkipReason, cc *hook.Context) error {
	h.logger.DebugContext(ctx, "page skipped", "run_id", cc.RunID(), "url", url, "reason", reason)
	return nil
}

// OnFinish logs the run totals.
func (h *LogHook) OnFinish(ctx context.Context, summary *model.Summary, cc *hook.Context) error {
	attrs := []any{
		"run_id", cc.RunID(),
		"pages", summary.PagesFetched,
		"errors", len(summary.Errors),
		"skipped", summary.TotalSkipped(),
		"records", summary.Records,
		"elapsed", summary.Elapsed,
	}
	if domains := ExternalDomains(cc); len(domains) > 0 {
		attrs = append(attrs, "external_domains", len(domains))
	}
	h.logger.InfoContext(ctx, "run finished", attrs...)
	return nil
}
