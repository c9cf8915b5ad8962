package extension

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/atlas/internal/hook"
)

// Built-in hook names.
const (
	NameTitle    = "title"
	NameMarkdown = "markdown"
	NameExternal = "external"
	NameMetrics  = "metrics"
	NameLog      = "log"
)

// Names returns the names accepted by Build, in registration order.
func Names() []string {
	return []string{NameTitle, NameMarkdown, NameExternal, NameMetrics, NameLog}
}

// Options configures the hooks created by Build.
type Options struct {
	// Logger is used by the log hook and for hook diagnostics.
	Logger *slog.Logger

	// MetricsFile, if set, is where the metrics hook writes a Prometheus
	// textfile when the crawl finishes.
	MetricsFile string

	// MarkdownMaxLength truncates Markdown records to this many runes.
	// 0 means no limit.
	MarkdownMaxLength int
}

// Build creates the named hooks in the order given.
// Names are case-insensitive; duplicates are ignored.
//
// Design decision: We build hooks from names rather than exposing a global
// registry because:
//  1. The CLI and config file only carry strings
//  2. Each crawl gets fresh hook state
//  3. Unknown names fail before any request is sent
func Build(names []string, opts Options) ([]hook.Hook, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	seen := make(map[string]bool, len(names))
	hooks := make([]hook.Hook, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case NameTitle:
			hooks = append(hooks, NewTitleHook())
		case NameMarkdown:
			hooks = append(hooks, NewMarkdownHook(WithMaxLength(opts.MarkdownMaxLength)))
		case NameExternal:
			hooks = append(hooks, NewExternalHook())
		case NameMetrics:
			hooks = append(hooks, NewMetricsHook(WithTextfile(opts.MetricsFile), WithMetricsLogger(opts.Logger)))
		case NameLog:
			hooks = append(hooks, NewLogHook(opts.Logger))
		default:
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownHook, raw, strings.Join(Names(), ", "))
		}
	}
	return hooks, nil
}
