package extension

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

const metricsNamespace = "atlas"

// MetricsHook counts crawl events with Prometheus collectors registered on
// its own registry, and optionally writes them to a node_exporter textfile
// when the crawl finishes.
//
// Design decision: We use a private registry instead of the default one
// because:
//  1. Several engines in one process must not collide on registration
//  2. The textfile contains only crawl metrics, not Go runtime metrics
type MetricsHook struct {
	hook.Base

	registry *prometheus.Registry
	textfile string
	logger   *slog.Logger

	pages    prometheus.Counter
	errors   prometheus.Counter
	links    prometheus.Counter
	skipped  *prometheus.CounterVec
	bodySize prometheus.Histogram
	depth    prometheus.Histogram
	runs     prometheus.Counter
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
}

// MetricsOption configures a MetricsHook.
type MetricsOption func(*MetricsHook)

// WithTextfile sets the textfile path written on finish. Empty disables it.
func WithTextfile(path string) MetricsOption {
	return func(h *MetricsHook) {
		h.textfile = path
	}
}

// WithMetricsLogger sets the logger used to report textfile failures.
func WithMetricsLogger(logger *slog.Logger) MetricsOption {
	return func(h *MetricsHook) {
		h.logger = logger
	}
}

// NewMetricsHook creates a MetricsHook and registers its collectors.
func NewMetricsHook(opts ...MetricsOption) *MetricsHook {
	h := &MetricsHook{
		registry: prometheus.NewRegistry(),
		logger:   slog.Default(),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "page_errors_total",
			Help:      "Page fetches that failed.",
		}),
		links: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "links_accepted_total",
			Help:      "Discovered links accepted by the link policy.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_skipped_total",
			Help:      "URLs skipped, by reason.",
		}, []string{"reason"}),
		bodySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "page_size_bytes",
			Help:      "Size of fetched page bodies.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		depth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "page_depth",
			Help:      "Hop distance of fetched pages from the seed.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Crawl runs started.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last finished crawl.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last crawl finished.",
		}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registry.MustRegister(
		h.pages, h.errors, h.links, h.skipped,
		h.bodySize, h.depth, h.runs, h.duration, h.lastRun,
	)
	return h
}

// Name returns the hook name.
func (h *MetricsHook) Name() string {
	return NameMetrics
}

// Registry returns the registry holding the crawl collectors.
func (h *MetricsHook) Registry() *prometheus.Registry {
	return h.registry
}

// OnStart counts the run.
func (h *MetricsHook) OnStart(context.Context, *hook.Context) error {
	h.runs.Inc()
	return nil
}

// OnPage observes the page. It produces no record.
func (h *MetricsHook) OnPage(_ context.Context, page *model.Page, _ *hook.Context) (model.Record, error) {
	h.pages.Inc()
	h.bodySize.Observe(float64(len(page.Content)))
	h.depth.Observe(float64(page.Depth))
	return nil, nil
}

// OnLinkDiscovered counts the link and never vetoes.
func (h *MetricsHook) OnLinkDiscovered(context.Context, string, string, string, *hook.Context) (hook.Verdict, error) {
	h.links.Inc()
	return hook.Pass, nil
}

// OnPageError counts the failure.
func (h *MetricsHook) OnPageError(context.Context, string, error, *hook.Context) error {
	h.errors.Inc()
	return nil
}

// OnPageSkipped counts the skip under its reason.
func (h *MetricsHook) OnPageSkipped(_ context.Context, _ string, reason model.SkipReason, _ *hook.Context) error {
	h.skipped.WithLabelValues(reason.String()).Inc()
	return nil
}

// OnFinish records the run duration and writes the textfile.
func (h *MetricsHook) OnFinish(_ context.Context, summary *model.Summary, _ *hook.Context) error {
	h.duration.Set(summary.Elapsed.Seconds())
	h.lastRun.Set(float64(summary.FinishedAt.Unix()))

	if h.textfile == "" {
		return nil
	}
	return h.WriteTextfile(h.textfile)
}

// WriteTextfile writes the current metrics in the Prometheus text format.
// The file is written atomically.
func (h *MetricsHook) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, h.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	h.logger.Debug("metrics written", "path", path)
	return nil
}
