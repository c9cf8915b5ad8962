package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/atlas/internal/config"
	"github.com/nao1215/atlas/internal/crawler"
	"github.com/nao1215/atlas/internal/database"
	"github.com/nao1215/atlas/internal/extension"
	"github.com/nao1215/atlas/internal/fetch"
	"github.com/nao1215/atlas/internal/model"
	"github.com/nao1215/atlas/internal/report"
	"github.com/nao1215/atlas/internal/storage"
)

// errInvalidHeader is returned for a --header value without a colon.
var errInvalidHeader = errors.New(`invalid header: use "Name: value"`)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a website and build its link graph",
		Long: `Crawl fetches pages starting from a seed URL and follows their links.

Every URL is checked against the allowed domains, the path patterns and the
host's robots.txt before it is fetched. Each page is fetched at most once.

When no URL is given, base_url from the configuration file is used.
Relative URLs are resolved against base_url.

Examples:
  # Crawl three levels deep (default)
  atlas crawl https://example.com

  # Crawl the whole site, breadth first
  atlas crawl --entire-site https://example.com/docs/

  # Crawl with 8 concurrent fetches per layer and extract titles
  atlas crawl --concurrent -n 8 --hooks title,markdown https://example.com

  # Stay on two hosts and write a Markdown report
  atlas crawl -a example.com -a www.example.com -f markdown -o report.md https://example.com

Configuration file (.atlas.yaml) example:
  user_agent: "AtlasCrawler"
  max_depth: 2
  allowed_domains: ["example.com"]
  sites:
    example.com:
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().String("base-url", "", "Base URL used as the default seed")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent, "User agent for requests and robots.txt")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum crawl depth (the seed is depth 0)")
	cmd.Flags().StringSliceP("allowed-domain", "a", nil, "Only crawl these hosts (repeatable)")
	cmd.Flags().BoolP("entire-site", "e", false, "Crawl the whole site breadth first, ignoring --depth")
	cmd.Flags().Bool("concurrent", false, "Fetch each depth layer concurrently")
	cmd.Flags().IntP("max-concurrency", "n", config.DefaultMaxConcurrency, "Maximum concurrent fetches per layer")
	cmd.Flags().IntP("max-pages", "p", 0, "Stop after fetching this many pages (0 = unlimited)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes (0 = unlimited)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().StringArrayP("header", "H", nil, `Extra request header "Name: value" (repeatable)`)
	cmd.Flags().StringSlice("ignore", nil, "URL path glob to skip (repeatable)")
	cmd.Flags().StringSlice("follow", nil, "URL path glob to follow; others are skipped (repeatable)")

	// Storage flags
	cmd.Flags().StringP("storage", "s", "", "Directory for results and history (default: XDG data dir)")
	cmd.Flags().String("results-file", config.DefaultResultsFilename, "Name of the JSON lines results file")
	cmd.Flags().Bool("no-save", false, "Do not save records, the graph snapshot or history")
	cmd.Flags().Bool("no-history", false, "Save results files but not the crawl history database")
	cmd.Flags().Duration("skip-recent", 0, "Skip the crawl if the seed finished a crawl within this duration")

	// Hook flags
	cmd.Flags().StringSlice("hooks", nil,
		fmt.Sprintf("Hooks to run on every page (%s)", strings.Join(extension.Names(), ", ")))
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file when the crawl ends (enables the metrics hook)")
	cmd.Flags().Int("markdown-max-length", 0, "Truncate markdown hook records to this many characters (0 = unlimited)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .atlas.yaml in current directory or XDG config dir)")

	// Report flags
	cmd.Flags().StringP("format", "f", report.FormatText, "Report format (text, json, markdown)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("graph-only", false, "Report only the link graph")

	return cmd
}

// crawlOptions holds the crawl command options that are not Settings.
type crawlOptions struct {
	seed              string
	hooks             []string
	metricsFile       string
	markdownMaxLength int
	noHistory         bool
	skipRecent        time.Duration
	format            string
	output            string
	graphOnly         bool
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	settings, err := buildSettings(cmd)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	opts, err := buildCrawlOptions(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd.OutOrStdout(), settings, opts, logger)
}

// buildSettings creates Settings from defaults, the configuration file and
// the flags, in that order of precedence. Only flags set on the command line
// override the configuration file.
func buildSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings := config.NewSettings()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	// If the user explicitly specified a config file path, error if not found.
	// Otherwise silently use the defaults when no file is found.
	found := config.FindConfigFile(configPath)
	switch {
	case found != "":
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		file.Apply(settings)
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	if flags.Changed("base-url") {
		if settings.BaseURL, err = flags.GetString("base-url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if settings.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if settings.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("depth") {
		if settings.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("allowed-domain") {
		if settings.AllowedDomains, err = flags.GetStringSlice("allowed-domain"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("entire-site") {
		if settings.CrawlEntireWebsite, err = flags.GetBool("entire-site"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrent") {
		if settings.Concurrent, err = flags.GetBool("concurrent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-concurrency") {
		if settings.MaxConcurrency, err = flags.GetInt("max-concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if settings.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if settings.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if settings.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("header") {
		raw, err := flags.GetStringArray("header")
		if err != nil {
			return nil, err
		}
		headers, err := parseHeaders(raw)
		if err != nil {
			return nil, err
		}
		if settings.Headers == nil {
			settings.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			settings.Headers[k] = v
		}
	}
	if flags.Changed("ignore") {
		if settings.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("follow") {
		if settings.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("storage") {
		if settings.StoragePath, err = flags.GetString("storage"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("results-file") {
		if settings.ResultsFilename, err = flags.GetString("results-file"); err != nil {
			return nil, err
		}
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	if noSave {
		settings.SaveResults = false
	}

	return settings, nil
}

// buildCrawlOptions reads the non-Settings flags.
func buildCrawlOptions(cmd *cobra.Command, args []string) (crawlOptions, error) {
	var (
		opts crawlOptions
		err  error
	)
	flags := cmd.Flags()

	if len(args) > 0 {
		opts.seed = args[0]
	}
	if opts.hooks, err = flags.GetStringSlice("hooks"); err != nil {
		return opts, err
	}
	if opts.metricsFile, err = flags.GetString("metrics-file"); err != nil {
		return opts, err
	}
	if opts.metricsFile != "" {
		opts.hooks = append(opts.hooks, extension.NameMetrics)
	}
	if opts.markdownMaxLength, err = flags.GetInt("markdown-max-length"); err != nil {
		return opts, err
	}
	if opts.noHistory, err = flags.GetBool("no-history"); err != nil {
		return opts, err
	}
	if opts.skipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return opts, err
	}
	if opts.format, err = flags.GetString("format"); err != nil {
		return opts, err
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return opts, err
	}
	if opts.graphOnly, err = flags.GetBool("graph-only"); err != nil {
		return opts, err
	}

	// Unknown formats fail before any request is sent.
	if _, err := report.New(opts.format, io.Discard, ""); err != nil {
		return opts, err
	}
	return opts, nil
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidHeader, h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl executes one crawl and writes its report to out.
func runCrawl(ctx context.Context, out io.Writer, settings *config.Settings, opts crawlOptions, logger *slog.Logger) error {
	hooks, err := extension.Build(opts.hooks, extension.Options{
		Logger:            logger,
		MetricsFile:       opts.metricsFile,
		MarkdownMaxLength: opts.markdownMaxLength,
	})
	if err != nil {
		return err
	}

	fetcher, err := fetch.NewHTTPFetcher(settings, fetch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	engineOpts := []crawler.Option{crawler.WithLogger(logger)}

	// Open the history database alongside the results files.
	var db *database.CrawlDB
	if settings.SaveResults && !opts.noHistory {
		db, err = database.Open(settings.StoragePath, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		logger.Debug("database opened", "path", db.Path())

		skip, err := recentlyCrawled(ctx, db, settings, opts, logger)
		if err != nil || skip {
			_ = db.Close() //nolint:errcheck // nothing was written
			if skip {
				fmt.Fprintf(out, "Skipped: crawled within the last %s\n", opts.skipRecent)
			}
			return err
		}

		files := storage.NewFileSink(settings.StoragePath, settings.ResultsFilename)
		engineOpts = append(engineOpts,
			crawler.WithSink(storage.NewMultiSink(files, db)),
			crawler.WithHooks(db),
		)
	}
	engineOpts = append(engineOpts, crawler.WithHooks(hooks...))

	engine, err := crawler.New(settings, fetcher, engineOpts...)
	if err != nil {
		if db != nil {
			_ = db.Close() //nolint:errcheck // original error takes precedence
		}
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close result sink", "error", err)
		}
	}()

	result, crawlErr := engine.Crawl(ctx, opts.seed)
	if result == nil {
		return crawlErr
	}

	if err := writeReport(out, opts, result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if settings.SaveResults {
		logger.Info("results saved", "dir", settings.StoragePath)
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl interrupted: %w", crawlErr)
	}
	return nil
}

// recentlyCrawled reports whether the seed finished a crawl within
// opts.skipRecent. It always returns false when skipRecent is zero.
func recentlyCrawled(ctx context.Context, db *database.CrawlDB, settings *config.Settings, opts crawlOptions, logger *slog.Logger) (bool, error) {
	if opts.skipRecent <= 0 {
		return false, nil
	}
	seed := opts.seed
	if seed == "" {
		seed = settings.BaseURL
	}
	normalized, err := model.NormalizeURL(seed)
	if err != nil {
		return false, nil //nolint:nilerr // Crawl reports the invalid seed
	}
	recent, err := db.HasRecentRun(ctx, normalized, opts.skipRecent)
	if err != nil {
		return false, fmt.Errorf("failed to check crawl history: %w", err)
	}
	if recent {
		logger.Info("skipping recently crawled seed", "seed", normalized, "within", opts.skipRecent)
	}
	return recent, nil
}

// writeReport outputs the crawl result in the requested format.
func writeReport(out io.Writer, opts crawlOptions, result *crawler.Result) error {
	output := out
	if opts.output != "" {
		f, err := createReportFile(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	w, err := report.New(opts.format, output, getVersion())
	if err != nil {
		return err
	}
	if opts.graphOnly {
		_, err = w.WriteGraph(result.Graph)
		return err
	}
	_, err = w.Write(result.Summary)
	return err
}

// createReportFile creates (or truncates) path and its parent directories.
// Reports may contain URLs of private pages, so the file is only readable
// by the owner.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
