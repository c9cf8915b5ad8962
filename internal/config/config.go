package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "atlas"

	// DefaultTimeout is the per-request timeout. Ten seconds keeps a slow
	// host from stalling a depth-first crawl for long.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is used both for HTTP requests and robots.txt group matching.
	DefaultUserAgent = "AtlasCrawler"

	// DefaultMaxDepth bounds the depth-first strategy. The seed has depth 0.
	DefaultMaxDepth = 3

	// DefaultMaxConcurrency is the number of in-flight fetches per layer
	// for the layered strategy.
	DefaultMaxConcurrency = 5

	// DefaultResultsFilename is the JSON lines file written by the file sink.
	DefaultResultsFilename = "results.jsonl"

	// DefaultGraphFilename is the graph snapshot written at the end of a crawl.
	DefaultGraphFilename = "graph.json"

	// DefaultDatabaseFilename is the SQLite file used for crawl history.
	DefaultDatabaseFilename = "atlas.db"

	// DefaultMaxBodySize limits the response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// Strategy identifies a traversal strategy.
type Strategy string

const (
	// StrategyDepth is the depth-bounded depth-first traversal (the default).
	StrategyDepth Strategy = "depth"
	// StrategySite is the whole-site breadth-first traversal bounded by the seed's origin.
	StrategySite Strategy = "site"
	// StrategyLayered is the bounded-concurrency layered breadth-first traversal.
	StrategyLayered Strategy = "layered"
)

// String returns the strategy name.
func (s Strategy) String() string {
	return string(s)
}

// Settings holds every option recognised by the crawl engine.
// A Settings value is built once (defaults, then the config file, then CLI
// flags), validated, and then treated as read-only by the engine.
//
// Design decision: We use a single flat struct with every option enumerated
// instead of a generic map because:
// 1. Unknown options can be rejected at load time instead of silently ignored
// 2. Each option is typed and documented in one place
// 3. Validation has a single entry point (Validate)
type Settings struct {
	// BaseURL is used as the seed when Crawl is called with an empty URL,
	// and to resolve a relative seed. Empty means the seed must be absolute.
	BaseURL string

	// Timeout is the per-request timeout for page and robots.txt fetches.
	Timeout time.Duration

	// UserAgent is sent with every request and used for robots.txt matching.
	UserAgent string

	// MaxDepth is the inclusive depth bound for the depth-first and layered strategies.
	MaxDepth int

	// AllowedDomains restricts crawling to these exact hostnames.
	// An empty list means unrestricted.
	AllowedDomains []string

	// CrawlEntireWebsite selects the whole-site strategy, which ignores MaxDepth
	// and stays inside the seed's scheme://host.
	CrawlEntireWebsite bool

	// Concurrent selects the bounded-concurrency layered strategy.
	Concurrent bool

	// MaxConcurrency is the maximum number of in-flight fetches per layer.
	MaxConcurrency int

	// SaveResults enables the result sink: per-page records and the final graph snapshot.
	SaveResults bool

	// ResultsFilename is the JSON lines file name inside StoragePath.
	ResultsFilename string

	// StoragePath is the directory for results, the graph snapshot and the database.
	// Defaults to the XDG data directory.
	StoragePath string

	// MaxPages caps the number of fetched pages. 0 means unlimited.
	MaxPages int

	// MaxBodySize is the maximum response body size in bytes. 0 disables the limit.
	MaxBodySize int64

	// Proxy is an optional SOCKS5 proxy address in host:port form.
	Proxy string

	// Headers are added to every page request.
	Headers map[string]string

	// IgnorePatterns are glob patterns matched against the URL path.
	// Matching URLs are never fetched.
	IgnorePatterns []string

	// FollowPatterns are glob patterns matched against the URL path.
	// If non-empty, only matching URLs are fetched; include the seed's path
	// when the seed itself should be crawled.
	FollowPatterns []string

	// Sites holds per-host overrides loaded from the config file.
	Sites map[string]SiteConfig
}

// NewSettings creates Settings populated with default values.
func NewSettings() *Settings {
	return &Settings{
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		MaxDepth:        DefaultMaxDepth,
		MaxConcurrency:  DefaultMaxConcurrency,
		SaveResults:     true,
		ResultsFilename: DefaultResultsFilename,
		StoragePath:     XDGDataDir(),
		MaxBodySize:     DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for Atlas.
// On Linux: ~/.local/share/atlas
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for Atlas.
// On Linux: ~/.config/atlas
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Strategy returns the traversal strategy selected by the settings.
func (s *Settings) Strategy() Strategy {
	switch {
	case s.CrawlEntireWebsite:
		return StrategySite
	case s.Concurrent:
		return StrategyLayered
	default:
		return StrategyDepth
	}
}

// ResultsPath returns the path of the JSON lines results file.
func (s *Settings) ResultsPath() string {
	return filepath.Join(s.StoragePath, s.ResultsFilename)
}

// GraphPath returns the path of the graph snapshot file.
func (s *Settings) GraphPath() string {
	return filepath.Join(s.StoragePath, DefaultGraphFilename)
}

// Site returns the effective per-host configuration for host.
// Settings-level headers and patterns are merged with the site entry;
// site values take precedence.
func (s *Settings) Site(host string) SiteConfig {
	result := SiteConfig{
		Headers:        s.Headers,
		IgnorePatterns: s.IgnorePatterns,
		FollowPatterns: s.FollowPatterns,
	}
	site, ok := s.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}
	return result.merge(site)
}

// Clone returns a deep copy of the settings.
// The engine keeps its own copy so later mutations by the caller have no effect.
func (s *Settings) Clone() *Settings {
	c := *s
	c.AllowedDomains = append([]string(nil), s.AllowedDomains...)
	c.IgnorePatterns = append([]string(nil), s.IgnorePatterns...)
	c.FollowPatterns = append([]string(nil), s.FollowPatterns...)
	if s.Headers != nil {
		c.Headers = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			c.Headers[k] = v
		}
	}
	if s.Sites != nil {
		c.Sites = make(map[string]SiteConfig, len(s.Sites))
		for k, v := range s.Sites {
			c.Sites[k] = v.clone()
		}
	}
	return &c
}

// Validate checks if the settings are valid.
// It returns the first problem found, wrapped around a sentinel error.
//
// Design decision: We validate once at engine construction rather than at
// each point of use so that a misconfigured crawl fails before any request
// is sent.
func (s *Settings) Validate() error {
	if s.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if s.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if s.MaxConcurrency <= 0 {
		return ErrInvalidMaxConcurrency
	}
	if s.CrawlEntireWebsite && s.Concurrent {
		return ErrConflictingStrategies
	}
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidBaseURL, s.BaseURL)
		}
	}
	if s.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if s.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if s.SaveResults {
		if s.ResultsFilename == "" {
			return ErrEmptyResultsFilename
		}
		if strings.ContainsAny(s.ResultsFilename, `/\`) || s.ResultsFilename == "." || s.ResultsFilename == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidResultsFilename, s.ResultsFilename)
		}
	}
	if s.Proxy != "" {
		if _, _, err := net.SplitHostPort(s.Proxy); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProxy, err)
		}
	}
	for _, d := range s.AllowedDomains {
		if d == "" || strings.Contains(d, "://") || strings.Contains(d, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidAllowedDomain, d)
		}
	}
	if err := validatePatterns(s.IgnorePatterns); err != nil {
		return err
	}
	if err := validatePatterns(s.FollowPatterns); err != nil {
		return err
	}
	for host, site := range s.Sites {
		if err := validatePatterns(site.IgnorePatterns); err != nil {
			return fmt.Errorf("site %s: %w", host, err)
		}
		if err := validatePatterns(site.FollowPatterns); err != nil {
			return fmt.Errorf("site %s: %w", host, err)
		}
	}
	return nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := path.Match(p, "/"); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return nil
}
