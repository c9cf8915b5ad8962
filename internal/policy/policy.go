package policy

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/nao1215/atlas/internal/config"
	"github.com/nao1215/atlas/internal/fetch"
	"github.com/nao1215/atlas/internal/model"
)

// Rejection reasons reported in a Decision.
const (
	ReasonOutOfDomain = model.SkipOutOfDomain
	ReasonRobots      = model.SkipRobots
	ReasonMalformed   = model.SkipMalformed
	ReasonPattern     = model.SkipPattern
)

// Decision is the outcome of a policy check.
// Reason is empty when Allowed is true.
type Decision struct {
	Allowed bool
	Reason  model.SkipReason
}

// allow is the accepting decision.
var allow = Decision{Allowed: true}

func reject(reason model.SkipReason) Decision {
	return Decision{Reason: reason}
}

// Policy decides whether URLs may be fetched.
// It is safe for concurrent use; the robots.txt cache lives as long as the Policy.
type Policy struct {
	allowed  map[string]struct{}
	settings *config.Settings
	robots   *robotsCache
	logger   *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets the logger used for rejection and robots.txt events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New creates a Policy from settings. robotsFetcher is used to retrieve
// robots.txt files; it is typically the same fetcher used for pages.
func New(settings *config.Settings, robotsFetcher fetch.Fetcher, opts ...Option) *Policy {
	p := &Policy{
		allowed:  make(map[string]struct{}, len(settings.AllowedDomains)),
		settings: settings.Clone(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, d := range settings.AllowedDomains {
		p.allowed[hostOnly(d)] = struct{}{}
	}
	p.robots = newRobotsCache(robotsFetcher, settings.UserAgent, p.logger)

	return p
}

// Accepts reports whether rawURL may be fetched.
func (p *Policy) Accepts(ctx context.Context, rawURL string) bool {
	return p.Check(ctx, rawURL).Allowed
}

// Check evaluates rawURL and returns the decision with its reason.
// Rejections are logged at debug level; they are never errors.
func (p *Policy) Check(ctx context.Context, rawURL string) Decision {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Hostname() == "" {
		return reject(ReasonMalformed)
	}

	host := strings.ToLower(u.Hostname())
	if !p.domainAllowed(host) {
		return reject(ReasonOutOfDomain)
	}

	site := p.settings.Site(host)
	if !matchesPatterns(u.Path, site.IgnorePatterns, site.FollowPatterns) {
		p.logger.Debug("url excluded by pattern", "url", rawURL)
		return reject(ReasonPattern)
	}

	origin := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
	if !p.robots.allowed(ctx, origin, u.RequestURI()) {
		p.logger.Debug("url disallowed by robots.txt", "url", rawURL, "user_agent", p.settings.UserAgent)
		return reject(ReasonRobots)
	}

	return allow
}

// CachedOrigins returns the number of origins whose robots.txt has been requested.
func (p *Policy) CachedOrigins() int {
	return p.robots.size()
}

func (p *Policy) domainAllowed(host string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	_, ok := p.allowed[host]
	return ok
}

// hostOnly lower-cases a configured domain and strips any port.
func hostOnly(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if h, _, err := net.SplitHostPort(d); err == nil {
		return h
	}
	return d
}
