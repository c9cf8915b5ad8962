package policy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/atlas/internal/fetch"
	"github.com/temoto/robotstxt"
)

// robotsEntry is the cached robots.txt state for one origin.
// mu serializes loading so concurrent callers share a single fetch.
// loaded stays false when a load was cut short by its caller's context,
// so the next caller retries instead of inheriting allow-all.
type robotsEntry struct {
	mu     sync.Mutex
	loaded bool
	group  *robotstxt.Group
}

// robotsCache holds robots.txt rules per scheme://host for the lifetime
// of a Policy.
type robotsCache struct {
	fetcher   fetch.Fetcher
	userAgent string
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string]*robotsEntry
}

func newRobotsCache(fetcher fetch.Fetcher, userAgent string, logger *slog.Logger) *robotsCache {
	return &robotsCache{
		fetcher:   fetcher,
		userAgent: userAgent,
		logger:    logger,
		entries:   make(map[string]*robotsEntry),
	}
}

// allowed reports whether path (including query) may be fetched on origin.
func (c *robotsCache) allowed(ctx context.Context, origin, path string) bool {
	c.mu.Lock()
	entry, ok := c.entries[origin]
	if !ok {
		entry = &robotsEntry{}
		c.entries[origin] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	if !entry.loaded {
		group := c.load(ctx, origin)
		if ctx.Err() != nil {
			entry.mu.Unlock()
			return true
		}
		entry.group = group
		entry.loaded = true
	}
	group := entry.group
	entry.mu.Unlock()

	if group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

// load fetches and parses origin's robots.txt. A nil group means allow all.
func (c *robotsCache) load(ctx context.Context, origin string) *robotstxt.Group {
	robotsURL := origin + "/robots.txt"

	resp, err := c.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		c.logger.Debug("robots.txt unavailable, allowing all",
			"url", robotsURL,
			"status", fetch.StatusCode(err),
			"error", err,
		)
		return nil
	}

	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		c.logger.Debug("robots.txt unparsable, allowing all", "url", robotsURL, "error", err)
		return nil
	}

	c.logger.Debug("robots.txt loaded", "url", robotsURL)
	return data.FindGroup(c.userAgent)
}

// size returns the number of cached origins.
func (c *robotsCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
