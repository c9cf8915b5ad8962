package crawler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/atlas/internal/model"
)

// crawlLayered walks breadth-first one layer at a time, fetching the pages
// of a layer concurrently.
//
// Design decision: We use errgroup.SetLimit with a Wait barrier per layer
// rather than a long-lived worker pool because:
//  1. Layer d+1 is computed only from finished layer d pages
//  2. MaxConcurrency bounds in-flight fetches without a semaphore of our own
//  3. No goroutine outlives the layer that started it
//
// URLs are claimed on the coordinating goroutine before the layer starts,
// so each URL is fetched at most once and the page cap is applied in
// discovery order.
func (r *run) crawlLayered(ctx context.Context) {
	maxDepth := r.e.settings.MaxDepth
	layer := []string{r.seed}

	for depth := 0; len(layer) > 0 && depth <= maxDepth; depth++ {
		if ctx.Err() != nil {
			r.markCancelled()
			return
		}

		claimed := make([]string, 0, len(layer))
		for _, u := range layer {
			if r.claim(ctx, u) {
				claimed = append(claimed, u)
			}
		}

		r.e.logger.Debug("layer started", "depth", depth, "pages", len(claimed))
		results := r.fetchLayer(ctx, claimed, depth)

		if ctx.Err() != nil {
			r.markCancelled()
			return
		}
		if depth+1 > maxDepth {
			return
		}
		layer = r.nextLayer(ctx, results)
	}
}

// fetchLayer processes urls concurrently and returns the accepted links of
// each page, indexed like urls.
func (r *run) fetchLayer(ctx context.Context, urls []string, depth int) [][]model.Link {
	results := make([][]model.Link, len(urls))

	var g errgroup.Group
	g.SetLimit(r.e.settings.MaxConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			// Fetches not yet started when the context ends are dropped.
			if ctx.Err() != nil {
				return nil
			}
			links, ok := r.process(ctx, u, depth)
			if ok {
				results[i] = links
			}
			// Page failures are reported through hooks; they never stop the layer.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines always return nil

	return results
}

// nextLayer collects the unvisited links of a finished layer in discovery
// order, without duplicates.
func (r *run) nextLayer(ctx context.Context, results [][]model.Link) []string {
	seen := make(map[string]struct{})
	var next []string
	for _, links := range results {
		for _, l := range links {
			if _, dup := seen[l.Target]; dup || r.visited.Contains(l.Target) {
				r.skip(ctx, l.Target, model.SkipAlreadyVisited)
				continue
			}
			seen[l.Target] = struct{}{}
			next = append(next, l.Target)
		}
	}
	return next
}
