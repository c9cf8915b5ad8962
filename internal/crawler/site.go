package crawler

import (
	"context"

	"github.com/nao1215/atlas/internal/model"
)

// crawlSite walks every page under the seed's scheme://host breadth-first.
// MaxDepth is ignored; depth is still tracked for the pages handed to hooks.
func (r *run) crawlSite(ctx context.Context) {
	queue := []frame{{url: r.seed, depth: 0}}
	queued := map[string]struct{}{r.seed: {}}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			r.markCancelled()
			return
		}

		f := queue[0]
		queue = queue[1:]
		delete(queued, f.url)

		if !r.claim(ctx, f.url) {
			continue
		}

		links, ok := r.process(ctx, f.url, f.depth)
		if !ok {
			continue
		}
		for _, l := range links {
			if !model.WithinHome(r.home, l.Target) {
				r.skip(ctx, l.Target, model.SkipOutsideHome)
				continue
			}
			if _, dup := queued[l.Target]; dup || r.visited.Contains(l.Target) {
				r.skip(ctx, l.Target, model.SkipAlreadyVisited)
				continue
			}
			queued[l.Target] = struct{}{}
			queue = append(queue, frame{url: l.Target, depth: f.depth + 1})
		}
	}
}
