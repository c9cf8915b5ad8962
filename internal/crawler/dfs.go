package crawler

import "context"

// crawlDepth walks the site depth-first from the seed.
//
// Design decision: We use an explicit frame stack instead of recursion
// because:
//  1. Deep sites cannot exhaust the goroutine stack
//  2. Cancellation is checked at one place, before every fetch
//
// Children are pushed in reverse so the first discovered link is popped
// first, and its subtree is finished before the next sibling. Whether a
// sibling was already visited is decided when it is popped, which matches
// the order a recursive walk would produce.
func (r *run) crawlDepth(ctx context.Context) {
	maxDepth := r.e.settings.MaxDepth
	stack := []frame{{url: r.seed, depth: 0}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			r.markCancelled()
			return
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > maxDepth {
			continue
		}
		if !r.claim(ctx, f.url) {
			continue
		}

		links, ok := r.process(ctx, f.url, f.depth)
		if !ok || f.depth+1 > maxDepth {
			continue
		}
		for i := len(links) - 1; i >= 0; i-- {
			stack = append(stack, frame{url: links[i].Target, depth: f.depth + 1})
		}
	}
}
