// Package crawler provides the traversal engine.
//
// # Architecture
//
// An Engine owns everything a crawl needs: the settings, a fetch.Fetcher,
// a link policy, a link extractor, the hook pipeline and an optional
// result sink. Each call to Crawl creates a fresh link graph and visited
// set, runs one traversal strategy, and returns both in a Result.
//
// Three strategies are available, selected by the settings:
//
//   - Depth-bounded (default): depth-first with an explicit frame stack.
//     The first link's subtree is explored completely before its next
//     sibling. Pages at MaxDepth are fetched and recorded but not expanded.
//   - Whole-site: breadth-first from the seed with no depth limit, bounded
//     to the seed's scheme://host.
//   - Layered: breadth-first in explicit layers. Pages of one layer are
//     fetched concurrently, at most MaxConcurrency at a time, and the next
//     layer starts only after the whole layer finished.
//
// Every strategy marks a URL visited before fetching it, using an atomic
// check-and-insert, so each URL is fetched at most once per crawl.
//
// # Usage
//
//	f, _ := fetch.NewHTTPFetcher(settings)
//	engine, err := crawler.New(settings, f, crawler.WithHooks(myHook))
//	result, err := engine.Crawl(ctx, "https://example.com")
package crawler
