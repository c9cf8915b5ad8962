// Package extension provides the built-in crawl hooks.
//
// Each hook implements hook.Hook plus the event interfaces it cares about,
// and can be registered on a crawler.Engine with crawler.WithHooks.
// Build constructs hooks by name, which is how the CLI enables them.
//
// Hooks:
//   - title: records the page title and visible text length
//   - markdown: records the page converted to Markdown
//   - external: records hosts of external links, scripts and images
//   - metrics: counts crawl events with Prometheus collectors
//   - log: writes every crawl event to a structured logger
package extension
