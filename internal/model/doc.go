// Package model defines the core data structures shared by the crawler.
//
// This package contains the following main types:
//   - Link: An outgoing edge discovered on a page
//   - Graph: The append-only link graph built by one crawl
//   - VisitedSet: The set of URLs already fetched or claimed for fetching
//   - Page: A fetched page handed to hooks and result sinks
//   - Summary: The outcome of one crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, hook, storage and report packages all need these
// types, so centralizing them prevents import cycles.
//
// Graph and VisitedSet are safe for concurrent use. All other types are plain
// values and are serializable to JSON for result files and database storage.
package model
