// Package storage persists crawl output.
//
// A Sink receives two kinds of output from the engine: per-page records,
// streamed as pages are processed, and one graph snapshot when the crawl
// ends. The engine serializes all Sink calls, so implementations need no
// locking of their own to preserve ordering.
//
// FileSink writes records as JSON lines and the graph as a JSON object.
// MultiSink fans out to several sinks (for example files plus SQLite).
package storage
