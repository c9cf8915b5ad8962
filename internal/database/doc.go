// Package database provides SQLite-based crawl history for Atlas.
//
// CrawlDB stores, per crawl run:
//   - Run metadata (seed, strategy, counts, timing)
//   - Every record produced by page hooks and the page callback
//   - The final link graph, as ordered nodes and edges
//
// A CrawlDB is used as a storage.Sink for records and the graph snapshot,
// and registered as a hook so it learns the run ID, the seed and the final
// summary.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
