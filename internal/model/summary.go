package model

import "time"

// SkipReason explains why a URL was not fetched.
type SkipReason string

// Skip reasons reported through OnPageSkipped.
// Out-of-domain and robots rejections are kept distinct so that callers can
// tell them apart.
const (
	SkipOutOfDomain     SkipReason = "out_of_domain"
	SkipRobots          SkipReason = "robots_disallowed"
	SkipMalformed       SkipReason = "malformed_url"
	SkipPattern         SkipReason = "pattern_excluded"
	SkipAlreadyVisited  SkipReason = "already_visited"
	SkipVetoed          SkipReason = "vetoed"
	SkipOutsideHome     SkipReason = "outside_home"
	SkipMaxPagesReached SkipReason = "max_pages_reached"
)

// String implements fmt.Stringer.
func (r SkipReason) String() string {
	return string(r)
}

// PageError records a URL whose fetch failed.
type PageError struct {
	URL     string `json:"url"`
	Depth   int    `json:"depth"`
	Message string `json:"message"`
}

// Summary is the outcome of one crawl run.
// It is handed to OnFinish hooks and returned to the caller.
type Summary struct {
	// RunID uniquely identifies the crawl run.
	RunID string `json:"run_id"`

	// SeedURL is the normalized seed URL.
	SeedURL string `json:"seed_url"`

	// Strategy is the traversal strategy that was used.
	Strategy string `json:"strategy"`

	// Graph is the link graph built by the run.
	Graph *Graph `json:"graph"`

	// PagesFetched counts successful fetches.
	PagesFetched int `json:"pages_fetched"`

	// PagesVisited counts URLs marked visited (fetched or failed).
	PagesVisited int `json:"pages_visited"`

	// Errors lists every failed fetch.
	Errors []PageError `json:"errors,omitempty"`

	// Skipped counts skip events by reason.
	Skipped map[SkipReason]int `json:"skipped,omitempty"`

	// Records counts records forwarded to the result sink.
	Records int `json:"records"`

	// Cancelled is true if the crawl stopped because its context ended.
	Cancelled bool `json:"cancelled,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// TotalSkipped returns the number of skip events across all reasons.
func (s *Summary) TotalSkipped() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}
