package crawler

import "errors"

var (
	// ErrInvalidSeed is returned when the seed URL is not an absolute
	// http(s) URL and cannot be resolved against the base URL.
	ErrInvalidSeed = errors.New("invalid seed url")

	// ErrNilFetcher is returned by New when no fetcher is supplied.
	ErrNilFetcher = errors.New("fetcher must not be nil")

	// ErrEngineBusy is returned when Crawl is called while another crawl
	// on the same Engine is still running.
	ErrEngineBusy = errors.New("engine is already crawling")
)
