package config

import "errors"

// Settings validation errors.
// These errors are returned by Settings.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxDepth is returned when the max depth is negative.
	// Depth 0 is valid and means only the seed page is fetched.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxConcurrency is returned when max concurrency is not positive.
	// A limit of zero would mean the layered strategy never fetches anything.
	ErrInvalidMaxConcurrency = errors.New("invalid max concurrency: must be positive")

	// ErrConflictingStrategies is returned when both crawl_entire_website and
	// concurrent are enabled. Only one traversal strategy can run per crawl.
	ErrConflictingStrategies = errors.New("conflicting strategies: crawl_entire_website and concurrent cannot be used together")

	// ErrInvalidBaseURL is returned when base_url is set but is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base url: must be an absolute http or https URL")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to disable the limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Use 0 for an unlimited crawl.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrEmptyResultsFilename is returned when results are saved but no filename is set.
	ErrEmptyResultsFilename = errors.New("results filename must not be empty when save_results is enabled")

	// ErrInvalidResultsFilename is returned when the results filename contains a path separator.
	ErrInvalidResultsFilename = errors.New("invalid results filename: must be a plain file name")

	// ErrInvalidProxy is returned when the proxy address is not in host:port form.
	ErrInvalidProxy = errors.New("invalid proxy address: must be host:port")

	// ErrInvalidPattern is returned when an ignore or follow pattern is not a valid glob.
	ErrInvalidPattern = errors.New("invalid url pattern")

	// ErrInvalidAllowedDomain is returned when an allowed domain is empty or contains a scheme.
	ErrInvalidAllowedDomain = errors.New("invalid allowed domain: must be a bare hostname")
)
