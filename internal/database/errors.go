package database

import "errors"

var (
	// ErrNoActiveRun is returned when records or a graph arrive before Reset
	// started a run.
	ErrNoActiveRun = errors.New("no active crawl run")

	// ErrRunNotFound is returned when a run ID is not in the database.
	ErrRunNotFound = errors.New("crawl run not found")
)
