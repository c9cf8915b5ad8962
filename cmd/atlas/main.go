// Package main provides the entry point for the Atlas CLI.
//
// Atlas is a polite web crawler. It walks a site from a seed URL while
// honoring robots.txt and domain restrictions, records a link graph, and
// runs hooks over every fetched page.
//
// Usage:
//
//	atlas crawl <url>
//	atlas crawl --entire-site <url>
//	atlas history
//
// See --help for all available options.
package main

// main is the entry point for Atlas.
func main() {
	Execute()
}
