// Package config provides the crawl settings for Atlas.
// It defines the immutable Settings value consumed by the crawl engine,
// the YAML configuration file format, and the XDG directory helpers used
// for default storage locations.
package config
