package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".atlas.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .atlas.yaml configuration file.
// Scalar options are pointers so that an absent key leaves the default
// untouched while an explicit zero value still overrides it.
type File struct {
	BaseURL            *string               `yaml:"base_url"`
	Timeout            *time.Duration        `yaml:"timeout"`
	UserAgent          *string               `yaml:"user_agent"`
	MaxDepth           *int                  `yaml:"max_depth"`
	AllowedDomains     []string              `yaml:"allowed_domains"`
	CrawlEntireWebsite *bool                 `yaml:"crawl_entire_website"`
	Concurrent         *bool                 `yaml:"concurrent"`
	MaxConcurrency     *int                  `yaml:"max_concurrency"`
	SaveResults        *bool                 `yaml:"save_results"`
	ResultsFilename    *string               `yaml:"results_filename"`
	StoragePath        *string               `yaml:"storage_path"`
	MaxPages           *int                  `yaml:"max_pages"`
	MaxBodySize        *int64                `yaml:"max_body_size"`
	Proxy              *string               `yaml:"proxy"`
	Headers            map[string]string     `yaml:"headers"`
	IgnorePatterns     []string              `yaml:"ignore_patterns"`
	FollowPatterns     []string              `yaml:"follow_patterns"`
	Sites              map[string]SiteConfig `yaml:"sites"`
}

// LoadConfigFile loads a configuration file from path.
// If the file does not exist, it returns ErrConfigNotFound.
// Unknown keys are rejected.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	f, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f, nil
}

// ParseConfig decodes a configuration document from r.
// An empty document yields an empty File.
func ParseConfig(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &f, nil
}

// Apply overlays the options present in f onto s.
func (f *File) Apply(s *Settings) {
	if f.BaseURL != nil {
		s.BaseURL = *f.BaseURL
	}
	if f.Timeout != nil {
		s.Timeout = *f.Timeout
	}
	if f.UserAgent != nil {
		s.UserAgent = *f.UserAgent
	}
	if f.MaxDepth != nil {
		s.MaxDepth = *f.MaxDepth
	}
	if f.AllowedDomains != nil {
		s.AllowedDomains = append([]string(nil), f.AllowedDomains...)
	}
	if f.CrawlEntireWebsite != nil {
		s.CrawlEntireWebsite = *f.CrawlEntireWebsite
	}
	if f.Concurrent != nil {
		s.Concurrent = *f.Concurrent
	}
	if f.MaxConcurrency != nil {
		s.MaxConcurrency = *f.MaxConcurrency
	}
	if f.SaveResults != nil {
		s.SaveResults = *f.SaveResults
	}
	if f.ResultsFilename != nil {
		s.ResultsFilename = *f.ResultsFilename
	}
	if f.StoragePath != nil {
		s.StoragePath = *f.StoragePath
	}
	if f.MaxPages != nil {
		s.MaxPages = *f.MaxPages
	}
	if f.MaxBodySize != nil {
		s.MaxBodySize = *f.MaxBodySize
	}
	if f.Proxy != nil {
		s.Proxy = *f.Proxy
	}
	if f.Headers != nil {
		s.Headers = make(map[string]string, len(f.Headers))
		for k, v := range f.Headers {
			s.Headers[k] = v
		}
	}
	if f.IgnorePatterns != nil {
		s.IgnorePatterns = append([]string(nil), f.IgnorePatterns...)
	}
	if f.FollowPatterns != nil {
		s.FollowPatterns = append([]string(nil), f.FollowPatterns...)
	}
	if f.Sites != nil {
		s.Sites = make(map[string]SiteConfig, len(f.Sites))
		for host, site := range f.Sites {
			s.Sites[strings.ToLower(host)] = site.clone()
		}
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .atlas.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
