package model

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedURL is returned by NormalizeURL for URLs that cannot be crawled.
var ErrMalformedURL = errors.New("malformed url")

// NormalizeURL canonicalizes an absolute http(s) URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. Same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. http://example.com and http://example.com/ are the same resource
//
// The root path is written without a trailing slash, so both forms
// normalize to http://example.com.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrMalformedURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrMalformedURL
	}
	if u.Hostname() == "" {
		return "", ErrMalformedURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}

	return u.String(), nil
}

// HomePrefix returns the scheme://host prefix of an absolute URL.
func HomePrefix(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrMalformedURL
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// WithinHome reports whether target lies under the home prefix.
// The character after the prefix must end the host, so
// https://example.com.evil.org is not within https://example.com.
func WithinHome(home, target string) bool {
	if !strings.HasPrefix(target, home) {
		return false
	}
	rest := target[len(home):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}
