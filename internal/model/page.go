package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Page represents a successfully fetched page.
// Hooks receive it in OnPage and result sinks persist records derived from it.
//
// Design decision: We keep the body as a string rather than a DOM because
// markup parsing is a separate collaborator. Hooks that need a DOM parse the
// content themselves, so pages that no hook inspects are never parsed twice.
type Page struct {
	// URL is the normalized URL the page was fetched from.
	URL string `json:"url"`

	// Depth is the hop distance from the seed URL (seed = 0).
	Depth int `json:"depth"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// Content is the decoded response body.
	Content string `json:"-"`

	// Links are the outgoing links accepted on this page, in discovery order.
	// Populated after policy and hook filtering.
	Links []Link `json:"links,omitempty"`

	// Hash is the SHA-256 hash of Content.
	Hash string `json:"hash,omitempty"`
}

// ComputeHash calculates and sets the SHA-256 hash of the page content.
func (p *Page) ComputeHash() {
	if len(p.Content) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.Content))
	p.Hash = hex.EncodeToString(hash[:])
}

// IsHTML returns true if the content type indicates HTML.
// An empty content type is treated as HTML because many servers omit it.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(strings.TrimSpace(p.ContentType))
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml")
}
