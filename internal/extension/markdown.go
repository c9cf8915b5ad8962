package extension

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// MarkdownHook records each HTML page converted to GitHub flavored Markdown.
type MarkdownHook struct {
	hook.Base
	maxLength int
}

// MarkdownOption configures a MarkdownHook.
type MarkdownOption func(*MarkdownHook)

// WithMaxLength truncates the Markdown to n runes. 0 disables truncation.
func WithMaxLength(n int) MarkdownOption {
	return func(h *MarkdownHook) {
		h.maxLength = n
	}
}

// NewMarkdownHook creates a MarkdownHook.
func NewMarkdownHook(opts ...MarkdownOption) *MarkdownHook {
	h := &MarkdownHook{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the hook name.
func (h *MarkdownHook) Name() string {
	return NameMarkdown
}

// OnPage returns {url, markdown, hash, truncated}.
func (h *MarkdownHook) OnPage(_ context.Context, page *model.Page, _ *hook.Context) (model.Record, error) {
	if !page.IsHTML() {
		return nil, nil
	}

	// The converter is not documented as safe for concurrent use, and the
	// layered strategy calls OnPage from several goroutines.
	converter := md.NewConverter(hostOf(page.URL), true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style", "noscript")

	markdown, err := converter.ConvertString(page.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", page.URL, err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n"))

	truncated := false
	if h.maxLength > 0 {
		if runes := []rune(markdown); len(runes) > h.maxLength {
			markdown = string(runes[:h.maxLength])
			truncated = true
		}
	}

	return model.Record{
		"url":       page.URL,
		"markdown":  markdown,
		"hash":      page.Hash,
		"truncated": truncated,
	}, nil
}
