package extension

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/atlas/internal/hook"
	"github.com/nao1215/atlas/internal/model"
)

// NoTitle is recorded for pages without a <title>.
const NoTitle = "No Title"

// TitleHook records the title and visible text length of every HTML page.
type TitleHook struct {
	hook.Base
}

// NewTitleHook creates a TitleHook.
func NewTitleHook() *TitleHook {
	return &TitleHook{}
}

// Name returns the hook name.
func (h *TitleHook) Name() string {
	return NameTitle
}

// OnPage returns {url, title, length, depth}. Non-HTML pages produce no record.
func (h *TitleHook) OnPage(_ context.Context, page *model.Page, _ *hook.Context) (model.Record, error) {
	if !page.IsHTML() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", page.URL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = NoTitle
	}

	return model.Record{
		"url":    page.URL,
		"title":  title,
		"length": utf8.RuneCountInString(visibleText(doc)),
		"depth":  page.Depth,
	}, nil
}

// visibleText returns the document text with whitespace runs collapsed.
// Script and style contents are not visible and are dropped.
func visibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
