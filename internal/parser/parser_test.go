package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/atlas/internal/model"
)

func TestParser_ExtractLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		html    string
		baseURL string
		want    []model.Link
	}{
		{
			name:    "resolves relative links in document order",
			baseURL: "https://example.com/docs/",
			html: `<html><body>
				<a href="intro">Intro</a>
				<a href="/about">About us</a>
				<a href="https://other.com/x">Other</a>
			</body></html>`,
			want: []model.Link{
				{Target: "https://example.com/docs/intro", AnchorText: "Intro"},
				{Target: "https://example.com/about", AnchorText: "About us"},
				{Target: "https://other.com/x", AnchorText: "Other"},
			},
		},
		{
			name:    "strips fragments and deduplicates keeping first anchor text",
			baseURL: "https://example.com/",
			html: `<a href="/a#top">First</a>
				<a href="/a#bottom">Second</a>
				<a href="/b">B</a>
				<a href="/a">Third</a>`,
			want: []model.Link{
				{Target: "https://example.com/a", AnchorText: "First"},
				{Target: "https://example.com/b", AnchorText: "B"},
			},
		},
		{
			name:    "skips non-navigational hrefs",
			baseURL: "https://example.com/",
			html: `<a href="javascript:void(0)">js</a>
				<a href="mailto:me@example.com">mail</a>
				<a href="tel:+123">tel</a>
				<a href="data:text/plain,hi">data</a>
				<a href="#section">frag</a>
				<a href="">empty</a>
				<a>no href</a>
				<a href="JavaScript:alert(1)">JS upper</a>
				<a href="/ok">ok</a>`,
			want: []model.Link{
				{Target: "https://example.com/ok", AnchorText: "ok"},
			},
		},
		{
			name:    "honours base href",
			baseURL: "https://example.com/page",
			html: `<html><head><base href="https://cdn.example.com/root/"></head>
				<body><a href="x">X</a></body></html>`,
			want: []model.Link{
				{Target: "https://cdn.example.com/root/x", AnchorText: "X"},
			},
		},
		{
			name:    "collapses nested anchor text",
			baseURL: "https://example.com/",
			html:    "<a href=\"/n\">  <span>Nested</span>\n  <b>text</b> </a>",
			want: []model.Link{
				{Target: "https://example.com/n", AnchorText: "Nested text"},
			},
		},
		{
			name:    "anchor text is NFC normalized",
			baseURL: "https://example.com/",
			html:    "<a href=\"/cafe\">Cafe\u0301</a>",
			want: []model.Link{
				{Target: "https://example.com/cafe", AnchorText: "Caf\u00e9"},
			},
		},
		{
			name:    "root link is normalized without trailing slash",
			baseURL: "https://Example.com/a",
			html:    `<a href="/">Home</a>`,
			want: []model.Link{
				{Target: "https://example.com", AnchorText: "Home"},
			},
		},
		{
			name:    "non-http absolute links are kept for the policy to reject",
			baseURL: "https://example.com/",
			html:    `<a href="ftp://files.example.com/a.zip">zip</a>`,
			want: []model.Link{
				{Target: "ftp://files.example.com/a.zip", AnchorText: "zip"},
			},
		},
		{
			name:    "page without links",
			baseURL: "https://example.com/",
			html:    `<p>nothing here</p>`,
			want:    []model.Link{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := New().ExtractLinks(strings.NewReader(tt.html), tt.baseURL)
			if err != nil {
				t.Fatalf("ExtractLinks failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d links, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("link %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		result, err := New().Parse(strings.NewReader("<title>\n  Hello   World </title>"), "https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		if result.Title != "Hello World" {
			t.Errorf("unexpected title: %q", result.Title)
		}
	})

	t.Run("invalid base URL", func(t *testing.T) {
		t.Parallel()

		_, err := New().Parse(strings.NewReader("<a href='/x'>x</a>"), "http://[::1")
		if !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})
}
