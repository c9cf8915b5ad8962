package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/atlas/internal/config"
	"golang.org/x/net/html/charset"
)

// acceptHeader prefers HTML but still accepts anything so non-HTML pages
// are reported instead of failing with 406.
const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Fetcher retrieves a single URL.
// Implementations must be safe for concurrent use and must honour ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Response is a successfully fetched page.
type Response struct {
	// URL is the final URL after redirects. Relative links on the page
	// resolve against it.
	URL string
	// StatusCode is the HTTP status (always 2xx for a returned Response).
	StatusCode int
	// ContentType is the raw Content-Type header.
	ContentType string
	// Body is the response body decoded to UTF-8 and capped at the
	// configured maximum size.
	Body []byte
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// HTTPFetcher fetches pages over HTTP(S).
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client built from the settings.
// The per-host header transport is still applied on top of it.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher from the crawl settings.
func NewHTTPFetcher(settings *config.Settings, opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		userAgent:   settings.UserAgent,
		maxBodySize: settings.MaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		client, err := NewHTTPClient(settings.Timeout, settings.Proxy)
		if err != nil {
			return nil, err
		}
		f.client = client
	} else {
		c := *f.client
		f.client = &c
	}

	base := f.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	site := settings.Clone()
	f.client.Transport = &headerInjectingTransport{
		base: base,
		headers: func(host string) map[string]string {
			return site.Site(host).Headers
		},
	}
	f.client.CheckRedirect = checkRedirect(f.client.CheckRedirect)

	return f, nil
}

// Fetch retrieves url. Non-2xx responses and transport failures are
// returned as *Error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return nil, &Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status),
		}
	}

	var body io.Reader = resp.Body
	if f.maxBodySize > 0 {
		body = io.LimitReader(body, f.maxBodySize)
	}

	contentType := resp.Header.Get("Content-Type")
	if isText(contentType) {
		decoded, err := charset.NewReader(body, contentType)
		if err != nil {
			f.logger.Debug("charset detection failed, using raw body", "url", url, "error", err)
		} else {
			body = decoded
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

// isText reports whether the body should be charset-decoded.
// An empty content type is treated as HTML.
func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}
