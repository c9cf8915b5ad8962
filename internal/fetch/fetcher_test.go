package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/atlas/internal/config"
)

func newTestSettings() *config.Settings {
	s := config.NewSettings()
	s.Timeout = 5 * time.Second
	return s
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and headers for 2xx", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer server.Close()

		f, err := NewHTTPFetcher(newTestSettings())
		if err != nil {
			t.Fatalf("NewHTTPFetcher failed: %v", err)
		}

		resp, err := f.Fetch(t.Context(), server.URL)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(string(resp.Body), "hello") {
			t.Errorf("unexpected body: %s", resp.Body)
		}
		got := <-headers
		gotUA, gotAccept := got.Get("User-Agent"), got.Get("Accept")
		if gotUA != config.DefaultUserAgent {
			t.Errorf("expected User-Agent %q, got %q", config.DefaultUserAgent, gotUA)
		}
		if !strings.HasPrefix(gotAccept, "text/html") {
			t.Errorf("unexpected Accept header: %q", gotAccept)
		}
	})

	t.Run("non-2xx is an Error with status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		f, err := NewHTTPFetcher(newTestSettings())
		if err != nil {
			t.Fatal(err)
		}

		_, err = f.Fetch(t.Context(), server.URL+"/missing")
		var fe *Error
		if !errors.As(err, &fe) {
			t.Fatalf("expected *Error, got %T (%v)", err, err)
		}
		if fe.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", fe.StatusCode)
		}
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", err)
		}
		if StatusCode(err) != http.StatusNotFound {
			t.Errorf("StatusCode helper returned %d", StatusCode(err))
		}
	})

	t.Run("transport failure is an Error without status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		f, err := NewHTTPFetcher(newTestSettings())
		if err != nil {
			t.Fatal(err)
		}

		_, err = f.Fetch(t.Context(), addr)
		var fe *Error
		if !errors.As(err, &fe) {
			t.Fatalf("expected *Error, got %T (%v)", err, err)
		}
		if fe.StatusCode != 0 {
			t.Errorf("expected no status, got %d", fe.StatusCode)
		}
	})

	t.Run("body is capped at MaxBodySize", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		}))
		defer server.Close()

		s := newTestSettings()
		s.MaxBodySize = 100
		f, err := NewHTTPFetcher(s)
		if err != nil {
			t.Fatal(err)
		}

		resp, err := f.Fetch(t.Context(), server.URL)
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Body) != 100 {
			t.Errorf("expected 100 bytes, got %d", len(resp.Body))
		}
	})

	t.Run("decodes legacy charsets to UTF-8", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			// "café" in Latin-1
			_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
		}))
		defer server.Close()

		f, err := NewHTTPFetcher(newTestSettings())
		if err != nil {
			t.Fatal(err)
		}

		resp, err := f.Fetch(t.Context(), server.URL)
		if err != nil {
			t.Fatal(err)
		}
		if string(resp.Body) != "café" {
			t.Errorf("expected UTF-8 'café', got %q", resp.Body)
		}
	})

	t.Run("per-host headers are sent", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
		}))
		defer server.Close()

		s := newTestSettings()
		s.Headers = map[string]string{"X-Global": "g"}
		s.Sites = map[string]config.SiteConfig{
			"127.0.0.1": {Headers: map[string]string{"X-Site": "s"}},
		}
		f, err := NewHTTPFetcher(s)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := f.Fetch(t.Context(), server.URL); err != nil {
			t.Fatal(err)
		}
		got := <-headers
		gotGlobal, gotSite := got.Get("X-Global"), got.Get("X-Site")
		if gotGlobal != "g" || gotSite != "s" {
			t.Errorf("expected headers g/s, got %q/%q", gotGlobal, gotSite)
		}
	})

	t.Run("reports final URL after redirect", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("new"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		f, err := NewHTTPFetcher(newTestSettings())
		if err != nil {
			t.Fatal(err)
		}

		resp, err := f.Fetch(t.Context(), server.URL+"/old")
		if err != nil {
			t.Fatal(err)
		}
		if resp.URL != server.URL+"/new" {
			t.Errorf("expected final URL %s/new, got %s", server.URL, resp.URL)
		}
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		defer server.Close()

		f, err := NewHTTPFetcher(newTestSettings())
		if err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err = f.Fetch(ctx, server.URL)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestHTTPFetcher_RedirectCheck(t *testing.T) {
	t.Parallel()

	var targetHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/from", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/to", http.StatusFound)
	})
	mux.HandleFunc("/to", func(w http.ResponseWriter, _ *http.Request) {
		targetHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>target</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f, err := NewHTTPFetcher(newTestSettings())
	if err != nil {
		t.Fatalf("NewHTTPFetcher failed: %v", err)
	}

	t.Run("refused target is not requested", func(t *testing.T) {
		var seen string
		ctx := WithRedirectCheck(t.Context(), func(target string) error {
			seen = target
			return &RedirectError{URL: target, Reason: "robots_disallowed"}
		})

		_, err := f.Fetch(ctx, server.URL+"/from")
		if !errors.Is(err, ErrRedirectRejected) {
			t.Fatalf("expected ErrRedirectRejected, got %v", err)
		}
		var re *RedirectError
		if !errors.As(err, &re) || re.Reason != "robots_disallowed" {
			t.Errorf("expected *RedirectError with reason, got %v", err)
		}
		if seen != server.URL+"/to" {
			t.Errorf("check saw %q, want %q", seen, server.URL+"/to")
		}
		if n := targetHits.Load(); n != 0 {
			t.Errorf("refused target requested %d times", n)
		}
	})

	t.Run("allowed target is followed", func(t *testing.T) {
		ctx := WithRedirectCheck(t.Context(), func(string) error { return nil })

		resp, err := f.Fetch(ctx, server.URL+"/from")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if !strings.Contains(string(resp.Body), "target") {
			t.Errorf("unexpected body: %s", resp.Body)
		}
	})

	t.Run("no check follows redirects", func(t *testing.T) {
		if _, err := f.Fetch(t.Context(), server.URL+"/from"); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("rejects malformed proxy", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(time.Second, "localhost")
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("accepts SOCKS5 proxy address", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(time.Second, "127.0.0.1:1080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transport, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", client.Transport)
		}
		if transport.DialContext == nil {
			t.Error("expected proxy dialer to be installed")
		}
		if transport.Proxy != nil {
			t.Error("environment proxy must be disabled when SOCKS5 is configured")
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"[::1]:1080", true},
		{"localhost", false},
		{":1080", false},
		{"localhost:0", false},
		{"localhost:70000", false},
		{"localhost:abc", false},
	}

	for _, tt := range tests {
		if got := isValidProxyAddress(tt.address); got != tt.want {
			t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestFetcherFunc(t *testing.T) {
	t.Parallel()

	f := FetcherFunc(func(_ context.Context, url string) (*Response, error) {
		return &Response{URL: url, StatusCode: http.StatusOK}, nil
	})

	resp, err := f.Fetch(t.Context(), "https://example.com")
	if err != nil || resp.URL != "https://example.com" {
		t.Errorf("unexpected result: %+v, %v", resp, err)
	}
}
