package fetch

import (
	"context"
	"fmt"
	"net/http"
)

// RedirectCheck decides whether a redirect to target may be followed.
// A non-nil error stops the redirect chain and fails the fetch.
type RedirectCheck func(target string) error

type redirectCheckKey struct{}

// WithRedirectCheck returns a context whose fetches consult check before
// following each redirect. Fetches made with ctx itself are unaffected.
func WithRedirectCheck(ctx context.Context, check RedirectCheck) context.Context {
	return context.WithValue(ctx, redirectCheckKey{}, check)
}

func redirectCheckFrom(ctx context.Context) RedirectCheck {
	check, _ := ctx.Value(redirectCheckKey{}).(RedirectCheck)
	return check
}

// RedirectError is returned by a RedirectCheck that refuses a target.
type RedirectError struct {
	URL    string
	Reason string
}

// Error implements the error interface.
func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s rejected: %s", e.URL, e.Reason)
}

// Unwrap returns ErrRedirectRejected.
func (e *RedirectError) Unwrap() error {
	return ErrRedirectRejected
}

// checkRedirect wraps a client's redirect policy so the per-request
// RedirectCheck runs before it.
func checkRedirect(next func(*http.Request, []*http.Request) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if check := redirectCheckFrom(req.Context()); check != nil {
			if err := check(req.URL.String()); err != nil {
				return err
			}
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}
