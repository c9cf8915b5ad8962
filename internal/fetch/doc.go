// Package fetch retrieves pages for the crawl engine.
//
// The Fetcher interface is the only thing the engine knows about the
// network. HTTPFetcher is the production implementation: it sends the
// configured User-Agent and per-host headers, enforces the request timeout
// and body size limit, optionally routes through a SOCKS5 proxy, and
// decodes the body to UTF-8 based on the response charset.
//
// Failures are reported as *Error values carrying the HTTP status when one
// was received, so callers can distinguish "server said 404" from
// "connection refused" with errors.As.
package fetch
