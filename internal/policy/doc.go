// Package policy decides whether a URL may be fetched.
//
// A URL is accepted only if it passes, in order:
//  1. URL validation (absolute http or https with a host)
//  2. The domain allow-list (exact host match, port ignored)
//  3. The ignore/follow path patterns for its host
//  4. The host's robots.txt rules for the configured user agent
//
// Checks short-circuit: a URL outside the allow-list never triggers a
// robots.txt request.
//
// Design decision: We treat an unavailable robots.txt (transport error,
// non-2xx status, unparsable body) as "allow all". An unreachable
// robots.txt must not block an otherwise reachable site, and a crawler
// that stops at the first flaky request is not useful.
package policy
