// Package urlnorm resolves candidate URLs against a seed origin and decides same-origin membership.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid marks a candidate that cannot be resolved to an absolute http(s) URL.
var ErrInvalid = errors.New("invalid url")

// Policy normalizes candidates relative to one seed and tests origin equality against it.
type Policy struct {
	origin *url.URL
}

// NewPolicy builds a Policy rooted at the seed's scheme, host, and port.
func NewPolicy(seed string) (*Policy, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seed, ErrInvalid)
	}
	if !httpScheme(u.Scheme) || u.Host == "" {
		return nil, fmt.Errorf("seed %q must be an absolute http(s) url: %w", seed, ErrInvalid)
	}
	return &Policy{origin: &url.URL{Scheme: strings.ToLower(u.Scheme), Host: canonicalHost(u)}}, nil
}

// Origin returns the seed origin, e.g. https://example.com.
func (p *Policy) Origin() string {
	return p.origin.String()
}

// Host returns the seed hostname without a port.
func (p *Policy) Host() string {
	return p.origin.Hostname()
}

// Normalize resolves raw into an absolute URL without a fragment.
// Protocol-relative candidates are bound to https, root-relative ones to the seed origin,
// and bare paths are joined to the origin root. Dot segments are collapsed and an empty path
// becomes "/".
func (p *Policy) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalid
	}
	var candidate string
	switch {
	case strings.HasPrefix(raw, "//"):
		candidate = "https:" + raw
	case strings.HasPrefix(raw, "/"):
		candidate = p.Origin() + raw
	case hasScheme(raw):
		candidate = raw
	default:
		candidate = p.Origin() + "/" + strings.TrimPrefix(raw, "./")
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return "", ErrInvalid
	}
	if !httpScheme(u.Scheme) || u.Host == "" {
		return "", ErrInvalid
	}
	// Resolving an absolute reference removes "." and ".." segments and keeps a trailing "/".
	u = p.origin.ResolveReference(u)
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// SameOrigin reports whether rawURL shares scheme, host, and port with the seed.
func (p *Policy) SameOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, p.origin.Scheme) && canonicalHost(u) == p.origin.Host
}

// Path returns the URL path of rawURL, or "/" when empty or unparsable.
func Path(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func httpScheme(s string) bool {
	return strings.EqualFold(s, "http") || strings.EqualFold(s, "https")
}

// hasScheme detects "scheme:" prefixes so javascript:, mailto:, and data: candidates are rejected
// instead of being joined to the origin as paths.
func hasScheme(raw string) bool {
	i := strings.Index(raw, ":")
	if i <= 0 {
		return false
	}
	for j, r := range raw[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	scheme := strings.ToLower(u.Scheme)
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port == "" {
		return host
	}
	return host + ":" + port
}
