package tokenkeys

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUntrustedEndpoint indicates a candidate JWKS URL was rejected by the
// trust gate. Resolution must fail for that attempt; there is no fallback
// to fetching from the rejected URL.
var ErrUntrustedEndpoint = errors.New("tokenkeys: untrusted jwks endpoint")

// TrustGate checks token-supplied JWKS URLs against the single trusted
// token-endpoint authority the resolver was configured with. Everything
// about the candidate URL is attacker-controllable, so every ambiguity
// fails closed.
type TrustGate struct {
	host string
	port string
}

// NewTrustGate derives the gate from the trusted endpoint URL, typically the
// issuer's configured token or JWKS base URL.
func NewTrustGate(trustedEndpoint string) (*TrustGate, error) {
	u, err := url.Parse(trustedEndpoint)
	if err != nil {
		return nil, fmt.Errorf("trusted endpoint: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("trusted endpoint %q has no host", trustedEndpoint)
	}
	return &TrustGate{host: u.Hostname(), port: portOrDefault(u)}, nil
}

// Check returns nil when candidate may be fetched, or an error wrapping
// ErrUntrustedEndpoint naming the first failed test. User-info is permitted
// but ignored for trust purposes: http://user@trusted/path is as trusted as
// http://trusted/path.
func (g *TrustGate) Check(candidate string) error {
	u, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("%w: unparseable url: %v", ErrUntrustedEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUntrustedEndpoint, u.Scheme)
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return fmt.Errorf("%w: no authority", ErrUntrustedEndpoint)
	}
	if u.Hostname() != g.host || portOrDefault(u) != g.port {
		return fmt.Errorf("%w: authority %q does not match trusted %s:%s",
			ErrUntrustedEndpoint, u.Host, g.host, g.port)
	}

	// The authority matched, but some HTTP clients re-interpret URLs whose
	// path smuggles a second authority (an @ after a path segment, or
	// repeated separators in front of another hostname). Reject those
	// shapes outright rather than trusting any one client's parser.
	for _, p := range []string{u.Path, u.RawPath, u.RawQuery, u.Fragment} {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return fmt.Errorf("%w: undecodable component", ErrUntrustedEndpoint)
		}
		if strings.Contains(decoded, "@") {
			return fmt.Errorf("%w: '@' in path or query", ErrUntrustedEndpoint)
		}
		if strings.Contains(decoded, "//") {
			return fmt.Errorf("%w: repeated separators in path or query", ErrUntrustedEndpoint)
		}
	}
	return nil
}

func portOrDefault(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
