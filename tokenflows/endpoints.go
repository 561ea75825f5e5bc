package tokenflows

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints names the provider URLs a basic flow needs.
type Endpoints interface {
	TokenEndpoint() string
}

// DelegationEndpoints is the capability certificate-bound flows need on top
// of Endpoints. Providers without a delegation endpoint simply do not
// implement it, which keeps certificate flows off the table for them.
type DelegationEndpoints interface {
	Endpoints
	DelegationTokenEndpoint() string
}

// DefaultEndpoints derives the standard endpoint layout from a provider base
// URL. It implements DelegationEndpoints.
type DefaultEndpoints struct {
	base string
}

// NewDefaultEndpoints builds endpoints under baseURL, which must carry a
// scheme and host.
func NewDefaultEndpoints(baseURL string) (*DefaultEndpoints, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("tokenflows: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("tokenflows: base url %q must be absolute", baseURL)
	}
	return &DefaultEndpoints{base: strings.TrimRight(baseURL, "/")}, nil
}

// TokenEndpoint returns the token endpoint under the base URL.
func (e *DefaultEndpoints) TokenEndpoint() string { return e.base + "/oauth/token" }

// DelegationTokenEndpoint returns the certificate-bound delegation endpoint
// under the base URL.
func (e *DefaultEndpoints) DelegationTokenEndpoint() string {
	return e.base + "/delegation/oauth/token"
}

// replaceSubdomain rewrites the first host label of endpoint to subdomain,
// addressing the tenant's instance of a multi-tenant provider. An empty
// subdomain leaves the endpoint unchanged; an unparseable endpoint is
// returned unchanged as well, and fails later at request time.
func replaceSubdomain(endpoint, subdomain string) string {
	if subdomain == "" {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	labels := strings.SplitN(u.Hostname(), ".", 2)
	if len(labels) < 2 {
		return endpoint
	}
	host := subdomain + "." + labels[1]
	if p := u.Port(); p != "" {
		host += ":" + p
	}
	u.Host = host
	return u.String()
}
