package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/tenantsec/cloudauth-go/internal/logctx"
	"github.com/tenantsec/cloudauth-go/internal/wellknown"
)

const wwwAuthenticateHeader = "WWW-Authenticate"

// MetadataPath is where MetadataHandler expects to be mounted. Bearer
// challenges advertise this path resolved against the configured resource.
const MetadataPath = "/.well-known/oauth-protected-resource"

// Middleware protects an http.Handler with bearer-token authentication.
// Unauthenticated requests get a 401 with an RFC 6750 Bearer challenge
// pointing at the protected-resource metadata document; authenticated ones
// reach the wrapped handler with the principal in the request context.
type Middleware struct {
	auth        *Authenticator
	realm       string
	prm         wellknown.ProtectedResourceMetadata
	metadataURL string
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithRealm sets the authentication realm advertised in Bearer challenges.
func WithRealm(realm string) MiddlewareOption {
	return func(m *Middleware) { m.realm = strings.TrimSpace(realm) }
}

// WithProtectedResource describes this service as an OAuth protected
// resource. resource is this service's URL, issuer the authorization server
// vouching for it; both end up in the metadata document served by
// MetadataHandler.
func WithProtectedResource(resource, issuer, jwksURI string, scopes ...string) MiddlewareOption {
	return func(m *Middleware) {
		m.prm = wellknown.ProtectedResourceMetadata{
			Resource:               resource,
			AuthorizationServers:   []string{issuer},
			JwksURI:                jwksURI,
			ScopesSupported:        scopes,
			BearerMethodsSupported: []string{"authorization_header"},
		}
		m.metadataURL = metadataURLFor(resource)
	}
}

// metadataURLFor places the well-known metadata path at the root of the
// resource's origin, after any path the resource itself carries. Clients
// dereference the challenge's resource_metadata parameter directly, so it
// has to be an absolute URL.
func metadataURLFor(resource string) string {
	u, err := url.Parse(resource)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSuffix(resource, "/") + MetadataPath
	}
	path := strings.TrimSuffix(u.Path, "/")
	u.Path = MetadataPath + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// NewMiddleware wraps the authenticator for use as HTTP middleware.
func NewMiddleware(a *Authenticator, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{auth: a}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap returns a handler that authenticates every request before delegating
// to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
			RequestID:  uuid.NewString(),
			RemoteAddr: r.RemoteAddr,
			Path:       r.URL.Path,
		})

		res := m.auth.Authenticate(ctx, r)
		if !res.Authenticated() {
			params := map[string]string{"error": "invalid_token"}
			if r.Header.Get("Authorization") == "" {
				// No credentials at all: challenge without an error code.
				params = nil
			}
			w.Header().Add(wwwAuthenticateHeader, m.bearerChallenge(params))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(res.Context(ctx)))
	})
}

// MetadataHandler serves the protected-resource metadata document. Mount it
// at MetadataPath.
func (m *Middleware) MetadataHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.prm); err != nil {
			m.auth.log.ErrorContext(r.Context(), "failed to encode resource metadata", "error", err)
		}
	})
}

// bearerChallenge renders the WWW-Authenticate value. Parameter order is
// fixed so the header is stable across requests.
func (m *Middleware) bearerChallenge(params map[string]string) string {
	esc := func(v string) string {
		return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
	}
	pieces := make([]string, 0, 3)
	if m.realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(m.realm)))
	}
	if m.metadataURL != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(m.metadataURL)))
	}
	if v, ok := params["error"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error="%s"`, esc(v)))
	}
	if v, ok := params["error_description"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error_description="%s"`, esc(v)))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
