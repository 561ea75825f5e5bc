// Package wellknown holds the RFC 9728 protected-resource metadata document
// an authenticated service publishes under
// /.well-known/oauth-protected-resource.
package wellknown

// ProtectedResourceMetadata describes this service as an OAuth protected
// resource: which authorization servers vouch for it, where its keys live,
// and which scopes it understands.
type ProtectedResourceMetadata struct {
	Resource                              string   `json:"resource"`
	AuthorizationServers                  []string `json:"authorization_servers,omitempty"`
	JwksURI                               string   `json:"jwks_uri,omitempty"`
	ScopesSupported                       []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported                []string `json:"bearer_methods_supported,omitempty"`
	ResourceName                          string   `json:"resource_name,omitempty"`
	ResourceDocumentation                 string   `json:"resource_documentation,omitempty"`
	TLSClientCertificateBoundAccessTokens bool     `json:"tls_client_certificate_bound_access_tokens,omitempty"`
}
