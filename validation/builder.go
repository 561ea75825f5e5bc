package validation

import (
	"errors"
	"net/http"
	"time"

	"github.com/tenantsec/cloudauth-go/internal/httpx"
	"github.com/tenantsec/cloudauth-go/internal/tokenkeys"
)

// HTTPClient is the transport capability the chain needs for key retrieval:
// execute one request, blocking, with whatever timeout the client enforces.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CacheConfig bounds reuse of resolved keys and tenant-acceptance decisions.
type CacheConfig struct {
	// TTL is how long a fetched key set is served before a refresh.
	TTL time.Duration
	// MaxSize caps cached keys and memoized tenant decisions per issuer.
	MaxSize int
}

// Config describes the identity service a chain validates tokens for.
type Config struct {
	// IssuerURL is the trusted issuer, e.g. "https://acme.auth.example.com".
	IssuerURL string
	// JwksURL is the trusted JWKS endpoint. It seeds the SSRF trust gate
	// that token-supplied jku headers are checked against.
	JwksURL string
	// ClientID identifies this service at the provider. Used as the default
	// accepted audience and forwarded on key fetches.
	ClientID string
	// Audiences the service accepts; defaults to [ClientID].
	Audiences []string
	// IdentityDomains are provider domains whose tenant subdomains are
	// trusted issuers, for multi-tenant setups.
	IdentityDomains []string
	// AppTID is this application's own tenant id. When AcceptTenant is nil,
	// only tokens carrying it (or no tenant claim at all when it is empty)
	// are accepted.
	AppTID string
}

// Builder assembles an immutable CombiningValidator. Configure once during
// setup; the built chain is then shared across requests.
type Builder struct {
	cfg          Config
	httpClient   HTTPClient
	cache        CacheConfig
	leeway       time.Duration
	allowedAlgs  []string
	keys         KeySource
	acceptTenant func(string) bool
	listeners    []Listener
	extra        []namedValidator
}

// NewBuilder starts a builder for the given service configuration.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, leeway: 60 * time.Second, allowedAlgs: []string{"RS256"}}
}

// WithHTTPClient sets the transport used for key retrieval. Defaults to an
// http.Client with a 30s timeout.
func (b *Builder) WithHTTPClient(c HTTPClient) *Builder {
	b.httpClient = c
	return b
}

// WithCacheConfig bounds the token-key cache.
func (b *Builder) WithCacheConfig(cc CacheConfig) *Builder {
	b.cache = cc
	return b
}

// WithLeeway sets the clock-skew tolerance for time-based checks.
func (b *Builder) WithLeeway(d time.Duration) *Builder {
	b.leeway = d
	return b
}

// WithAllowedAlgorithms overrides the accepted signature algorithms.
func (b *Builder) WithAllowedAlgorithms(algs ...string) *Builder {
	b.allowedAlgs = algs
	return b
}

// WithKeySource overrides key resolution, e.g. with the OIDC discovery
// source. When set, no JWKS provider is constructed and tenant decisions
// are not memoized on the key cache.
func (b *Builder) WithKeySource(ks KeySource) *Builder {
	b.keys = ks
	return b
}

// WithTenantCheck overrides the tenant acceptance decision.
func (b *Builder) WithTenantCheck(accept func(appTID string) bool) *Builder {
	b.acceptTenant = accept
	return b
}

// WithListener registers a listener notified of every outcome.
func (b *Builder) WithListener(l Listener) *Builder {
	b.listeners = append(b.listeners, l)
	return b
}

// With appends a caller-supplied validator under the given check name. It
// runs after the built-in checks, in registration order.
func (b *Builder) With(name string, v Validator) *Builder {
	b.extra = append(b.extra, namedValidator{name: name, v: v})
	return b
}

// Build assembles the chain. Sub-validator order puts the cheap local checks
// before the signature check so a stale token never triggers a key fetch.
func (b *Builder) Build() (*CombiningValidator, error) {
	accept := b.acceptTenant
	if accept == nil {
		own := b.cfg.AppTID
		accept = func(tid string) bool { return tid == own }
	}

	keys := b.keys
	var gate TenantGate
	if keys == nil {
		if b.cfg.JwksURL == "" {
			return nil, errors.New("validation: JwksURL or a KeySource is required")
		}
		var client httpx.Doer = b.httpClient
		if client == nil {
			client = httpx.NewClient(0)
		}
		provider, err := tokenkeys.NewProvider(tokenkeys.ProviderConfig{
			Client:   client,
			JwksURL:  b.cfg.JwksURL,
			ClientID: b.cfg.ClientID,
			AppTID:   b.cfg.AppTID,
			Cache: tokenkeys.CacheConfig{
				TTL:        b.cache.TTL,
				MaxKeys:    b.cache.MaxSize,
				MaxTenants: b.cache.MaxSize,
			},
		})
		if err != nil {
			return nil, err
		}
		keys = provider
		gate = provider
	}

	audiences := b.cfg.Audiences
	if len(audiences) == 0 && b.cfg.ClientID != "" {
		audiences = []string{b.cfg.ClientID}
	}

	now := time.Now
	validators := []namedValidator{
		{name: checkExpiration, v: newExpirationValidator(now, b.leeway)},
		{name: checkNotBefore, v: newNotBeforeValidator(now, b.leeway)},
		{name: checkIssuer, v: newIssuerValidator(b.cfg.IssuerURL, b.cfg.IdentityDomains)},
		{name: checkAudience, v: newAudienceValidator(audiences)},
		{name: checkTenant, v: newTenantValidator(gate, accept)},
		{name: checkSignature, v: newSignatureValidator(keys, b.allowedAlgs)},
	}
	validators = append(validators, b.extra...)

	return &CombiningValidator{
		validators: validators,
		listeners:  append([]Listener(nil), b.listeners...),
	}, nil
}
