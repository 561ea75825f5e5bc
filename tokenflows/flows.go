package tokenflows

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/tenantsec/cloudauth-go/internal/httpx"
)

// HTTPClient is the transport capability flows need. *http.Client satisfies
// it; the client's timeout is the only deadline besides the request context.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the OAuth2 client the flows act as.
type Config struct {
	// Endpoints locates the provider. Pass a DelegationEndpoints
	// implementation (such as *DefaultEndpoints) to enable
	// certificate-bound flows.
	Endpoints Endpoints
	// ClientID and ClientSecret are this client's credentials. For the
	// user-token exchange these are the credentials of the client that
	// receives the exchanged token.
	ClientID     string
	ClientSecret string
	// ZoneID is this client's tenant zone, forwarded as the x-zid header
	// when set.
	ZoneID string
	// HTTPClient executes requests. Defaults to a client with a 30s
	// timeout.
	HTTPClient HTTPClient
	// Cache stores token responses across Execute calls. Defaults to an
	// in-memory cache; pass a *RedisCache to share across processes.
	Cache TokenCache
}

// Flows is the entry point for token flows. It is immutable after New and
// safe for concurrent use; each *Flow value it hands out is for one
// goroutine.
type Flows struct {
	svc          *tokenService
	endpoints    Endpoints
	delegation   DelegationEndpoints // nil when the provider has none
	clientID     string
	clientSecret string
	zoneID       string
	cache        TokenCache
}

// New builds the flows facade.
func New(cfg Config) (*Flows, error) {
	if cfg.Endpoints == nil {
		return nil, errors.New("tokenflows: endpoints are required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("tokenflows: client id is required")
	}
	var client httpx.Doer
	if cfg.HTTPClient != nil {
		client = cfg.HTTPClient
	} else {
		client = httpx.NewClient(0)
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	f := &Flows{
		svc:          &tokenService{client: client},
		endpoints:    cfg.Endpoints,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		zoneID:       cfg.ZoneID,
		cache:        cache,
	}
	if de, ok := cfg.Endpoints.(DelegationEndpoints); ok {
		f.delegation = de
	}
	return f, nil
}

// ClientCredentialsFlow starts a client-credentials grant.
func (f *Flows) ClientCredentialsFlow() *ClientCredentialsFlow {
	return &ClientCredentialsFlow{f: f}
}

// RefreshTokenFlow starts a refresh-token grant.
func (f *Flows) RefreshTokenFlow() *RefreshTokenFlow {
	return &RefreshTokenFlow{f: f}
}

// PasswordTokenFlow starts a resource-owner password grant.
func (f *Flows) PasswordTokenFlow() *PasswordTokenFlow {
	return &PasswordTokenFlow{f: f}
}

// UserTokenFlow starts a user-token exchange.
func (f *Flows) UserTokenFlow() *UserTokenFlow {
	return &UserTokenFlow{f: f}
}

func cacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
