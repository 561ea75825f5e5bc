package validation

import (
	"context"

	"github.com/tenantsec/cloudauth-go/internal/oidcdisc"
)

// NewDiscoveryKeySource resolves keys through the issuer's OIDC discovery
// metadata instead of a configured JWKS URL. Use it with WithKeySource for
// providers that publish /.well-known/openid-configuration; token-supplied
// jku headers are ignored on this path because the JWKS URI is
// discovery-derived and trusted. ctx scopes the background key refresh.
func NewDiscoveryKeySource(ctx context.Context, issuer string) (KeySource, error) {
	return oidcdisc.New(ctx, issuer)
}
