package tokenflows

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// ClientCredentialsFlow obtains a technical token for the configured client.
// Single request, no precondition beyond client credentials and endpoint.
type ClientCredentialsFlow struct {
	f            *Flows
	subdomain    string
	disableCache bool
}

// Subdomain addresses the given tenant's instance of the provider.
func (c *ClientCredentialsFlow) Subdomain(subdomain string) *ClientCredentialsFlow {
	c.subdomain = subdomain
	return c
}

// DisableCache bypasses the token-response cache for this execution.
func (c *ClientCredentialsFlow) DisableCache(disable bool) *ClientCredentialsFlow {
	c.disableCache = disable
	return c
}

// Execute runs the grant. Mandatory fields are checked here, once, before
// any network call.
func (c *ClientCredentialsFlow) Execute(ctx context.Context) (*oauth2.Token, error) {
	if c.f.clientSecret == "" {
		return nil, fmt.Errorf("%w: client secret is required for the client-credentials grant", ErrConfiguration)
	}
	endpoint := replaceSubdomain(c.f.endpoints.TokenEndpoint(), c.subdomain)
	key := cacheKey(endpoint, c.f.clientID, grantTypeClientCredentials, c.f.zoneID)

	if !c.disableCache {
		if tok, ok := c.f.cache.Get(ctx, key); ok && tok.Valid() {
			return tok, nil
		}
	}
	tok, err := c.f.svc.clientCredentialsGrant(ctx, endpoint, c.f.clientID, c.f.clientSecret, c.f.zoneID)
	if err != nil {
		return nil, err
	}
	if !c.disableCache {
		c.f.cache.Put(ctx, key, tok)
	}
	return tok, nil
}
