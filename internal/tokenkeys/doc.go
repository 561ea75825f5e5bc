// Package tokenkeys resolves token verification keys from identity provider
// JWKS endpoints. It owns the in-memory key cache and the trust gate that
// decides whether a token-supplied JWKS URL may be fetched at all.
//
// The cache is read-mostly: lookups take no locks beyond an atomic pointer
// load, and refreshes publish a whole new key-set snapshot so a concurrent
// reader never iterates a partially merged set.
package tokenkeys
