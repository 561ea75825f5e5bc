// Package tokenflows mints new tokens on a caller's behalf by driving the
// identity provider's OAuth2 grants: client credentials, refresh token,
// resource-owner password, and the user-token exchange with its
// certificate-bound JWT-bearer variant. Each flow is a small synchronous
// state machine over one shared HTTP transport; flows share no mutable state
// beyond the configuration they are built with, and none of them retries —
// callers wanting resilience wrap Execute themselves.
package tokenflows
