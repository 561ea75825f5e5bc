// Package token decodes compact-serialized JWTs into immutable Token values
// and gives typed access to the header and claim fields the rest of the
// module consults. Decoding makes no trust decisions: a successfully decoded
// Token is still unvalidated, and header fields such as the JWKS URL are
// untrusted input until they pass the key-resolution trust gate.
package token
