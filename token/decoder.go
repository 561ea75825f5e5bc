package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates the input is not a well-formed compact JWT. It is a
// decode failure, not a validation verdict; callers on the validation path
// surface it as an invalid-token outcome rather than letting it escape.
var ErrMalformed = errors.New("token: malformed")

// Decode splits a compact serialization into its three segments and parses
// the header and payload into a Token. The signature segment is checked for
// base64url well-formedness only; verifying it is the signature validator's
// job.
func Decode(raw string) (*Token, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(segments))
	}

	header, err := decodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	claims, err := decodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(segments[2]); err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}

	return &Token{raw: raw, header: header, claims: claims}, nil
}

// HasScopeRaw reports whether the payload segment of raw carries the given
// scope in its "scope" claim array. Only the payload is decoded; the token is
// not validated. Any structural problem (wrong segment count, bad base64,
// non-array claim) reports false instead of an error. This mirrors the
// provider's historical behavior and can mask a malformed-but-privileged
// token; callers needing strict handling should Decode and inspect instead.
func HasScopeRaw(raw, scope string) bool {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return false
	}
	claims, err := decodeSegment(segments[1])
	if err != nil {
		return false
	}
	arr, ok := claims[ClaimScopes].([]any)
	if !ok {
		return false
	}
	for _, e := range arr {
		if s, ok := e.(string); ok && s == scope {
			return true
		}
	}
	return false
}

func decodeSegment(seg string) (map[string]any, error) {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
