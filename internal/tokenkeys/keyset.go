package tokenkeys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/tenantsec/cloudauth-go/token"
)

// JSONWebKey is one verification key from a provider's JWKS document. Its
// identity is the (Algorithm, KeyID) pair; key material does not participate
// in identity.
type JSONWebKey struct {
	Algorithm string
	KeyID     string
	Use       string
	Key       crypto.PublicKey
}

type keyID struct {
	alg string
	kid string
}

// KeySet holds the keys fetched for one issuer endpoint plus memoized
// per-tenant acceptance decisions. A KeySet is built and populated by a
// single goroutine and then published read-only; mutating methods must not
// be called on a published set. Use Clone to derive a successor.
type KeySet struct {
	keys       map[keyID]JSONWebKey
	order      []keyID
	appTIDMemo map[string]bool
	maxKeys    int
	maxTenants int
}

// NewKeySet returns an empty set. maxKeys and maxTenants bound the number of
// stored keys and memoized tenant decisions; zero means unbounded.
func NewKeySet(maxKeys, maxTenants int) *KeySet {
	return &KeySet{
		keys:       make(map[keyID]JSONWebKey),
		appTIDMemo: make(map[string]bool),
		maxKeys:    maxKeys,
		maxTenants: maxTenants,
	}
}

// Put inserts a key. Inserting a key whose (Algorithm, KeyID) pair is
// already present is a no-op; the return value reports whether the set
// changed. A full set (maxKeys reached) also reports false.
func (s *KeySet) Put(k JSONWebKey) bool {
	id := keyID{alg: k.Algorithm, kid: k.KeyID}
	if _, exists := s.keys[id]; exists {
		return false
	}
	if s.maxKeys > 0 && len(s.keys) >= s.maxKeys {
		return false
	}
	s.keys[id] = k
	s.order = append(s.order, id)
	return true
}

// PutAll merges every key of other into s, keeping s's entry on conflicts.
func (s *KeySet) PutAll(other *KeySet) {
	for _, id := range other.order {
		s.Put(other.keys[id])
	}
}

// KeyByAlgorithmAndID looks up a key. An empty keyID is treated as the
// provider's default key id.
func (s *KeySet) KeyByAlgorithmAndID(alg, kid string) (JSONWebKey, bool) {
	if kid == "" {
		kid = token.DefaultKeyID
	}
	k, ok := s.keys[keyID{alg: alg, kid: kid}]
	return k, ok
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int { return len(s.keys) }

// ContainsAppTID reports whether a trust decision for the tenant has been
// memoized, accepted or not.
func (s *KeySet) ContainsAppTID(appTID string) bool {
	_, ok := s.appTIDMemo[appTID]
	return ok
}

// IsAppTIDAccepted returns the memoized trust decision for the tenant.
// Callers check ContainsAppTID first; an unknown tenant reports false.
func (s *KeySet) IsAppTIDAccepted(appTID string) bool { return s.appTIDMemo[appTID] }

// WithAppTID memoizes a tenant trust decision and returns s for chaining.
// Once the tenant bound is reached further decisions are not recorded; they
// will simply be recomputed by the caller on later requests.
func (s *KeySet) WithAppTID(appTID string, accepted bool) *KeySet {
	if _, exists := s.appTIDMemo[appTID]; !exists && s.maxTenants > 0 && len(s.appTIDMemo) >= s.maxTenants {
		return s
	}
	s.appTIDMemo[appTID] = accepted
	return s
}

// Clone returns an independent copy. Refreshes clone the published set,
// merge new keys into the clone, and publish the clone.
func (s *KeySet) Clone() *KeySet {
	dup := NewKeySet(s.maxKeys, s.maxTenants)
	for _, id := range s.order {
		dup.keys[id] = s.keys[id]
		dup.order = append(dup.order, id)
	}
	for tid, ok := range s.appTIDMemo {
		dup.appTIDMemo[tid] = ok
	}
	return dup
}

// ParseJWKS parses a JWKS document into a KeySet. Unknown document fields
// are ignored. Entries without a kid get the default key id; entries without
// an alg get one inferred from the key type. Entries whose key material
// cannot be used for signature verification are skipped, not fatal.
func ParseJWKS(doc []byte, maxKeys, maxTenants int) (*KeySet, error) {
	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(doc, &jwks); err != nil {
		return nil, fmt.Errorf("parse jwks document: %w", err)
	}
	set := NewKeySet(maxKeys, maxTenants)
	for _, jwk := range jwks.Keys {
		pub, ok := jwk.Key.(crypto.PublicKey)
		if !ok || jwk.Key == nil {
			continue
		}
		alg := jwk.Algorithm
		if alg == "" {
			alg = inferAlgorithm(jwk.Key)
		}
		if alg == "" {
			continue
		}
		kid := jwk.KeyID
		if kid == "" {
			kid = token.DefaultKeyID
		}
		set.Put(JSONWebKey{Algorithm: alg, KeyID: kid, Use: jwk.Use, Key: pub})
	}
	return set, nil
}

func inferAlgorithm(key any) string {
	switch key.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		return "ES256"
	}
	return ""
}
