package token

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ForwardedCertHeader is the request header a fronting router uses to hand
// the client's TLS certificate to the application.
const ForwardedCertHeader = "x-forwarded-client-cert"

// ErrInvalidCertificate indicates the forwarded certificate header could not
// be parsed into an X.509 certificate.
var ErrInvalidCertificate = errors.New("token: invalid client certificate")

// Certificate wraps one parsed client certificate together with the PEM form
// that certificate-bound token flows forward to the delegation endpoint.
type Certificate struct {
	pemEncoded string
	cert       *x509.Certificate
}

// ParseForwardedCertificate parses the value of the x-forwarded-client-cert
// header. Routers deliver either URL-encoded PEM or bare base64 DER; both
// forms are accepted.
func ParseForwardedCertificate(headerValue string) (*Certificate, error) {
	if headerValue == "" {
		return nil, fmt.Errorf("%w: empty header", ErrInvalidCertificate)
	}
	unescaped, err := url.QueryUnescape(headerValue)
	if err != nil {
		unescaped = headerValue
	}

	if block, _ := pem.Decode([]byte(unescaped)); block != nil {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
		return &Certificate{pemEncoded: unescaped, cert: cert}, nil
	}

	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(unescaped))
	if err != nil {
		return nil, fmt.Errorf("%w: neither PEM nor base64 DER", ErrInvalidCertificate)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	block := &pem.Block{Type: "CERTIFICATE", Bytes: der}
	return &Certificate{pemEncoded: string(pem.EncodeToMemory(block)), cert: cert}, nil
}

// PEM returns the PEM encoding of the certificate.
func (c *Certificate) PEM() string { return c.pemEncoded }

// Subject returns the certificate's subject distinguished name.
func (c *Certificate) Subject() string { return c.cert.Subject.String() }

// Thumbprint returns the base64url-encoded SHA-256 digest of the DER
// certificate, the form used for certificate-bound token confirmation.
func (c *Certificate) Thumbprint() string {
	sum := sha256.Sum256(c.cert.Raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
