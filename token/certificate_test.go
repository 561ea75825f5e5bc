package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"net/url"
	"testing"
	"time"
)

func selfSignedDER(t *testing.T) []byte {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "consumer-app"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &pk.PublicKey, pk)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	return der
}

func TestParseForwardedCertificatePEM(t *testing.T) {
	der := selfSignedDER(t)
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	// Routers URL-encode the PEM to survive header transport.
	cert, err := ParseForwardedCertificate(url.QueryEscape(pemText))
	if err != nil {
		t.Fatalf("ParseForwardedCertificate: %v", err)
	}
	if cert.Subject() != "CN=consumer-app" {
		t.Errorf("Subject() = %q", cert.Subject())
	}
	if cert.PEM() != pemText {
		t.Error("PEM() should round-trip the input")
	}
	if cert.Thumbprint() == "" {
		t.Error("Thumbprint() should not be empty")
	}
}

func TestParseForwardedCertificateBase64DER(t *testing.T) {
	der := selfSignedDER(t)
	cert, err := ParseForwardedCertificate(base64.StdEncoding.EncodeToString(der))
	if err != nil {
		t.Fatalf("ParseForwardedCertificate: %v", err)
	}
	if cert.Subject() != "CN=consumer-app" {
		t.Errorf("Subject() = %q", cert.Subject())
	}
}

func TestParseForwardedCertificateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not a certificate", base64.StdEncoding.EncodeToString([]byte("junk"))} {
		if _, err := ParseForwardedCertificate(in); !errors.Is(err, ErrInvalidCertificate) {
			t.Errorf("ParseForwardedCertificate(%q) err = %v, want ErrInvalidCertificate", in, err)
		}
	}
}
