package cryptox

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// MinRSABits is the smallest RSA modulus we are willing to sign with.
const MinRSABits = 2048

// GenerateSigningKey generates a private key for the given JWT algorithm
// (EdDSA, ES256, RS256) and returns it PEM encoded in PKCS8 form. rsaBits is
// only consulted for RS256.
func GenerateSigningKey(alg string, rsaBits int) ([]byte, error) {
	var (
		key any
		err error
	)

	switch alg {
	case "EdDSA":
		_, key, err = ed25519.GenerateKey(rand.Reader)
	case "ES256":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "RS256":
		if rsaBits == 0 {
			rsaBits = 4096
		}
		if rsaBits < MinRSABits {
			return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
		}
		key, err = rsa.GenerateKey(rand.Reader, rsaBits)
	default:
		return nil, fmt.Errorf("cryptox: unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate %s key: %w", alg, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8 key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
