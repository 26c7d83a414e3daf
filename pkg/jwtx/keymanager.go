package jwtx

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrNoSigningKey is returned when no key material is configured. Callers
// treat it as fatal at startup.
var ErrNoSigningKey = errors.New("jwtx: no signing key configured")

// DefaultKeyID is used when the operator doesn't name the key.
const DefaultKeyID = "accounts-key-1"

// KeyManager bundles the process-wide signer with a verifier for the same
// key. It is built once at startup and read-only afterwards.
type KeyManager struct {
	Signer   Signer
	Verifier *Verifier
	KeySet   *KeySet
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Algorithm is one of EdDSA, ES256, RS256, HS256. Defaults to EdDSA.
	Algorithm string

	// KeyID is placed in the kid header. Defaults to DefaultKeyID.
	KeyID string

	// Key is the PEM private key, or the raw secret for HS256.
	Key []byte

	Issuer string
	Leeway time.Duration
	Now    func() time.Time
}

// NewKeyManager builds a KeyManager from in-memory key material.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if len(opts.Key) == 0 {
		return nil, ErrNoSigningKey
	}
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmEdDSA
	}
	if opts.KeyID == "" {
		opts.KeyID = DefaultKeyID
	}

	signer, err := NewSigner(opts.Algorithm, opts.KeyID, opts.Key)
	if err != nil {
		return nil, err
	}

	keys := NewKeySet()
	keys.AddSigner(signer)

	return &KeyManager{
		Signer: signer,
		KeySet: keys,
		Verifier: NewVerifier(keys, VerifyOptions{
			Algorithm: signer.Alg(),
			Issuer:    opts.Issuer,
			Leeway:    opts.Leeway,
			Now:       opts.Now,
		}),
	}, nil
}

// LoadKeyManager reads key material from keyFile (PEM, or a secret for
// HS256) unless secret is set, which wins. Neither being present yields
// ErrNoSigningKey.
func LoadKeyManager(opts KeyManagerOptions, keyFile, secret string) (*KeyManager, error) {
	switch {
	case secret != "":
		opts.Key = []byte(secret)
	case keyFile != "":
		data, err := os.ReadFile(keyFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s does not exist", ErrNoSigningKey, keyFile)
			}
			return nil, fmt.Errorf("jwtx: read signing key: %w", err)
		}
		if opts.Algorithm == AlgorithmHS256 {
			data = []byte(strings.TrimSpace(string(data)))
		}
		opts.Key = data
	default:
		return nil, ErrNoSigningKey
	}

	return NewKeyManager(opts)
}

// Algorithm returns the signing algorithm in use.
func (km *KeyManager) Algorithm() string { return km.Signer.Alg() }

// IsReady reports whether verification keys are loaded.
func (km *KeyManager) IsReady() bool { return km.KeySet.IsReady() }
