package jwtx

import (
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds verification keys by kid. It's safe for concurrent use so the
// readiness probe can look at it while requests are being verified.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]any // kid: ed25519.PublicKey | *ecdsa.PublicKey | *rsa.PublicKey | []byte
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]any)}
}

// AddSigner registers a Signer's verification key under its kid.
func (k *KeySet) AddSigner(s Signer) {
	k.Add(s.KID(), s.VerificationKey())
}

// Add registers key under kid, replacing any previous key with the same kid.
func (k *KeySet) Add(kid string, key any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[kid] = key
}

// Get returns the verification key for kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if key, ok := k.keys[kid]; ok {
		return key, nil
	}
	return nil, ErrNoKey
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}
