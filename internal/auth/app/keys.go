package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// InitAuthKeys loads the process-wide signing key. A missing key is fatal:
// the service never starts with a generated key, since every token would die
// with the process.
//
// Sources, in order:
//   - AUTH_SIGNING_SECRET: raw HS256 secret
//   - AUTH_SIGNING_KEY_FILE: PKCS8 PEM for EdDSA, ES256 or RS256, or a
//     secret file for HS256
//
// Use `auth keygen` to create the key file.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	keyManager, err := jwtx.LoadKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		KeyID:     cfg.KeyID,
		Issuer:    cfg.Issuer,
	}, cfg.SigningKeyFile, cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	source := cfg.SigningKeyFile
	if cfg.SigningSecret != "" {
		source = "AUTH_SIGNING_SECRET"
	}
	logger.Info("signing key loaded",
		"algorithm", keyManager.Algorithm(),
		"kid", keyManager.Signer.KID(),
		"source", source,
		"issuer", cfg.Issuer,
	)

	return keyManager, nil
}

// WriteSigningKey generates a key for alg and writes it to path with mode
// 0600. An existing file is only replaced when overwrite is set.
func WriteSigningKey(path, alg string, rsaBits int, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s already exists", path)
	}

	var data []byte
	if alg == jwtx.AlgorithmHS256 {
		secret, err := cryptox.GenerateToken(32)
		if err != nil {
			return err
		}
		data = []byte(secret + "\n")
	} else {
		pem, err := cryptox.GenerateSigningKey(alg, rsaBits)
		if err != nil {
			return err
		}
		data = pem
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
