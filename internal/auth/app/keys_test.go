package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitAuthKeys_MissingKeyIsFatal(t *testing.T) {
	cfg := Config{
		Algorithm:      jwtx.AlgorithmEdDSA,
		SigningKeyFile: filepath.Join(t.TempDir(), "absent.pem"),
	}

	_, err := InitAuthKeys(cfg, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, jwtx.ErrNoSigningKey)
}

func TestInitAuthKeys_FromGeneratedFile(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256, jwtx.AlgorithmHS256} {
		t.Run(alg, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "signing.pem")
			require.NoError(t, WriteSigningKey(path, alg, 0, false))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			km, err := InitAuthKeys(Config{Algorithm: alg, SigningKeyFile: path, Issuer: "accounts"}, discardLogger())
			require.NoError(t, err)
			assert.Equal(t, alg, km.Algorithm())
			assert.True(t, km.IsReady())
			assert.Equal(t, jwtx.DefaultKeyID, km.Signer.KID())
		})
	}
}

func TestInitAuthKeys_SecretWins(t *testing.T) {
	cfg := Config{
		Algorithm:      jwtx.AlgorithmHS256,
		SigningKeyFile: filepath.Join(t.TempDir(), "absent"),
		SigningSecret:  "0123456789abcdef0123456789abcdef",
		KeyID:          "k1",
	}

	km, err := InitAuthKeys(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "k1", km.Signer.KID())
}

func TestWriteSigningKey_NoOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, WriteSigningKey(path, jwtx.AlgorithmEdDSA, 0, false))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Error(t, WriteSigningKey(path, jwtx.AlgorithmEdDSA, 0, false))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, WriteSigningKey(path, jwtx.AlgorithmEdDSA, 0, true))
	after, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
