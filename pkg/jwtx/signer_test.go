package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "accounts-test"

func keyFor(t *testing.T, alg string) []byte {
	t.Helper()
	if alg == jwtx.AlgorithmHS256 {
		return []byte("0123456789abcdef0123456789abcdef")
	}
	pemKey, err := cryptox.GenerateSigningKey(alg, 2048)
	require.NoError(t, err)
	return pemKey
}

func TestSignAndVerify_AllAlgorithms(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256, jwtx.AlgorithmRS256, jwtx.AlgorithmHS256} {
		t.Run(alg, func(t *testing.T) {
			km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
				Algorithm: alg,
				KeyID:     "k-" + alg,
				Key:       keyFor(t, alg),
				Issuer:    exampleIssuer,
			})
			require.NoError(t, err)
			require.Equal(t, alg, km.Algorithm())
			require.True(t, km.IsReady())

			claims := jwtx.NewClaims("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", jwtx.PurposeSession, exampleIssuer, time.Hour, time.Now())
			token, err := km.Signer.Sign(claims)
			require.NoError(t, err)

			parsed, err := km.Verifier.Verify(token, jwtx.PurposeSession)
			require.NoError(t, err)
			require.Equal(t, claims.Subject, parsed.Subject)
			require.Equal(t, claims.ID, parsed.ID)
			require.Equal(t, jwtx.PurposeSession, parsed.Purpose)
		})
	}
}

func TestNewSigner_RejectsBadKeys(t *testing.T) {
	_, err := jwtx.NewSigner(jwtx.AlgorithmEdDSA, "k", []byte("not pem"))
	require.Error(t, err)

	// ES256 key handed to the EdDSA constructor.
	_, err = jwtx.NewSigner(jwtx.AlgorithmEdDSA, "k", keyFor(t, jwtx.AlgorithmES256))
	require.Error(t, err)

	_, err = jwtx.NewSigner(jwtx.AlgorithmHS256, "k", []byte("short"))
	require.Error(t, err)

	_, err = jwtx.NewSigner("none", "k", []byte("whatever"))
	require.Error(t, err)
}
