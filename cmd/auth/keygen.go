package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/accounts/internal/auth/app"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	var (
		out     string
		alg     string
		rsaBits int
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a token signing key",
		Long: `Generate the key the service signs session and reset tokens with.
Point AUTH_SIGNING_KEY_FILE and AUTH_ALGORITHM at the result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.WriteSigningKey(out, alg, rsaBits, force); err != nil {
				return oops.Code("KEYGEN_FAILED").With("path", out).With("algorithm", alg).Wrap(err)
			}
			cmd.Printf("Wrote %s key to %s\n", alg, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "signing.pem", "output path")
	cmd.Flags().StringVar(&alg, "alg", jwtx.AlgorithmEdDSA, "EdDSA, ES256, RS256 or HS256")
	cmd.Flags().IntVar(&rsaBits, "rsa-bits", 2048, "RSA key size for RS256")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
