package cmd

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify TOKEN",
	Short: "Verify a token against the configured signing key",
	Long: `Verifies the signature of a minted access token using the public half of
the configured signing key and dumps the decoded claims. Unlike
'grantd claims' this fails on an invalid or expired token.`,
	Example: `  grantd debug verify -f grantd.yaml <JWT token>`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}

		signer, err := buildSigner(cfg)
		if err != nil {
			return err
		}

		verified, err := signer.VerifyToken(args[0])
		if err != nil {
			return logError(err, "", "signature invalid")
		}
		log.Info().Msgf("%s signature verified", greenCheck)

		if mapClaims, ok := verified.Claims.(jwt.MapClaims); ok {
			log.Info().Msg("Decoded Claims:")
			log.Info().Msg(spew.Sdump(mapClaims))

			if iss, ok := mapClaims["iss"].(string); ok && iss != cfg.Issuer {
				log.Warn().
					Str("token_issuer", iss).
					Str("configured_issuer", cfg.Issuer).
					Msg("Issuer does not match the configured issuer")
			}
		}

		fmt.Printf("%s token is valid\n", greenCheck)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(verifyCmd)

	f.bindConfigFlag(verifyCmd.Flags())
	_ = verifyCmd.MarkFlagRequired("config")
}
