package cmd

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/core"
)

var (
	mintSubject  string
	mintAudience string
	mintScopes   []string
	mintTTL      time.Duration
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint and verify a token locally for testing",
	Long: `Test command that exercises the configured signing key without touching
the grant store. It builds a dummy claim set, signs it, verifies the
signature and dumps the decoded claims.`,
	Example: `  grantd debug mint -f grantd.yaml --sub alice --aud app-client --scope read`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}

		signer, err := buildSigner(cfg)
		if err != nil {
			return err
		}

		now := time.Now()
		claims := core.ClaimSet{
			Issuer:    cfg.Issuer,
			Subject:   mintSubject,
			Audience:  []string{mintAudience},
			ID:        uuid.NewString(),
			IssuedAt:  now,
			NotBefore: now,
			ExpiresAt: now.Add(mintTTL),
			Scopes:    mintScopes,
		}

		signed, err := signer.Sign(cmd.Context(), claims)
		if err != nil {
			return fmt.Errorf("minting failed: %w", err)
		}
		log.Info().
			Str("algorithm", signed.Algorithm).
			Str("key_id", signed.KeyID).
			Msg("Token minted successfully")

		verified, err := signer.VerifyToken(signed.Value)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		log.Info().Msgf("%s signature verified", greenCheck)

		if mapClaims, ok := verified.Claims.(jwt.MapClaims); ok {
			log.Info().Msg("Decoded Claims:")
			log.Info().Msg(spew.Sdump(mapClaims))
		}

		fmt.Println(signed.Value)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(mintCmd)

	f.bindConfigFlag(mintCmd.Flags())
	mintCmd.Flags().StringVar(&mintSubject, "sub", "debug-principal", "Subject claim of the test token")
	mintCmd.Flags().StringVar(&mintAudience, "aud", "debug-client", "Audience claim of the test token")
	mintCmd.Flags().StringArrayVar(&mintScopes, "scope", nil, "Scope to include (repeatable)")
	mintCmd.Flags().DurationVar(&mintTTL, "ttl", time.Hour, "Lifetime of the test token")

	_ = mintCmd.MarkFlagRequired("config")
}
