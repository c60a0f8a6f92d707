package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/internal/grant"
	"github.com/grantd/grantd/pkg/client"
)

var (
	exchangeCode         string
	exchangeClientID     string
	exchangeClientSecret string
	exchangeRedirectURI  string
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Redeem an authorization code for an access token",
	Long: `Exchanges a single-use authorization code for a signed bearer access token.

Modes:
  1. Remote (default): contacts the configured grantd server's token endpoint.
  2. Standalone (-f): loads a local config file and runs the exchange in-process.`,
	Example: `  # Remote exchange (uses GRANTD_ADDR)
  grantd exchange --code $CODE --client-id app-client --client-secret $SECRET --redirect-uri https://app/cb

  # Exchange locally
  grantd exchange -f grantd.yaml --code $CODE --client-id app-client`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.ConfigPath != "" {
			log.Debug().Msg("Running 'exchange' command in local mode")
			return exchangeLocally(cmd, args)
		}
		log.Debug().Msg("Running 'exchange' command in remote mode")
		return exchangeRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	f.bindConfigFlag(exchangeCmd.Flags())
	exchangeCmd.Flags().StringVar(&exchangeCode, "code", "", "Authorization code to redeem")
	exchangeCmd.Flags().StringVar(&exchangeClientID, "client-id", "", "Public client_id")
	exchangeCmd.Flags().StringVar(&exchangeClientSecret, "client-secret", "", "Client secret (omit for public clients)")
	exchangeCmd.Flags().StringVar(&exchangeRedirectURI, "redirect-uri", "", "Redirect URI of the original authorization request")

	_ = exchangeCmd.MarkFlagRequired("code")
	_ = exchangeCmd.MarkFlagRequired("client-id")
}

func exchangeRemote(cmd *cobra.Command, _ []string) error {
	server, err := f.GetRemoteAddr()
	if err != nil {
		return err
	}
	cli := client.New(server)

	log.Info().Msg("Redeeming authorization code...")
	token, correlation, err := cli.ExchangeAuthorizationCode(cmd.Context(), client.ExchangeOptions{
		Code:         exchangeCode,
		ClientID:     exchangeClientID,
		ClientSecret: exchangeClientSecret,
		RedirectURI:  exchangeRedirectURI,
	})
	if err != nil {
		return logError(err, correlation, "failed to exchange authorization code")
	}

	logSuccess("access token minted (expires in %ds)", token.ExpiresIn)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(token)
}

func exchangeLocally(cmd *cobra.Command, _ []string) error {
	cfg, err := f.LoadConfig()
	if err != nil {
		return err
	}

	components, err := BuildComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	// local mode runs pre-authenticated: the operator holds the config file
	// and with it every client secret
	registered, ok := components.Registry.Lookup(exchangeClientID)
	if !ok {
		return fmt.Errorf("client %q is not registered in %s", exchangeClientID, f.ConfigPath)
	}
	identity := core.IdentityForClient(registered, core.ClientAuthNone)

	result, err := components.Grants.ExchangeAuthorizationCode(cmd.Context(), grant.ExchangeRequest{
		Code:        exchangeCode,
		Client:      identity,
		RedirectURI: exchangeRedirectURI,
	})
	if err != nil {
		return logError(err, "", "failed to exchange authorization code")
	}

	logSuccess("access token minted for %s", bold(result.PrincipalName))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Token)
}
