package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/core"
)

var (
	whyCode        string
	whyClientID    string
	whyRedirectURI string
)

var whyCmd = &cobra.Command{
	Use:   "why",
	Short: "Explain why a code exchange would succeed or fail",
	Long: `Runs the exchange checks against a code without consuming it and prints
a detailed trace. Useful for debugging why a specific exchange is being
rejected with invalid_grant.

The token endpoint itself collapses all rejection causes into a single
error body on purpose; this command shows the real cause, so it only
works locally against the config file and store.`,
	Example: `  # Why is my code rejected?
  grantd why -f grantd.yaml --code $CODE --client-id app-client --redirect-uri https://app/cb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}

		components, err := BuildComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer components.Close()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		pass := func(check string, reason string) {
			fmt.Printf("%s %s\n", green("✔"), bold(check))
			if reason != "" {
				fmt.Printf("    ↳ %s\n", faint(reason))
			}
		}
		fail := func(check string, reason string) {
			fmt.Printf("%s %s\n", red("✖"), bold(check))
			if reason != "" {
				fmt.Printf("    ↳ %s\n", yellow(reason))
			}
		}
		deny := func() error {
			fmt.Println(faint("---------------------------------------------------"))
			fmt.Printf("Decision: %s\n\n", bold(red("invalid_grant")))
			return BeQuietError{}
		}

		fmt.Printf("\n%s for client %s\n", bold("Exchange Trace"), bold(whyClientID))
		fmt.Println(faint("---------------------------------------------------"))

		registered, ok := components.Registry.Lookup(whyClientID)
		if !ok {
			fail("client is registered", fmt.Sprintf("no client with client_id '%s' in config", whyClientID))
			return deny()
		}
		pass("client is registered", fmt.Sprintf("registered as '%s'", registered.ID))

		record, err := components.Store.FindByCode(cmd.Context(), whyCode, core.TokenKindAuthorizationCode)
		if err != nil {
			if errors.Is(err, core.ErrGrantNotFound) {
				fail("code resolves to a grant", "no grant for the presented code (never issued, expired, or purged)")
				return deny()
			}
			return fmt.Errorf("looking up authorization code: %w", err)
		}
		pass("code resolves to a grant", fmt.Sprintf("issued to '%s' for principal '%s'", record.ClientID, record.PrincipalName))

		if record.Consumed() {
			fail("code is unconsumed", "a token has already been minted for this code")
			return deny()
		}
		pass("code is unconsumed", "")

		if record.ClientID != registered.ID {
			fail("code is bound to this client", fmt.Sprintf("code was issued to '%s', not '%s'", record.ClientID, registered.ID))
			return deny()
		}
		pass("code is bound to this client", "")

		if record.RedirectURI == "" {
			pass("redirect_uri matches", "check skipped, grant carries no redirect URI")
		} else if whyRedirectURI != record.RedirectURI {
			fail("redirect_uri matches", fmt.Sprintf("grant is bound to '%s'", record.RedirectURI))
			return deny()
		} else {
			pass("redirect_uri matches", "")
		}

		fmt.Println(faint("---------------------------------------------------"))
		fmt.Printf("Decision: %s\n\n", bold(green("exchange would succeed")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whyCmd)

	f.bindConfigFlag(whyCmd.Flags())
	whyCmd.Flags().StringVar(&whyCode, "code", "", "Authorization code to explain")
	whyCmd.Flags().StringVar(&whyClientID, "client-id", "", "Public client_id presenting the code")
	whyCmd.Flags().StringVar(&whyRedirectURI, "redirect-uri", "", "redirect_uri that would be presented")

	_ = whyCmd.MarkFlagRequired("config")
	_ = whyCmd.MarkFlagRequired("code")
	_ = whyCmd.MarkFlagRequired("client-id")
}
