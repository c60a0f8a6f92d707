package cmd

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/api"
	"github.com/grantd/grantd/internal/grant"
)

var (
	issueClientID    string
	issuePrincipal   string
	issueRedirectURI string
	issueScopes      []string
	issueState       string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a fresh authorization code",
	Long: `Issues a single-use authorization code bound to a registered client.

The raw code is printed exactly once; the server only ever stores and
reports its fingerprint afterwards.`,
	Example: `  # Issue remotely (requires 'grantd login' first)
  grantd issue --client-id app-client --principal alice --redirect-uri https://app/cb --scope read --scope write

  # Issue against a local config file
  grantd issue -f grantd.yaml --client-id app-client --principal alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.ConfigPath != "" {
			log.Debug().Msg("Running 'issue' command in local mode")
			return issueLocally(cmd, args)
		}
		log.Debug().Msg("Running 'issue' command in remote mode")
		return issueRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)

	f.bindConfigFlag(issueCmd.Flags())
	issueCmd.Flags().StringVar(&issueClientID, "client-id", "", "Public client_id the code is issued to")
	issueCmd.Flags().StringVar(&issuePrincipal, "principal", "", "Resource owner approving the grant")
	issueCmd.Flags().StringVar(&issueRedirectURI, "redirect-uri", "", "Redirect URI the code is bound to")
	issueCmd.Flags().StringArrayVar(&issueScopes, "scope", nil, "Scope to attach (repeatable)")
	issueCmd.Flags().StringVar(&issueState, "state", "", "Opaque state echoed back to the client")

	_ = issueCmd.MarkFlagRequired("client-id")
	_ = issueCmd.MarkFlagRequired("principal")
}

func issueRemote(cmd *cobra.Command, _ []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}

	log.Info().Msg("Issuing authorization code...")
	resp, correlation, err := cli.IssueCode(cmd.Context(), api.IssueGrantPayload{
		ClientID:      issueClientID,
		PrincipalName: issuePrincipal,
		RedirectURI:   issueRedirectURI,
		Scopes:        issueScopes,
		State:         issueState,
	})
	if err != nil {
		return logError(err, correlation, "failed to issue authorization code")
	}

	logSuccess("code issued to %s for %s", bold(resp.ClientID), bold(resp.PrincipalName))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func issueLocally(cmd *cobra.Command, _ []string) error {
	cfg, err := f.LoadConfig()
	if err != nil {
		return err
	}

	components, err := BuildComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	result, err := components.Grants.IssueAuthorizationCode(cmd.Context(), grant.IssueRequest{
		ClientID:      issueClientID,
		PrincipalName: issuePrincipal,
		RedirectURI:   issueRedirectURI,
		Scopes:        issueScopes,
		State:         issueState,
	})
	if err != nil {
		return logError(err, "", "failed to issue authorization code")
	}

	logSuccess("code issued to %s for %s", bold(result.Record.ClientID), bold(result.Record.PrincipalName))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.IssueGrantResponse{
		Code:          result.Code,
		ClientID:      result.Record.ClientID,
		PrincipalName: result.Record.PrincipalName,
		RedirectURI:   result.Record.RedirectURI,
		Scopes:        result.Record.Scopes,
	})
}
