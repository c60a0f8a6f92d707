package cmd

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var auditGrantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "List currently active grants",
	Long: `Retrieves the unexpired authorization grants held by the server. Grants
are identified by the fingerprint of their authorization code; the raw
code value is never returned.

This command requires an authenticated admin session (via 'grantd login').`,
	Example: `  grantd audit grants`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching active grants...")
		grants, correlation, err := cli.ListActiveGrants(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to fetch active grants")
		}

		if len(grants) == 0 {
			log.Info().Msg("No active grants found")
			return nil
		}
		log.Debug().Msgf("Retrieved %d active grant(s)", len(grants))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Code FP", "Client", "Principal", "Redirect URI", "Scopes", "Consumed",
		})

		for _, g := range grants {
			consumed := faint("no")
			if g.Consumed {
				consumed = bold("yes")
			}

			t.AppendRow(table.Row{
				truncate(g.CodeFingerprint, 20),
				bold(g.ClientID),
				g.PrincipalName,
				truncate(g.RedirectURI, 40),
				truncate(strings.Join(g.Scopes, " "), 30),
				consumed,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditGrantsCmd)
}
