package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/pkg/client"
)

var auditLogOpts client.ListAuditsOpts

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	Long: `Lists recent audit entries recorded by the server. Entries reference
authorization codes and access tokens by fingerprint only.`,
	Example: `  grantd audit log -n 50
  grantd audit log --client-id app-client
  grantd audit log --fingerprint $FP`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Info().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), auditLogOpts)
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Event", "Outcome", "Client", "Principal", "Grant FP", "Scopes",
		})

		for _, e := range audits {
			outcome := greenCheck + " " + e.Outcome
			if e.Outcome != "success" {
				outcome = redCross + " " + e.Outcome
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Event,
				outcome,
				e.ClientID,
				e.PrincipalName,
				truncate(e.GrantFingerprint, 16),
				truncate(strings.Join(e.Scopes, " "), 30),
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().UintVarP(&auditLogOpts.Limit, "limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogOpts.CorrelationID, "correlation-id", "", "Filter by correlation ID")
	auditLogCmd.Flags().StringVar(&auditLogOpts.ClientID, "client-id", "", "Filter by public client_id")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Fingerprint, "fingerprint", "", "Filter by grant or token fingerprint")
}
