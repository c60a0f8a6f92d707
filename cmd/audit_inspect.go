package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/core"
	"github.com/grantd/grantd/pkg/client"
)

var auditInspectCmd = &cobra.Command{
	Use:     "inspect CORRELATION-ID",
	Short:   "Show full details of a specific audit log entry",
	Example: `  grantd audit inspect d0j1kq3c4f5g6h7i8j9k`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correlationID := args[0]
		if correlationID == "" {
			return fmt.Errorf("correlation ID cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving entry with correlation ID '%s'...", correlationID)
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         1,
			CorrelationID: correlationID,
		})
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log entry")
		}
		if len(audits) == 0 {
			log.Warn().Str("correlation_id", correlationID).Msg("no audit log entries found")
			return nil
		}

		entry := audits[0]

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		printKV := func(key string, val any) {
			fmt.Printf("  %-26s %v\n", faint(key)+":", val)
		}

		outcome := green(entry.Outcome)
		if entry.Outcome != core.AuditOutcomeSuccess {
			outcome = red(entry.Outcome)
		}

		fmt.Println(bold("\n── Audit Entry ──"))
		printKV("Correlation ID", entry.ID)
		printKV("Time", entry.Time.Local().Format(time.RFC1123))
		printKV("Event", entry.Event)
		printKV("Outcome", outcome)

		fmt.Println(bold("\n── Parties ──"))
		if entry.ClientID != "" {
			printKV("Client ID", bold(entry.ClientID))
		} else {
			printKV("Client ID", faint("(unresolved)"))
		}
		if entry.RegisteredClientID != "" {
			printKV("Registered Client", entry.RegisteredClientID)
		}
		if entry.PrincipalName != "" {
			printKV("Principal", entry.PrincipalName)
		} else {
			printKV("Principal", faint("(unresolved)"))
		}

		fmt.Println(bold("\n── Credentials ──"))
		if entry.GrantFingerprint != "" {
			printKV("Grant Fingerprint", entry.GrantFingerprint)
		} else {
			printKV("Grant Fingerprint", faint("(none)"))
		}
		if entry.TokenFingerprint != "" {
			printKV("Token Fingerprint", entry.TokenFingerprint)
		} else {
			printKV("Token Fingerprint", faint("(none)"))
		}
		if len(entry.Scopes) > 0 {
			printKV("Scopes", strings.Join(entry.Scopes, " "))
		} else {
			printKV("Scopes", faint("(none)"))
		}
		if entry.Detail != "" {
			printKV("Detail", red(entry.Detail))
		}
		fmt.Println()

		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditInspectCmd)
}
