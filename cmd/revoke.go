package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var revokeCode string

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an in-flight authorization code",
	Long: `Removes a pending grant so its authorization code can no longer be
exchanged. Consumed grants cannot be revoked through this command.`,
	Example: `  # Revoke remotely (requires 'grantd login' first)
  grantd revoke --code $CODE

  # Revoke against a local config file
  grantd revoke -f grantd.yaml --code $CODE`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.ConfigPath != "" {
			log.Debug().Msg("Running 'revoke' command in local mode")
			return revokeLocally(cmd, args)
		}
		log.Debug().Msg("Running 'revoke' command in remote mode")
		return revokeRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)

	f.bindConfigFlag(revokeCmd.Flags())
	revokeCmd.Flags().StringVar(&revokeCode, "code", "", "Authorization code of the grant to revoke")
	_ = revokeCmd.MarkFlagRequired("code")
}

func revokeRemote(cmd *cobra.Command, _ []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}

	correlation, err := cli.RevokeGrant(cmd.Context(), revokeCode)
	if err != nil {
		return logError(err, correlation, "failed to revoke grant")
	}

	logSuccess("grant revoked")
	return nil
}

func revokeLocally(cmd *cobra.Command, _ []string) error {
	cfg, err := f.LoadConfig()
	if err != nil {
		return err
	}

	components, err := BuildComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	if err := components.Grants.RevokeGrant(cmd.Context(), revokeCode); err != nil {
		return logError(err, "", "failed to revoke grant")
	}

	logSuccess("grant revoked")
	return nil
}
