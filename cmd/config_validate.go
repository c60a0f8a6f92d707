package cmd

import (
	"github.com/spf13/cobra"
)

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads and validates the server configuration.
Fails on an unparsable issuer URL, an unknown signing algorithm or storage
backend, and inconsistent client registrations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}
		logSuccess("configuration is valid (%d client(s), storage: %s)",
			len(cfg.Clients), cfg.Storage.Backend)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)

	f.bindConfigFlag(configValidateCmd.Flags())
}
