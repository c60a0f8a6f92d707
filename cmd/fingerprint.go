package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/audit"
)

var fingerprintRaw bool

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint [value]",
	Aliases: []string{"fp"},
	Short:   `Calculate the fingerprint of a code or token`,
	Long: `Calculates the fingerprint of an authorization code or access token
(SHA-256, base64). This is the value recorded in the audit log's
'grant_fingerprint' and 'token_fingerprint' fields, and the identifier
shown by 'grantd audit grants'.`,
	Example: `  # Calculate the fingerprint of a code
  grantd fingerprint SplxlOBeZQQYbYS6WxSbIA

  # Calculate the fingerprint of a token from stdin
  echo "$TOKEN" | grantd fingerprint -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value string

		if args[0] != "-" {
			value = args[0]
		} else {
			log.Debug().Msg("Reading value from stdin")

			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read value from stdin: %w", err)
			}
			value = strings.TrimSpace(string(data))
		}

		if value == "" {
			return fmt.Errorf("value cannot be empty")
		}

		fp := audit.Fingerprint(value)

		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
