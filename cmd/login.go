package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/cliconfig"
)

var (
	loginSecret string
	loginTTL    time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Create an admin session for a grantd server",
	Long: `Mints a short-lived admin token from the shared admin secret and saves it
locally, so later admin commands (issue, revoke, audit, tasks) can
authenticate without repeating the secret.

The secret must match the server's admin.signing_secret.`,
	Example: `  grantd login --secret $GRANTD_ADMIN_SECRET
  grantd login --secret $GRANTD_ADMIN_SECRET --ttl 30m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := f.GetRemoteAddr()
		if err != nil {
			return err
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   "grantd-cli",
			"roles": []string{"admin"},
			"iat":   now.Unix(),
			"exp":   now.Add(loginTTL).Unix(),
		})
		signed, err := token.SignedString([]byte(loginSecret))
		if err != nil {
			return fmt.Errorf("signing admin token: %w", err)
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		if err := cfg.SetCredential(server, signed); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved admin session for %s (expires %s)",
			bold(u.Host), faint(now.Add(loginTTL).Format(time.RFC3339)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginSecret, "secret", "", "Shared admin signing secret")
	loginCmd.Flags().DurationVar(&loginTTL, "ttl", time.Hour, "Lifetime of the admin session")

	_ = loginCmd.MarkFlagRequired("secret")
}
