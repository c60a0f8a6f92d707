package cmd

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail and active grants",
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
