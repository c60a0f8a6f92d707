package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background tasks on the server",
	Long:  `List, trigger and read logs of the server's background tasks. Requires an authenticated admin session (grantd login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
