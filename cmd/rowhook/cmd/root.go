package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rowhook",
	Short: "Deliver spreadsheet rows to a webhook, one JSON request per row",
	Long: `rowhook reads a spreadsheet (.xlsx or .csv), turns every data row into a
JSON object keyed by the header row and POSTs it to a webhook endpoint.
Rows the endpoint does not accept are retried once after the first pass.

Configuration comes from the environment (WEBHOOK_URL, DISPATCH_DELAY_MS,
RETRY_DELAY_MS, REQUEST_TIMEOUT_MS, LOG_LEVEL, API_PORT, REDIS_URL,
DATABASE_DSN, HISTORY_LIMIT).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
