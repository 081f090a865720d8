package cmd

import (
	"github.com/spf13/cobra"

	"github.com/run-bigpig/roundtable/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Serve persona and meeting management as MCP tools over stdin/stdout.

Logs go to stderr (or logging.file) so stdout stays reserved for the protocol.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		return server.New(a.personas, a.engine, Version).Run(cmd.Context())
	})
}
