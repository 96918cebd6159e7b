package cmd

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/abhisek/querywise/internal/api"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, _ := cmd.Flags().GetString("dsn")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		svc, err := e.services(ctx, dsn)
		if err != nil {
			return err
		}

		s := api.NewMCPServer(e.apiDeps(svc), version)
		return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	mcpCmd.Flags().String("dsn", "", "Database to query (overrides executor.dsn)")
}
