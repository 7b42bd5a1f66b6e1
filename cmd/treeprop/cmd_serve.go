package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"treeprop/internal/logging"
	mcpserver "treeprop/internal/mcp"
	"treeprop/internal/store"
)

var serveFlags struct {
	dbPath    string
	noHistory bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing load_model, list_variables,
run_query, clear_cache, and list_runs. Agent hosts connect via their MCP
configuration and query models directly.

The server monitors for parent process death. When the host disconnects,
the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.dbPath, "db", store.DefaultDBPath, "Run-history SQLite path")
	f.BoolVar(&serveFlags.noHistory, "no-history", false, "Keep run history in memory only")
}

func runServe(cmd *cobra.Command, _ []string) error {
	hist, err := openHistory(serveFlags.dbPath, serveFlags.noHistory)
	if err != nil {
		return err
	}
	defer hist.Close()

	srv := mcpserver.NewServer(version, hist)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, 0, cancel)

	logging.New("mcp").Info("starting treeprop MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
