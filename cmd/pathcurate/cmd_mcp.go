package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/pathcurate/internal/curator"
	pcmcp "github.com/ajitpratap0/pathcurate/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  add_pathway    fetch a pathway and merge it into a model
  add_reactions  merge entry lines (identifiers, custom metabolites, custom reactions)
  flux_test      check reactions for non-zero flux
  model_stats    entity counts of a model
  parse_record   fetch and normalize one database record

If the model store cannot be opened the server still starts;
individual tool calls will return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			c, cleanup, err := newCurator(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			var ws *curator.Workspace
			st, storeErr := newStore(logger)
			if storeErr != nil {
				// Log to stderr and continue without a workspace.
				logger.Error("mcp: failed to open model store; model tools will fail", "error", storeErr)
			} else {
				defer func() { _ = st.Close() }()
				ws = curator.NewWorkspace(st, logger)
			}

			defaultModel := cfg.API.ModelID
			if modelRef != "" {
				defaultModel = modelRef
			}
			srv := pcmcp.NewServer(c, ws, defaultModel, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: pathcurate MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
