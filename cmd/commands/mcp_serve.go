package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	srmcp "github.com/dohr-michael/skillrouter/internal/mcp"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose the skill tools as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Comma-separated tool or set names, or \"all\" (empty = every non-dangerous tool)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP stdio transport.
	setupLogging(cmd, slog.LevelWarn)

	a, err := newApp(ctx, cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	filter := cmd.StringArg("filter")
	server, err := srmcp.NewMCPServer(a.dispatcher, filter)
	if err != nil {
		return err
	}

	slog.Debug("starting MCP server", "filter", filter, "skills", a.skills.Len())
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
