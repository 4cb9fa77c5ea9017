package cli

import (
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/reflectsonar/reflectsonar/internal/adapters/inbound/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the ReflectSonar MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd())
	return cmd
}

func newMCPServeCmd() *cobra.Command {
	var (
		conn       connFlags
		projectKey string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start ReflectSonar MCP server (stdio)",
		Long:  "Start the ReflectSonar MCP server using stdio transport. AI coding assistants can query the issues, hotspots and rules of one project.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectKey == "" {
				return errors.New("--project is required")
			}
			w, err := wire(cmd, &conn, "", false)
			if err != nil {
				return err
			}
			s := mcpadapter.NewServer(w.reports, projectKey, version)
			return server.ServeStdio(s)
		},
	}

	conn.register(cmd)
	cmd.Flags().StringVar(&projectKey, "project", "", "Project key to expose")

	return cmd
}
