package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SnapshotURI is the resource holding the full collected snapshot.
const SnapshotURI = "reflectsonar://snapshot"

func registerResources(s *server.MCPServer, snaps *snapshots, projectKey string) {
	s.AddResource(
		mcplib.NewResource(
			SnapshotURI,
			"Project Snapshot",
			mcplib.WithResourceDescription("Everything collected for the project: metadata, issues, hotspots, measures and rules"),
			mcplib.WithMIMEType("application/json"),
		),
		handleSnapshotResource(snaps, projectKey),
	)
}

func handleSnapshotResource(snaps *snapshots, projectKey string) server.ResourceHandlerFunc {
	return func(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		c, err := snaps.get(ctx, projectKey)
		if err != nil {
			return nil, fmt.Errorf("collection failed: %w", err)
		}

		data, err := json.MarshalIndent(c.snapshot, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling snapshot: %w", err)
		}

		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      SnapshotURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}
