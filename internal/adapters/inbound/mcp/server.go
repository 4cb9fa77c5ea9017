package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// SnapshotSource collects a project snapshot and its severity mode.
type SnapshotSource interface {
	Snapshot(ctx context.Context, projectKey string) (*domain.Snapshot, domain.Mode, error)
}

type collected struct {
	snapshot *domain.Snapshot
	mode     domain.Mode
}

// snapshots collects each project at most once per process. Failed
// collections are not remembered, so the next call retries.
type snapshots struct {
	source SnapshotSource
	cache  *xsync.MapOf[string, collected]
}

func (s *snapshots) get(ctx context.Context, key string) (collected, error) {
	if c, ok := s.cache.Load(key); ok {
		return c, nil
	}
	snap, mode, err := s.source.Snapshot(ctx, key)
	if err != nil {
		return collected{}, err
	}
	c, _ := s.cache.LoadOrStore(key, collected{snapshot: snap, mode: mode})
	return c, nil
}

// NewServer creates an MCP server exposing the snapshot of projectKey.
// Nothing is collected until the first tool call or resource read.
func NewServer(source SnapshotSource, projectKey, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"reflectsonar",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	snaps := &snapshots{source: source, cache: xsync.NewMapOf[string, collected]()}
	registerTools(s, snaps, projectKey)
	registerResources(s, snaps, projectKey)

	return s
}
