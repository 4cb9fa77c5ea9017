package domain

import (
	"context"
	"time"
)

// SourceLine is one numbered line of a source file.
type SourceLine struct {
	Line int
	Code string
}

// AnalysisServer is the read side of the code-analysis server.
type AnalysisServer interface {
	Project(ctx context.Context, projectKey string) (Project, error)
	Issues(ctx context.Context, projectKey string) ([]Finding, error)
	Measures(ctx context.Context, projectKey string, metrics []string) (map[string]Measure, error)
	// MultiQualityMode reports the server setting; a missing setting reads as true.
	MultiQualityMode(ctx context.Context) (bool, error)
	Hotspots(ctx context.Context, projectKey string) ([]Finding, error)
	Sources(ctx context.Context, component string, from, to int) ([]SourceLine, error)
	Rule(ctx context.Context, ruleKey string) (Rule, error)
}

// RenderOptions carries per-run rendering settings.
type RenderOptions struct {
	OutputPath string
	Verbose    bool
	ReportID   string
	Generated  time.Time
}

// ReportRenderer turns a snapshot into a document and returns its path.
type ReportRenderer interface {
	Render(snapshot *Snapshot, mode Mode, opts RenderOptions) (string, error)
}

// ConfigLoader reads configuration from a file (empty path means the default locations).
type ConfigLoader interface {
	Load(path string) (Config, error)
}

// RevisionReader reads the checked-out revision of a local repository.
type RevisionReader interface {
	CommitHash(repoPath string) (string, error)
}

// ReportHistory records generated reports per project.
type ReportHistory interface {
	Save(entry ReportEntry) error
	Load(projectKey string) ([]ReportEntry, error)
}
