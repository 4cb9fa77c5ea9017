package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// Collector produces a snapshot for a project key.
type Collector interface {
	Collect(ctx context.Context, projectKey string) (*domain.Snapshot, error)
}

// ReportOptions controls one report run.
type ReportOptions struct {
	OutputPath string
	Verbose    bool
	// RepoPath, when set, is a local checkout compared against the analyzed revision.
	RepoPath string
}

// ReportResult describes a written report.
type ReportResult struct {
	Path     string
	Snapshot *domain.Snapshot
	Mode     domain.Mode
	ReportID string
}

// ReportService runs collect → classify → render.
type ReportService struct {
	collector Collector
	renderer  domain.ReportRenderer
	revisions domain.RevisionReader
	history   domain.ReportHistory
	logger    zerolog.Logger
	now       func() time.Time
}

// ReportOption configures a ReportService.
type ReportOption func(*ReportService)

// WithHistory records every written report.
func WithHistory(h domain.ReportHistory) ReportOption {
	return func(s *ReportService) { s.history = h }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

// NewReportService creates a ReportService. revisions may be nil, which
// disables the local revision check.
func NewReportService(collector Collector, renderer domain.ReportRenderer, revisions domain.RevisionReader, logger zerolog.Logger, opts ...ReportOption) *ReportService {
	s := &ReportService{
		collector: collector,
		renderer:  renderer,
		revisions: revisions,
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot collects and classifies without rendering.
func (s *ReportService) Snapshot(ctx context.Context, projectKey string) (*domain.Snapshot, domain.Mode, error) {
	snap, err := s.collector.Collect(ctx, projectKey)
	if err != nil {
		return nil, "", err
	}
	mode := domain.ClassifyMode(snap.Issues)
	s.logger.Info().Str("mode", string(mode)).Bool("server_mqr_setting", snap.MultiQualityMode).Msg("severity mode detected")
	return snap, mode, nil
}

// Generate writes a report for projectKey and returns where it went.
func (s *ReportService) Generate(ctx context.Context, projectKey string, opts ReportOptions) (*ReportResult, error) {
	snap, mode, err := s.Snapshot(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	if opts.RepoPath != "" && s.revisions != nil {
		s.checkRevision(opts.RepoPath, snap.Project.Revision)
	}

	output := opts.OutputPath
	if output == "" {
		output = DefaultOutputPath(projectKey)
	}

	id := uuid.NewString()
	generated := s.now()
	path, err := s.renderer.Render(snap, mode, domain.RenderOptions{
		OutputPath: output,
		Verbose:    opts.Verbose,
		ReportID:   id,
		Generated:  generated,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	if s.history != nil {
		if err := s.history.Save(domain.NewReportEntry(snap, mode, path, id, generated)); err != nil {
			s.logger.Warn().Err(err).Msg("could not record report history")
		}
	}

	return &ReportResult{Path: path, Snapshot: snap, Mode: mode, ReportID: id}, nil
}

func (s *ReportService) checkRevision(repoPath, analyzed string) {
	local, err := s.revisions.CommitHash(repoPath)
	if err != nil {
		s.logger.Warn().Err(err).Str("repo", repoPath).Msg("could not read local revision")
		return
	}
	if analyzed == "" {
		s.logger.Info().Msg("server reports no analyzed revision")
		return
	}
	if !sameRevision(local, analyzed) {
		s.logger.Warn().Str("local", local).Str("analyzed", analyzed).
			Msg("local checkout differs from the analyzed revision; the report may not match your code")
	}
}

func sameRevision(a, b string) bool {
	n := min(len(a), len(b))
	return n > 0 && strings.EqualFold(a[:n], b[:n])
}

// DefaultOutputPath is "<project-key>_sonar_report.pdf" with path-unsafe
// characters replaced.
func DefaultOutputPath(projectKey string) string {
	return domain.SafeName(projectKey) + "_sonar_report.pdf"
}
