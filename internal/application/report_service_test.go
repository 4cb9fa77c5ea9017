package application_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reflectsonar/reflectsonar/internal/application"
	"github.com/reflectsonar/reflectsonar/internal/domain"
)

type fakeRenderer struct {
	snapshot *domain.Snapshot
	mode     domain.Mode
	opts     domain.RenderOptions
	err      error
}

func (r *fakeRenderer) Render(s *domain.Snapshot, mode domain.Mode, opts domain.RenderOptions) (string, error) {
	r.snapshot, r.mode, r.opts = s, mode, opts
	if r.err != nil {
		return "", r.err
	}
	return opts.OutputPath, nil
}

type fakeRevisions struct {
	hash string
	err  error
}

func (f fakeRevisions) CommitHash(string) (string, error) { return f.hash, f.err }

func mqrServer() *fakeServer {
	srv := newFakeServer()
	srv.issues = []domain.Finding{{
		Key:      "I1",
		Severity: "MAJOR",
		Impacts:  []domain.Impact{{SoftwareQuality: "SECURITY", Severity: "HIGH"}},
	}}
	return srv
}

func TestReportService_Generate(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := application.NewReportService(application.NewCollectService(mqrServer()), renderer, nil, zerolog.Nop())

	res, err := svc.Generate(context.Background(), "demo", application.ReportOptions{OutputPath: "out.pdf", Verbose: true})
	require.NoError(t, err)

	assert.Equal(t, "out.pdf", res.Path)
	assert.Equal(t, domain.ModeMQR, res.Mode)
	assert.Equal(t, domain.ModeMQR, renderer.mode)
	assert.True(t, renderer.opts.Verbose)
	assert.Equal(t, res.ReportID, renderer.opts.ReportID)
	_, err = uuid.Parse(res.ReportID)
	assert.NoError(t, err)
	assert.Same(t, res.Snapshot, renderer.snapshot)
}

func TestReportService_DefaultOutputPath(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := application.NewReportService(application.NewCollectService(newFakeServer()), renderer, nil, zerolog.Nop())

	res, err := svc.Generate(context.Background(), "org:team/app", application.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "org_team_app_sonar_report.pdf", res.Path)
	assert.Equal(t, domain.ModeStandard, res.Mode)
}

func TestReportService_CollectionErrorSkipsRendering(t *testing.T) {
	srv := newFakeServer()
	srv.errs["issues"] = &domain.HTTPError{StatusCode: 401}
	renderer := &fakeRenderer{}
	svc := application.NewReportService(application.NewCollectService(srv), renderer, nil, zerolog.Nop())

	_, err := svc.Generate(context.Background(), "demo", application.ReportOptions{})
	var failed *domain.CollectionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Nil(t, renderer.snapshot)
}

func TestReportService_RenderError(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("disk full")}
	svc := application.NewReportService(application.NewCollectService(newFakeServer()), renderer, nil, zerolog.Nop())

	_, err := svc.Generate(context.Background(), "demo", application.ReportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendering report")
	assert.Contains(t, err.Error(), "disk full")
}

func TestReportService_RevisionMismatchWarns(t *testing.T) {
	tests := []struct {
		name  string
		local fakeRevisions
		warn  bool
	}{
		{"same revision", fakeRevisions{hash: "abc123def456"}, false},
		{"different revision", fakeRevisions{hash: "ffff00001111"}, true},
		{"unreadable repo", fakeRevisions{err: errors.New("not a git repository")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Level(zerolog.WarnLevel)
			svc := application.NewReportService(application.NewCollectService(newFakeServer()), &fakeRenderer{}, tt.local, logger)

			_, err := svc.Generate(context.Background(), "demo", application.ReportOptions{RepoPath: "."})
			require.NoError(t, err)
			assert.Equal(t, tt.warn, buf.Len() > 0, buf.String())
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "demo_sonar_report.pdf", application.DefaultOutputPath("demo"))
	assert.Equal(t, "my-app.v2_sonar_report.pdf", application.DefaultOutputPath("my-app.v2"))
	assert.Equal(t, "project_sonar_report.pdf", application.DefaultOutputPath(""))
}

type memoryHistory struct {
	entries []domain.ReportEntry
}

func (m *memoryHistory) Save(e domain.ReportEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryHistory) Load(string) ([]domain.ReportEntry, error) { return m.entries, nil }

func TestReportService_RecordsHistory(t *testing.T) {
	hist := &memoryHistory{}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := application.NewReportService(application.NewCollectService(mqrServer()), &fakeRenderer{}, nil, zerolog.Nop(),
		application.WithHistory(hist),
		application.WithClock(func() time.Time { return at }),
	)

	res, err := svc.Generate(context.Background(), "demo", application.ReportOptions{OutputPath: "out.pdf"})
	require.NoError(t, err)

	require.Len(t, hist.entries, 1)
	e := hist.entries[0]
	assert.Equal(t, res.ReportID, e.ReportID)
	assert.Equal(t, "out.pdf", e.Path)
	assert.Equal(t, domain.ModeMQR, e.Mode)
	assert.Equal(t, "2026-03-01T09:00:00Z", e.Timestamp)
	assert.Equal(t, 1, e.Issues[domain.CategorySecurity])
}

func TestReportService_RenderFailureSkipsHistory(t *testing.T) {
	hist := &memoryHistory{}
	svc := application.NewReportService(application.NewCollectService(newFakeServer()), &fakeRenderer{err: errors.New("disk full")}, nil,
		zerolog.Nop(), application.WithHistory(hist))

	_, err := svc.Generate(context.Background(), "demo", application.ReportOptions{})
	require.Error(t, err)
	assert.Empty(t, hist.entries)
}
