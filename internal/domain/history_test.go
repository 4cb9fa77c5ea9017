package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

func TestNewReportEntry(t *testing.T) {
	snap := &domain.Snapshot{
		Project: domain.Project{Key: "demo", Revision: "abc123"},
		Issues: []domain.Finding{
			{Key: "1", Type: domain.TypeBug, Severity: "MAJOR"},
			{Key: "2", Type: domain.TypeVulnerability, Severity: "BLOCKER"},
			{Key: "3", Type: domain.TypeCodeSmell, Severity: "MINOR"},
			{Key: "4", Type: domain.TypeCodeSmell, Severity: "INFO"},
		},
		Hotspots: []domain.Finding{{Key: "h"}},
		Measures: map[string]domain.Measure{
			domain.MetricReliabilityRating: {Value: "3.0"},
		},
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	e := domain.NewReportEntry(snap, domain.ModeStandard, "out.pdf", "id-1", at)
	assert.Equal(t, "2026-03-01T11:00:00Z", e.Timestamp)
	assert.Equal(t, "demo", e.ProjectKey)
	assert.Equal(t, "abc123", e.Revision)
	assert.Equal(t, 1, e.Issues[domain.CategorySecurity])
	assert.Equal(t, 1, e.Issues[domain.CategoryReliability])
	assert.Equal(t, 2, e.Issues[domain.CategoryMaintainability])
	assert.Equal(t, 4, e.Total())
	assert.Equal(t, "C", e.Grades[domain.CategoryReliability])
	assert.Equal(t, "A", e.Grades[domain.CategorySecurity])
	assert.Equal(t, 1, e.Hotspots)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "org_team_app", domain.SafeName("org:team/app"))
	assert.Equal(t, "my-app.v2", domain.SafeName("my-app.v2"))
	assert.Equal(t, "project", domain.SafeName(""))
}
