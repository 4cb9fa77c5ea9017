package domain_test

import (
	"testing"

	"github.com/reflectsonar/reflectsonar/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestScoreToGrade(t *testing.T) {
	tests := []struct {
		rating float64
		grade  string
	}{
		{0, "A"}, {1, "A"}, {1.5, "B"}, {2, "B"}, {3, "C"}, {4, "D"}, {4.1, "E"}, {5, "E"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, domain.ScoreToGrade(tt.rating), "rating %v", tt.rating)
	}
}

func TestFinding_ComponentPathAndRuleID(t *testing.T) {
	f := domain.Finding{Component: "demo:src/main/App.java", Rule: "java:S1481"}
	assert.Equal(t, "src/main/App.java", f.ComponentPath())
	assert.Equal(t, "S1481", f.RuleID())

	bare := domain.Finding{Component: "App.java", Rule: "S1"}
	assert.Equal(t, "App.java", bare.ComponentPath())
	assert.Equal(t, "S1", bare.RuleID())
}

func TestFinding_SnippetPlaceholder(t *testing.T) {
	assert.Equal(t, domain.NoIssueSnippet, domain.Finding{Kind: domain.KindIssue}.SnippetPlaceholder())
	assert.Equal(t, domain.NoHotspotSnippet, domain.Finding{Kind: domain.KindHotspot}.SnippetPlaceholder())
}

func TestFinding_Signal(t *testing.T) {
	f := domain.Finding{Severity: "MAJOR", Impacts: []domain.Impact{{SoftwareQuality: "SECURITY", Severity: "HIGH"}}}
	sig := f.Signal()
	assert.Equal(t, "MAJOR", sig.Legacy)
	assert.True(t, sig.HasImpacts())
	assert.False(t, domain.Finding{Severity: "MAJOR"}.Signal().HasImpacts())
}

func TestSnapshot_MeasureDefaults(t *testing.T) {
	s := &domain.Snapshot{Measures: map[string]domain.Measure{
		domain.MetricCoverage:    {Metric: domain.MetricCoverage, Value: "85.3"},
		domain.MetricDuplication: {Metric: domain.MetricDuplication, Value: "n/a"},
	}}

	assert.InDelta(t, 85.3, s.MeasureFloat(domain.MetricCoverage, 0), 0.001)
	assert.InDelta(t, 7, s.MeasureFloat(domain.MetricDuplication, 7), 0.001)
	assert.InDelta(t, 1, s.MeasureFloat(domain.MetricSecurityRating, 1), 0.001)
	assert.Equal(t, "0", s.MeasureValue(domain.MetricLines, "0"))
	assert.Equal(t, "85.3", s.MeasureValue(domain.MetricCoverage, "0"))
}

func TestMetricKeys_Complete(t *testing.T) {
	assert.Len(t, domain.MetricKeys, 12)
	assert.Contains(t, domain.MetricKeys, domain.MetricSecurityHotspots)
}
