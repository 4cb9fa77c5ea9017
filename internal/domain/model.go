package domain

import (
	"strconv"
	"strings"
	"time"
)

// FindingKind distinguishes the two variants of a Finding.
type FindingKind string

const (
	KindIssue   FindingKind = "issue"
	KindHotspot FindingKind = "hotspot"
)

// Finding types as reported by the server.
const (
	TypeBug             = "BUG"
	TypeVulnerability   = "VULNERABILITY"
	TypeCodeSmell       = "CODE_SMELL"
	TypeSecurityHotspot = "SECURITY_HOTSPOT"
)

// Placeholders stored in Finding.CodeSnippet when no source could be fetched.
const (
	NoIssueSnippet   = "No code snippet available for this issue."
	NoHotspotSnippet = "No code snippet available for this hotspot."
)

// Project identifies the analyzed project.
type Project struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Qualifier    string    `json:"qualifier"`
	Visibility   string    `json:"visibility"`
	LastAnalysis time.Time `json:"last_analysis,omitempty"`
	Revision     string    `json:"revision,omitempty"`
}

// Impact is a {softwareQuality, severity} pair of the MQR vocabulary.
type Impact struct {
	SoftwareQuality string `json:"software_quality"`
	Severity        string `json:"severity"`
}

// Finding is an issue or a security hotspot.
type Finding struct {
	Kind                     FindingKind `json:"kind"`
	Key                      string      `json:"key"`
	Component                string      `json:"component"`
	Project                  string      `json:"project,omitempty"`
	Rule                     string      `json:"rule"`
	Severity                 string      `json:"severity,omitempty"`
	Impacts                  []Impact    `json:"impacts,omitempty"`
	Message                  string      `json:"message"`
	Type                     string      `json:"type"`
	Line                     int         `json:"line,omitempty"`
	Status                   string      `json:"status,omitempty"`
	Tags                     []string    `json:"tags,omitempty"`
	Effort                   string      `json:"effort,omitempty"`
	Author                   string      `json:"author,omitempty"`
	CreationDate             string      `json:"creation_date,omitempty"`
	UpdateDate               string      `json:"update_date,omitempty"`
	VulnerabilityProbability string      `json:"vulnerability_probability,omitempty"`
	SecurityCategory         string      `json:"security_category,omitempty"`
	RuleName                 string      `json:"rule_name,omitempty"`
	CodeSnippet              string      `json:"code_snippet"`
}

// SeveritySignal is the tagged union of the two severity vocabularies a
// finding may carry: the legacy single severity and the MQR impact list.
type SeveritySignal struct {
	Legacy  string
	Impacts []Impact
}

// HasImpacts reports whether the MQR half of the signal is present.
func (s SeveritySignal) HasImpacts() bool { return len(s.Impacts) > 0 }

// Signal returns the severity data classification works from.
func (f Finding) Signal() SeveritySignal {
	return SeveritySignal{Legacy: f.Severity, Impacts: f.Impacts}
}

// HasLine reports whether the finding points at a source line.
func (f Finding) HasLine() bool { return f.Line > 0 }

// ComponentPath returns the component without its "projectKey:" prefix.
func (f Finding) ComponentPath() string {
	if _, path, ok := strings.Cut(f.Component, ":"); ok {
		return path
	}
	return f.Component
}

// RuleID returns the rule key without its repository prefix ("java:S123" -> "S123").
func (f Finding) RuleID() string {
	if i := strings.LastIndex(f.Rule, ":"); i >= 0 {
		return f.Rule[i+1:]
	}
	return f.Rule
}

// SnippetPlaceholder returns the text used when no snippet is available.
func (f Finding) SnippetPlaceholder() string {
	if f.Kind == KindHotspot {
		return NoHotspotSnippet
	}
	return NoIssueSnippet
}

// Measure is one metric value. Values are kept as strings; callers convert.
type Measure struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// RuleSection is one named part of a rule description (HTML content).
type RuleSection struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// Rule is the metadata of a rule referenced by at least one finding.
type Rule struct {
	Key      string        `json:"key"`
	Name     string        `json:"name"`
	Severity string        `json:"severity,omitempty"`
	Type     string        `json:"type,omitempty"`
	Language string        `json:"language,omitempty"`
	Sections []RuleSection `json:"sections,omitempty"`
}

// Snapshot is everything one collection run produced.
type Snapshot struct {
	Project          Project            `json:"project"`
	Issues           []Finding          `json:"issues"`
	Hotspots         []Finding          `json:"hotspots"`
	Measures         map[string]Measure `json:"measures"`
	Rules            map[string]Rule    `json:"rules"`
	MultiQualityMode bool               `json:"multi_quality_mode"`
	CollectedAt      time.Time          `json:"collected_at"`
}

// MeasureValue returns the raw value of metric, or def when it is missing.
func (s *Snapshot) MeasureValue(metric, def string) string {
	if m, ok := s.Measures[metric]; ok && m.Value != "" {
		return m.Value
	}
	return def
}

// MeasureFloat returns metric as a number, or def when it is missing or not numeric.
func (s *Snapshot) MeasureFloat(metric string, def float64) float64 {
	v, err := strconv.ParseFloat(s.MeasureValue(metric, ""), 64)
	if err != nil {
		return def
	}
	return v
}

// RuleFor returns the collected rule of a finding, if any.
func (s *Snapshot) RuleFor(f Finding) (Rule, bool) {
	r, ok := s.Rules[f.Rule]
	return r, ok
}

// Metric keys requested from the measures endpoint.
const (
	MetricSecurityRating        = "software_quality_security_rating"
	MetricReliabilityRating     = "software_quality_reliability_rating"
	MetricMaintainabilityRating = "software_quality_maintainability_rating"
	MetricLinesToCover          = "lines_to_cover"
	MetricMaintainabilityIssues = "software_quality_maintainability_issues"
	MetricSecurityIssues        = "software_quality_security_issues"
	MetricReliabilityIssues     = "software_quality_reliability_issues"
	MetricAcceptedIssues        = "accepted_issues"
	MetricCoverage              = "coverage"
	MetricDuplication           = "duplicated_lines_density"
	MetricLines                 = "lines"
	MetricSecurityHotspots      = "security_hotspots"
)

// MetricKeys is the fixed list of measures collected for every report.
var MetricKeys = []string{
	MetricSecurityRating,
	MetricReliabilityRating,
	MetricMaintainabilityRating,
	MetricLinesToCover,
	MetricMaintainabilityIssues,
	MetricSecurityIssues,
	MetricReliabilityIssues,
	MetricAcceptedIssues,
	MetricCoverage,
	MetricDuplication,
	MetricLines,
	MetricSecurityHotspots,
}

// ScoreToGrade maps a 1..5 rating to its letter.
func ScoreToGrade(rating float64) string {
	switch {
	case rating <= 1.0:
		return "A"
	case rating <= 2.0:
		return "B"
	case rating <= 3.0:
		return "C"
	case rating <= 4.0:
		return "D"
	default:
		return "E"
	}
}
