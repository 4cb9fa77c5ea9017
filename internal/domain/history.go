package domain

import (
	"regexp"
	"time"
)

// ReportEntry is one generated report as remembered by ReportHistory.
type ReportEntry struct {
	Timestamp  string              `json:"timestamp"`
	ReportID   string              `json:"report_id"`
	ProjectKey string              `json:"project_key"`
	Revision   string              `json:"revision,omitempty"`
	Path       string              `json:"path"`
	Mode       Mode                `json:"mode"`
	Issues     map[Category]int    `json:"issues"`
	Grades     map[Category]string `json:"grades"`
	Hotspots   int                 `json:"hotspots"`
}

// Total is the number of issues over all categories.
func (e ReportEntry) Total() int {
	n := 0
	for _, c := range e.Issues {
		n += c
	}
	return n
}

var ratingMetrics = map[Category]string{
	CategorySecurity:        MetricSecurityRating,
	CategoryReliability:     MetricReliabilityRating,
	CategoryMaintainability: MetricMaintainabilityRating,
}

// RatingMetric returns the measure holding the 1..5 rating of category.
func RatingMetric(category Category) string { return ratingMetrics[category] }

// Grade returns the letter grade of category, "A" when the rating is missing.
func (s *Snapshot) Grade(category Category) string {
	return ScoreToGrade(s.MeasureFloat(RatingMetric(category), 1))
}

// NewReportEntry summarizes a rendered report.
func NewReportEntry(snap *Snapshot, mode Mode, path, reportID string, at time.Time) ReportEntry {
	e := ReportEntry{
		Timestamp:  at.UTC().Format(time.RFC3339),
		ReportID:   reportID,
		ProjectKey: snap.Project.Key,
		Revision:   snap.Project.Revision,
		Path:       path,
		Mode:       mode,
		Issues:     make(map[Category]int, len(Categories)),
		Grades:     make(map[Category]string, len(Categories)),
		Hotspots:   len(snap.Hotspots),
	}
	for _, c := range Categories {
		e.Issues[c] = len(FilterByCategory(snap.Issues, mode, c))
		e.Grades[c] = snap.Grade(c)
	}
	return e
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName replaces path-unsafe runs in s with "_". Empty input gives "project".
func SafeName(s string) string {
	name := unsafeNameChars.ReplaceAllString(s, "_")
	if name == "" {
		return "project"
	}
	return name
}
