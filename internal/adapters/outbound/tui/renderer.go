package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// ── palette ──
var (
	accent  = lipgloss.Color("#126ED3") // sonar blue
	fg      = lipgloss.Color("#E8E6E3") // light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber
	info    = lipgloss.Color("#60A5FA") // blue
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	gradeColors = map[string]lipgloss.Color{
		"A": success,
		"B": lipgloss.Color("#A3E635"), // lime
		"C": warning,
		"D": lipgloss.Color("#FB923C"), // orange
		"E": danger,
	}

	severityColors = map[string]lipgloss.Color{
		"BLOCKER":  danger,
		"CRITICAL": lipgloss.Color("#FB923C"),
		"MAJOR":    warning,
		"MINOR":    lipgloss.Color("#FACC15"),
		"INFO":     info,
		"HIGH":     danger,
		"MEDIUM":   lipgloss.Color("#FB923C"),
		"LOW":      lipgloss.Color("#FACC15"),
	}

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	catNameStyle  = lipgloss.NewStyle().Bold(true).Foreground(fg)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// topFindings is how many issues the summary lists.
const topFindings = 5

var categoryLabels = map[domain.Category]string{
	domain.CategorySecurity:        "Security",
	domain.CategoryReliability:     "Reliability",
	domain.CategoryMaintainability: "Maintainability",
}

// Summary is what the terminal summary shows.
type Summary struct {
	Snapshot *domain.Snapshot
	Mode     domain.Mode
	Path     string
	ReportID string
}

// RenderSummary formats a finished report run for terminal output.
func RenderSummary(s Summary) string {
	var b strings.Builder
	snap := s.Snapshot

	// ── Header ──
	name := snap.Project.Name
	if name == "" {
		name = snap.Project.Key
	}
	title := headerStyle.Render("reflectsonar")
	subtitle := dimStyle.Render("SonarQube Report")
	project := titleStyle.Render(name) + "  " + dimStyle.Render(string(s.Mode))
	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + project))
	b.WriteString("\n\n")

	// ── Categories ──
	for _, cat := range domain.Categories {
		renderCategory(&b, snap, s.Mode, cat)
	}
	hotspots := strconv.Itoa(len(snap.Hotspots))
	fmt.Fprintf(&b, "  %s %s\n", catNameStyle.Render(padRight("Hotspots", 18)), hotspots)

	b.WriteString("\n")
	b.WriteString("  " + separatorLine)
	b.WriteString("\n\n")

	// ── Metrics ──
	coverage := snap.MeasureFloat(domain.MetricCoverage, 0)
	fmt.Fprintf(&b, "  %s %s %s\n", catNameStyle.Render(padRight("Coverage", 18)), coloredBar(coverage, 20), dimStyle.Render(formatPercent(coverage)))
	fmt.Fprintf(&b, "  %s %s\n", catNameStyle.Render(padRight("Duplication", 18)), dimStyle.Render(formatPercent(snap.MeasureFloat(domain.MetricDuplication, 0))))
	fmt.Fprintf(&b, "  %s %s\n", catNameStyle.Render(padRight("Lines", 18)), dimStyle.Render(snap.MeasureValue(domain.MetricLines, "0")))

	b.WriteString("\n")
	b.WriteString("  " + separatorLine)
	b.WriteString("\n\n")

	// ── Top issues ──
	top := mostSevere(snap.Issues, s.Mode, topFindings)
	if len(top) > 0 {
		b.WriteString("  " + titleStyle.Render("Most severe issues") + "\n\n")
		for _, f := range top {
			renderFinding(&b, f, s.Mode)
		}
	} else {
		b.WriteString("  " + passStyle.Render("No issues found.") + "\n")
	}

	if s.Path != "" {
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("Report written to"), titleStyle.Render(s.Path))
	}
	if s.ReportID != "" {
		fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("Report ID"), faintStyle.Render(s.ReportID))
	}
	b.WriteString("\n")
	return b.String()
}

func renderCategory(b *strings.Builder, snap *domain.Snapshot, mode domain.Mode, cat domain.Category) {
	grade := snap.Grade(cat)
	gradeStyled := lipgloss.NewStyle().Bold(true).Foreground(gradeColor(grade)).Render(grade)

	findings := domain.FilterByCategory(snap.Issues, mode, cat)
	counts := domain.CountBySeverity(findings)
	var tags []string
	for _, level := range domain.SeverityLevels(mode) {
		if n := counts[level]; n > 0 {
			tags = append(tags, severityStyle(level).Render(fmt.Sprintf("%d %s", n, strings.ToLower(level))))
		}
	}

	name := catNameStyle.Render(padRight(categoryLabels[cat], 18))
	line := fmt.Sprintf("  %s %s  %s", name, gradeStyled, dimStyle.Render(padRight(strconv.Itoa(len(findings))+" issues", 12)))
	if len(tags) > 0 {
		line += " " + strings.Join(tags, "  ")
	}
	b.WriteString(line + "\n")
}

func renderFinding(b *strings.Builder, f domain.Finding, mode domain.Mode) {
	severity := domain.DisplaySeverity(f, mode)
	tag := severityStyle(severity).Bold(true).Render(padRight(strings.ToLower(severity), 8))
	location := f.ComponentPath()
	if f.HasLine() {
		location += ":" + strconv.Itoa(f.Line)
	}
	fmt.Fprintf(b, "    %s %s\n", tag, fileStyle.Render(location))
	fmt.Fprintf(b, "             %s\n", dimStyle.Render(f.Message))
}

// mostSevere returns up to n issues ordered by rank, then key.
func mostSevere(findings []domain.Finding, mode domain.Mode, n int) []domain.Finding {
	sorted := append([]domain.Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := domain.Rank(sorted[i], mode), domain.Rank(sorted[j], mode)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Key < sorted[j].Key
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func coloredBar(pct float64, width int) string {
	filled := max(0, min(int(pct)*width/100, width))
	empty := width - filled

	color := percentColor(pct)
	filledStr := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", empty))
	return filledStr + emptyStr
}

func percentColor(pct float64) lipgloss.Color {
	switch {
	case pct >= 80:
		return success
	case pct >= 60:
		return lipgloss.Color("#A3E635") // lime
	case pct >= 40:
		return warning
	default:
		return danger
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func severityStyle(severity string) lipgloss.Style {
	c, ok := severityColors[severity]
	if !ok {
		c = dim
	}
	return lipgloss.NewStyle().Foreground(c)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func gradeColor(grade string) lipgloss.Color {
	if c, ok := gradeColors[grade]; ok {
		return c
	}
	return fg
}

// RenderHistory formats report history for terminal output.
func RenderHistory(entries []domain.ReportEntry) string {
	if len(entries) == 0 {
		return "  " + dimStyle.Render("No report history found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Report History") + "  " + dimStyle.Render(entries[0].ProjectKey) + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 60)) + "\n\n")

	for i, e := range entries {
		rev := e.Revision
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if rev == "" {
			rev = "·······"
		}
		ts := e.Timestamp
		if len(ts) > 10 {
			ts = ts[:10]
		}

		var grades []string
		for _, cat := range domain.Categories {
			g := e.Grades[cat]
			if g == "" {
				g = "-"
			}
			grades = append(grades, lipgloss.NewStyle().Bold(true).Foreground(gradeColor(g)).Render(g))
		}

		line := fmt.Sprintf("  %s  %s  %s  %s",
			dimStyle.Render(ts),
			faintStyle.Render(rev),
			strings.Join(grades, " "),
			dimStyle.Render(fmt.Sprintf("%d issues", e.Total())),
		)

		if i > 0 {
			diff := e.Total() - entries[i-1].Total()
			if diff < 0 {
				line += "  " + passStyle.Render(fmt.Sprintf("↓%d", -diff))
			} else if diff > 0 {
				line += "  " + lipgloss.NewStyle().Foreground(danger).Render(fmt.Sprintf("↑%d", diff))
			}
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
