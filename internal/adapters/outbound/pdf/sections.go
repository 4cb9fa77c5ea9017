package pdf

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

const pathWrap = 40

var categoryTitles = map[domain.Category]string{
	domain.CategorySecurity:        "Security Issues",
	domain.CategoryReliability:     "Reliability Issues",
	domain.CategoryMaintainability: "Maintainability Issues",
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// cleanMessage strips markup from server messages.
func cleanMessage(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// wrapPath breaks long paths at separators so table cells stay narrow.
func wrapPath(path string, width int) string {
	if len(path) <= width {
		return path
	}
	var lines []string
	var cur strings.Builder
	for _, part := range strings.SplitAfter(path, "/") {
		if cur.Len() > 0 && cur.Len()+len(part) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		for len(part) > width {
			lines = append(lines, part[:width])
			part = part[width:]
		}
		cur.WriteString(part)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return strings.Join(lines, "\n")
}

func (rc *renderContext) cover() {
	p := rc.pdf
	p.AddPage()
	p.Bookmark("Report Overview", 0, -1)

	p.Ln(20)
	rc.font("B", 26, textColor)
	p.CellFormat(rc.contentW, 12, "Code Quality Report", "", 1, "C", false, 0, "")
	rc.font("", 16, accentColor)
	p.CellFormat(rc.contentW, 9, rc.tr(rc.projectName()), "", 1, "C", false, 0, "")
	p.Ln(10)

	rows := [][2]string{
		{"Project key", rc.snap.Project.Key},
		{"Last analysis", formatTime(rc.snap.Project.LastAnalysis)},
		{"Revision", orDash(rc.snap.Project.Revision)},
		{"Severity mode", string(rc.mode)},
		{"Multi-quality mode", strconv.FormatBool(rc.snap.MultiQualityMode)},
		{"Generated", rc.opts.Generated.Format("2006-01-02 15:04:05")},
		{"Report ID", orDash(rc.opts.ReportID)},
	}
	for _, row := range rows {
		rc.font("B", 10, mutedColor)
		p.CellFormat(45, 6, rc.tr(row[0]), "", 0, "L", false, 0, "")
		rc.font("", 10, textColor)
		p.CellFormat(rc.contentW-45, 6, rc.tr(row[1]), "", 1, "L", false, 0, "")
	}
	p.Ln(8)

	rc.subtitle("Quality Ratings")
	rc.ratings()
	p.Ln(6)

	rc.subtitle("Key Metrics")
	rc.metrics()
	p.Ln(6)

	rc.subtitle("Findings by Severity")
	rc.severityTable()
}

func (rc *renderContext) ratings() {
	p := rc.pdf
	cards := []struct {
		label  string
		metric string
		issues string
		cat    domain.Category
	}{
		{"Security", domain.MetricSecurityRating, domain.MetricSecurityIssues, domain.CategorySecurity},
		{"Reliability", domain.MetricReliabilityRating, domain.MetricReliabilityIssues, domain.CategoryReliability},
		{"Maintainability", domain.MetricMaintainabilityRating, domain.MetricMaintainabilityIssues, domain.CategoryMaintainability},
	}
	w := rc.contentW / float64(len(cards))
	y := p.GetY()
	for i, c := range cards {
		x := pageMargin + float64(i)*w
		grade := domain.ScoreToGrade(rc.snap.MeasureFloat(c.metric, 1))
		col := gradeColor(grade)

		rc.fill(col)
		rc.drawColor(ruleColor)
		p.Rect(x+2, y, w-4, 28, "FD")
		p.SetXY(x+2, y+2)
		rc.font("B", 20, textColor)
		p.CellFormat(w-4, 12, grade, "", 2, "C", false, 0, "")
		rc.font("B", 9, textColor)
		p.CellFormat(w-4, 5, c.label, "", 2, "C", false, 0, "")
		count := len(domain.FilterByCategory(rc.snap.Issues, rc.mode, c.cat))
		rc.font("", 8, mutedColor)
		p.CellFormat(w-4, 5, fmt.Sprintf("%s open issues", rc.snap.MeasureValue(c.issues, strconv.Itoa(count))), "", 2, "C", false, 0, "")
	}
	p.SetXY(pageMargin, y+30)
}

func (rc *renderContext) metrics() {
	p := rc.pdf
	items := [][2]string{
		{"Coverage", rc.percent(domain.MetricCoverage)},
		{"Duplication", rc.percent(domain.MetricDuplication)},
		{"Lines of code", rc.snap.MeasureValue(domain.MetricLines, "0")},
		{"Lines to cover", rc.snap.MeasureValue(domain.MetricLinesToCover, "0")},
		{"Security hotspots", rc.snap.MeasureValue(domain.MetricSecurityHotspots, strconv.Itoa(len(rc.snap.Hotspots)))},
		{"Accepted issues", rc.snap.MeasureValue(domain.MetricAcceptedIssues, "0")},
	}
	w := rc.contentW / 3
	for i, it := range items {
		if i > 0 && i%3 == 0 {
			p.Ln(14)
		}
		x, y := pageMargin+float64(i%3)*w, p.GetY()
		p.SetXY(x, y)
		rc.font("B", 14, textColor)
		p.CellFormat(w, 7, rc.tr(it[1]), "", 2, "C", false, 0, "")
		rc.font("", 8, mutedColor)
		p.CellFormat(w, 5, rc.tr(it[0]), "", 0, "C", false, 0, "")
		p.SetXY(x, y)
	}
	p.Ln(14)
}

func (rc *renderContext) percent(metric string) string {
	v := rc.snap.MeasureFloat(metric, 0)
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func (rc *renderContext) severityTable() {
	p := rc.pdf
	levels := domain.SeverityLevels(rc.mode)
	labelW := 40.0
	colW := (rc.contentW - labelW) / float64(len(levels))

	rc.fill(headerFill)
	rc.drawColor(ruleColor)
	rc.font("B", 8, textColor)
	p.CellFormat(labelW, 6, "Category", "1", 0, "L", true, 0, "")
	for _, l := range levels {
		p.CellFormat(colW, 6, l, "1", 0, "C", true, 0, "")
	}
	p.Ln(-1)

	rc.font("", 9, textColor)
	for _, cat := range domain.Categories {
		counts := domain.CountBySeverity(domain.FilterByCategory(rc.snap.Issues, rc.mode, cat))
		p.CellFormat(labelW, 6, categoryTitles[cat], "1", 0, "L", false, 0, "")
		for _, l := range levels {
			p.CellFormat(colW, 6, strconv.Itoa(counts[l]), "1", 0, "C", false, 0, "")
		}
		p.Ln(-1)
	}
}

func (rc *renderContext) issueSection(cat domain.Category) {
	title := categoryTitles[cat]
	rc.title(title)
	findings := domain.FilterByCategory(rc.snap.Issues, rc.mode, cat)
	if len(findings) == 0 {
		rc.muted("No issues found in this category.")
		return
	}

	counts := domain.CountBySeverity(findings)
	var summary []string
	for _, l := range domain.SeverityLevels(rc.mode) {
		if counts[l] > 0 {
			summary = append(summary, fmt.Sprintf("%s: %d", l, counts[l]))
		}
	}
	rc.paragraph(fmt.Sprintf("%d issues found. %s", len(findings), strings.Join(summary, ", ")))

	cols := []float64{24, 62, rc.contentW - 86}
	rc.tableHeader(cols, []string{"Severity", "File Path", "Rule & Message"})
	current := ""
	for _, f := range findings {
		if sev := f.Classification.Severity; sev != current {
			current = sev
			rc.pdf.Bookmark(orDash(sev), 1, -1)
		}
		location := wrapPath(f.ComponentPath(), pathWrap)
		if f.HasLine() {
			location += fmt.Sprintf("\n(Line %d)", f.Line)
		}
		rule := f.RuleID()
		if f.RuleName != "" {
			rule += " - " + f.RuleName
		}
		rc.findingRow(cols, f.Classification.Severity, location, rule+"\n"+cleanMessage(f.Message))
		rc.snippet(f.CodeSnippet, f.SnippetPlaceholder())
	}
}

func (rc *renderContext) hotspotSection() {
	rc.title("Security Hotspots")
	hotspots := append([]domain.Finding(nil), rc.snap.Hotspots...)
	if len(hotspots) == 0 {
		rc.muted("No security hotspots found.")
		return
	}
	sort.SliceStable(hotspots, func(i, j int) bool {
		ri := domain.SeverityRank(hotspots[i].VulnerabilityProbability, domain.ModeMQR)
		rj := domain.SeverityRank(hotspots[j].VulnerabilityProbability, domain.ModeMQR)
		if ri != rj {
			return ri < rj
		}
		return hotspots[i].Key < hotspots[j].Key
	})
	rc.paragraph(fmt.Sprintf("%d security hotspots need review.", len(hotspots)))

	cols := []float64{24, 62, rc.contentW - 86}
	rc.tableHeader(cols, []string{"Probability", "File Path", "Category & Message"})
	for _, h := range hotspots {
		location := wrapPath(h.ComponentPath(), pathWrap)
		if h.HasLine() {
			location += fmt.Sprintf("\n(Line %d)", h.Line)
		}
		detail := orDash(h.SecurityCategory) + " (" + h.RuleID() + ")"
		if h.Status != "" {
			detail += " [" + h.Status + "]"
		}
		rc.findingRow(cols, h.VulnerabilityProbability, location, detail+"\n"+cleanMessage(h.Message))
		rc.snippet(h.CodeSnippet, h.SnippetPlaceholder())
	}
}

func (rc *renderContext) tableHeader(cols []float64, labels []string) {
	rc.ensureSpace(14)
	rc.fill(headerFill)
	rc.drawColor(ruleColor)
	rc.font("B", 8, textColor)
	for i, l := range labels {
		rc.pdf.CellFormat(cols[i], 6, rc.tr(l), "1", 0, "L", true, 0, "")
	}
	rc.pdf.Ln(-1)
}

// findingRow prints one wrapped table row with a severity badge.
func (rc *renderContext) findingRow(cols []float64, severity, location, detail string) {
	p := rc.pdf
	rc.font("", 8, textColor)
	rows := max(rc.lines(location, cols[1]), rc.lines(detail, cols[2]), 1)
	h := float64(rows)*4 + 2
	rc.ensureSpace(h)

	x, y := p.GetXY()
	rc.drawColor(ruleColor)
	p.Rect(x, y, cols[0], h, "D")
	p.SetXY(x+1, y+1)
	rc.badge(cols[0]-2, 5, orDash(severity), severityColor(severity))

	rc.font("", 8, textColor)
	rc.drawColor(ruleColor)
	p.Rect(x+cols[0], y, cols[1], h, "D")
	p.SetXY(x+cols[0], y+1)
	p.MultiCell(cols[1], 4, rc.tr(location), "", "L", false)

	p.Rect(x+cols[0]+cols[1], y, cols[2], h, "D")
	p.SetXY(x+cols[0]+cols[1], y+1)
	p.MultiCell(cols[2], 4, rc.tr(detail), "", "L", false)

	p.SetXY(x, y+h)
}

// snippet prints source lines in a shaded box, the target line in red.
func (rc *renderContext) snippet(code, placeholder string) {
	p := rc.pdf
	if strings.TrimSpace(code) == "" {
		code = placeholder
	}
	rc.fill(codeFill)
	for _, line := range strings.Split(code, "\n") {
		if strings.HasPrefix(line, ">>>") {
			p.SetFont("Courier", "B", 7)
			p.SetTextColor(targetColor.r, targetColor.g, targetColor.b)
		} else {
			p.SetFont("Courier", "", 7)
			p.SetTextColor(textColor.r, textColor.g, textColor.b)
		}
		p.MultiCell(rc.contentW, 3.5, rc.tr(strings.ReplaceAll(line, "\t", "    ")), "", "L", true)
	}
	p.Ln(3)
}

func (rc *renderContext) rulesSection() {
	rc.title("Rules Reference")
	if len(rc.snap.Rules) == 0 {
		rc.muted("No rule data available.")
		return
	}
	keys := make([]string, 0, len(rc.snap.Rules))
	for k := range rc.snap.Rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rc.paragraph(fmt.Sprintf("This section contains %d rules found in the analysis.", len(keys)))

	for _, k := range keys {
		rule := rc.snap.Rules[k]
		rc.ensureSpace(20)
		rc.pdf.Bookmark(rule.Key, 1, -1)
		rc.font("B", 11, accentColor)
		rc.pdf.MultiCell(rc.contentW, 6, rc.tr(orDash(rule.Name)), "", "L", false)
		rc.font("", 8, mutedColor)
		meta := "Key: " + rule.Key
		for _, extra := range []string{rule.Type, rule.Severity, rule.Language} {
			if extra != "" {
				meta += "  |  " + extra
			}
		}
		rc.pdf.CellFormat(rc.contentW, 5, rc.tr(meta), "", 1, "L", false, 0, "")
		for _, s := range rule.Sections {
			rc.ruleSection(s)
		}
		rc.drawColor(ruleColor)
		y := rc.pdf.GetY() + 2
		rc.pdf.Line(pageMargin, y, pageMargin+rc.contentW, y)
		rc.pdf.Ln(5)
	}
}

func (rc *renderContext) ruleSection(s domain.RuleSection) {
	p := rc.pdf
	rc.ensureSpace(12)
	rc.font("B", 9, textColor)
	p.CellFormat(rc.contentW, 6, rc.tr(HumanizeKey(s.Key)), "", 1, "L", false, 0, "")
	for _, b := range ParseHTML(s.Content) {
		switch b.Kind {
		case BlockHeading:
			rc.font("B", 9, textColor)
			p.MultiCell(rc.contentW, 4.5, rc.tr(b.Text), "", "L", false)
		case BlockListItem:
			rc.font("", 8, textColor)
			p.SetX(pageMargin + 4)
			p.MultiCell(rc.contentW-4, 4, rc.tr("- "+b.Text), "", "L", false)
		case BlockCode:
			rc.fill(codeFill)
			p.SetFont("Courier", "", 7)
			p.SetTextColor(textColor.r, textColor.g, textColor.b)
			p.MultiCell(rc.contentW, 3.5, rc.tr(strings.ReplaceAll(b.Text, "\t", "    ")), "", "L", true)
		default:
			rc.font("", 8, textColor)
			p.MultiCell(rc.contentW, 4, rc.tr(b.Text), "", "L", false)
		}
		p.Ln(1)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04 MST")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
