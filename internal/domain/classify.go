package domain

import (
	"sort"
	"strings"
)

// Mode is the severity vocabulary a server reports in.
type Mode string

const (
	ModeStandard Mode = "STANDARD"
	ModeMQR      Mode = "MQR"
)

// Category is a software-quality area a finding is reported under.
type Category string

const (
	CategorySecurity        Category = "SECURITY"
	CategoryReliability     Category = "RELIABILITY"
	CategoryMaintainability Category = "MAINTAINABILITY"
)

// Categories lists the report sections in display order.
var Categories = []Category{CategorySecurity, CategoryReliability, CategoryMaintainability}

// UnknownRank is the rank of any severity outside the active table.
const UnknownRank = 99

var (
	standardRanks = map[string]int{
		"BLOCKER":  1,
		"CRITICAL": 2,
		"MAJOR":    3,
		"MINOR":    4,
		"INFO":     5,
	}
	mqrRanks = map[string]int{
		"HIGH":   1,
		"MEDIUM": 2,
		"LOW":    3,
	}

	standardLevels = []string{"BLOCKER", "CRITICAL", "MAJOR", "MINOR", "INFO"}
	mqrLevels      = []string{"HIGH", "MEDIUM", "LOW"}

	securityTags = map[string]bool{"security": true, "cwe": true, "owasp": true}
)

// ClassifyMode guesses the vocabulary from the findings themselves.
//
// It is a heuristic over one data sample, not a server query: a server that
// mixes both vocabularies in the same sample can defeat it.
func ClassifyMode(findings []Finding) Mode {
	hasImpacts := false
	seen := make(map[string]bool)
	for _, f := range findings {
		sig := f.Signal()
		if sig.Legacy != "" {
			seen[strings.ToUpper(sig.Legacy)] = true
		}
		if sig.HasImpacts() {
			hasImpacts = true
		}
		for _, imp := range sig.Impacts {
			if imp.Severity != "" {
				seen[strings.ToUpper(imp.Severity)] = true
			}
		}
	}

	if hasImpacts && intersects(seen, mqrRanks) {
		return ModeMQR
	}
	if intersects(seen, standardRanks) {
		return ModeStandard
	}
	return ModeStandard
}

func intersects(seen map[string]bool, table map[string]int) bool {
	for sev := range seen {
		if _, ok := table[sev]; ok {
			return true
		}
	}
	return false
}

// SeverityRank orders a severity under mode; lower is more severe.
func SeverityRank(severity string, mode Mode) int {
	table := standardRanks
	if mode == ModeMQR {
		table = mqrRanks
	}
	if r, ok := table[strings.ToUpper(severity)]; ok {
		return r
	}
	return UnknownRank
}

// SeverityLevels returns the severities of mode, most severe first.
func SeverityLevels(mode Mode) []string {
	if mode == ModeMQR {
		return append([]string(nil), mqrLevels...)
	}
	return append([]string(nil), standardLevels...)
}

// Classification is the resolved section, severity and rank of a finding.
type Classification struct {
	Category Category
	Severity string
	Rank     int
}

// InCategory reports whether f belongs to category. Impact-bearing findings
// match on software quality only; the rest fall back to their legacy type.
func InCategory(f Finding, category Category) bool {
	if sig := f.Signal(); sig.HasImpacts() {
		_, ok := matchImpact(sig, category)
		return ok
	}
	return legacyCategory(f) == category
}

// Classify resolves f against one target category. The first matching impact
// wins, so a finding is never counted twice within one pass.
func Classify(f Finding, mode Mode, category Category) (Classification, bool) {
	if !InCategory(f, category) {
		return Classification{}, false
	}
	sig := f.Signal()
	severity := sig.Legacy
	if mode == ModeMQR {
		if imp, ok := matchImpact(sig, category); ok && imp.Severity != "" {
			severity = imp.Severity
		}
	}
	severity = strings.ToUpper(severity)
	return Classification{
		Category: category,
		Severity: severity,
		Rank:     SeverityRank(severity, mode),
	}, true
}

// PrimaryCategory always resolves to one category: the first known impact,
// then the legacy type, then MAINTAINABILITY.
func PrimaryCategory(f Finding) Category {
	for _, imp := range f.Signal().Impacts {
		if c, ok := parseCategory(imp.SoftwareQuality); ok {
			return c
		}
	}
	if c := legacyCategory(f); c != "" {
		return c
	}
	return CategoryMaintainability
}

// DisplaySeverity is the severity shown for f: the first impact severity in
// MQR mode, the legacy severity otherwise.
func DisplaySeverity(f Finding, mode Mode) string {
	sig := f.Signal()
	if mode == ModeMQR {
		for _, imp := range sig.Impacts {
			if imp.Severity != "" {
				return strings.ToUpper(imp.Severity)
			}
		}
	}
	return strings.ToUpper(sig.Legacy)
}

// Rank is the overall rank of f under mode. In MQR mode the most severe
// impact decides; findings without impacts fall back to the legacy field.
func Rank(f Finding, mode Mode) int {
	sig := f.Signal()
	if mode == ModeMQR && sig.HasImpacts() {
		best := UnknownRank
		for _, imp := range sig.Impacts {
			best = min(best, SeverityRank(imp.Severity, mode))
		}
		return best
	}
	return SeverityRank(sig.Legacy, mode)
}

// ClassifiedFinding pairs a finding with its resolution for one category.
type ClassifiedFinding struct {
	Finding
	Classification
}

// FilterByCategory returns the findings of category sorted by rank, then key.
func FilterByCategory(findings []Finding, mode Mode, category Category) []ClassifiedFinding {
	var out []ClassifiedFinding
	for _, f := range findings {
		if c, ok := Classify(f, mode, category); ok {
			out = append(out, ClassifiedFinding{Finding: f, Classification: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// CountBySeverity tallies classified findings per severity.
func CountBySeverity(findings []ClassifiedFinding) map[string]int {
	counts := make(map[string]int)
	for _, f := range findings {
		counts[f.Classification.Severity]++
	}
	return counts
}

func matchImpact(sig SeveritySignal, category Category) (Impact, bool) {
	for _, imp := range sig.Impacts {
		if strings.EqualFold(imp.SoftwareQuality, string(category)) {
			return imp, true
		}
	}
	return Impact{}, false
}

// legacyCategory places a finding without impacts. Security types come
// first, then security tags, then the remaining types.
func legacyCategory(f Finding) Category {
	typ := strings.ToUpper(f.Type)
	if typ == TypeVulnerability || typ == TypeSecurityHotspot || hasSecurityTag(f.Tags) {
		return CategorySecurity
	}
	switch typ {
	case TypeBug:
		return CategoryReliability
	case TypeCodeSmell:
		return CategoryMaintainability
	}
	return ""
}

func hasSecurityTag(tags []string) bool {
	for _, tag := range tags {
		if securityTags[strings.ToLower(tag)] {
			return true
		}
	}
	return false
}

func parseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}
