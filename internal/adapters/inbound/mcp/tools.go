package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/pdf"
	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// registerTools registers the query tools on the given server.
func registerTools(s *server.MCPServer, snaps *snapshots, projectKey string) {
	// 1. sonar_summary
	s.AddTool(
		mcplib.NewTool("sonar_summary",
			mcplib.WithDescription("Returns project metadata, quality ratings, key metrics and issue counts per category and severity"),
		),
		handleSummary(snaps, projectKey),
	)

	// 2. sonar_issues
	s.AddTool(
		mcplib.NewTool("sonar_issues",
			mcplib.WithDescription("Lists the issues of one software-quality category, most severe first"),
			mcplib.WithString("category",
				mcplib.Required(),
				mcplib.Description("Category to list"),
				mcplib.Enum("security", "reliability", "maintainability"),
			),
		),
		handleIssues(snaps, projectKey),
	)

	// 3. sonar_hotspots
	s.AddTool(
		mcplib.NewTool("sonar_hotspots",
			mcplib.WithDescription("Lists the security hotspots to review, highest vulnerability probability first"),
		),
		handleHotspots(snaps, projectKey),
	)

	// 4. sonar_rule
	s.AddTool(
		mcplib.NewTool("sonar_rule",
			mcplib.WithDescription("Returns the name and description of a rule referenced by the findings"),
			mcplib.WithString("key",
				mcplib.Required(),
				mcplib.Description("Rule key, e.g. java:S2259"),
			),
		),
		handleRule(snaps, projectKey),
	)
}

type categorySummary struct {
	Grade      string         `json:"grade"`
	Issues     int            `json:"issues"`
	BySeverity map[string]int `json:"by_severity"`
}

type summary struct {
	Project          domain.Project                      `json:"project"`
	Mode             domain.Mode                         `json:"mode"`
	MultiQualityMode bool                                `json:"multi_quality_mode"`
	Categories       map[domain.Category]categorySummary `json:"categories"`
	Hotspots         int                                 `json:"hotspots"`
	Measures         map[string]string                   `json:"measures"`
	Rules            int                                 `json:"rules"`
}

func buildSummary(c collected) summary {
	snap := c.snapshot
	out := summary{
		Project:          snap.Project,
		Mode:             c.mode,
		MultiQualityMode: snap.MultiQualityMode,
		Categories:       make(map[domain.Category]categorySummary, len(domain.Categories)),
		Hotspots:         len(snap.Hotspots),
		Measures:         make(map[string]string, len(snap.Measures)),
		Rules:            len(snap.Rules),
	}
	for _, cat := range domain.Categories {
		findings := domain.FilterByCategory(snap.Issues, c.mode, cat)
		out.Categories[cat] = categorySummary{
			Grade:      snap.Grade(cat),
			Issues:     len(findings),
			BySeverity: domain.CountBySeverity(findings),
		}
	}
	for k, m := range snap.Measures {
		out.Measures[k] = m.Value
	}
	return out
}

func handleSummary(snaps *snapshots, projectKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		c, err := snaps.get(ctx, projectKey)
		if err != nil {
			return errorResult(fmt.Sprintf("collection failed: %v", err)), nil
		}
		return jsonResult(buildSummary(c))
	}
}

type issueView struct {
	Key         string `json:"key"`
	Severity    string `json:"severity"`
	Rank        int    `json:"rank"`
	File        string `json:"file"`
	Line        int    `json:"line,omitempty"`
	Rule        string `json:"rule"`
	RuleName    string `json:"rule_name,omitempty"`
	Message     string `json:"message"`
	Snippet     string `json:"snippet,omitempty"`
	Status      string `json:"status,omitempty"`
	Effort      string `json:"effort,omitempty"`
	Category    string `json:"category,omitempty"`
	Probability string `json:"probability,omitempty"`
}

func handleIssues(snaps *snapshots, projectKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		name, err := request.RequireString("category")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		cat, ok := parseCategory(name)
		if !ok {
			return errorResult(fmt.Sprintf("unknown category %q (valid: security, reliability, maintainability)", name)), nil
		}

		c, err := snaps.get(ctx, projectKey)
		if err != nil {
			return errorResult(fmt.Sprintf("collection failed: %v", err)), nil
		}

		findings := domain.FilterByCategory(c.snapshot.Issues, c.mode, cat)
		views := make([]issueView, 0, len(findings))
		for _, f := range findings {
			views = append(views, issueView{
				Key:      f.Key,
				Severity: f.Classification.Severity,
				Rank:     f.Rank,
				File:     f.ComponentPath(),
				Line:     f.Line,
				Rule:     f.Rule,
				RuleName: f.RuleName,
				Message:  f.Message,
				Snippet:  f.CodeSnippet,
				Status:   f.Status,
				Effort:   f.Effort,
			})
		}
		return jsonResult(views)
	}
}

func handleHotspots(snaps *snapshots, projectKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		c, err := snaps.get(ctx, projectKey)
		if err != nil {
			return errorResult(fmt.Sprintf("collection failed: %v", err)), nil
		}

		views := make([]issueView, 0, len(c.snapshot.Hotspots))
		for _, h := range c.snapshot.Hotspots {
			views = append(views, issueView{
				Key:         h.Key,
				Severity:    strings.ToUpper(h.VulnerabilityProbability),
				Rank:        domain.SeverityRank(h.VulnerabilityProbability, domain.ModeMQR),
				File:        h.ComponentPath(),
				Line:        h.Line,
				Rule:        h.Rule,
				Message:     h.Message,
				Snippet:     h.CodeSnippet,
				Status:      h.Status,
				Category:    h.SecurityCategory,
				Probability: h.VulnerabilityProbability,
			})
		}
		sortViews(views)
		return jsonResult(views)
	}
}

type ruleView struct {
	Key      string            `json:"key"`
	Name     string            `json:"name"`
	Type     string            `json:"type,omitempty"`
	Severity string            `json:"severity,omitempty"`
	Language string            `json:"language,omitempty"`
	Sections map[string]string `json:"sections"`
}

func handleRule(snaps *snapshots, projectKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		key, err := request.RequireString("key")
		if err != nil {
			return errorResult(err.Error()), nil
		}

		c, err := snaps.get(ctx, projectKey)
		if err != nil {
			return errorResult(fmt.Sprintf("collection failed: %v", err)), nil
		}

		rule, ok := c.snapshot.Rules[key]
		if !ok {
			return errorResult(fmt.Sprintf("rule %q is not referenced by any finding", key)), nil
		}
		view := ruleView{
			Key:      rule.Key,
			Name:     rule.Name,
			Type:     rule.Type,
			Severity: rule.Severity,
			Language: rule.Language,
			Sections: make(map[string]string, len(rule.Sections)),
		}
		for _, sec := range rule.Sections {
			view.Sections[pdf.HumanizeKey(sec.Key)] = pdf.PlainText(sec.Content)
		}
		return jsonResult(view)
	}
}

func parseCategory(s string) (domain.Category, bool) {
	for _, c := range domain.Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

func sortViews(views []issueView) {
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && less(views[j], views[j-1]); j-- {
			views[j], views[j-1] = views[j-1], views[j]
		}
	}
}

func less(a, b issueView) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Key < b.Key
}

// jsonResult marshals v as indented JSON text content.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
