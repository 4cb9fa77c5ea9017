package sonar

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erni27/imcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// Server endpoints.
const (
	EndpointComponent = "api/components/show"
	EndpointIssues    = "api/issues/search"
	EndpointMeasures  = "api/measures/component"
	EndpointSettings  = "api/settings/values"
	EndpointHotspots  = "api/hotspots/search"
	EndpointSources   = "api/sources/show"
	EndpointRule      = "api/rules/show"
)

// SettingMultiQualityMode is the server setting that selects the MQR vocabulary.
const SettingMultiQualityMode = "sonar.multi-quality-mode.enabled"

// Compile-time check.
var _ domain.AnalysisServer = (*API)(nil)

// API maps server endpoints onto domain types.
type API struct {
	client    *Client
	paginator *Paginator
	rules     *imcache.Cache[string, domain.Rule]
	logger    zerolog.Logger
}

// New builds the client, paginator and API from cfg.
func New(cfg domain.Config, logger zerolog.Logger, opts ...Option) (*API, error) {
	client, err := NewClient(cfg, append([]Option{WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	paginator := NewPaginator(client,
		WithPageSize(cfg.PageSize),
		WithMaxPages(cfg.MaxPages),
		WithPageDelay(cfg.PageDelay),
		WithPaginatorLogger(logger),
	)
	return NewAPI(client, paginator, logger), nil
}

// NewAPI wraps an existing client and paginator.
func NewAPI(client *Client, paginator *Paginator, logger zerolog.Logger) *API {
	return &API{
		client:    client,
		paginator: paginator,
		rules: imcache.New[string, domain.Rule](
			imcache.WithDefaultExpirationOption[string, domain.Rule](time.Hour),
		),
		logger: logger,
	}
}

type componentResponse struct {
	Component struct {
		Key          string `json:"key"`
		Name         string `json:"name"`
		Qualifier    string `json:"qualifier"`
		Visibility   string `json:"visibility"`
		AnalysisDate string `json:"analysisDate"`
		Revision     string `json:"revision"`
	} `json:"component"`
}

// Project reads the component metadata of projectKey.
func (a *API) Project(ctx context.Context, projectKey string) (domain.Project, error) {
	var resp componentResponse
	if err := a.client.GetJSON(ctx, EndpointComponent, url.Values{"component": {projectKey}}, &resp); err != nil {
		return domain.Project{}, err
	}
	c := resp.Component
	return domain.Project{
		Key:          c.Key,
		Name:         c.Name,
		Qualifier:    c.Qualifier,
		Visibility:   c.Visibility,
		LastAnalysis: parseTime(c.AnalysisDate),
		Revision:     c.Revision,
	}, nil
}

type impactJSON struct {
	SoftwareQuality string `json:"softwareQuality"`
	Severity        string `json:"severity"`
}

type issueJSON struct {
	Key          string       `json:"key"`
	Component    string       `json:"component"`
	Project      string       `json:"project"`
	Rule         string       `json:"rule"`
	Severity     string       `json:"severity"`
	Status       string       `json:"status"`
	Message      string       `json:"message"`
	Type         string       `json:"type"`
	Line         int          `json:"line"`
	Effort       string       `json:"effort"`
	Author       string       `json:"author"`
	Tags         []string     `json:"tags"`
	CreationDate string       `json:"creationDate"`
	UpdateDate   string       `json:"updateDate"`
	Impacts      []impactJSON `json:"impacts"`
}

func (i issueJSON) toDomain() domain.Finding {
	impacts := make([]domain.Impact, 0, len(i.Impacts))
	for _, imp := range i.Impacts {
		impacts = append(impacts, domain.Impact{SoftwareQuality: imp.SoftwareQuality, Severity: imp.Severity})
	}
	return domain.Finding{
		Kind:         domain.KindIssue,
		Key:          i.Key,
		Component:    i.Component,
		Project:      i.Project,
		Rule:         i.Rule,
		Severity:     i.Severity,
		Impacts:      impacts,
		Message:      i.Message,
		Type:         i.Type,
		Line:         i.Line,
		Status:       i.Status,
		Tags:         i.Tags,
		Effort:       i.Effort,
		Author:       i.Author,
		CreationDate: i.CreationDate,
		UpdateDate:   i.UpdateDate,
	}
}

// Issues returns every issue the server reports for projectKey, across all pages.
func (a *API) Issues(ctx context.Context, projectKey string) ([]domain.Finding, error) {
	raw, err := a.paginator.FetchAll(ctx, EndpointIssues, url.Values{"componentKeys": {projectKey}})
	if err != nil {
		return nil, err
	}
	findings := make([]domain.Finding, 0, len(raw))
	for _, item := range raw {
		var issue issueJSON
		if err := json.Unmarshal(item, &issue); err != nil {
			return nil, errors.Wrap(err, "decoding issue")
		}
		findings = append(findings, issue.toDomain())
	}
	return findings, nil
}

type hotspotJSON struct {
	Key                      string `json:"key"`
	Component                string `json:"component"`
	Project                  string `json:"project"`
	Rule                     string `json:"rule"`
	RuleKey                  string `json:"ruleKey"`
	RuleName                 string `json:"ruleName"`
	Status                   string `json:"status"`
	Message                  string `json:"message"`
	Line                     int    `json:"line"`
	Author                   string `json:"author"`
	CreationDate             string `json:"creationDate"`
	UpdateDate               string `json:"updateDate"`
	VulnerabilityProbability string `json:"vulnerabilityProbability"`
	SecurityCategory         string `json:"securityCategory"`
}

func (h hotspotJSON) toDomain() domain.Finding {
	rule := h.Rule
	if rule == "" {
		rule = h.RuleKey
	}
	probability := h.VulnerabilityProbability
	if probability == "" {
		probability = "MEDIUM"
	}
	return domain.Finding{
		Kind:                     domain.KindHotspot,
		Key:                      h.Key,
		Component:                h.Component,
		Project:                  h.Project,
		Rule:                     rule,
		Message:                  h.Message,
		Type:                     domain.TypeSecurityHotspot,
		Line:                     h.Line,
		Status:                   h.Status,
		Author:                   h.Author,
		CreationDate:             h.CreationDate,
		UpdateDate:               h.UpdateDate,
		VulnerabilityProbability: probability,
		SecurityCategory:         h.SecurityCategory,
		RuleName:                 h.RuleName,
	}
}

// Hotspots returns every security hotspot of projectKey, across all pages.
func (a *API) Hotspots(ctx context.Context, projectKey string) ([]domain.Finding, error) {
	raw, err := a.paginator.FetchAll(ctx, EndpointHotspots, url.Values{"projectKey": {projectKey}})
	if err != nil {
		return nil, err
	}
	findings := make([]domain.Finding, 0, len(raw))
	for _, item := range raw {
		var h hotspotJSON
		if err := json.Unmarshal(item, &h); err != nil {
			return nil, errors.Wrap(err, "decoding hotspot")
		}
		findings = append(findings, h.toDomain())
	}
	return findings, nil
}

type measuresResponse struct {
	Component struct {
		Measures []struct {
			Metric string          `json:"metric"`
			Value  json.RawMessage `json:"value"`
			Period *struct {
				Value json.RawMessage `json:"value"`
			} `json:"period"`
		} `json:"measures"`
	} `json:"component"`
}

// Measures returns the requested metrics keyed by metric name. Metrics the
// server does not report are absent from the map.
func (a *API) Measures(ctx context.Context, projectKey string, metrics []string) (map[string]domain.Measure, error) {
	params := url.Values{
		"component":  {projectKey},
		"metricKeys": {strings.Join(metrics, ",")},
	}
	var resp measuresResponse
	if err := a.client.GetJSON(ctx, EndpointMeasures, params, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Measure, len(resp.Component.Measures))
	for _, m := range resp.Component.Measures {
		value := scalar(m.Value)
		if value == "" && m.Period != nil {
			value = scalar(m.Period.Value)
		}
		out[m.Metric] = domain.Measure{Metric: m.Metric, Value: value}
	}
	return out, nil
}

type settingsResponse struct {
	Settings []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"settings"`
}

// MultiQualityMode reads the server setting. A missing setting reads as true.
func (a *API) MultiQualityMode(ctx context.Context) (bool, error) {
	var resp settingsResponse
	if err := a.client.GetJSON(ctx, EndpointSettings, url.Values{"keys": {SettingMultiQualityMode}}, &resp); err != nil {
		return true, err
	}
	return parseMultiQualityMode(resp), nil
}

func parseMultiQualityMode(resp settingsResponse) bool {
	for _, s := range resp.Settings {
		if s.Key == SettingMultiQualityMode {
			return strings.EqualFold(strings.TrimSpace(s.Value), "true")
		}
	}
	return true
}

type sourcesResponse struct {
	Sources [][]json.RawMessage `json:"sources"`
}

// Sources returns the lines from..to of a component. Malformed rows are skipped.
func (a *API) Sources(ctx context.Context, component string, from, to int) ([]domain.SourceLine, error) {
	params := url.Values{
		"key":  {component},
		"from": {strconv.Itoa(from)},
		"to":   {strconv.Itoa(to)},
	}
	var resp sourcesResponse
	if err := a.client.GetJSON(ctx, EndpointSources, params, &resp); err != nil {
		return nil, err
	}
	lines := make([]domain.SourceLine, 0, len(resp.Sources))
	for _, row := range resp.Sources {
		if len(row) < 2 {
			continue
		}
		var line domain.SourceLine
		if err := json.Unmarshal(row[0], &line.Line); err != nil {
			continue
		}
		if err := json.Unmarshal(row[1], &line.Code); err != nil {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

type ruleResponse struct {
	Rule struct {
		Key                 string `json:"key"`
		Name                string `json:"name"`
		Severity            string `json:"severity"`
		Type                string `json:"type"`
		Lang                string `json:"lang"`
		HTMLDesc            string `json:"htmlDesc"`
		DescriptionSections []struct {
			Key     string `json:"key"`
			Content string `json:"content"`
		} `json:"descriptionSections"`
	} `json:"rule"`
}

// Rule fetches rule metadata. Answers are cached per API instance.
func (a *API) Rule(ctx context.Context, ruleKey string) (domain.Rule, error) {
	if r, ok := a.rules.Get(ruleKey); ok {
		return r, nil
	}

	var resp ruleResponse
	if err := a.client.GetJSON(ctx, EndpointRule, url.Values{"key": {ruleKey}}, &resp); err != nil {
		return domain.Rule{}, err
	}
	r := resp.Rule
	rule := domain.Rule{
		Key:      r.Key,
		Name:     r.Name,
		Severity: r.Severity,
		Type:     r.Type,
		Language: r.Lang,
	}
	if rule.Key == "" {
		rule.Key = ruleKey
	}
	for _, s := range r.DescriptionSections {
		rule.Sections = append(rule.Sections, domain.RuleSection{Key: s.Key, Content: s.Content})
	}
	if len(rule.Sections) == 0 && r.HTMLDesc != "" {
		rule.Sections = []domain.RuleSection{{Key: "default", Content: r.HTMLDesc}}
	}

	a.rules.Set(ruleKey, rule, imcache.WithDefaultExpiration())
	return rule, nil
}

// scalar renders a JSON string or number as text.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

var timeLayouts = []string{"2006-01-02T15:04:05-0700", time.RFC3339}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
