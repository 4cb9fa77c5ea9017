package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpadapter "github.com/reflectsonar/reflectsonar/internal/adapters/inbound/mcp"
	"github.com/reflectsonar/reflectsonar/internal/domain"
)

type fakeSource struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSource) Snapshot(_ context.Context, key string) (*domain.Snapshot, domain.Mode, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, "", f.err
	}
	return &domain.Snapshot{
		Project: domain.Project{Key: key, Name: "Demo"},
		Issues: []domain.Finding{
			{Key: "I-2", Component: key + ":src/B.java", Rule: "java:S1", Message: "minor", Severity: "MINOR", Type: domain.TypeBug},
			{Key: "I-1", Component: key + ":src/A.java", Rule: "java:S2259", Message: "npe", Severity: "BLOCKER", Type: domain.TypeBug, Line: 4},
		},
		Hotspots: []domain.Finding{
			{Key: "H-low", Kind: domain.KindHotspot, VulnerabilityProbability: "LOW"},
			{Key: "H-high", Kind: domain.KindHotspot, VulnerabilityProbability: "HIGH"},
		},
		Measures: map[string]domain.Measure{domain.MetricReliabilityRating: {Value: "4.0"}},
		Rules: map[string]domain.Rule{
			"java:S2259": {
				Key:      "java:S2259",
				Name:     "Null pointers should not be dereferenced",
				Sections: []domain.RuleSection{{Key: "root_cause", Content: "<p>Do <b>not</b> do this.</p>"}},
			},
		},
	}, domain.ModeStandard, nil
}

type toolResult struct {
	Result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
}

func callTool(t *testing.T, src *fakeSource, name string, args map[string]any) toolResult {
	t.Helper()
	s := mcpadapter.NewServer(src, "demo", "test")
	return callOn(t, func(ctx context.Context, m json.RawMessage) any { return s.HandleMessage(ctx, m) }, name, args)
}

func callOn(t *testing.T, handle func(context.Context, json.RawMessage) any, name string, args map[string]any) toolResult {
	t.Helper()
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(handle(context.Background(), req))
	require.NoError(t, err)

	var res toolResult
	require.NoError(t, json.Unmarshal(raw, &res), string(raw))
	require.NotEmpty(t, res.Result.Content, string(raw))
	return res
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := mcpadapter.NewServer(&fakeSource{}, "demo", "test")
	require.NotNil(t, s)

	tools := s.ListTools()
	expected := []string{"sonar_summary", "sonar_issues", "sonar_hotspots", "sonar_rule"}
	for _, name := range expected {
		_, exists := tools[name]
		assert.True(t, exists, "tool %q should be registered", name)
	}
	assert.Len(t, tools, len(expected))
}

func TestNewServer_IsLazy(t *testing.T) {
	src := &fakeSource{}
	mcpadapter.NewServer(src, "demo", "test")
	assert.Zero(t, src.calls.Load())
}

func TestSummaryTool(t *testing.T) {
	res := callTool(t, &fakeSource{}, "sonar_summary", nil)
	require.False(t, res.Result.IsError, res.Result.Content[0].Text)

	var got struct {
		Project    domain.Project `json:"project"`
		Mode       domain.Mode    `json:"mode"`
		Hotspots   int            `json:"hotspots"`
		Categories map[string]struct {
			Grade      string         `json:"grade"`
			Issues     int            `json:"issues"`
			BySeverity map[string]int `json:"by_severity"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result.Content[0].Text), &got))
	assert.Equal(t, "demo", got.Project.Key)
	assert.Equal(t, domain.ModeStandard, got.Mode)
	assert.Equal(t, 2, got.Hotspots)
	assert.Equal(t, 2, got.Categories["RELIABILITY"].Issues)
	assert.Equal(t, "D", got.Categories["RELIABILITY"].Grade)
	assert.Equal(t, 1, got.Categories["RELIABILITY"].BySeverity["BLOCKER"])
	assert.Equal(t, 0, got.Categories["SECURITY"].Issues)
}

func TestIssuesTool_SortedByRank(t *testing.T) {
	res := callTool(t, &fakeSource{}, "sonar_issues", map[string]any{"category": "reliability"})
	require.False(t, res.Result.IsError, res.Result.Content[0].Text)

	var got []struct {
		Key  string `json:"key"`
		File string `json:"file"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result.Content[0].Text), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "I-1", got[0].Key)
	assert.Equal(t, "src/A.java", got[0].File)
}

func TestIssuesTool_UnknownCategory(t *testing.T) {
	res := callTool(t, &fakeSource{}, "sonar_issues", map[string]any{"category": "portability"})
	assert.True(t, res.Result.IsError)
	assert.Contains(t, res.Result.Content[0].Text, "unknown category")
}

func TestHotspotsTool_HighestFirst(t *testing.T) {
	res := callTool(t, &fakeSource{}, "sonar_hotspots", nil)
	var got []struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result.Content[0].Text), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "H-high", got[0].Key)
}

func TestRuleTool(t *testing.T) {
	res := callTool(t, &fakeSource{}, "sonar_rule", map[string]any{"key": "java:S2259"})
	require.False(t, res.Result.IsError, res.Result.Content[0].Text)

	var got struct {
		Name     string            `json:"name"`
		Sections map[string]string `json:"sections"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result.Content[0].Text), &got))
	assert.Equal(t, "Null pointers should not be dereferenced", got.Name)
	assert.Equal(t, "Do not do this.", got.Sections["Root Cause"])

	missing := callTool(t, &fakeSource{}, "sonar_rule", map[string]any{"key": "java:S0"})
	assert.True(t, missing.Result.IsError)
}

func TestSnapshotCollectedOnce(t *testing.T) {
	src := &fakeSource{}
	s := mcpadapter.NewServer(src, "demo", "test")
	handle := func(ctx context.Context, m json.RawMessage) any { return s.HandleMessage(ctx, m) }

	callOn(t, handle, "sonar_summary", nil)
	callOn(t, handle, "sonar_hotspots", nil)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCollectionErrorsAreNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("server down")}
	s := mcpadapter.NewServer(src, "demo", "test")
	handle := func(ctx context.Context, m json.RawMessage) any { return s.HandleMessage(ctx, m) }

	res := callOn(t, handle, "sonar_summary", nil)
	assert.True(t, res.Result.IsError)
	assert.Contains(t, res.Result.Content[0].Text, "server down")

	src.err = nil
	res = callOn(t, handle, "sonar_summary", nil)
	assert.False(t, res.Result.IsError)
	assert.Equal(t, int32(2), src.calls.Load())
}
