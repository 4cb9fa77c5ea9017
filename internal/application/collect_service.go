package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// Collection steps, as reported in CollectionFailedError.Step.
const (
	StepProject  = "project"
	StepIssues   = "issues"
	StepMeasures = "measures"
	StepSettings = "settings"
	StepHotspots = "hotspots"
)

const (
	defaultSnippetWorkers = 4
	defaultContextLines   = 3
	progressEvery         = 10
)

// CollectService gathers a complete snapshot of one project:
// project → {issues, measures, settings, hotspots} → snippets → rules.
type CollectService struct {
	server       domain.AnalysisServer
	logger       zerolog.Logger
	workers      int
	contextLines int
	now          func() time.Time
}

// CollectOption configures a CollectService.
type CollectOption func(*CollectService)

// WithLogger sets the logger that receives progress and warnings.
func WithLogger(l zerolog.Logger) CollectOption {
	return func(s *CollectService) { s.logger = l }
}

// WithSnippetWorkers bounds the number of concurrent source and rule fetches.
func WithSnippetWorkers(n int) CollectOption {
	return func(s *CollectService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithContextLines sets how many lines are shown on each side of a finding.
// Values below 1 keep the default.
func WithContextLines(n int) CollectOption {
	return func(s *CollectService) {
		if n >= 1 {
			s.contextLines = n
		}
	}
}

// NewCollectService creates a collector reading from server.
func NewCollectService(server domain.AnalysisServer, opts ...CollectOption) *CollectService {
	s := &CollectService{
		server:       server,
		logger:       zerolog.Nop(),
		workers:      defaultSnippetWorkers,
		contextLines: defaultContextLines,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collect fetches everything a report needs. A failing required fetch is
// returned as *domain.CollectionFailedError; optional data degrades to
// defaults. Cancellation returns ctx.Err().
func (s *CollectService) Collect(ctx context.Context, projectKey string) (*domain.Snapshot, error) {
	// 1. Project metadata
	s.logger.Info().Str("step", StepProject).Msgf("fetching project %s", projectKey)
	project, err := s.server.Project(ctx, projectKey)
	if err != nil {
		return nil, s.failed(ctx, StepProject, err)
	}

	snap := &domain.Snapshot{
		Project:          project,
		MultiQualityMode: true,
		Rules:            map[string]domain.Rule{},
	}

	// 2-5. Independent fetches
	if err := s.fetchCore(ctx, projectKey, snap); err != nil {
		return nil, err
	}

	// 6. Code snippets
	if err := s.attachSnippets(ctx, StepIssues, snap.Issues); err != nil {
		return nil, err
	}
	if err := s.attachSnippets(ctx, StepHotspots, snap.Hotspots); err != nil {
		return nil, err
	}

	// 7. Rules
	rules, err := s.fetchRules(ctx, snap.Issues, snap.Hotspots)
	if err != nil {
		return nil, err
	}
	snap.Rules = rules
	fillRuleNames(snap.Issues, rules)
	fillRuleNames(snap.Hotspots, rules)

	snap.CollectedAt = s.now()
	s.logger.Info().
		Str("project", project.Name).
		Int("issues", len(snap.Issues)).
		Int("hotspots", len(snap.Hotspots)).
		Int("measures", len(snap.Measures)).
		Int("rules", len(snap.Rules)).
		Bool("multi_quality_mode", snap.MultiQualityMode).
		Msg("collection complete")
	return snap, nil
}

func (s *CollectService) fetchCore(ctx context.Context, projectKey string, snap *domain.Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("step", StepIssues).Msg("fetching issues")
		issues, err := s.server.Issues(gctx, projectKey)
		if err != nil {
			return s.failed(gctx, StepIssues, err)
		}
		snap.Issues = issues
		return nil
	})
	g.Go(func() error {
		s.logger.Info().Str("step", StepMeasures).Msg("fetching measures")
		measures, err := s.server.Measures(gctx, projectKey, domain.MetricKeys)
		if err != nil {
			return s.failed(gctx, StepMeasures, err)
		}
		snap.Measures = measures
		return nil
	})
	g.Go(func() error {
		s.logger.Info().Str("step", StepSettings).Msg("fetching server settings")
		enabled, err := s.server.MultiQualityMode(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("could not read multi-quality-mode setting, assuming enabled")
			enabled = true
		}
		snap.MultiQualityMode = enabled
		return nil
	})
	g.Go(func() error {
		s.logger.Info().Str("step", StepHotspots).Msg("fetching security hotspots")
		hotspots, err := s.server.Hotspots(gctx, projectKey)
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("could not fetch security hotspots, reporting none")
			return nil
		}
		snap.Hotspots = hotspots
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	if snap.Measures == nil {
		snap.Measures = map[string]domain.Measure{}
	}
	return ctx.Err()
}

// failed wraps err for step unless the run itself was cancelled.
func (s *CollectService) failed(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &domain.CollectionFailedError{Step: step, Err: err}
}

// attachSnippets fills CodeSnippet on every finding. Failures fall back to
// the placeholder; only cancellation is an error.
func (s *CollectService) attachSnippets(ctx context.Context, step string, findings []domain.Finding) error {
	total := len(findings)
	if total == 0 {
		return ctx.Err()
	}
	s.logger.Info().Str("step", step).Msgf("fetching code snippets for %d %s", total, step)

	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range findings {
		f := &findings[i]
		if !f.HasLine() {
			f.CodeSnippet = f.SnippetPlaceholder()
			s.progress(step, done.Add(1), total)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			snippet, err := s.snippet(ctx, *f)
			if err != nil {
				s.logger.Debug().Err(err).Str("finding", f.Key).Msg("using placeholder snippet")
				snippet = f.SnippetPlaceholder()
			}
			f.CodeSnippet = snippet
			s.progress(step, done.Add(1), total)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (s *CollectService) snippet(ctx context.Context, f domain.Finding) (string, error) {
	from := max(1, f.Line-s.contextLines)
	to := f.Line + s.contextLines

	lines, err := s.server.Sources(ctx, f.Component, from, to)
	if err != nil {
		return "", &domain.SnippetUnavailableError{Component: f.Component, Line: f.Line, Err: err}
	}
	snippet := FormatSnippet(lines, f.Line)
	if strings.TrimSpace(snippet) == "" {
		return "", &domain.SnippetUnavailableError{Component: f.Component, Line: f.Line}
	}
	return snippet, nil
}

// FormatSnippet numbers source lines and marks the target line with ">>> ".
func FormatSnippet(lines []domain.SourceLine, target int) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		marker := "    "
		if l.Line == target {
			marker = ">>> "
		}
		out = append(out, fmt.Sprintf("%s%3d: %s", marker, l.Line, l.Code))
	}
	return strings.Join(out, "\n")
}

func (s *CollectService) progress(step string, done int64, total int) {
	if done%progressEvery != 0 && int(done) != total {
		return
	}
	s.logger.Info().Str("step", step).
		Msgf("processed %d/%d (%d%%)", done, total, int(done)*100/total)
}

// fetchRules fetches each distinct rule once. Rules that cannot be fetched
// are left out.
func (s *CollectService) fetchRules(ctx context.Context, groups ...[]domain.Finding) (map[string]domain.Rule, error) {
	keys := RuleKeys(groups...)
	if len(keys) == 0 {
		return map[string]domain.Rule{}, ctx.Err()
	}
	s.logger.Info().Str("step", "rules").Msgf("fetching %d rules", len(keys))

	found := xsync.NewMapOf[string, domain.Rule]()
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, key := range keys {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rule, err := s.server.Rule(ctx, key)
			if err != nil {
				s.logger.Warn().Err(&domain.RuleFetchFailedError{RuleKey: key, Err: err}).Msg("rule left out of report")
				return nil
			}
			found.Store(key, rule)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rules := make(map[string]domain.Rule, found.Size())
	found.Range(func(key string, rule domain.Rule) bool {
		rules[key] = rule
		return true
	})
	return rules, nil
}

// RuleKeys returns the distinct non-empty rule keys of findings, sorted.
func RuleKeys(groups ...[]domain.Finding) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, findings := range groups {
		for _, f := range findings {
			if f.Rule != "" && !seen[f.Rule] {
				seen[f.Rule] = true
				keys = append(keys, f.Rule)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func fillRuleNames(findings []domain.Finding, rules map[string]domain.Rule) {
	for i := range findings {
		if findings[i].RuleName != "" {
			continue
		}
		if r, ok := rules[findings[i].Rule]; ok {
			findings[i].RuleName = r.Name
		}
	}
}
