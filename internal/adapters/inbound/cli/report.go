package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	appconfig "github.com/reflectsonar/reflectsonar/internal/adapters/outbound/config"
	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/gitinfo"
	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/history"
	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/logging"
	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/pdf"
	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/sonar"
	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/tui"
	"github.com/reflectsonar/reflectsonar/internal/application"
	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// ErrMissingCredentials is returned when neither a token nor a
// username/password pair is configured.
var ErrMissingCredentials = errors.New("no credentials: pass --token or set SONARQUBE_TOKEN")

// connFlags are the server flags shared by report and mcp serve.
type connFlags struct {
	url        string
	token      string
	configPath string
	insecure   bool
	verbose    bool
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Server URL (default "+domain.DefaultServerURL+")")
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "Authentication token")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default ./"+appconfig.FileName+" or the user config)")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log progress to stderr")
}

func (f *connFlags) config(output string) domain.Config {
	cfg := domain.Config{ServerURL: f.url, Token: f.token, Output: output}
	if f.insecure {
		verify := false
		cfg.VerifySSL = &verify
	}
	return cfg
}

// wiring holds the services built from the resolved configuration.
type wiring struct {
	cfg     domain.Config
	logger  zerolog.Logger
	reports *application.ReportService
}

func wire(cmd *cobra.Command, f *connFlags, output string, repo bool) (*wiring, error) {
	cfg, err := appconfig.New().Resolve(f.configPath, f.config(output))
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), f.verbose)

	if !cfg.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	api, err := sonar.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	collector := application.NewCollectService(api,
		application.WithLogger(logger),
		application.WithSnippetWorkers(cfg.SnippetWorkers),
		application.WithContextLines(cfg.ContextLines),
	)

	var revisions domain.RevisionReader
	if repo {
		revisions = gitinfo.New()
	}

	renderer := pdf.New(pdf.WithLogger(logger))
	return &wiring{
		cfg:     cfg,
		logger:  logger,
		reports: application.NewReportService(collector, renderer, revisions, logger, application.WithHistory(history.New())),
	}, nil
}

type reportJSON struct {
	Path     string      `json:"path"`
	ReportID string      `json:"report_id"`
	Project  string      `json:"project"`
	Mode     domain.Mode `json:"mode"`
	Issues   int         `json:"issues"`
	Hotspots int         `json:"hotspots"`
	Rules    int         `json:"rules"`
}

func newReportCmd() *cobra.Command {
	var (
		conn       connFlags
		output     string
		repoPath   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "report PROJECT_KEY",
		Short: "Generate a PDF report for a project",
		Long:  "Collect the latest analysis of PROJECT_KEY from the server and write it as a PDF report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectKey := args[0]
			if projectKey == "" {
				return errors.New("project key must not be empty")
			}

			w, err := wire(cmd, &conn, output, repoPath != "")
			if err != nil {
				return err
			}

			res, err := w.reports.Generate(cmd.Context(), projectKey, application.ReportOptions{
				OutputPath: w.cfg.Output,
				Verbose:    conn.verbose,
				RepoPath:   repoPath,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reportJSON{
					Path:     res.Path,
					ReportID: res.ReportID,
					Project:  res.Snapshot.Project.Key,
					Mode:     res.Mode,
					Issues:   len(res.Snapshot.Issues),
					Hotspots: len(res.Snapshot.Hotspots),
					Rules:    len(res.Snapshot.Rules),
				})
			}

			if conn.verbose {
				fmt.Fprint(cmd.ErrOrStderr(), tui.RenderSummary(tui.Summary{
					Snapshot: res.Snapshot,
					Mode:     res.Mode,
					Path:     res.Path,
					ReportID: res.ReportID,
				}))
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}

	conn.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <project-key>_sonar_report.pdf)")
	cmd.Flags().StringVar(&repoPath, "repo", "", "Local checkout to compare against the analyzed revision")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	return cmd
}
