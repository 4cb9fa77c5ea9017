package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	appconfig "github.com/reflectsonar/reflectsonar/internal/adapters/outbound/config"
	"github.com/reflectsonar/reflectsonar/internal/domain"
)

func newInitCmd() *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Generate a " + appconfig.FileName + " configuration file",
		Long:  "Create a commented " + appconfig.FileName + " with the default settings. With --global the file goes to the user config directory instead.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dest string
			if global {
				if len(args) > 0 {
					return fmt.Errorf("--global does not take a directory")
				}
				p, err := appconfig.UserConfigPath()
				if err != nil {
					return fmt.Errorf("resolving user config path: %w", err)
				}
				dest = p
			} else {
				path := "."
				if len(args) > 0 {
					path = args[0]
				}
				absPath, err := filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
				dest = filepath.Join(absPath, appconfig.FileName)
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				}
			}

			// The file may hold a token.
			if err := os.WriteFile(dest, []byte(generateConfig(domain.DefaultConfig())), 0o600); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&global, "global", false, "Write the user config file instead of ./"+appconfig.FileName)

	return cmd
}

func generateConfig(cfg domain.Config) string {
	return fmt.Sprintf(`# ReflectSonar configuration
# Values here are overridden by .env, the environment and command-line flags.

server_url: %s

# Authentication: a token, or a username and password.
# token: squ_xxxxxxxxxxxxxxxx
# username: admin
# password: admin
# auth: %s   # basic or bearer

# HTTP
timeout: %s
verify_ssl: true
max_retries: %d
retry_delay: %s

# Pagination
page_size: %d
max_pages: %d
page_delay: %s

# Enrichment
snippet_workers: %d
context_lines: %d

# output: report.pdf
`,
		cfg.ServerURL,
		cfg.Auth,
		cfg.Timeout,
		cfg.MaxRetries,
		cfg.RetryDelay,
		cfg.PageSize,
		cfg.MaxPages,
		cfg.PageDelay,
		cfg.SnippetWorkers,
		cfg.ContextLines,
	)
}
