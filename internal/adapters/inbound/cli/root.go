package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reflectsonar",
		Short:         "Turn SonarQube analysis results into a PDF report",
		Long:          "ReflectSonar collects issues, hotspots, measures and rules of a SonarQube project and renders them as a PDF report.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newMCPCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the command line; ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
