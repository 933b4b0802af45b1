package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/roadmap/internal/catalog"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sync checkpoint",
		Long: `Show the sync checkpoint: last sync time, current status, record
count, duration, and the last error if any.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}

	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer a.Close()

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cp, err := a.store.GetCheckpoint(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read checkpoint", err)
	}

	if opts.Format == "json" {
		return out.Success(cp)
	}

	if cp.Synced() {
		fmt.Fprintf(out.Writer, "Last sync: %s\n", cp.LastSync.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintln(out.Writer, "Last sync: never")
	}
	fmt.Fprintf(out.Writer, "Status:    %s\n", cp.Status)
	fmt.Fprintf(out.Writer, "Features:  %d\n", cp.TotalCount)
	if cp.Status == catalog.StatusIdle && cp.DurationMs > 0 {
		fmt.Fprintf(out.Writer, "Duration:  %dms\n", cp.DurationMs)
	}
	if cp.LastError != "" {
		fmt.Fprintf(out.Writer, "Error:     %s\n", cp.LastError)
	}
	return nil
}
