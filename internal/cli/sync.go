package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/roadmap/internal/rpc"
	"github.com/roach88/roadmap/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Force bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local catalog with the remote feed",
		Long: `Synchronize the local catalog with the remote feed.

Without --force, a checkpoint younger than the configured staleness
threshold skips the cycle, and an unchanged remote dataset (conditional
fetch) completes without transferring or writing anything.

Example:
  roadmap sync
  roadmap sync --force --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "sync even if data is fresh, bypassing the fetch cache")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions)
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

	res, err := a.handler.Sync(cmd.Context(), rpc.SyncRequest{Force: opts.Force})
	if err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}

	if opts.Format == "json" {
		if err := out.Success(res); err != nil {
			return err
		}
	} else {
		printSyncResult(out, res)
	}

	if !res.Success && !res.Skipped {
		return WrapExitError(ExitFailure, "sync failed", fmt.Errorf("%s", res.Error))
	}
	return nil
}

func printSyncResult(out *OutputFormatter, res syncer.Result) {
	switch {
	case res.Skipped:
		fmt.Fprintf(out.Writer, "Sync skipped: %s\n", res.SkipReason)
	case res.Success:
		fmt.Fprintf(out.Writer, "Sync complete: %d processed (%d inserted, %d updated) in %dms\n",
			res.RecordsProcessed, res.RecordsInserted, res.RecordsUpdated, res.DurationMs)
	default:
		fmt.Fprintf(out.Writer, "Sync failed: %s\n", res.Error)
	}
}
