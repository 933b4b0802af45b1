package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/roadmap/internal/catalog"
	"github.com/roach88/roadmap/internal/rpc"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one feature in full detail",
		Long: `Show one feature in full detail: untruncated description, every
association set, and all availability entries.

Example:
  roadmap get 189826
  roadmap get 189826 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid id %q", args[0]), err)
			}
			return runGet(rootOpts, id, cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, id int64, cmd *cobra.Command) error {
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

	f, err := a.handler.GetByID(cmd.Context(), rpc.GetRequest{ID: id})
	if err != nil {
		return renderRPCError(out, err)
	}

	if opts.Format == "json" {
		return out.Success(f)
	}
	printFeature(out.Writer, f)
	return nil
}

func printFeature(w io.Writer, f catalog.Feature) {
	fmt.Fprintf(w, "[%d] %s\n", f.ID, f.Title)
	fmt.Fprintf(w, "Status:   %s\n", f.Status)
	if f.GADate != "" {
		fmt.Fprintf(w, "GA:       %s\n", f.GADate)
	}
	if f.PreviewDate != "" {
		fmt.Fprintf(w, "Preview:  %s\n", f.PreviewDate)
	}
	fmt.Fprintf(w, "Created:  %s\n", f.Created.Format("2006-01-02"))
	fmt.Fprintf(w, "Modified: %s\n", f.Modified.Format("2006-01-02"))

	printTags := func(label string, tags []string) {
		if len(tags) > 0 {
			fmt.Fprintf(w, "%s %s\n", label, strings.Join(tags, ", "))
		}
	}
	printTags("Products: ", f.Products)
	printTags("Platforms:", f.Platforms)
	printTags("Clouds:   ", f.CloudInstances)
	printTags("Rings:    ", f.ReleaseRings)

	if len(f.Availabilities) > 0 {
		fmt.Fprintln(w, "Availability:")
		for _, a := range f.Availabilities {
			fmt.Fprintf(w, "  %s: %04d-%02d\n", a.Ring, a.Year, a.Month)
		}
	}

	if f.Description != "" {
		fmt.Fprintf(w, "\n%s\n", f.Description)
	}
}
