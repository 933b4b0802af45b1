package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/roadmap/internal/rpc"
	"github.com/roach88/roadmap/internal/search"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Products  []string
	Platforms []string
	Status    string
	DateFrom  string
	DateTo    string
	Limit     int
	Offset    int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the local catalog",
		Long: `Search the local catalog with full-text and faceted filters.

With no query and no filters, results default to features with a GA date
from the previous calendar month through the current one.

Example:
  roadmap search "shared channels"
  roadmap search --product Teams --status "Rolling out"
  roadmap search copilot --from 2026-01 --to 2026-06 --limit 20`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runSearch(opts, query, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Products, "product", nil, "filter by product tag (repeatable, OR semantics)")
	cmd.Flags().StringSliceVar(&opts.Platforms, "platform", nil, "filter by platform tag (repeatable, OR semantics)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by exact status")
	cmd.Flags().StringVar(&opts.DateFrom, "from", "", "GA date lower bound (YYYY-MM, inclusive)")
	cmd.Flags().StringVar(&opts.DateTo, "to", "", "GA date upper bound (YYYY-MM, inclusive)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results per page")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "results to skip")

	return cmd
}

func runSearch(opts *SearchOptions, query string, cmd *cobra.Command) error {
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

	res, err := a.handler.Search(cmd.Context(), rpc.SearchRequest{
		Query:     query,
		Products:  opts.Products,
		Platforms: opts.Platforms,
		Status:    opts.Status,
		DateFrom:  opts.DateFrom,
		DateTo:    opts.DateTo,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
	if err != nil {
		return renderRPCError(out, err)
	}

	if opts.Format == "json" {
		return out.Success(res)
	}
	printSearchResult(out.Writer, res)
	return nil
}

// printSearchResult renders the text listing: one block per item, then
// the pagination summary.
func printSearchResult(w io.Writer, res search.Result) {
	for _, it := range res.Items {
		fmt.Fprintf(w, "[%d] %s\n", it.ID, it.Title)
		fmt.Fprintf(w, "    Status: %s", it.Status)
		if it.GADate != "" {
			fmt.Fprintf(w, "  GA: %s", it.GADate)
		}
		if it.PreviewDate != "" {
			fmt.Fprintf(w, "  Preview: %s", it.PreviewDate)
		}
		fmt.Fprintln(w)
		if len(it.Products) > 0 {
			fmt.Fprintf(w, "    Products: %s\n", strings.Join(it.Products, ", "))
		}
		if len(it.Platforms) > 0 {
			fmt.Fprintf(w, "    Platforms: %s\n", strings.Join(it.Platforms, ", "))
		}
		if it.Description != "" {
			fmt.Fprintf(w, "    %s\n", it.Description)
		}
		fmt.Fprintf(w, "    %s\n", it.Link)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d of %d result(s)", len(res.Items), res.TotalCount)
	if res.HasMore {
		fmt.Fprint(w, " (more available)")
	}
	fmt.Fprintln(w)
}

// renderRPCError maps a structured operation error onto the formatter and
// the exit-code scheme.
func renderRPCError(out *OutputFormatter, err error) error {
	var code string
	switch {
	case rpc.IsValidation(err):
		code = string(rpc.CodeValidation)
	case rpc.IsNotFound(err):
		code = string(rpc.CodeNotFound)
	default:
		code = string(rpc.CodeInternal)
	}
	if ferr := out.Error(code, err.Error(), nil); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitFailure, code, err)
}
