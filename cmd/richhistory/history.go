package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/richhistory/pkg/cli"
	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/service"
)

var listFlags struct {
	search      string
	datasources []string
	starred     bool
	from        string
	to          string
	sort        string
	limit       int
	offset      int
	format      string
}

var addFlags struct {
	datasource string
	query      string
	star       bool
	comment    string
}

var commentFlags struct {
	clear bool
}

var clearFlags struct {
	yes bool
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Search the query history",
	Long: `Search the query history.

All filters must match. --datasource may be repeated and accepts a uid, a
name, or an explicit "uid:<uid>" / "name:<name>" form. --from and --to take
an RFC3339 time or a duration meaning that long ago (e.g. 24h).

Examples:
  richhistory list --search rate --datasource prom
  richhistory list --starred --sort oldest --format json
  richhistory list --from 168h --limit 20 --offset 20`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a query",
	Long: `Record a query in the history.

--query takes the query payload as JSON, or @FILE to read it from a file.
An identical payload for the same data source is rejected. When the history
is full, the oldest non-starred entries are removed and a warning is printed
on stderr.`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var starCmd = &cobra.Command{
	Use:   "star ID",
	Short: "Star an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStarred(cmd, args[0], true)
	},
}

var unstarCmd = &cobra.Command{
	Use:   "unstar ID",
	Short: "Remove the star from an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStarred(cmd, args[0], false)
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment ID [TEXT]",
	Short: "Set or clear the comment of an entry",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runComment,
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			if err := svc.DeleteRichHistory(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry, including starred ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearFlags.yes {
			return cli.NewCommandError("clear", fmt.Errorf("refusing to delete the whole history without --yes"))
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			if err := svc.DeleteAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, starCmd, unstarCmd, commentCmd, deleteCmd, clearCmd)

	listCmd.Flags().StringVar(&listFlags.search, "search", "", "case-insensitive text to find in queries")
	listCmd.Flags().StringArrayVar(&listFlags.datasources, "datasource", nil, "restrict to data source (repeatable)")
	listCmd.Flags().BoolVar(&listFlags.starred, "starred", false, "only starred entries")
	listCmd.Flags().StringVar(&listFlags.from, "from", "", "created at or after (RFC3339 or duration ago)")
	listCmd.Flags().StringVar(&listFlags.to, "to", "", "created at or before (RFC3339 or duration ago)")
	listCmd.Flags().StringVar(&listFlags.sort, "sort", string(richhistory.SortNewest), "sort order: newest, oldest, datasource_asc, datasource_desc")
	listCmd.Flags().IntVar(&listFlags.limit, "limit", 100, "max results (0 for all)")
	listCmd.Flags().IntVar(&listFlags.offset, "offset", 0, "pagination offset")
	listCmd.Flags().StringVar(&listFlags.format, "format", "text", "output format: text, json, csv")

	addCmd.Flags().StringVar(&addFlags.datasource, "datasource", "", "data source uid or name (required)")
	addCmd.Flags().StringVar(&addFlags.query, "query", "", "query payload as JSON, or @FILE (required)")
	addCmd.Flags().BoolVar(&addFlags.star, "star", false, "star the new entry")
	addCmd.Flags().StringVar(&addFlags.comment, "comment", "", "comment for the new entry")
	addCmd.MarkFlagRequired("datasource")
	addCmd.MarkFlagRequired("query")

	commentCmd.Flags().BoolVar(&commentFlags.clear, "clear", false, "remove the comment")

	clearCmd.Flags().BoolVar(&clearFlags.yes, "yes", false, "confirm deleting the whole history")
}

// parseTimeFlag accepts RFC3339 or a duration meaning that long before now.
func parseTimeFlag(name, value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		t := now.Add(-d)
		return &t, nil
	}
	return nil, cli.NewConfigError("--"+name, fmt.Sprintf("invalid time %q (want RFC3339 or a duration such as 24h)", value))
}

// buildFilters turns list flags into search filters.
func buildFilters(now time.Time) (richhistory.SearchFilters, error) {
	filters := richhistory.SearchFilters{
		Search:      listFlags.search,
		StarredOnly: listFlags.starred,
		Sort:        richhistory.SortOrder(listFlags.sort),
		Limit:       listFlags.limit,
		Offset:      listFlags.offset,
	}
	for _, ds := range listFlags.datasources {
		filters.DataSources = append(filters.DataSources, richhistory.ParseDataSourceRef(ds))
	}

	var err error
	if filters.From, err = parseTimeFlag("from", listFlags.from, now); err != nil {
		return filters, err
	}
	if filters.To, err = parseTimeFlag("to", listFlags.to, now); err != nil {
		return filters, err
	}
	return filters, nil
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(listFlags.format)
	if err != nil {
		return err
	}
	filters, err := buildFilters(time.Now())
	if err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		res, err := svc.GetRichHistory(ctx, filters)
		if err != nil {
			return err
		}
		return cli.WriteResults(ctx, cmd.OutOrStdout(), format, res)
	})
}

// readQuery returns the payload from --query, reading @FILE forms.
func readQuery(value string) (json.RawMessage, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read query file: %w", err)
		}
		return json.RawMessage(data), nil
	}
	return json.RawMessage(value), nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	queries, err := readQuery(addFlags.query)
	if err != nil {
		return err
	}

	in := richhistory.NewEntry{
		DataSource: richhistory.ParseDataSourceRef(addFlags.datasource),
		Queries:    queries,
		Starred:    addFlags.star,
	}
	if cmd.Flags().Changed("comment") {
		comment := addFlags.comment
		in.Comment = &comment
	}

	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		res, err := svc.AddToRichHistory(ctx, in)
		if err != nil {
			return err
		}
		cli.PrintWarning(cmd.ErrOrStderr(), res.Warning)
		fmt.Fprintln(cmd.OutOrStdout(), res.Entry.ID)
		return nil
	})
}

func setStarred(cmd *cobra.Command, id string, starred bool) error {
	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		entry, err := svc.UpdateStarred(ctx, id, starred)
		if err != nil {
			return err
		}
		return cli.WriteEntry(ctx, cmd.OutOrStdout(), cli.FormatText, entry)
	})
}

func runComment(cmd *cobra.Command, args []string) error {
	var comment *string
	switch {
	case commentFlags.clear && len(args) == 2:
		return cli.NewConfigError("--clear", "cannot be combined with a comment text")
	case commentFlags.clear:
	case len(args) == 2:
		comment = &args[1]
	default:
		return cli.NewConfigError("TEXT", "comment text is required unless --clear is set")
	}

	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		entry, err := svc.UpdateComment(ctx, args[0], comment)
		if err != nil {
			return err
		}
		return cli.WriteEntry(ctx, cmd.OutOrStdout(), cli.FormatText, entry)
	})
}
