package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/export"
	"mercator-hq/richhistory/pkg/richhistory/service"
)

var exportFlags struct {
	format  string
	output  string
	starred bool
	compact bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the history as JSON or CSV",
	Long: `Export every entry, oldest first, as JSON or CSV.

Examples:
  richhistory export --format json -o history.json
  richhistory export --format csv --starred > starred.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFlags.format, "format", "json", "export format: json, csv")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportFlags.starred, "starred", false, "only starred entries")
	exportCmd.Flags().BoolVar(&exportFlags.compact, "compact", false, "compact JSON without indentation")
}

func runExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(exportFlags.format, !exportFlags.compact)
	if err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		res, err := svc.GetRichHistory(ctx, richhistory.SearchFilters{
			StarredOnly: exportFlags.starred,
			Sort:        richhistory.SortOldest,
		})
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportFlags.output != "" {
			f, err := os.Create(exportFlags.output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := exporter.Export(ctx, res.RichHistory, w); err != nil {
			return err
		}
		if exportFlags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entries to %s\n", res.Total, exportFlags.output)
		}
		return nil
	})
}
