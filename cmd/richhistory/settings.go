package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/richhistory/pkg/cli"
	"mercator-hq/richhistory/pkg/richhistory/service"
)

var settingsFlags struct {
	format        string
	retentionDays int
	starredFirst  bool
	activeOnly    bool
	lastFilters   []string
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change history settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(settingsFlags.format)
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			s, err := svc.GetSettings(ctx)
			if err != nil {
				return err
			}
			if format != cli.FormatText {
				return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), s)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "retention_period_days:        %d\n", s.RetentionPeriodDays)
			fmt.Fprintf(out, "starred_tab_as_first_tab:     %t\n", s.StarredTabAsFirstTab)
			fmt.Fprintf(out, "active_datasources_only:      %t\n", s.ActiveDatasourcesOnly)
			fmt.Fprintf(out, "last_used_datasource_filters: %v\n", s.LastUsedDatasourceFilters)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings; only the given flags are updated",
	Long: `Change settings. Only flags given on the command line are updated; the
rest keep their current values.

Examples:
  richhistory settings set --retention-days 30
  richhistory settings set --starred-first --last-filters prom,loki`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)

	settingsGetCmd.Flags().StringVar(&settingsFlags.format, "format", "text", "output format: text, json")

	settingsSetCmd.Flags().IntVar(&settingsFlags.retentionDays, "retention-days", 0, "days to keep non-starred entries (0 keeps forever)")
	settingsSetCmd.Flags().BoolVar(&settingsFlags.starredFirst, "starred-first", false, "show the starred tab first")
	settingsSetCmd.Flags().BoolVar(&settingsFlags.activeOnly, "active-only", false, "only show entries of active data sources")
	settingsSetCmd.Flags().StringSliceVar(&settingsFlags.lastFilters, "last-filters", nil, "last used data source filters")
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.NFlag() == 0 {
		return cli.NewConfigError("settings set", "no settings given")
	}

	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		s, err := svc.GetSettings(ctx)
		if err != nil {
			return err
		}

		if flags.Changed("retention-days") {
			s.RetentionPeriodDays = settingsFlags.retentionDays
		}
		if flags.Changed("starred-first") {
			s.StarredTabAsFirstTab = settingsFlags.starredFirst
		}
		if flags.Changed("active-only") {
			s.ActiveDatasourcesOnly = settingsFlags.activeOnly
		}
		if flags.Changed("last-filters") {
			s.LastUsedDatasourceFilters = settingsFlags.lastFilters
		}

		if err := svc.UpdateSettings(ctx, s); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "settings updated")
		return nil
	})
}
