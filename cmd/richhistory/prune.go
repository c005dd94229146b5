package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/richhistory/pkg/richhistory/retention"
	"mercator-hq/richhistory/pkg/richhistory/service"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete entries older than the retention period",
	Long: `Delete non-starred entries older than the retention period from the
settings. With retention.archive_before_delete enabled, they are first
exported to a JSON file under retention.archive_path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			deleted, err := newPruner(svc).Prune(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", deleted)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func newPruner(svc *service.Service) *retention.Pruner {
	return retention.NewPruner(svc, &retention.Config{
		Schedule:            appConfig.Retention.Schedule,
		ArchiveBeforeDelete: appConfig.Retention.ArchiveBeforeDelete,
		ArchivePath:         appConfig.Retention.ArchivePath,
	})
}
