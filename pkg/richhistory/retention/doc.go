// Package retention removes expired rich history entries.
//
// An entry expires when it is not starred and was created more than
// Settings.RetentionPeriodDays days ago. A retention period of 0 keeps
// entries forever. Starred entries are never pruned.
//
// The Pruner reads the retention period from the store's settings on every
// run, so a settings change takes effect on the next scheduled prune:
//
//	pruner := retention.NewPruner(svc, &retention.Config{
//	    Schedule:            "0 3 * * *",
//	    ArchiveBeforeDelete: true,
//	    ArchivePath:         "data/archives/",
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// When ArchiveBeforeDelete is set, expired entries are exported to a JSON
// file in ArchivePath before they are deleted.
package retention
