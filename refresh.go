package main

import (
	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/sync"
)

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [name...]",
		Short: "Reconcile tracking state against the local store and the remote",
		Long: `Update the tracking table from both sides: local page names are
registered, then the remote page index is fetched and merged as the complete
remote snapshot. Pages that disappeared remotely are retired.

With page name arguments, only those pages are refreshed (one page view
fetch each; nothing is retired).

With --timeline the snapshot comes from the timeline view instead of the
page index. The timeline only lists recently active pages, so records absent
from it are left untouched rather than retired.`,
		RunE: runRefresh,
	}

	cmd.Flags().Bool("timeline", false, "use the timeline view instead of the page index")

	return cmd
}

func runRefresh(cmd *cobra.Command, args []string) error {
	timeline, err := cmd.Flags().GetBool("timeline")
	if err != nil {
		return err
	}

	env, err := openAppEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()

	if len(args) > 0 {
		for _, name := range args {
			record, err := env.engine.RefreshOne(ctx, name)
			if err != nil {
				return err
			}

			statusf("%s: %s\n", record.Name, record.Status())
		}

		return nil
	}

	if err := env.engine.Refresh(ctx, timeline); err != nil {
		return err
	}

	records, err := env.store.All(ctx)
	if err != nil {
		return err
	}

	counts := make(map[sync.Status]int)
	for _, r := range records {
		counts[r.Status()]++
	}

	statusf("Refreshed %d page(s):", len(records))

	for _, status := range []sync.Status{
		sync.StatusSynced, sync.StatusModified, sync.StatusOutdated,
		sync.StatusConflict, sync.StatusNew, sync.StatusMissing,
		sync.StatusIgnored, sync.StatusUnknown,
	} {
		if counts[status] > 0 {
			statusf(" %d %s", counts[status], status)
		}
	}

	statusf("\n")

	return nil
}
