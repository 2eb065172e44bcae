package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/sync"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [name...]",
		Short: "Show tracked pages and their synchronization status",
		Long: `Display every tracked page with its computed status, local and remote
versions, and the time of the last reconciliation.

Status values:
  synced    both sides match the last synchronized versions
  modified  local edits not yet pushed
  outdated  remote edits not yet pulled
  conflict  both sides changed since the last synchronization
  new       exists locally only
  missing   exists remotely only
  ignored   excluded from synchronization
  unknown   never reconciled against the remote

With page name arguments, only those pages are shown. Statuses to hide can
be filtered with --hide (repeatable).`,
		RunE: runStatus,
	}

	cmd.Flags().StringArray("hide", nil, "statuses to omit (e.g. --hide synced --hide ignored)")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	hide, err := cmd.Flags().GetStringArray("hide")
	if err != nil {
		return err
	}

	hidden := make(map[sync.Status]bool, len(hide))
	for _, h := range hide {
		hidden[sync.Status(h)] = true
	}

	env, err := openAppEnv(false)
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := env.store.All(cmd.Context())
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(args))
	for _, name := range args {
		wanted[name] = true
	}

	var rows [][]string

	for _, r := range records {
		if len(wanted) > 0 && !wanted[r.Name] {
			continue
		}

		status := r.Status()
		if hidden[status] {
			continue
		}

		rows = append(rows, []string{
			r.Name,
			string(status),
			strconv.Itoa(r.LocalVersion),
			strconv.Itoa(r.RemoteVersion),
			formatTime(r.SyncTime),
		})
	}

	if len(rows) == 0 {
		statusf("No tracked pages. Run 'tracwikisync refresh' first.\n")

		return nil
	}

	printTable(os.Stdout, []string{"NAME", "STATUS", "LOCAL", "REMOTE", "SYNCED"}, rows)

	statusf("\n%d page(s)\n", len(rows))

	return nil
}
