package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/sync"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <name> [file]",
		Short: "Store a new local version of a page",
		Long: `Read page text from a file (or stdin when no file is given) and store it
as a new local version. Storing text identical to the current version is a
no-op.

The new version exists locally only; run 'tracwikisync push' to submit it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPut,
	}

	cmd.Flags().StringP("comment", "m", "", "local page history comment")

	return cmd
}

func runPut(cmd *cobra.Command, args []string) error {
	comment, err := cmd.Flags().GetString("comment")
	if err != nil {
		return err
	}

	var text []byte

	if len(args) == 2 {
		text, err = os.ReadFile(args[1])
	} else {
		text, err = io.ReadAll(os.Stdin)
	}

	if err != nil {
		return fmt.Errorf("reading page text: %w", err)
	}

	env, err := openAppEnv(false)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	name := args[0]

	version, err := env.wiki.Save(ctx, name, string(text), comment)
	if errors.Is(err, sync.ErrPageUnchanged) {
		statusf("%s unchanged (still local v%d)\n", name, version)

		return nil
	}

	if err != nil {
		return err
	}

	// Register the page in the tracking table so status sees it before the
	// next refresh.
	if err := env.store.SyncLocalNames(ctx); err != nil {
		return err
	}

	statusf("Stored %s (local v%d)\n", name, version)

	return nil
}
