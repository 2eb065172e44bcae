package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <name>...",
		Short: "Submit local page content to the remote wiki",
		Long: `Submit the current local version of each named page through the remote
edit form, adopt the version number the server assigned, and mark the page
synchronized at the resulting version pair.

The comment is recorded in the remote page history alongside a fixed
signature marker identifying synchronization edits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPush,
	}

	cmd.Flags().StringP("comment", "m", "", "page history comment")

	return cmd
}

func runPush(cmd *cobra.Command, args []string) error {
	comment, err := cmd.Flags().GetString("comment")
	if err != nil {
		return err
	}

	env, err := openAppEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	for _, name := range args {
		record, err := env.engine.Push(cmd.Context(), name, comment)
		if err != nil {
			return fmt.Errorf("pushing %s: %w", name, err)
		}

		statusf("Pushed %s (local v%d -> remote v%d)\n",
			record.Name, record.LocalVersion, record.RemoteVersion)
	}

	return nil
}
