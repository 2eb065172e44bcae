package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <name>...",
		Short: "Fetch remote page content into the local store",
		Long: `Download the current remote version of each named page, store it as a
new local version, and mark the page synchronized at the resulting version
pair.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPull,
	}
}

func runPull(cmd *cobra.Command, args []string) error {
	env, err := openAppEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	for _, name := range args {
		record, err := env.engine.Pull(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("pulling %s: %w", name, err)
		}

		statusf("Pulled %s (remote v%d -> local v%d)\n",
			record.Name, record.RemoteVersion, record.LocalVersion)
	}

	return nil
}
