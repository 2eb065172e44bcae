package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/sync"
)

func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <name>",
		Short: "Print the local content of a page",
		Long: `Write the stored text of a page to stdout. By default the latest local
version is printed; --at selects an older one.`,
		Args: cobra.ExactArgs(1),
		RunE: runCat,
	}

	cmd.Flags().Int("at", 0, "local version to print (default latest)")

	return cmd
}

func runCat(cmd *cobra.Command, args []string) error {
	at, err := cmd.Flags().GetInt("at")
	if err != nil {
		return err
	}

	env, err := openAppEnv(false)
	if err != nil {
		return err
	}
	defer env.Close()

	name := args[0]

	var page *sync.Page
	if at > 0 {
		page, err = env.wiki.PageAt(cmd.Context(), name, at)
	} else {
		page, err = env.wiki.Page(cmd.Context(), name)
	}

	if err != nil {
		return err
	}

	if page == nil {
		return fmt.Errorf("%w: %s", sync.ErrPageNotFound, name)
	}

	fmt.Fprint(os.Stdout, page.Text)

	return nil
}
