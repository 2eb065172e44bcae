package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/sync"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <name>...",
		Short: "Resolve conflicted or stuck pages",
		Long: `Apply a resolution to each named page:

  --local     declare the local copy current; the remote version becomes
              the synchronized baseline without pulling anything
  --remote    declare the remote copy current; the local version becomes
              the synchronized baseline without pushing anything
  --ignore    exclude the page from synchronization
  --unignore  re-include a previously ignored page

No content moves; use pull or push for that. Exactly one resolution flag
is required.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().Bool("local", false, "adopt the remote version as the synchronized baseline")
	cmd.Flags().Bool("remote", false, "adopt the local version as the synchronized baseline")
	cmd.Flags().Bool("ignore", false, "exclude the page from synchronization")
	cmd.Flags().Bool("unignore", false, "re-include the page in synchronization")

	cmd.MarkFlagsMutuallyExclusive("local", "remote", "ignore", "unignore")
	cmd.MarkFlagsOneRequired("local", "remote", "ignore", "unignore")

	return cmd
}

// resolveChoice returns the resolution selected by flags.
func resolveChoice(cmd *cobra.Command) sync.Resolution {
	switch {
	case cmd.Flags().Changed("local"):
		return sync.ResolveLocal
	case cmd.Flags().Changed("remote"):
		return sync.ResolveRemote
	case cmd.Flags().Changed("ignore"):
		return sync.ResolveIgnore
	default:
		return sync.ResolveUnignore
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	resolution := resolveChoice(cmd)

	// Every resolution is a plain record update; none of them needs the
	// remote.
	env, err := openAppEnv(false)
	if err != nil {
		return err
	}
	defer env.Close()

	engine := sync.NewEngine(env.store, env.wiki, nil, nil, env.logger)

	for _, name := range args {
		record, err := engine.Resolve(cmd.Context(), name, resolution)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}

		statusf("Resolved %s as %s (now %s)\n", record.Name, resolution, record.Status())
	}

	return nil
}
