package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify credentials against the remote wiki",
		Long: `Discard any cached session, authenticate with the configured
credentials, and fetch the wiki index to prove they work. On success the
fresh session is saved, so subsequent commands skip re-authentication.

Credentials come from the config file ('tracwikisync config set
remote.password ...') or the TRACWIKISYNC_USERNAME and TRACWIKISYNC_PASSWORD
environment variables.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	env, err := openAppEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.client.Probe(cmd.Context()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	statusf("Logged in to %s as %s\n", env.cfg.Remote.URL, env.cfg.Remote.Username)

	return nil
}
