package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and modify configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Print the effective configuration after all override layers (defaults,
config file, environment, CLI flags) have been applied. The password is
redacted.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return config.RenderEffective(resolvedCfg, os.Stdout)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Write one configuration value to the config file. Keys:

  remote.url        base URL of the Trac installation
  remote.username   account name
  remote.password   account password (stored obfuscated, never plain)
  sync.ignorelist   whitespace-separated ignore patterns
  storage.state_dir state database directory
  logging.log_level debug, info, warn or error`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func runConfigSet(_ *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	path := config.DefaultConfigPath()
	if env := config.ReadEnvOverrides(); env.ConfigPath != "" {
		path = env.ConfigPath
	}

	if flagConfigPath != "" {
		path = flagConfigPath
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}

	switch key {
	case "remote.url":
		cfg.Remote.URL = value
	case "remote.username":
		cfg.Remote.Username = value
	case "remote.password":
		cfg.Remote.Password = value
	case "sync.ignorelist":
		cfg.Sync.Ignorelist = value
	case "storage.state_dir":
		cfg.Storage.StateDir = value
	case "logging.log_level":
		cfg.Logging.LogLevel = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}

	statusf("Wrote %s\n", path)

	return nil
}
