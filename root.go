package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivanchoo/TracWikiSync/internal/config"
	"github.com/ivanchoo/TracWikiSync/internal/sync"
	"github.com/ivanchoo/TracWikiSync/internal/trac"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagURL        string
	flagUsername   string
	flagLogLevel   string
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE. It is available to all subcommands after the root
// pre-run phase completes.
var resolvedCfg *config.Config

// httpClientTimeout is the default timeout for HTTP requests. Prevents
// hung connections from blocking CLI commands indefinitely.
const httpClientTimeout = 30 * time.Second

// stateDirPermissions is the permission mode for the state directory. It
// holds session cookies, so owner-only.
const stateDirPermissions = 0o700

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// skipConfigCommands lists commands that handle config loading themselves.
// "config set" must keep working when the config file is invalid, because
// it is the tool that repairs it.
var skipConfigCommands = map[string]bool{
	"tracwikisync config set": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracwikisync",
		Short: "Trac wiki synchronization client",
		Long: "Synchronize wiki pages between a local versioned store and a " +
			"remote Trac installation over its normal web interface.",
		Version: version,
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagURL, "url", "", "remote Trac base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&flagUsername, "username", "", "remote account name (overrides config)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg for use by
// subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		URL:        flagURL,
		Username:   flagUsername,
		LogLevel:   flagLogLevel,
	}

	env := config.ReadEnvOverrides()

	resolved, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// appEnv bundles the open handles a command needs: the state store, the
// local wiki layer, and optionally a remote client plus the engine over
// all three. Commands that never touch the network open it with
// needRemote=false so they work offline and without credentials.
type appEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sync.Store
	wiki   *sync.Wiki
	client *trac.Client
	engine *sync.Engine
}

// openAppEnv opens the state database (creating the state directory on
// first run) and, when asked, the remote client and engine.
func openAppEnv(needRemote bool) (*appEnv, error) {
	cfg := resolvedCfg
	logger := buildLogger()

	if err := os.MkdirAll(cfg.Storage.StateDir, stateDirPermissions); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	store, err := sync.NewStore(cfg.StatePath(), logger)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		cfg:    cfg,
		logger: logger,
		store:  store,
		wiki:   sync.NewWiki(store.DB(), logger),
	}

	if !needRemote {
		return env, nil
	}

	filter, err := sync.NewIgnoreFilter(cfg.Sync.Ignorelist)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := trac.NewSessionRegistry(filepath.Join(cfg.Storage.StateDir, "sessions"), logger)

	client, err := trac.NewClient(
		cfg.Remote.URL, cfg.Remote.Username, cfg.Remote.Password,
		registry, defaultHTTPClient(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	env.client = client
	env.engine = sync.NewEngine(store, env.wiki, client, filter, logger)

	return env, nil
}

// Close releases the environment's handles. Safe to defer immediately
// after a successful openAppEnv.
func (a *appEnv) Close() error {
	var firstErr error

	if a.client != nil {
		firstErr = a.client.Close()
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
