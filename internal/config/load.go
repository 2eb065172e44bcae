package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values supplied as command-line flags. Empty string
// means not specified.
type CLIOverrides struct {
	ConfigPath string
	URL        string
	Username   string
	LogLevel   string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config with the stored password unmasked. Unknown keys are
// fatal errors: silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	// A stored password that does not unmask is assumed to be clear text
	// from a hand-edited file and kept verbatim, so a bad value never
	// locks the user out of 'config set'.
	if cfg.Remote.Password != "" {
		if plain, err := Unmask(cfg.Remote.Password); err == nil {
			cfg.Remote.Password = plain
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags. The
// precedence order ensures CLI flags always win, matching user expectations
// for one-off overrides without editing the config file.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.URL != "" {
		cfg.Remote.URL = env.URL
	}

	if env.Username != "" {
		cfg.Remote.Username = env.Username
	}

	if env.Password != "" {
		cfg.Remote.Password = env.Password
	}

	if cli.URL != "" {
		cfg.Remote.URL = cli.URL
	}

	if cli.Username != "" {
		cfg.Remote.Username = cli.Username
	}

	if cli.LogLevel != "" {
		cfg.Logging.LogLevel = cli.LogLevel
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// checkUnknownKeys rejects config files containing keys this version does
// not understand.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}

	sort.Strings(keys)

	return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
}
