package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Valid log levels, matching slog's named levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Remote.URL != "" {
		u, err := url.Parse(cfg.Remote.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("remote.url: %w", err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("remote.url: unsupported scheme %q", u.Scheme))
		}
	}

	errs = append(errs, validateIgnorelist(cfg.Sync.Ignorelist)...)

	if !validLogLevels[cfg.Logging.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: %q is not one of debug, info, warn, error",
			cfg.Logging.LogLevel))
	}

	return errors.Join(errs...)
}

// validateIgnorelist compiles each pattern so a broken ignorelist is
// reported at load time, not halfway through a refresh.
func validateIgnorelist(patterns string) []error {
	var errs []error

	for _, p := range strings.Fields(patterns) {
		pattern := strings.TrimPrefix(p, "!")

		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("sync.ignorelist: pattern %q: %w", p, err))
		}
	}

	return errs
}
