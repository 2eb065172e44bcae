package config

import (
	"fmt"
	"io"
)

// redactedValue replaces the password in rendered output.
const redactedValue = "<redacted>"

// RenderEffective writes the resolved configuration as a human-readable
// summary to w. This powers the "config show" command, giving users
// visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied. The password is
// redacted, never shown, not even masked.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("[remote]\n")
	ew.printf("  url       = %q\n", cfg.Remote.URL)
	ew.printf("  username  = %q\n", cfg.Remote.Username)

	password := ""
	if cfg.Remote.Password != "" {
		password = redactedValue
	}

	ew.printf("  password  = %q\n\n", password)

	ew.printf("[sync]\n")
	ew.printf("  ignorelist = %q\n\n", cfg.Sync.Ignorelist)

	ew.printf("[storage]\n")
	ew.printf("  state_dir = %q\n\n", cfg.Storage.StateDir)

	ew.printf("[logging]\n")
	ew.printf("  log_level = %q\n", cfg.Logging.LogLevel)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain printf
// calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
