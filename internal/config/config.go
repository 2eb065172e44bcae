// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for tracwikisync. It supports a
// four-layer override chain (defaults -> config file -> environment -> CLI
// flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Remote  RemoteConfig  `toml:"remote"`
	Sync    SyncConfig    `toml:"sync"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// RemoteConfig identifies the wiki server and the account used against it.
// The password is stored obfuscated (see Mask); it is decoded on load and
// never printed.
type RemoteConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// SyncConfig controls which pages synchronization skips by default. The
// ignorelist is a whitespace-separated list of anchored regular expressions
// matched against page names; it seeds new tracking records only, so
// per-page operator decisions survive later edits to the list.
type SyncConfig struct {
	Ignorelist string `toml:"ignorelist"`
}

// StorageConfig locates the on-disk state.
type StorageConfig struct {
	StateDir string `toml:"state_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}
