package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultLogLevel = "info"

	// defaultIgnorelist excludes the pages every stock Trac installation
	// ships with, so a fresh setup only synchronizes pages people actually
	// wrote. WikiStart is carved back out of the Wiki.* pattern because it
	// is the one stock-named page installations routinely customize.
	defaultIgnorelist = "CamelCase PageTemplates RecentChanges SandBox " +
		"TitleIndex Trac.* Inter.* Wiki.* !WikiStart"
)

// DefaultConfig returns a Config populated with all default values. This is
// used both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Ignorelist: defaultIgnorelist,
		},
		Storage: StorageConfig{
			StateDir: DefaultDataDir(),
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
	}
}
