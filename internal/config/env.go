package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "TRACWIKISYNC_CONFIG"
	EnvURL      = "TRACWIKISYNC_URL"
	EnvUsername = "TRACWIKISYNC_USERNAME"
	EnvPassword = "TRACWIKISYNC_PASSWORD"
)

// EnvOverrides holds values derived from environment variables. The
// password variable carries the plain password, not the masked form, so
// credentials can be injected in CI without a config file.
type EnvOverrides struct {
	ConfigPath string
	URL        string
	Username   string
	Password   string
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant
// fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		URL:        os.Getenv(EnvURL),
		Username:   os.Getenv(EnvUsername),
		Password:   os.Getenv(EnvPassword),
	}
}
