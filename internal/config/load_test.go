package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[remote]
url = "https://trac.example.com/project"
username = "admin"
password = "`+Mask("hunter2")+`"

[sync]
ignorelist = "SandBox Trac.*"

[storage]
state_dir = "/var/lib/tracwikisync"

[logging]
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://trac.example.com/project", cfg.Remote.URL)
	assert.Equal(t, "admin", cfg.Remote.Username)
	assert.Equal(t, "hunter2", cfg.Remote.Password, "password is unmasked on load")
	assert.Equal(t, "SandBox Trac.*", cfg.Sync.Ignorelist)
	assert.Equal(t, "/var/lib/tracwikisync", cfg.Storage.StateDir)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[remote]
url = "http://trac.example.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultIgnorelist, cfg.Sync.Ignorelist)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
}

func TestLoadUnknownKeys(t *testing.T) {
	path := writeTestConfig(t, `
[remote]
url = "http://trac.example.com"
usrname = "typo"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usrname")
}

func TestLoadPlainPasswordFallback(t *testing.T) {
	// A hand-edited clear-text password loads verbatim instead of locking
	// the user out of every command.
	path := writeTestConfig(t, `
[remote]
password = "not masked at all"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "not masked at all", cfg.Remote.Password)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultIgnorelist, cfg.Sync.Ignorelist)
}

func TestResolveOverrideChain(t *testing.T) {
	path := writeTestConfig(t, `
[remote]
url = "http://from-file.example.com"
username = "file-user"
`)

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "env-secret")

	cfg, err := Resolve(ReadEnvOverrides(), CLIOverrides{Username: "cli-user"})
	require.NoError(t, err)

	assert.Equal(t, "http://from-file.example.com", cfg.Remote.URL, "file layer survives")
	assert.Equal(t, "cli-user", cfg.Remote.Username, "CLI flag beats environment")
	assert.Equal(t, "env-secret", cfg.Remote.Password, "environment beats file")
}

func TestResolveValidatesResult(t *testing.T) {
	path := writeTestConfig(t, "")

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvURL, "ftp://wrong-scheme.example.com")

	_, err := Resolve(ReadEnvOverrides(), CLIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestValidateIgnorelist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.Ignorelist = "good.* [broken"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[broken")
}

func TestValidateLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.LogLevel = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}
