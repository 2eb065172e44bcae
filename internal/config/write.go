package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// configFilePermissions keeps the file owner-only because it can hold the
// masked remote password.
const configFilePermissions = 0o600

// configDirPermissions is the permission mode for the config directory.
const configDirPermissions = 0o700

// Save writes the configuration to path as TOML, masking the password
// before encoding. The write is atomic: encode to a temp file in the same
// directory, then rename over the destination.
func Save(cfg *Config, path string) error {
	onDisk := *cfg
	if onDisk.Remote.Password != "" {
		onDisk.Remote.Password = Mask(onDisk.Remote.Password)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&onDisk); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}

	tmpName := tmp.Name()

	var success bool
	defer func() {
		if !success {
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(configFilePermissions); err != nil {
		tmp.Close()
		return fmt.Errorf("setting config file permissions: %w", err)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing config file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config file: %w", err)
	}

	success = true

	return nil
}
