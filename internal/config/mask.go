package config

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
)

// Mask obfuscates a secret for storage in the config file. The result is
// base64 over zlib, which keeps the password out of casual view in editors
// and backups. This is obfuscation, not encryption: anyone with the file
// can recover the secret.
func Mask(s string) string {
	var buf bytes.Buffer

	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(s)) //nolint:errcheck // bytes.Buffer writes cannot fail
	zw.Close()          //nolint:errcheck

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// Unmask reverses Mask. Input that was never masked fails to decode and
// returns an error rather than garbage.
func Unmask(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decoding masked value: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decoding masked value: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decoding masked value: %w", err)
	}

	return string(plain), nil
}
