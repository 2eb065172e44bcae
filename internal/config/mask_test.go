package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskRoundTrip(t *testing.T) {
	t.Parallel()

	for _, secret := range []string{
		"",
		"hunter2",
		"päßwörd with ünïcode",
		"long secret long secret long secret long secret long secret",
	} {
		masked := Mask(secret)
		assert.NotEqual(t, secret, masked)

		plain, err := Unmask(masked)
		require.NoError(t, err)
		assert.Equal(t, secret, plain)
	}
}

func TestUnmaskRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, garbage := range []string{
		"never masked",
		"bm90IHpsaWI=", // valid base64, not zlib
	} {
		_, err := Unmask(garbage)
		assert.Error(t, err, "input %q", garbage)
	}
}
