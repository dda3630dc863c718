package borg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	n, err := ParseSize("1.00 GB")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), n)

	n, err = ParseSize("(512.00 MB)")
	require.NoError(t, err)
	assert.Equal(t, int64(512<<20), n)

	n, err = ParseSize("0 B")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = ParseSize("1.5GB")
	assert.Error(t, err)

	_, err = ParseSize("12 parsecs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown size unit")

	_, err = ParseSize("lots GB")
	assert.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "0 B", FormatSize(-5))
	assert.Equal(t, "512.00 B", FormatSize(512))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "1.50 MB", FormatSize(3<<19))
	assert.Equal(t, "2.00 GB", FormatSize(2<<30))
}
