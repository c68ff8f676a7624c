package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level string

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(map[string]level{"Debug": "debug", "info": "info"}, "info")

	assert.Equal(t, level("debug"), n.Normalize("  DEBUG "))
	assert.Equal(t, level("info"), n.Normalize("verbose"))
	assert.Equal(t, []string{"debug", "info"}, n.ValidKeys())

	got, err := n.NormalizeWithError("")
	require.NoError(t, err)
	assert.Equal(t, level("info"), got)

	_, err = n.NormalizeWithError("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid options: [debug info]")
}
