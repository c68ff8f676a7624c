package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, fm)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: EClass\n---\n# Title\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: EClass\n"), fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	_, _, had, err := Split([]byte("---\ntitle: x\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
	require.False(t, had)
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\r\ntitle: x\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: x\r\n"), fm)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyFrontmatterBlock(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_FrontmatterOnly(t *testing.T) {
	fm, body, had, err := Split([]byte("---\nicon: class\n---"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("icon: class\n"), fm)
	require.Empty(t, body)
}

func TestDecode(t *testing.T) {
	var meta struct {
		Title  string `yaml:"title"`
		Hidden bool   `yaml:"hidden"`
	}
	require.NoError(t, Decode([]byte("title: Classes\nhidden: true\n"), &meta))
	assert.Equal(t, "Classes", meta.Title)
	assert.True(t, meta.Hidden)

	require.NoError(t, Decode(nil, &meta))
	assert.Error(t, Decode([]byte("title: [unterminated"), &meta))
}
