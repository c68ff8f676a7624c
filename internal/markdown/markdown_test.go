package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := New(Options{})

	out, err := r.RenderString("A *class* with `code`.")
	require.NoError(t, err)
	assert.Equal(t, "<p>A <em>class</em> with <code>code</code>.</p>\n", out)

	out, err = r.RenderString("  \n")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = r.RenderString("| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
}

func TestRenderRawHTML(t *testing.T) {
	safe, err := New(Options{}).RenderString("<b>bold</b>")
	require.NoError(t, err)
	assert.NotContains(t, safe, "<b>")

	unsafe, err := New(Options{Unsafe: true}).RenderString("<b>bold</b>")
	require.NoError(t, err)
	assert.Contains(t, unsafe, "<b>bold</b>")
}

func TestFirstHeading(t *testing.T) {
	r := New(Options{})
	assert.Equal(t, "The Ecore kernel", r.FirstHeading([]byte("intro\n\n## sub\n\n# The Ecore kernel\n")))
	assert.Equal(t, "Mixed emphasis", r.FirstHeading([]byte("# Mixed *emphasis*\n")))
	assert.Empty(t, r.FirstHeading([]byte("no heading")))
}
