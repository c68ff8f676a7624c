// Package markdown renders documentation text to HTML fragments.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Options controls rendering.
type Options struct {
	// Unsafe keeps raw HTML found in the source.
	Unsafe bool
}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a Renderer with GitHub flavored extensions.
func New(opts Options) *Renderer {
	var rendererOpts []goldmark.Option
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	rendererOpts = append(rendererOpts, goldmark.WithExtensions(extension.GFM))
	return &Renderer{md: goldmark.New(rendererOpts...)}
}

// Render returns the HTML for src. Blank input renders to "".
func (r *Renderer) Render(src []byte) (string, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderString is Render for string input.
func (r *Renderer) RenderString(src string) (string, error) {
	return r.Render([]byte(src))
}

// FirstHeading returns the text of the first level one heading in src, or "".
func (r *Renderer) FirstHeading(src []byte) string {
	root := r.md.Parser().Parse(text.NewReader(src))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			return extractText(h, src)
		}
	}
	return ""
}

func extractText(n gmast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
			continue
		}
		buf.WriteString(extractText(c, src))
	}
	return strings.TrimSpace(buf.String())
}
