package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/label"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title><link rel="stylesheet" href="{{asset "style.css"}}"></head>
<body>
<a href="{{.Root}}">Home</a>
{{.Text}}
<ul>{{range .Label.Children}}{{if .IsLink}}<li><a href="{{url .}}">{{.Title}}</a></li>{{end}}{{end}}</ul>
{{block "extra" .}}{{end}}
</body>
</html>
`

type fixture struct {
	dir    string
	opts   Options
	output string
}

func newFixture(t *testing.T, extra string) *fixture {
	t.Helper()
	dir := t.TempDir()
	forest := label.Forest{{
		Title:    "P",
		Location: "${base-uri}P/index.html",
		Children: []*label.Label{
			{Title: "C", Location: "${base-uri}P/C/index.html"},
			{Title: "Types", Children: []*label.Label{{Title: "EInt"}}},
		},
	}}
	require.NoError(t, label.Save(filepath.Join(dir, "labels.yaml"), forest))

	write(t, dir, "root.yaml", `title: Docs
text: Welcome to the **model**.
children:
  - kind: link
    title: Ecore
    location: https://eclipse.dev/emf/
includes:
  - path: labels.yaml
    base: model/
`)
	src := pageTemplate
	if extra != "" {
		src += `{{define "extra"}}` + extra + `{{end}}`
	}
	write(t, dir, "page.html", src)
	write(t, dir, "template.yaml", "template_file: page.html\nassets: assets\n")
	write(t, dir, "assets/style.css", "body { margin: 0 }\n")

	output := filepath.Join(dir, "public")
	return &fixture{
		dir:    dir,
		output: output,
		opts: Options{
			RootDocument: filepath.Join(dir, "root.yaml"),
			PageTemplate: filepath.Join(dir, "template.yaml"),
			SiteDomain:   "docs.example.org",
			OutputDir:    output,
			WorkDir:      filepath.Join(dir, "work"),
			Workers:      2,
		},
	}
}

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(f.output, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(content)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, "")
	errs, err := Generate(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Empty(t, errs)

	root := f.read(t, "index.html")
	assert.Contains(t, root, "<title>Docs</title>")
	assert.Contains(t, root, "<strong>model</strong>")
	assert.Contains(t, root, `href="model/P/index.html"`)
	assert.Contains(t, root, `href="https://eclipse.dev/emf/"`)

	p := f.read(t, "model/P/index.html")
	assert.Contains(t, p, `href="../../index.html"`)
	assert.Contains(t, p, `href="C/index.html"`)
	assert.Contains(t, p, `href="../../style.css"`)
	assert.NotContains(t, p, "EInt")

	assert.Contains(t, f.read(t, "model/P/C/index.html"), `href="../../../index.html"`)
	assert.Equal(t, "body { margin: 0 }\n", f.read(t, "style.css"))

	sitemap := f.read(t, SitemapFile)
	assert.Contains(t, sitemap, "<loc>https://docs.example.org/</loc>")
	assert.Contains(t, sitemap, "<loc>https://docs.example.org/model/P/C/</loc>")

	_, err = os.Stat(filepath.Join(f.opts.WorkDir, stageDirName))
	assert.True(t, os.IsNotExist(err), "staging directory is removed after promotion")
}

func TestGenerateMissingPageReference(t *testing.T) {
	f := newFixture(t, `{{if eq .Path "model/P/index.html"}}<a href="{{page "model/Missing/index.html"}}">gone</a>{{end}}`)
	res, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	require.Contains(t, res.Errors, "model/P/index.html")
	assert.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors["model/P/index.html"][0], `page "model/Missing/index.html" does not exist`)
	assert.Positive(t, res.ErrorCount())

	// Every page is still produced, the failing one included.
	assert.Equal(t, 3, res.Pages)
	for _, rel := range []string{"index.html", "model/P/index.html", "model/P/C/index.html"} {
		assert.FileExists(t, filepath.Join(f.output, filepath.FromSlash(rel)))
	}
}

func TestGeneratePageFunction(t *testing.T) {
	f := newFixture(t, `<a href="{{page "model/P/C/index.html"}}">C</a>`)
	errs, err := Generate(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Contains(t, f.read(t, "model/P/index.html"), `<a href="C/index.html">C</a>`)
}

func TestGenerateBrokenLink(t *testing.T) {
	f := newFixture(t, `{{if eq .Path "index.html"}}<img src="missing.png">{{end}}`)
	errs, err := Generate(context.Background(), f.opts)
	require.NoError(t, err)
	require.Len(t, errs["index.html"], 1)
	assert.Contains(t, errs["index.html"][0], `broken link "missing.png"`)
}

func TestGenerateMissingInclude(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.Remove(filepath.Join(f.dir, "labels.yaml")))

	errs, err := Generate(context.Background(), f.opts)
	require.NoError(t, err)
	require.Len(t, errs["index.html"], 1)
	assert.Contains(t, errs["index.html"][0], "include labels.yaml")
	assert.FileExists(t, filepath.Join(f.output, "index.html"))
}

func TestGenerateDuplicatePage(t *testing.T) {
	f := newFixture(t, "")
	write(t, f.dir, "root.yaml", `title: Docs
children:
  - kind: link
    title: First
    location: dup/
  - kind: link
    title: Second
    location: dup/index.html
`)
	errs, err := Generate(context.Background(), f.opts)
	require.NoError(t, err)
	require.Len(t, errs["dup/index.html"], 1)
	assert.Contains(t, errs["dup/index.html"][0], "duplicate page")
	assert.Contains(t, f.read(t, "dup/index.html"), "<title>First</title>")
}

func TestGenerateReferencesDoNotOwnPages(t *testing.T) {
	f := newFixture(t, "")
	forest := label.Forest{{
		Title:    "P",
		Location: "${base-uri}P/index.html",
		Children: []*label.Label{
			{Title: "Types", Children: []*label.Label{
				{Title: "C", Location: "${base-uri}P/C/index.html", Ref: true},
				{Title: "Hidden", Location: "${base-uri}P/Hidden/index.html", Ref: true},
			}},
			{Title: "Classes", Children: []*label.Label{
				{Title: "C", Text: "<p>The class.</p>", Location: "${base-uri}P/C/index.html"},
			}},
		},
	}}
	require.NoError(t, label.Save(filepath.Join(f.dir, "labels.yaml"), forest))
	extra := `{{range .Label.Children}}{{range .Children}}{{if .IsLink}}<a href="{{url .}}">ref {{.Title}}</a>{{else}}<span>{{.Title}}</span>{{end}}{{end}}{{end}}`
	write(t, f.dir, "page.html", pageTemplate+`{{define "extra"}}`+extra+`{{end}}`)

	res, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 3, res.Pages)

	assert.Contains(t, f.read(t, "model/P/C/index.html"), "<p>The class.</p>")
	p := f.read(t, "model/P/index.html")
	assert.Contains(t, p, `<a href="C/index.html">ref C</a>`)
	assert.Contains(t, p, "<span>Hidden</span>", "a reference to a page that is not produced is not a link")
	assert.NoFileExists(t, filepath.Join(f.output, "model", "P", "Hidden", "index.html"))
}

func TestGenerateCleanPreserves(t *testing.T) {
	f := newFixture(t, "")
	write(t, f.output, "CNAME", "docs.example.org\n")
	write(t, f.output, "stale/old.html", "old")
	f.opts.Clean = true
	f.opts.Preserve = []string{"CNAME"}

	_, err := Generate(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, "docs.example.org\n", f.read(t, "CNAME"))
	assert.NoDirExists(t, filepath.Join(f.output, "stale"))
	assert.FileExists(t, filepath.Join(f.output, "index.html"))
}

func TestGenerateUnchangedPagesAreNotRewritten(t *testing.T) {
	f := newFixture(t, "")
	first, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Written)
	assert.Zero(t, first.Unchanged)

	second, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Zero(t, second.Written)
	assert.Equal(t, 5, second.Unchanged)

	// Dropping the include removes its pages from the output.
	write(t, f.dir, "root.yaml", "title: Docs\n")
	third, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Pages)
	assert.NoFileExists(t, filepath.Join(f.output, "model", "P", "index.html"))
}

func TestGenerateInvalidTemplate(t *testing.T) {
	f := newFixture(t, "")
	write(t, f.dir, "template.yaml", "template: '{{if}}'\n")

	_, err := Generate(context.Background(), f.opts)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.True(t, ferrors.IsFatal(err))
}

func TestGenerateCanceled(t *testing.T) {
	f := newFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, f.opts)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCanceled))
}

func TestPagePath(t *testing.T) {
	cases := []struct {
		location string
		want     string
		wantErr  bool
	}{
		{"index.html", "index.html", false},
		{"model/P/", "model/P/index.html", false},
		{"/model/P/index.html?x=1#top", "model/P/index.html", false},
		{"model/foo%20bar/index.html", "model/foo bar/index.html", false},
		{"model/%2E/index.html", "model/%2E/index.html", false},
		{"../outside.html", "", true},
		{"https://example.org/", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.location, func(t *testing.T) {
			got, err := PagePath(tc.location)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRelativeURL(t *testing.T) {
	cases := []struct{ from, to, want string }{
		{"index.html", "model/P/index.html", "model/P/index.html"},
		{"model/P/C/index.html", "model/P/index.html", "../index.html"},
		{"model/P/index.html", "index.html", "../../index.html"},
		{"a/index.html", "a/index.html", "index.html"},
		{"index.html", "a b/index.html", "a%20b/index.html"},
		{"index.html", "x:y/index.html", "./x:y/index.html"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, relativeURL(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestExtractLinks(t *testing.T) {
	links, err := ExtractLinks([]byte(`<html><head><link rel="stylesheet" href="s.css"><script src="app.js"></script></head>
<body><a href="#top">top</a><a>no href</a><img src="i.png"></body></html>`))
	require.NoError(t, err)
	var urls []string
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{"s.css", "app.js", "#top", "i.png"}, urls)

	for link, want := range map[string]string{
		"../index.html":       "index.html",
		"C/":                  "a/C/index.html",
		".":                   "a/index.html",
		"/style.css":          "style.css",
		"mailto:x@y.z":        "",
		"https://example.org": "",
		"#frag":               "",
	} {
		got, internal := target("a/index.html", link)
		if want == "" {
			assert.False(t, internal, link)
			continue
		}
		assert.True(t, internal, link)
		assert.Equal(t, want, got, link)
	}
}
