package site

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
)

// RootPage is the location of the root document when it names none.
const RootPage = "index.html"

// Include mounts a persisted label forest below the root document.
type Include struct {
	// Path of the labels file, relative to the root document.
	Path string `yaml:"path"`
	// Base replaces the base URI token of every location in the forest,
	// e.g. "model/".
	Base string `yaml:"base"`
}

type rootDoc struct {
	Title    string    `yaml:"title"`
	Icon     string    `yaml:"icon"`
	Text     string    `yaml:"text"`
	Location string    `yaml:"location"`
	Children yaml.Node `yaml:"children"`
	Includes []Include `yaml:"includes"`
}

// RootDocument is the top page of a site. Its label holds the hand written
// children; Includes are mounted after them when the site is assembled.
type RootDocument struct {
	Root     *label.Label
	Includes []Include
	dir      string
}

// LoadRootDocument reads a root document. Its text is Markdown.
func LoadRootDocument(path string, md *markdown.Renderer) (*RootDocument, error) {
	// #nosec G304 -- path is the configured root document
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read root document: %w", err)
	}
	var doc rootDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: invalid root document: %w", path, err)
	}

	var children label.Forest
	if doc.Children.Kind != 0 {
		children, err = label.DecodeNode(&doc.Children)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	text, err := md.RenderString(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	location := doc.Location
	if location == "" {
		location = RootPage
	}
	for i, inc := range doc.Includes {
		if inc.Path == "" {
			return nil, fmt.Errorf("%s: include %d has no path", path, i)
		}
	}

	return &RootDocument{
		Root: &label.Label{
			Title:    doc.Title,
			Icon:     doc.Icon,
			Text:     text,
			Location: location,
			Children: children,
		},
		Includes: doc.Includes,
		dir:      filepath.Dir(path),
	}, nil
}

// Assemble returns the root label with every include mounted below it. An
// include that cannot be loaded is reported and skipped.
func (d *RootDocument) Assemble() (*label.Label, []error) {
	root := d.Root.Clone()
	var errs []error
	for _, inc := range d.Includes {
		p := inc.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(d.dir, p)
		}
		forest, err := label.Load(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("include %s: %w", inc.Path, err))
			continue
		}
		root.Children = append(root.Children, label.Mount(forest, inc.Base)...)
	}
	return root, errs
}

type templateDoc struct {
	Template     string `yaml:"template"`
	TemplateFile string `yaml:"template_file"`
	Assets       string `yaml:"assets"`
}

// PageTemplate is the html/template every page is rendered with, plus an
// optional directory of static assets copied into the site.
type PageTemplate struct {
	Source string
	// Assets is an absolute directory, or empty.
	Assets string
}

// LoadPageTemplate reads a page template description. Relative paths in it
// are relative to the description itself.
func LoadPageTemplate(path string) (*PageTemplate, error) {
	// #nosec G304 -- path is the configured page template
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page template: %w", err)
	}
	var doc templateDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: invalid page template: %w", path, err)
	}
	dir := filepath.Dir(path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	pt := &PageTemplate{Source: doc.Template, Assets: rel(doc.Assets)}
	switch {
	case doc.Template != "" && doc.TemplateFile != "":
		return nil, fmt.Errorf("%s: template and template_file are mutually exclusive", path)
	case doc.TemplateFile != "":
		// #nosec G304 -- named by the page template description
		src, err := os.ReadFile(rel(doc.TemplateFile))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		pt.Source = string(src)
	case doc.Template == "":
		return nil, fmt.Errorf("%s: neither template nor template_file is set", path)
	}
	return pt, nil
}
