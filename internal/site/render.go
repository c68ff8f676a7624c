package site

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"git.home.luguber.info/inful/modeldoc/internal/label"
)

// PageData is what the page template is executed with.
type PageData struct {
	// Label is the link label the page is rendered for.
	Label *label.Label
	Title string
	Icon  string
	Text  template.HTML
	// Path is the output path of the page.
	Path string
	// Root links to the root page.
	Root string
	// Parents are the labels from the root down to the page's parent.
	Parents []*label.Label
	Domain  string
}

type page struct {
	path    string
	label   *label.Label
	parents []*label.Label
}

// collectPages turns every link label that owns a local location into a
// page. A location owned twice keeps its first label; the second is an error
// of that path. References never own a page: those whose page is not
// produced, such as links to hidden elements, lose their location and render
// as plain labels.
func collectPages(root *label.Label, errs *pathErrors) []*page {
	byPath := make(map[string]*page)
	var refs []*label.Label
	var walk func(l *label.Label, parents []*label.Label)
	walk = func(l *label.Label, parents []*label.Label) {
		if l.IsLink() && label.IsLocal(l.Location) {
			p, err := PagePath(l.Location)
			switch {
			case err != nil:
				errs.add(l.Location, err)
			case l.Ref:
				refs = append(refs, l)
			case byPath[p] != nil:
				errs.add(p, fmt.Errorf("duplicate page: %q is also used by %q", l.Title, byPath[p].label.Title))
			default:
				byPath[p] = &page{path: p, label: l, parents: append([]*label.Label(nil), parents...)}
			}
		}
		next := append(parents[:len(parents):len(parents)], l)
		for _, c := range l.Children {
			walk(c, next)
		}
	}
	walk(root, nil)

	for _, l := range refs {
		if p, _ := PagePath(l.Location); byPath[p] == nil {
			l.Location = ""
			l.Ref = false
		}
	}

	pages := make([]*page, 0, len(byPath))
	for _, p := range byPath {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].path < pages[j].path })
	return pages
}

// placeholderFuncs are replaced per page before execution.
var placeholderFuncs = template.FuncMap{
	"url":   func(*label.Label) string { return "" },
	"page":  func(string) string { return "" },
	"asset": func(string) string { return "" },
	"html":  func(s string) template.HTML { return template.HTML(s) }, // #nosec G203 -- label text is rendered HTML
}

func parseTemplate(src string) (*template.Template, error) {
	t, err := template.New("page").Funcs(placeholderFuncs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return t, nil
}

type renderer struct {
	tmpl     *template.Template
	pages    map[string]*page
	rootPath string
	domain   string
}

// render executes the template for p. Links to missing pages are reported
// but do not stop the page from being produced.
func (r *renderer) render(p *page) ([]byte, []error) {
	var errs []error
	t, err := r.tmpl.Clone()
	if err != nil {
		return nil, []error{err}
	}
	t.Funcs(template.FuncMap{
		"url": func(l *label.Label) string {
			if l == nil || !l.IsLink() {
				return ""
			}
			if !label.IsLocal(l.Location) {
				return l.Location
			}
			to, err := PagePath(l.Location)
			if err != nil {
				errs = append(errs, err)
				return "#"
			}
			return relativeURL(p.path, to)
		},
		"page": func(location string) string {
			to, err := PagePath(location)
			if err == nil && r.pages[to] == nil {
				err = fmt.Errorf("page %q does not exist", location)
			}
			if err != nil {
				errs = append(errs, err)
				return "#"
			}
			return relativeURL(p.path, to)
		},
		"asset": func(file string) string {
			return relativeURL(p.path, file)
		},
	})

	data := PageData{
		Label:   p.label,
		Title:   p.label.Title,
		Icon:    p.label.Icon,
		Text:    template.HTML(p.label.Text), // #nosec G203 -- label text is rendered HTML
		Path:    p.path,
		Root:    relativeURL(p.path, r.rootPath),
		Parents: p.parents,
		Domain:  r.domain,
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, append(errs, fmt.Errorf("render page template: %w", err))
	}
	return buf.Bytes(), errs
}
