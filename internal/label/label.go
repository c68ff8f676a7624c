// Package label holds the document tree produced by processors: an ordered
// forest of titled labels, some of which link to a location.
package label

import (
	"strings"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
)

// Label is one titled unit of the document tree. A label with a Location is
// a link.
type Label struct {
	Title string
	// Text is an HTML fragment describing the labelled element.
	Text     string
	Icon     string
	Location string
	// Ref marks a link to a page owned by another label.
	Ref      bool
	Children []*Label
}

// IsLink reports whether l carries a location.
func (l *Label) IsLink() bool { return l.Location != "" }

// Clone returns a deep copy of l.
func (l *Label) Clone() *Label {
	if l == nil {
		return nil
	}
	c := *l
	c.Children = Forest(l.Children).Clone()
	return &c
}

// Forest is an ordered list of root labels.
type Forest []*Label

// Walk visits every label in pre-order. Returning false from fn skips the
// label's children.
func (f Forest) Walk(fn func(l *Label, depth int) bool) {
	var walk func(ls []*Label, depth int)
	walk = func(ls []*Label, depth int) {
		for _, l := range ls {
			if l == nil {
				continue
			}
			if fn(l, depth) {
				walk(l.Children, depth+1)
			}
		}
	}
	walk(f, 0)
}

// Clone returns a deep copy of f.
func (f Forest) Clone() Forest {
	if f == nil {
		return nil
	}
	out := make(Forest, 0, len(f))
	for _, l := range f {
		out = append(out, l.Clone())
	}
	return out
}

// Rewrite returns a deep copy of f in which every location has been passed
// through fn.
func (f Forest) Rewrite(fn func(location string) string) Forest {
	out := f.Clone()
	out.Walk(func(l *Label, _ int) bool {
		if l.IsLink() {
			l.Location = fn(l.Location)
		}
		return true
	})
	return out
}

// Links returns every link in pre-order.
func (f Forest) Links() []*Label {
	var out []*Label
	f.Walk(func(l *Label, _ int) bool {
		if l.IsLink() {
			out = append(out, l)
		}
		return true
	})
	return out
}

// Pages returns the links that own a local page: no scheme, no host and no
// fragment-only location. References to pages are left out.
func (f Forest) Pages() []*Label {
	var out []*Label
	for _, l := range f.Links() {
		if !l.Ref && IsLocal(l.Location) {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the total number of labels in f.
func (f Forest) Len() int {
	n := 0
	f.Walk(func(*Label, int) bool {
		n++
		return true
	})
	return n
}

// Mount returns a copy of f with the base URI token replaced by base.
func Mount(f Forest, base string) Forest {
	return f.Rewrite(func(location string) string {
		return addressing.Mount(location, base)
	})
}

// IsLocal reports whether location names a file of the site itself.
func IsLocal(location string) bool {
	if location == "" || strings.HasPrefix(location, "#") || strings.HasPrefix(location, "//") {
		return false
	}
	if strings.HasPrefix(location, addressing.BaseURIToken) {
		return true
	}
	first, _, _ := strings.Cut(location, "/")
	return !strings.Contains(first, ":")
}
