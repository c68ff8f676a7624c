// Package docproc provides the processors that document model elements: a
// reflective processor usable for any node, and a prototype layer that
// overlays hand written Markdown on selected elements.
package docproc

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

// Reflective documents a node from what introspection tells about it: its
// name, classifier and documentation, its contained children and the
// elements it references.
type Reflective struct {
	processor.Base
	title string
	icon  string
	text  string
	graph *graph.Graph
}

// ReflectiveFactory returns a factory accepting every node.
func ReflectiveFactory(md *markdown.Renderer) processor.Factory {
	return func(_ context.Context, node *graph.Node, g *graph.Graph) (processor.Processor, error) {
		return NewReflective(node, g, md), nil
	}
}

// NewReflective creates the reflective processor of node. Documentation that
// fails to render is reported through Failures.
func NewReflective(node *graph.Node, g *graph.Graph, md *markdown.Renderer) *Reflective {
	r := &Reflective{
		Base:  processor.NewBase(node),
		title: Title(node),
		icon:  strings.ToLower(node.Classifier().Name),
		graph: g,
	}
	if doc, ok := node.Object().(metamodel.Documented); ok {
		html, err := md.RenderString(doc.Documentation())
		if err != nil {
			r.AddFailure(err)
		}
		r.text = html
	}
	return r
}

// Title returns the display title of node: its name, else its classifier.
func Title(node *graph.Node) string {
	if name := metamodel.NameOf(node.Object()); name != "" {
		return name
	}
	if c := node.Classifier().Name; c != "" {
		return c
	}
	return "element"
}

// Labels returns a single link to the node's page. Its children group the
// contained elements and the referenced elements by reference, in reference
// declaration order.
func (r *Reflective) Labels(ctx context.Context, scope processor.Scope) ([]*label.Label, error) {
	l := &label.Label{
		Title: r.title,
		Icon:  r.icon,
		Text:  r.text,
	}
	if addr := r.Address(); addr != nil {
		l.Location = addressing.Page(addr).String()
	}

	groups, err := r.groups(ctx, scope)
	if err != nil {
		return nil, err
	}
	l.Children = groups
	return []*label.Label{l}, nil
}

type group struct {
	ref    metamodel.Reference
	labels []*label.Label
}

func (r *Reflective) groups(ctx context.Context, scope processor.Scope) ([]*label.Label, error) {
	var order []*group
	byName := make(map[string]*group)
	get := func(ref metamodel.Reference) *group {
		g, ok := byName[ref.Name]
		if !ok {
			g = &group{ref: ref}
			byName[ref.Name] = g
			order = append(order, g)
		}
		return g
	}

	children := make(map[int]bool)
	for _, e := range scope.Children() {
		children[e.ID] = true
	}
	for _, e := range r.graph.Outgoing(r.Node().Handle()) {
		g := get(e.Reference)
		if !children[e.ID] {
			g.labels = append(g.labels, r.reference(scope, e))
			continue
		}
		labels, err := scope.LabelsOf(ctx, e.Target)
		if err != nil {
			return nil, err
		}
		g.labels = append(g.labels, labels...)
	}

	out := make([]*label.Label, 0, len(order))
	for _, g := range order {
		if len(g.labels) == 0 {
			continue
		}
		if !g.ref.Ordered {
			sort.SliceStable(g.labels, func(i, j int) bool {
				return g.labels[i].Title < g.labels[j].Title
			})
		}
		out = append(out, &label.Label{
			Title:    Humanize(g.ref.Name),
			Children: g.labels,
		})
	}
	return out, nil
}

// reference renders one referenced element: a reference to its page when it
// has an address, otherwise just its title. The page itself is owned by the
// target's own label.
func (r *Reflective) reference(scope processor.Scope, e graph.Edge) *label.Label {
	target := r.graph.Node(e.Target)
	l := &label.Label{
		Title: Title(target),
		Icon:  strings.ToLower(target.Classifier().Name),
	}
	if addr, ok := scope.AddressOf(e.Target); ok {
		l.Location = addressing.Page(addr).String()
		l.Ref = true
	}
	return l
}

// Humanize turns a reference name into a heading: "eSuperTypes" becomes
// "Super Types".
func Humanize(name string) string {
	var words []string
	var cur []rune
	for _, r := range name {
		if unicode.IsUpper(r) && len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
		if r == '_' || r == '-' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	if len(words) > 1 && words[0] == "e" {
		words = words[1:]
	}
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}
