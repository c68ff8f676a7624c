package docproc

import (
	"context"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

// LogicalKey returns the slash separated path of h below its topmost
// container, starting with the container's name. Segments are unescaped, so
// the key matches the file layout of a docs directory.
func LogicalKey(g *graph.Graph, h graph.Handle) string {
	top, segments := g.LogicalPath(h)
	parts := make([]string, 0, len(segments)+1)
	if root := addressing.RootSegment(g.Node(top).Object()); root != "" {
		parts = append(parts, unescape(root))
	}
	for _, s := range segments {
		parts = append(parts, unescape(s))
	}
	return strings.Join(parts, "/")
}

func unescape(segment string) string {
	if s, err := url.PathUnescape(segment); err == nil {
		return s
	}
	return segment
}

// PrototypeFactory overlays the prototypes of loader on the processors made
// by inner. Nodes without a prototype get inner's processor unchanged.
func PrototypeFactory(loader *DocLoader, inner processor.Factory) processor.Factory {
	return func(ctx context.Context, node *graph.Node, g *graph.Graph) (processor.Processor, error) {
		p, err := inner(ctx, node, g)
		if err != nil || p == nil {
			return p, err
		}
		proto := loader.Lookup(LogicalKey(g, node.Handle()))
		if proto.IsNone() {
			return p, nil
		}
		return &Prototyped{Processor: p, prototype: proto.Unwrap()}, nil
	}
}

// Prototyped decorates a processor with hand written documentation.
type Prototyped struct {
	processor.Processor
	prototype *Prototype
}

// Labels replaces the title, icon and text of the first inner label with the
// prototype's, where set. A hidden prototype drops the node's own label and
// hands its children up to the parent.
func (p *Prototyped) Labels(ctx context.Context, scope processor.Scope) ([]*label.Label, error) {
	labels, err := p.Processor.Labels(ctx, scope)
	if err != nil || len(labels) == 0 {
		return labels, err
	}
	first := labels[0]
	if p.prototype.Hidden {
		out := append([]*label.Label{}, first.Children...)
		return append(out, labels[1:]...), nil
	}
	if p.prototype.Title != "" {
		first.Title = p.prototype.Title
	}
	if p.prototype.Icon != "" {
		first.Icon = p.prototype.Icon
	}
	if p.prototype.HTML != "" {
		first.Text = p.prototype.HTML
	}
	return labels, nil
}
