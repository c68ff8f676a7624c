package resolve

import (
	"context"
	"fmt"
	"net/url"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

type collector struct {
	res      *Resolution
	failures ferrors.Collector
}

type scope struct {
	c *collector
	h graph.Handle
}

func (s *scope) Graph() *graph.Graph { return s.c.res.reg.Graph() }

func (s *scope) AddressOf(h graph.Handle) (*url.URL, bool) { return s.c.res.AddressOf(h) }

func (s *scope) Children() []graph.Edge { return s.c.res.Children(s.h) }

func (s *scope) LabelsOf(ctx context.Context, child graph.Handle) ([]*label.Label, error) {
	for _, e := range s.Children() {
		if e.Target == child {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.c.labelsOf(ctx, child), nil
		}
	}
	return nil, fmt.Errorf("node %d is not a resolved child of node %d", child, s.h)
}

func (s *scope) ChildLabels(ctx context.Context) ([]*label.Label, error) {
	var out []*label.Label
	for _, e := range s.Children() {
		labels, err := s.LabelsOf(ctx, e.Target)
		if err != nil {
			return nil, err
		}
		out = append(out, labels...)
	}
	return out, nil
}

func (c *collector) labelsOf(ctx context.Context, h graph.Handle) []*label.Label {
	p := c.res.reg.Processor(h)
	labels, err := p.Labels(ctx, &scope{c: c, h: h})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		g := c.res.reg.Graph()
		c.failures.Addf(ferrors.CategoryProcessor, h,
			metamodel.Describe(g.Introspector(), g.Node(h).Object()),
			ferrors.WrapError(err, ferrors.CategoryProcessor, "cannot produce labels").Build())
		return nil
	}
	return labels
}

var _ processor.Scope = (*scope)(nil)

// CollectLabels asks the root processor for its labels. Processors pull the
// labels of their children through the scope they receive, so the forest
// follows the containment tree. A processor that fails loses its labels and
// is reported; the others are unaffected.
func CollectLabels(ctx context.Context, res *Resolution) (label.Forest, []ferrors.Failure, error) {
	c := &collector{res: res}
	forest := label.Forest(c.labelsOf(ctx, res.root.Node().Handle()))
	if err := ctx.Err(); err != nil {
		return nil, c.failures.Failures(), ferrors.WrapError(err, ferrors.CategoryCanceled, "label collection canceled").Fatal().Build()
	}
	return forest, c.failures.Failures(), nil
}

// Relativize returns a copy of forest in which every absolute location at or
// below base is rewritten to the base URI token followed by its relative
// path. Other locations are kept.
func Relativize(forest label.Forest, base *url.URL) label.Forest {
	return forest.Rewrite(func(location string) string {
		return addressing.Relative(base, location)
	})
}
