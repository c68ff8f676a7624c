// Package resolve assigns addresses to processors, collects their labels and
// rewrites the result into a portable, base-relative forest.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

// Resolution is the outcome of Resolve: the address of every reachable
// processor and the containment tree used to reach it.
type Resolution struct {
	reg       *processor.Registry
	root      processor.Processor
	base      *url.URL
	addresses map[graph.Handle]*url.URL
	children  map[graph.Handle][]graph.Edge
	order     []graph.Handle
}

func (r *Resolution) Registry() *processor.Registry { return r.reg }
func (r *Resolution) Root() processor.Processor     { return r.root }
func (r *Resolution) Base() *url.URL                { return r.base }

// AddressOf returns the address assigned to h.
func (r *Resolution) AddressOf(h graph.Handle) (*url.URL, bool) {
	u, ok := r.addresses[h]
	return u, ok
}

// Order returns the resolved handles in resolution order.
func (r *Resolution) Order() []graph.Handle {
	out := make([]graph.Handle, len(r.order))
	copy(out, r.order)
	return out
}

// Children returns the containment edges along which children of h were
// resolved, in edge order.
func (r *Resolution) Children(h graph.Handle) []graph.Edge {
	return r.children[h]
}

// FindRoot returns the processor of the node wrapping root. Without it
// nothing can be resolved, so a miss is fatal.
func FindRoot(reg *processor.Registry, root metamodel.Object) (processor.Processor, error) {
	if p := reg.ProcessorFor(root); p != nil {
		return p, nil
	}
	return nil, ferrors.RootNotFoundError("no processor matches the root object").
		WithContext("root", fmt.Sprintf("%T %s", root, metamodel.NameOf(root))).
		Build()
}

// Resolve walks the containment tree breadth-first from root. The root gets
// base plus its own segment; every child gets its parent's address plus the
// edge segment. A node reachable along several containment paths keeps the
// address of the first arrival. Processors whose Resolve fails and addresses
// claimed twice are reported as failures; the walk continues.
func Resolve(ctx context.Context, reg *processor.Registry, root processor.Processor, base *url.URL) (*Resolution, []ferrors.Failure, error) {
	res := &Resolution{
		reg:       reg,
		root:      root,
		base:      base,
		addresses: make(map[graph.Handle]*url.URL),
		children:  make(map[graph.Handle][]graph.Edge),
	}
	g := reg.Graph()
	var failures []ferrors.Failure
	owners := make(map[string]graph.Handle)

	fail := func(h graph.Handle, err error) {
		failures = append(failures, ferrors.Failure{
			Category: ferrors.CategoryResolution,
			Origin:   metamodel.Describe(g.Introspector(), g.Node(h).Object()),
			Element:  h,
			Err:      err,
		})
	}

	assign := func(h graph.Handle, address *url.URL) bool {
		key := address.String()
		if other, taken := owners[key]; taken {
			fail(h, ferrors.ResolutionError("address collision").
				WithContext("address", key).
				WithContext("owner", metamodel.Describe(g.Introspector(), g.Node(other).Object())).
				Build())
			return false
		}
		owners[key] = h
		res.addresses[h] = address
		res.order = append(res.order, h)
		if err := reg.Processor(h).Resolve(ctx, address); err != nil {
			fail(h, ferrors.WrapError(err, ferrors.CategoryResolution, "processor cannot resolve").
				WithContext("address", key).
				Build())
		}
		return true
	}

	rootHandle := root.Node().Handle()
	rootAddress, err := addressing.Join(base, addressing.RootSegment(root.Node().Object()))
	if err != nil {
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryResolution, "invalid root address").Fatal().Build()
	}
	assign(rootHandle, rootAddress)

	queue := []graph.Handle{rootHandle}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, failures, ferrors.WrapError(err, ferrors.CategoryCanceled, "resolution canceled").Fatal().Build()
		}
		h := queue[0]
		queue = queue[1:]
		parent := res.addresses[h]
		for _, e := range g.Children(h) {
			if _, done := res.addresses[e.Target]; done {
				continue
			}
			if reg.Processor(e.Target) == nil {
				continue
			}
			address, err := addressing.Join(parent, e.Segment)
			if err != nil {
				fail(e.Target, ferrors.WrapError(err, ferrors.CategoryResolution, "invalid path segment").
					WithContext("segment", e.Segment).
					Build())
				continue
			}
			if assign(e.Target, address) {
				res.children[h] = append(res.children[h], e)
				queue = append(queue, e.Target)
			}
		}
	}

	slog.Debug("Addresses resolved",
		logfields.Count(len(res.order)),
		logfields.Failures(len(failures)),
		logfields.Address(rootAddress.String()))
	return res, failures, nil
}
