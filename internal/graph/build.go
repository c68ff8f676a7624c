package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
)

// SegmentFunc computes the path segment of an edge traversal.
type SegmentFunc func(source, target metamodel.Object, ref metamodel.Reference, index int) (string, error)

// Option configures Build.
type Option func(*builder)

// WithMaxNodes aborts the build once more than n nodes are discovered.
// Zero means unlimited.
func WithMaxNodes(n int) Option {
	return func(b *builder) { b.maxNodes = n }
}

type builder struct {
	in       metamodel.Introspector
	segment  SegmentFunc
	maxNodes int
	g        *Graph
	queue    []Handle
	failures []ferrors.Failure
}

type pendingEdge struct {
	target  metamodel.Object
	ref     metamodel.Reference
	index   int
	segment string
}

// Build walks everything reachable from roots breadth-first: roots in the
// given order, references in declaration order, values in ordinal order.
// Each distinct object yields exactly one node; reaching a known object again
// only adds an edge.
//
// Objects that cannot be introspected are reported as failures and get no
// outgoing edges; the walk goes on. The returned error is reserved for
// aborts: cancellation and the node limit.
func Build(ctx context.Context, in metamodel.Introspector, roots []metamodel.Object, segment SegmentFunc, opts ...Option) (*Graph, []ferrors.Failure, error) {
	b := &builder{
		in:      in,
		segment: segment,
		g: &Graph{
			introspector: in,
			index:        make(map[any]Handle),
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, root := range roots {
		h, err := b.intern(root)
		if err != nil {
			return nil, b.failures, err
		}
		if h == None {
			continue
		}
		if !containsHandle(b.g.roots, h) {
			b.g.roots = append(b.g.roots, h)
		}
	}

	for len(b.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, b.failures, ferrors.WrapError(err, ferrors.CategoryCanceled, "graph build canceled").
				Fatal().
				WithContext("nodes", len(b.g.nodes)).
				Build()
		}
		h := b.queue[0]
		b.queue = b.queue[1:]
		if err := b.visit(h); err != nil {
			return nil, b.failures, err
		}
	}

	slog.Debug("Graph built",
		logfields.Count(len(b.g.nodes)),
		slog.Int("edges", len(b.g.edges)),
		logfields.Failures(len(b.failures)))
	return b.g, b.failures, nil
}

func (b *builder) visit(h Handle) error {
	node := b.g.nodes[h]
	obj := node.object

	cls, err := b.in.ClassifierOf(obj)
	if err != nil {
		b.fail(h, obj, "cannot determine classifier", err)
		return nil
	}
	node.classifier = cls

	refs, err := b.in.ReferencesOf(obj)
	if err != nil {
		b.fail(h, obj, "cannot read references", err)
		return nil
	}

	// Edges are committed only after every reference has been read, so a
	// failing object contributes no partial edge set.
	var pending []pendingEdge
	for _, ref := range refs {
		values, err := b.in.ValueOf(obj, ref)
		if err != nil {
			b.fail(h, obj, fmt.Sprintf("cannot read reference %s", ref.Name), err)
			return nil
		}
		for i, v := range values {
			if v == nil {
				continue
			}
			if !hasIdentity(v) {
				b.fail(h, obj, fmt.Sprintf("reference %s[%d] holds a %T which has no identity", ref.Name, i, v), errNotComparable)
				continue
			}
			seg, err := b.segment(obj, v, ref, i)
			if err != nil {
				b.fail(h, obj, fmt.Sprintf("cannot name reference %s[%d]", ref.Name, i), err)
				return nil
			}
			pending = append(pending, pendingEdge{target: v, ref: ref, index: i, segment: seg})
		}
	}

	for _, p := range pending {
		target, err := b.intern(p.target)
		if err != nil {
			return err
		}
		id := len(b.g.edges)
		b.g.edges = append(b.g.edges, Edge{
			ID:        id,
			Source:    h,
			Target:    target,
			Reference: p.ref,
			Index:     p.index,
			Segment:   p.segment,
		})
		node.out = append(node.out, id)
		b.g.nodes[target].in = append(b.g.nodes[target].in, id)
	}
	return nil
}

// intern returns the handle of obj, creating and enqueueing a node on first
// sight. Objects without identity are reported and yield None.
func (b *builder) intern(obj metamodel.Object) (Handle, error) {
	if !hasIdentity(obj) {
		b.failures = append(b.failures, ferrors.Failure{
			Category: ferrors.CategoryIntrospection,
			Origin:   fmt.Sprintf("%T", obj),
			Element:  obj,
			Err:      errNotComparable,
		})
		return None, nil
	}
	if h, ok := b.g.index[obj]; ok {
		return h, nil
	}
	if b.maxNodes > 0 && len(b.g.nodes) >= b.maxNodes {
		return None, ferrors.NewError(ferrors.CategoryValidation, "model exceeds the node limit").
			Fatal().
			WithContext("max_nodes", b.maxNodes).
			Build()
	}
	h := Handle(len(b.g.nodes))
	b.g.nodes = append(b.g.nodes, &Node{handle: h, object: obj})
	b.g.index[obj] = h
	b.queue = append(b.queue, h)
	return h, nil
}

func (b *builder) fail(h Handle, obj metamodel.Object, msg string, cause error) {
	slog.Debug("Introspection failed",
		logfields.Node(int(h)),
		logfields.Error(cause))
	b.failures = append(b.failures, ferrors.Failure{
		Category: ferrors.CategoryIntrospection,
		Origin:   metamodel.Describe(b.in, obj),
		Element:  h,
		Err: ferrors.WrapError(cause, ferrors.CategoryIntrospection, msg).
			WithContext("node", int(h)).
			Build(),
	})
}

var errNotComparable = errors.New("model object is not comparable")

func hasIdentity(obj any) bool {
	if obj == nil {
		return false
	}
	return reflect.ValueOf(obj).Comparable()
}

func containsHandle(hs []Handle, h Handle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}
