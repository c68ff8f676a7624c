package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/modeldoc/internal/foundation"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
)

// Factory creates the processor of one node. Returning (nil, nil) defers to
// the next factory of the chain; an error fails this node only.
type Factory func(ctx context.Context, node *graph.Node, g *graph.Graph) (Processor, error)

// Chain is an ordered list of factories. The first factory that returns a
// processor wins.
type Chain []Factory

// Create runs the chain for node.
func (c Chain) Create(ctx context.Context, node *graph.Node, g *graph.Graph) (Processor, error) {
	for _, f := range c {
		p, err := f(ctx, node, g)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// Factory returns the chain as a single factory, so chains nest.
func (c Chain) Factory() Factory {
	return c.Create
}

// ErrNoProcessor is the cause recorded for nodes no factory accepted.
var ErrNoProcessor = errors.New("no factory accepted the node")

// Option configures CreateProcessors.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers sets the number of nodes processed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Registry maps every node of a graph to the outcome of its factory chain.
type Registry struct {
	g     *graph.Graph
	slots []foundation.Result[Processor, error]
	count int
}

// Graph returns the graph the registry was built for.
func (r *Registry) Graph() *graph.Graph { return r.g }

// Len returns the number of processors created.
func (r *Registry) Len() int { return r.count }

// Processor returns the processor of h, or nil when its creation failed.
func (r *Registry) Processor(h graph.Handle) Processor {
	if h < 0 || int(h) >= len(r.slots) {
		return nil
	}
	return r.slots[h].UnwrapOr(nil)
}

// ProcessorFor returns the processor of the node wrapping obj.
func (r *Registry) ProcessorFor(obj metamodel.Object) Processor {
	h, ok := r.g.Lookup(obj)
	if !ok {
		return nil
	}
	return r.Processor(h)
}

// Processors returns the created processors in handle order.
func (r *Registry) Processors() []Processor {
	out := make([]Processor, 0, r.count)
	for _, slot := range r.slots {
		if slot.IsOk() {
			out = append(out, slot.Unwrap())
		}
	}
	return out
}

// CreateProcessors runs chain for every node of g. A failing node never stops
// the others: its error or panic becomes a failure tagged with the node, and
// so does a node no factory accepted. Failures reported by created
// processors are appended. Failures come back in handle order.
//
// Each node owns one slot, so concurrent workers never share state. The
// returned error is reserved for cancellation.
func CreateProcessors(ctx context.Context, g *graph.Graph, chain Chain, opts ...Option) (*Registry, []ferrors.Failure, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	reg := &Registry{g: g, slots: make([]foundation.Result[Processor, error], g.Len())}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	for _, node := range g.Nodes() {
		if egctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			reg.slots[node.Handle()] = create(egctx, chain, node, g)
			return nil
		})
	}
	if err := eg.Wait(); err != nil || ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryCanceled, "processor creation canceled").Fatal().Build()
	}

	var failures []ferrors.Failure
	for h, slot := range reg.slots {
		node := g.Node(graph.Handle(h))
		origin := metamodel.Describe(g.Introspector(), node.Object())
		if !slot.IsOk() {
			failures = append(failures, ferrors.Failure{
				Category: ferrors.CategoryProcessor,
				Origin:   origin,
				Element:  node.Handle(),
				Err:      slot.UnwrapErr(),
			})
			continue
		}
		reg.count++
		for _, err := range slot.Unwrap().Failures() {
			failures = append(failures, ferrors.Failure{
				Category: ferrors.CategoryProcessor,
				Origin:   origin,
				Element:  node.Handle(),
				Err:      err,
			})
		}
	}

	slog.Debug("Processors created",
		logfields.Count(reg.count),
		logfields.Failures(len(failures)),
		logfields.Workers(o.workers),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return reg, failures, nil
}

func create(ctx context.Context, chain Chain, node *graph.Node, g *graph.Graph) (res foundation.Result[Processor, error]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Processor factory panicked",
				logfields.Node(int(node.Handle())),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res = foundation.Err[Processor, error](ferrors.ProcessorError(fmt.Sprintf("factory panicked: %v", r)).
				WithContext("node", int(node.Handle())).
				Build())
		}
	}()

	p, err := chain.Create(ctx, node, g)
	if err != nil {
		return foundation.Err[Processor](err)
	}
	if p == nil {
		return foundation.Err[Processor](ErrNoProcessor)
	}
	return foundation.Ok[Processor, error](p)
}
