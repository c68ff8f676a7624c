// Package processor attaches a processor to every node of a graph through an
// ordered chain of factories.
package processor

import (
	"context"
	"net/url"

	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
)

// Processor turns one node into documentation. A processor is created once,
// resolved once against its address, then asked for its labels.
type Processor interface {
	// Node returns the node the processor was created for.
	Node() *graph.Node
	// Failures returns problems found while the processor was built. They
	// are reported alongside factory failures.
	Failures() []error
	// Resolve fixes the absolute address of the processor.
	Resolve(ctx context.Context, address *url.URL) error
	// Address returns the resolved address, or nil before Resolve.
	Address() *url.URL
	// Labels returns the labels documenting the node.
	Labels(ctx context.Context, scope Scope) ([]*label.Label, error)
}

// Scope gives a processor read access to its surroundings while labels are
// collected.
type Scope interface {
	Graph() *graph.Graph
	// Children returns the containment edges whose targets were resolved
	// below the current node, in edge order.
	Children() []graph.Edge
	// LabelsOf returns the labels of one of Children's targets.
	LabelsOf(ctx context.Context, child graph.Handle) ([]*label.Label, error)
	// ChildLabels returns the labels of all children, in edge order.
	ChildLabels(ctx context.Context) ([]*label.Label, error)
	// AddressOf returns the resolved address of any node.
	AddressOf(h graph.Handle) (*url.URL, bool)
}

// Base implements the bookkeeping part of Processor. Embed it and add Labels.
type Base struct {
	node     *graph.Node
	address  *url.URL
	failures []error
}

// NewBase creates a Base for node.
func NewBase(node *graph.Node) Base {
	return Base{node: node}
}

// Node returns the node the processor documents.
func (b *Base) Node() *graph.Node { return b.node }

// Failures returns the problems recorded by AddFailure.
func (b *Base) Failures() []error { return b.failures }

// Address returns the address stored by Resolve, or nil before resolution.
func (b *Base) Address() *url.URL { return b.address }

// AddFailure records a construction problem.
func (b *Base) AddFailure(err error) {
	b.failures = append(b.failures, err)
}

// Resolve stores address.
func (b *Base) Resolve(_ context.Context, address *url.URL) error {
	b.address = address
	return nil
}
