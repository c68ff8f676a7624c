// Package graph materializes an object model as an arena of nodes connected
// by edges. Nodes are addressed by Handle; edges refer to nodes by handle only,
// so cyclic models never produce cyclic Go pointers.
package graph

import (
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
)

// Handle identifies a node within one Graph.
type Handle int

// None is the zero handle returned when a lookup fails.
const None Handle = -1

// Node wraps one model object.
type Node struct {
	handle     Handle
	object     metamodel.Object
	classifier metamodel.Classifier
	out        []int
	in         []int
}

// Handle returns the arena index of n.
func (n *Node) Handle() Handle { return n.handle }

// Object returns the model object n stands for.
func (n *Node) Object() metamodel.Object { return n.object }

// Classifier returns the classifier of n's object.
func (n *Node) Classifier() metamodel.Classifier { return n.classifier }

// Edge is one traversal of a reference from Source to Target.
type Edge struct {
	ID        int
	Source    Handle
	Target    Handle
	Reference metamodel.Reference
	Index     int
	Segment   string
}

// Graph is the immutable result of Build.
type Graph struct {
	introspector metamodel.Introspector
	nodes        []*Node
	edges        []Edge
	index        map[any]Handle
	roots        []Handle
}

// Introspector returns the introspector the graph was built with.
func (g *Graph) Introspector() metamodel.Introspector { return g.introspector }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all nodes in discovery order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Node returns the node for h, or nil when h is out of range.
func (g *Graph) Node(h Handle) *Node {
	if h < 0 || int(h) >= len(g.nodes) {
		return nil
	}
	return g.nodes[h]
}

// Roots returns the root handles in root order.
func (g *Graph) Roots() []Handle {
	out := make([]Handle, len(g.roots))
	copy(out, g.roots)
	return out
}

// Lookup returns the handle of obj.
func (g *Graph) Lookup(obj metamodel.Object) (Handle, bool) {
	if !hasIdentity(obj) {
		return None, false
	}
	h, ok := g.index[obj]
	if !ok {
		return None, false
	}
	return h, true
}

// Edges returns all edges in creation order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Outgoing returns the edges leaving h in reference declaration order, then
// ordinal order.
func (g *Graph) Outgoing(h Handle) []Edge {
	n := g.Node(h)
	if n == nil {
		return nil
	}
	return g.collect(n.out)
}

// Incoming returns the edges entering h in creation order.
func (g *Graph) Incoming(h Handle) []Edge {
	n := g.Node(h)
	if n == nil {
		return nil
	}
	return g.collect(n.in)
}

// Children returns the containment edges leaving h.
func (g *Graph) Children(h Handle) []Edge {
	var out []Edge
	for _, e := range g.Outgoing(h) {
		if e.Reference.Containment {
			out = append(out, e)
		}
	}
	return out
}

// Container returns the first containment edge entering h.
func (g *Graph) Container(h Handle) (Edge, bool) {
	for _, e := range g.Incoming(h) {
		if e.Reference.Containment {
			return e, true
		}
	}
	return Edge{}, false
}

// LogicalPath follows containers upwards from h. It returns the topmost
// ancestor and the edge segments leading from it down to h.
func (g *Graph) LogicalPath(h Handle) (Handle, []string) {
	var segments []string
	seen := map[Handle]bool{h: true}
	top := h
	for {
		e, ok := g.Container(top)
		if !ok || seen[e.Source] {
			break
		}
		seen[e.Source] = true
		segments = append(segments, e.Segment)
		top = e.Source
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return top, segments
}

func (g *Graph) collect(ids []int) []Edge {
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	return out
}
