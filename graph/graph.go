// Package graph provides a generic directed labelled graph. Node and edge
// payloads are type parameters so the same structure backs both pattern
// subgraphs and the spatial-relationship graph. Node and edge names are
// unique within a graph; every edge links two nodes of the same graph.
package graph

import (
	"fmt"
	"sort"

	"github.com/c360/srgresolver/errors"
)

// Node is a named node with a payload and links to its incident edges.
type Node[N, E any] struct {
	Name string
	Data N

	// incident edges in insertion order
	In  []*Edge[N, E]
	Out []*Edge[N, E]
}

// Edge is a named directed edge with a payload and its endpoint nodes.
type Edge[N, E any] struct {
	Name   string
	Data   E
	Source *Node[N, E]
	Target *Node[N, E]
}

// Graph is a directed graph with unique node and edge names.
type Graph[N, E any] struct {
	nodes map[string]*Node[N, E]
	edges map[string]*Edge[N, E]
}

// New creates an empty graph.
func New[N, E any]() *Graph[N, E] {
	return &Graph[N, E]{
		nodes: make(map[string]*Node[N, E]),
		edges: make(map[string]*Edge[N, E]),
	}
}

// AddNode creates an isolated node. Fails with ErrDuplicateNode if the name
// is taken.
func (g *Graph[N, E]) AddNode(name string, data N) (*Node[N, E], error) {
	if _, ok := g.nodes[name]; ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateNode, name)
	}
	n := &Node[N, E]{Name: name, Data: data}
	g.nodes[name] = n
	return n, nil
}

// HasNode reports whether a node with the name exists.
func (g *Graph[N, E]) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Node returns the node with the given name, or ErrNodeNotFound.
func (g *Graph[N, E]) Node(name string) (*Node[N, E], error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNodeNotFound, name)
	}
	return n, nil
}

// RemoveNode removes a node, disconnecting all incident edges first.
func (g *Graph[N, E]) RemoveNode(name string) error {
	n, err := g.Node(name)
	if err != nil {
		return err
	}
	for len(n.Out) > 0 {
		if err := g.RemoveEdge(n.Out[0].Name); err != nil {
			return err
		}
	}
	for len(n.In) > 0 {
		if err := g.RemoveEdge(n.In[0].Name); err != nil {
			return err
		}
	}
	delete(g.nodes, name)
	return nil
}

// AddEdge creates an edge between two existing nodes. Fails with
// ErrDuplicateEdge if the edge name is taken and ErrNodeNotFound if either
// endpoint is missing.
func (g *Graph[N, E]) AddEdge(name, source, target string, data E) (*Edge[N, E], error) {
	if _, ok := g.edges[name]; ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateEdge, name)
	}
	src, err := g.Node(source)
	if err != nil {
		return nil, err
	}
	dst, err := g.Node(target)
	if err != nil {
		return nil, err
	}
	e := &Edge[N, E]{Name: name, Data: data, Source: src, Target: dst}
	g.edges[name] = e
	src.Out = append(src.Out, e)
	dst.In = append(dst.In, e)
	return e, nil
}

// HasEdge reports whether an edge with the name exists.
func (g *Graph[N, E]) HasEdge(name string) bool {
	_, ok := g.edges[name]
	return ok
}

// Edge returns the edge with the given name, or ErrEdgeNotFound.
func (g *Graph[N, E]) Edge(name string) (*Edge[N, E], error) {
	e, ok := g.edges[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrEdgeNotFound, name)
	}
	return e, nil
}

// RemoveEdge unlinks an edge from both endpoints and removes it.
func (g *Graph[N, E]) RemoveEdge(name string) error {
	e, ok := g.edges[name]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrEdgeNotFound, name)
	}
	e.Source.Out = removeEdgeRef(e.Source.Out, e)
	e.Target.In = removeEdgeRef(e.Target.In, e)
	delete(g.edges, name)
	return nil
}

func removeEdgeRef[N, E any](list []*Edge[N, E], e *Edge[N, E]) []*Edge[N, E] {
	for i, x := range list {
		if x == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Order returns the number of nodes.
func (g *Graph[N, E]) Order() int { return len(g.nodes) }

// Size returns the number of edges.
func (g *Graph[N, E]) Size() int { return len(g.edges) }

// NodeNames returns all node names in lexical order. Traversals over this
// slice are deterministic across runs.
func (g *Graph[N, E]) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EdgeNames returns all edge names in lexical order.
func (g *Graph[N, E]) EdgeNames() []string {
	names := make([]string, 0, len(g.edges))
	for name := range g.edges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Nodes visits all nodes in lexical name order.
func (g *Graph[N, E]) Nodes(visit func(*Node[N, E]) bool) {
	for _, name := range g.NodeNames() {
		if !visit(g.nodes[name]) {
			return
		}
	}
}

// Edges visits all edges in lexical name order.
func (g *Graph[N, E]) Edges(visit func(*Edge[N, E]) bool) {
	for _, name := range g.EdgeNames() {
		if !visit(g.edges[name]) {
			return
		}
	}
}
