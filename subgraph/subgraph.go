// Package subgraph implements the pattern/query/base subgraph data model: a
// directed graph whose nodes and edges are partitioned into an input and an
// output section and may carry predicates and attribute-expression rules.
package subgraph

import (
	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/expr"
	"github.com/c360/srgresolver/graph"
)

// Tag marks a node or edge as belonging to the input or output section.
type Tag int

// The two sections of a subgraph.
const (
	Input Tag = iota
	Output
)

// Rule binds an attribute name to the expression producing its value on
// instantiation.
type Rule struct {
	Name string
	Expr expr.Expr
}

// EdgeRef identifies an SRG edge by its owning subgraph and the edge's local
// name within that subgraph.
type EdgeRef struct {
	SubgraphID string
	EdgeName   string
}

// IsZero reports whether the reference is unset.
func (r EdgeRef) IsZero() bool {
	return r.SubgraphID == "" || r.EdgeName == ""
}

// Node is the payload of a subgraph node. Output nodes may carry a qualified
// name, the globally unique id binding them to the SRG.
type Node struct {
	Tag           Tag
	Attrs         *attribute.Map
	Predicates    []expr.Pred
	Expressions   []Rule
	QualifiedName string
}

// NewNode creates a node payload with an empty attribute set.
func NewNode(tag Tag) *Node {
	return &Node{Tag: tag, Attrs: attribute.NewMap()}
}

// IsInput reports whether the node belongs to the input section.
func (n *Node) IsInput() bool { return n.Tag == Input }

// IsOutput reports whether the node belongs to the output section.
func (n *Node) IsOutput() bool { return n.Tag == Output }

// Edge is the payload of a subgraph edge. Input edges of instantiated
// subgraphs carry a reference to the SRG edge they were matched to.
type Edge struct {
	Tag         Tag
	Attrs       *attribute.Map
	Predicates  []expr.Pred
	Expressions []Rule
	Ref         EdgeRef
}

// NewEdge creates an edge payload with an empty attribute set.
func NewEdge(tag Tag) *Edge {
	return &Edge{Tag: tag, Attrs: attribute.NewMap()}
}

// IsInput reports whether the edge belongs to the input section.
func (e *Edge) IsInput() bool { return e.Tag == Input }

// IsOutput reports whether the edge belongs to the output section.
func (e *Edge) IsOutput() bool { return e.Tag == Output }

// GraphNode and GraphEdge are the concrete graph object types of a subgraph.
type (
	GraphNode = graph.Node[*Node, *Edge]
	GraphEdge = graph.Edge[*Node, *Edge]
)

// Subgraph is a directed graph with input/output sections plus the pattern
// metadata: name, id, the opaque dataflow configuration, an optional
// best-match expression and the only-best-edge-match flag.
type Subgraph struct {
	*graph.Graph[*Node, *Edge]

	ID   string
	Name string

	// accept only the single best of all matches of this query?
	OnlyBestEdgeMatch bool

	// expression that is to be minimized over all matches
	BestMatchExpr expr.Expr

	// dataflow configuration, passed through verbatim
	DataflowConfiguration attribute.Value
	DataflowAttributes    *attribute.Map
	DataflowClass         string
}

// New creates an empty subgraph.
func New(id, name string) *Subgraph {
	return &Subgraph{
		Graph:              graph.New[*Node, *Edge](),
		ID:                 id,
		Name:               name,
		DataflowAttributes: attribute.NewMap(),
	}
}

// InputEdges visits all input edges in lexical name order.
func (s *Subgraph) InputEdges(visit func(*GraphEdge) bool) {
	s.Edges(func(e *GraphEdge) bool {
		if e.Data.IsInput() {
			return visit(e)
		}
		return true
	})
}

// OutputEdges visits all output edges in lexical name order.
func (s *Subgraph) OutputEdges(visit func(*GraphEdge) bool) {
	s.Edges(func(e *GraphEdge) bool {
		if e.Data.IsOutput() {
			return visit(e)
		}
		return true
	})
}

// CountOutputEdges returns the number of edges in the output section.
func (s *Subgraph) CountOutputEdges() int {
	n := 0
	s.OutputEdges(func(*GraphEdge) bool { n++; return true })
	return n
}

// HasInput reports whether any node or edge belongs to the input section.
func (s *Subgraph) HasInput() bool { return s.hasTag(Input) }

// HasOutput reports whether any node or edge belongs to the output section.
func (s *Subgraph) HasOutput() bool { return s.hasTag(Output) }

func (s *Subgraph) hasTag(tag Tag) bool {
	found := false
	s.Nodes(func(n *GraphNode) bool {
		if n.Data.Tag == tag {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}
	s.Edges(func(e *GraphEdge) bool {
		if e.Data.Tag == tag {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsEmpty reports whether the subgraph carries no nodes and no edges. Empty
// subgraphs serve as deletion markers in outbound documents.
func (s *Subgraph) IsEmpty() bool {
	return s.Order() == 0 && s.Size() == 0
}

// Clone returns a deep copy of the subgraph structure and attributes.
// Predicate and expression trees are shared; they are immutable after
// construction.
func (s *Subgraph) Clone() *Subgraph {
	c := New(s.ID, s.Name)
	c.OnlyBestEdgeMatch = s.OnlyBestEdgeMatch
	c.BestMatchExpr = s.BestMatchExpr
	c.DataflowConfiguration = s.DataflowConfiguration
	c.DataflowAttributes = s.DataflowAttributes.Clone()
	c.DataflowClass = s.DataflowClass

	s.Nodes(func(n *GraphNode) bool {
		node := &Node{
			Tag:           n.Data.Tag,
			Attrs:         n.Data.Attrs.Clone(),
			Predicates:    n.Data.Predicates,
			Expressions:   n.Data.Expressions,
			QualifiedName: n.Data.QualifiedName,
		}
		_, _ = c.AddNode(n.Name, node)
		return true
	})
	s.Edges(func(e *GraphEdge) bool {
		edge := &Edge{
			Tag:         e.Data.Tag,
			Attrs:       e.Data.Attrs.Clone(),
			Predicates:  e.Data.Predicates,
			Expressions: e.Data.Expressions,
			Ref:         e.Data.Ref,
		}
		_, _ = c.AddEdge(e.Name, e.Source.Name, e.Target.Name, edge)
		return true
	})
	return c
}
