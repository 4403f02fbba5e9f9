// Package srg implements the spatial-relationship graph: the global graph of
// currently-known relationships among spatial entities. Nodes and edges
// carry provenance — which subgraphs spawned them, which sensors their data
// flowed from and which subgraphs consume them as inputs.
package srg

import (
	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/graph"
	"github.com/c360/srgresolver/sourceset"
)

// NodeRef identifies a node of a repository subgraph. Back-references from
// SRG nodes use these instead of pointers into other subgraphs; attribute
// merges are mirrored through the repository.
type NodeRef struct {
	SubgraphID string
	NodeName   string
}

// NodeData is the payload of an SRG node. The node's name is its global id.
type NodeData struct {
	Attrs *attribute.Map

	// ids of the SRG registrations which spawned or merged into this node;
	// applied patterns bind existing nodes and are not recorded here
	Spawners map[string]struct{}

	// the registration nodes bound to this one; their attributes mirror any
	// merged change. Nodes of applied-pattern instances are not recorded.
	BackRefs map[NodeRef]struct{}
}

// EdgeData is the payload of an SRG edge.
type EdgeData struct {
	Attrs *attribute.Map

	// the single subgraph which spawns this edge
	SubgraphID string

	// the original name of the edge within its subgraph; local names are
	// not globally unique
	LocalName string

	// name of the spawning pattern, empty for base facts
	PatternName string

	// information sources whose data flowed into this edge
	Sources sourceset.Set

	// ids of all subgraphs which use this edge as an input and need to be
	// deleted should this edge go away
	Dependants map[string]struct{}
}

// Node and Edge are the concrete graph object types of the SRG.
type (
	Node = graph.Node[*NodeData, *EdgeData]
	Edge = graph.Edge[*NodeData, *EdgeData]
)

// Graph is the spatial-relationship graph.
type Graph struct {
	*graph.Graph[*NodeData, *EdgeData]
}

// New creates an empty SRG.
func New() *Graph {
	return &Graph{Graph: graph.New[*NodeData, *EdgeData]()}
}

// EdgeName builds the global name of an SRG edge from the owning subgraph id
// and the edge's local name.
func EdgeName(subgraphID, localName string) string {
	return subgraphID + ":" + localName
}

// AddNode registers a node under its global id, spawned by the given
// subgraph.
func (g *Graph) AddNode(id string, attrs *attribute.Map, subgraphID string, ref NodeRef) (*Node, error) {
	data := &NodeData{
		Attrs:    attrs.Clone(),
		Spawners: map[string]struct{}{},
		BackRefs: map[NodeRef]struct{}{ref: {}},
	}
	if subgraphID != "" {
		data.Spawners[subgraphID] = struct{}{}
	}
	return g.Graph.AddNode(id, data)
}

// MergeNode joins a further spawning subgraph into an existing node: the new
// attributes overwrite on conflict, the subgraph id joins the spawner set
// and the node reference joins the back-references. The caller mirrors the
// merged attribute set into all previously back-referenced subgraph nodes.
func (g *Graph) MergeNode(n *Node, attrs *attribute.Map, subgraphID string, ref NodeRef) {
	n.Data.Spawners[subgraphID] = struct{}{}
	n.Data.Attrs.Merge(attrs)
	n.Data.BackRefs[ref] = struct{}{}
}

// AddEdge inserts an edge spawned by a subgraph, named by the
// subgraphID:localName convention.
func (g *Graph) AddEdge(source, target *Node, attrs *attribute.Map, subgraphID, localName string) (*Edge, error) {
	data := &EdgeData{
		Attrs:      attrs.Clone(),
		SubgraphID: subgraphID,
		LocalName:  localName,
		Sources:    sourceset.New(),
		Dependants: map[string]struct{}{},
	}
	return g.Graph.AddEdge(EdgeName(subgraphID, localName), source.Name, target.Name, data)
}
