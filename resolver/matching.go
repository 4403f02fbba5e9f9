package resolver

import (
	"fmt"
	"sort"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/sourceset"
)

// nodeAssoc tracks one node binding together with the number of bindings
// (edge endpoints and node steps) that rely on it.
type nodeAssoc struct {
	name  string
	count int
}

// Matching records a partial or complete isomorphism between a pattern and
// the SRG, by object name: forward maps from pattern objects to SRG objects
// and backward maps for the used-check, plus the derived bookkeeping filled
// in by attribute expansion.
type Matching struct {
	edgeForward  map[string]string
	edgeBackward map[string]string
	nodeForward  map[string]nodeAssoc
	nodeBackward map[string]nodeAssoc

	// current step index in the search plan
	step int

	// derived by expansion: union of the input edges' information sources
	Sources sourceset.Set

	// derived by expansion: evaluated attributes of the pattern's outputs
	ExpandedEdgeAttrs map[string]*attribute.Map
	ExpandedNodeAttrs map[string]*attribute.Map

	// references to the attributes of all bound input objects, used by
	// global-context evaluation
	InputAttrs map[string]*attribute.Map
}

// NewMatching creates an empty matching.
func NewMatching() *Matching {
	return &Matching{
		edgeForward:  make(map[string]string),
		edgeBackward: make(map[string]string),
		nodeForward:  make(map[string]nodeAssoc),
		nodeBackward: make(map[string]nodeAssoc),
	}
}

// Clone copies the matching state. The expansion products are not copied;
// they are recomputed per complete match.
func (m *Matching) Clone() *Matching {
	c := &Matching{
		edgeForward:  make(map[string]string, len(m.edgeForward)),
		edgeBackward: make(map[string]string, len(m.edgeBackward)),
		nodeForward:  make(map[string]nodeAssoc, len(m.nodeForward)),
		nodeBackward: make(map[string]nodeAssoc, len(m.nodeBackward)),
		step:         m.step,
	}
	for k, v := range m.edgeForward {
		c.edgeForward[k] = v
	}
	for k, v := range m.edgeBackward {
		c.edgeBackward[k] = v
	}
	for k, v := range m.nodeForward {
		c.nodeForward[k] = v
	}
	for k, v := range m.nodeBackward {
		c.nodeBackward[k] = v
	}
	return c
}

// AddEdge records the matching of a pattern edge to an SRG edge, binding
// both endpoint pairs.
func (m *Matching) AddEdge(patternEdge, srgEdge string, patternSrc, patternDst, srgSrc, srgDst string) {
	m.edgeForward[patternEdge] = srgEdge
	m.edgeBackward[srgEdge] = patternEdge
	m.bindNode(patternSrc, srgSrc)
	m.bindNode(patternDst, srgDst)
}

// AddNode records the matching of a pattern node to an SRG node.
func (m *Matching) AddNode(patternNode, srgNode string) {
	m.bindNode(patternNode, srgNode)
}

func (m *Matching) bindNode(patternNode, srgNode string) {
	f := m.nodeForward[patternNode]
	f.name = srgNode
	f.count++
	m.nodeForward[patternNode] = f

	b := m.nodeBackward[srgNode]
	b.name = patternNode
	b.count++
	m.nodeBackward[srgNode] = b
}

// PatternEdgeMatched reports whether the pattern edge is already bound.
func (m *Matching) PatternEdgeMatched(name string) bool {
	_, ok := m.edgeForward[name]
	return ok
}

// SRGEdgeMatched reports whether the SRG edge is already used.
func (m *Matching) SRGEdgeMatched(name string) bool {
	_, ok := m.edgeBackward[name]
	return ok
}

// PatternNodeMatched reports whether the pattern node is already bound.
func (m *Matching) PatternNodeMatched(name string) bool {
	_, ok := m.nodeForward[name]
	return ok
}

// SRGNodeMatched reports whether the SRG node is already used.
func (m *Matching) SRGNodeMatched(name string) bool {
	_, ok := m.nodeBackward[name]
	return ok
}

// SRGEdgeFor returns the SRG edge bound to a pattern edge.
func (m *Matching) SRGEdgeFor(patternEdge string) (string, error) {
	e, ok := m.edgeForward[patternEdge]
	if !ok {
		return "", fmt.Errorf("%w: pattern edge %s not matched", errors.ErrEdgeNotFound, patternEdge)
	}
	return e, nil
}

// SRGNodeFor returns the SRG node bound to a pattern node.
func (m *Matching) SRGNodeFor(patternNode string) (string, error) {
	n, ok := m.nodeForward[patternNode]
	if !ok {
		return "", fmt.Errorf("%w: pattern node %s not matched", errors.ErrNodeNotFound, patternNode)
	}
	return n.name, nil
}

// NodeCompatible reports whether binding the pattern node to the SRG node is
// consistent with the existing bindings.
func (m *Matching) NodeCompatible(patternNode, srgNode string) bool {
	if f, ok := m.nodeForward[patternNode]; ok && f.name != srgNode {
		return false
	}
	return true
}

// InputEdgeCount returns the number of matched input edges.
func (m *Matching) InputEdgeCount() int {
	return len(m.edgeForward)
}

// EdgePairs visits the (pattern edge, SRG edge) bindings in lexical pattern
// edge order.
func (m *Matching) EdgePairs(visit func(patternEdge, srgEdge string)) {
	for _, pe := range sortedKeys(m.edgeForward) {
		visit(pe, m.edgeForward[pe])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
