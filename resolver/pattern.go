package resolver

import (
	"github.com/c360/srgresolver/subgraph"
)

// planStep is one element of a pattern's search plan: either an edge match
// or a node match, optionally fixed to a known SRG id.
type planStep struct {
	node string // pattern node name, empty for edge steps
	edge string // pattern edge name, empty for node steps
	id   string // for node steps: SRG id fixed by an id equality predicate
}

// Pattern is a compiled pattern: the subgraph plus an ordered search plan.
// The plan is arranged so that every step after the first shares at least
// one already-matched endpoint with the growing match. Only input objects
// are planned; output objects describe what the pattern produces.
type Pattern struct {
	Name     string
	ClientID string
	Graph    *subgraph.Subgraph

	plan []planStep
}

// NewPattern compiles a pattern into its search plan.
func NewPattern(g *subgraph.Subgraph, clientID string) *Pattern {
	p := &Pattern{Name: g.Name, ClientID: clientID, Graph: g}
	if g.Order() == 0 {
		return p
	}
	p.compile()
	return p
}

func (p *Pattern) compile() {
	g := p.Graph
	var nodeStack []*subgraph.GraphNode
	matchedNodes := make(map[string]bool)
	matchedEdges := make(map[string]bool)

	push := func(n *subgraph.GraphNode) {
		nodeStack = append(nodeStack, n)
	}

	// seed rule 1: an input node whose predicates fix the SRG id. The
	// predicate list holds one independently-ANDed tree per clause, so the
	// id equality may sit in any element.
	var firstPredicateNode *subgraph.GraphNode
	g.Nodes(func(n *subgraph.GraphNode) bool {
		if !n.Data.IsInput() || len(n.Data.Predicates) == 0 {
			return true
		}
	predicates:
		for _, pred := range n.Data.Predicates {
			for _, eq := range pred.Equalities() {
				if eq.Attribute == "id" {
					p.plan = append(p.plan, planStep{node: n.Name, id: eq.Value})
					matchedNodes[n.Name] = true
					push(n)
					break predicates
				}
			}
		}
		if firstPredicateNode == nil {
			firstPredicateNode = n
		}
		return true
	})

	if len(nodeStack) == 0 {
		if firstPredicateNode != nil {
			// seed rule 2: prefer nodes with any predicate
			p.plan = append(p.plan, planStep{node: firstPredicateNode.Name})
			matchedNodes[firstPredicateNode.Name] = true
			push(firstPredicateNode)
		} else {
			// seed rule 3: start with the first input edge
			g.Edges(func(e *subgraph.GraphEdge) bool {
				if !e.Data.IsInput() {
					return true
				}
				p.plan = append(p.plan, planStep{edge: e.Name})
				matchedEdges[e.Name] = true
				matchedNodes[e.Source.Name] = true
				push(e.Source)
				matchedNodes[e.Target.Name] = true
				push(e.Target)
				return false
			})
		}
	}

	// graph search to find all input edges in a connecting order
	for {
		for len(nodeStack) > 0 {
			n := nodeStack[len(nodeStack)-1]
			nodeStack = nodeStack[:len(nodeStack)-1]

			follow := func(e *subgraph.GraphEdge, other *subgraph.GraphNode) {
				if !e.Data.IsInput() || matchedEdges[e.Name] {
					return
				}
				p.plan = append(p.plan, planStep{edge: e.Name})
				matchedEdges[e.Name] = true
				if !matchedNodes[other.Name] {
					if len(other.Data.Predicates) > 0 {
						// only nodes that need an attribute check become steps
						p.plan = append(p.plan, planStep{node: other.Name})
					}
					matchedNodes[other.Name] = true
					push(other)
				}
			}
			for _, e := range n.Out {
				follow(e, e.Target)
			}
			for _, e := range n.In {
				follow(e, e.Source)
			}
		}

		// new seed for a disconnected component, preferring predicate nodes
		var seed *subgraph.GraphNode
		g.Nodes(func(n *subgraph.GraphNode) bool {
			if !n.Data.IsInput() || matchedNodes[n.Name] {
				return true
			}
			if len(n.Data.Predicates) > 0 {
				seed = n
				return false
			}
			if seed == nil {
				seed = n
			}
			return true
		})
		if seed == nil {
			return
		}
		p.plan = append(p.plan, planStep{node: seed.Name})
		matchedNodes[seed.Name] = true
		push(seed)
	}
}
