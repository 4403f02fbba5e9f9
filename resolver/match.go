package resolver

import (
	"github.com/c360/srgresolver/expr"
	"github.com/c360/srgresolver/srg"
	"github.com/c360/srgresolver/subgraph"
)

// nodeCompatible checks every predicate of a pattern node against the
// attributes of an SRG node in a local context. An evaluation error counts
// as incompatible.
func nodeCompatible(patternNode *subgraph.Node, srgNode *srg.Node) bool {
	ctx := expr.Local(srgNode.Data.Attrs, nil)
	for _, p := range patternNode.Predicates {
		ok, err := p.Test(ctx)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// edgeCompatible checks every predicate of a pattern edge against the
// attributes and information sources of an SRG edge.
func edgeCompatible(patternEdge *subgraph.Edge, srgEdge *srg.Edge) bool {
	ctx := expr.Local(srgEdge.Data.Attrs, srgEdge.Data.Sources)
	for _, p := range patternEdge.Predicates {
		ok, err := p.Test(ctx)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// enumerateMatches runs the backtracking search driven by the pattern's
// plan and returns every complete matching. Enumeration order is
// deterministic over the graph's orderings, so callers iterating the result
// stay reproducible.
func enumerateMatches(p *Pattern, g *srg.Graph) []*Matching {
	var complete []*Matching

	// start with a completely unmatched pattern
	stack := []*Matching{NewMatching()}

	for len(stack) > 0 {
		state := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if state.step == len(p.plan) {
			complete = append(complete, state)
			continue
		}
		step := p.plan[state.step]

		if step.edge != "" {
			patternEdge, err := p.Graph.Edge(step.edge)
			if err != nil {
				continue
			}
			srcMatched := state.PatternNodeMatched(patternEdge.Source.Name)
			dstMatched := state.PatternNodeMatched(patternEdge.Target.Name)

			push := func(srgEdge *srg.Edge) {
				next := state.Clone()
				next.step++
				next.AddEdge(step.edge, srgEdge.Name,
					patternEdge.Source.Name, patternEdge.Target.Name,
					srgEdge.Source.Name, srgEdge.Target.Name)
				stack = append(stack, next)
			}

			switch {
			case srcMatched:
				start, _ := state.SRGNodeFor(patternEdge.Source.Name)
				startNode, err := g.Node(start)
				if err != nil {
					continue
				}
				for _, srgEdge := range startNode.Out {
					if state.SRGEdgeMatched(srgEdge.Name) {
						continue
					}
					if dstMatched {
						if dst, _ := state.SRGNodeFor(patternEdge.Target.Name); dst != srgEdge.Target.Name {
							continue
						}
					}
					if !edgeCompatible(patternEdge.Data, srgEdge) {
						continue
					}
					push(srgEdge)
				}

			case dstMatched:
				end, _ := state.SRGNodeFor(patternEdge.Target.Name)
				endNode, err := g.Node(end)
				if err != nil {
					continue
				}
				for _, srgEdge := range endNode.In {
					if state.SRGEdgeMatched(srgEdge.Name) {
						continue
					}
					if !edgeCompatible(patternEdge.Data, srgEdge) {
						continue
					}
					push(srgEdge)
				}

			default:
				// neither endpoint matched, check all edges with unused endpoints
				g.Edges(func(srgEdge *srg.Edge) bool {
					if state.SRGEdgeMatched(srgEdge.Name) ||
						state.SRGNodeMatched(srgEdge.Source.Name) ||
						state.SRGNodeMatched(srgEdge.Target.Name) {
						return true
					}
					if !edgeCompatible(patternEdge.Data, srgEdge) {
						return true
					}
					push(srgEdge)
					return true
				})
			}
			continue
		}

		// node step
		patternNode, err := p.Graph.Node(step.node)
		if err != nil {
			continue
		}

		if state.PatternNodeMatched(step.node) {
			// already bound, only check the predicates
			bound, _ := state.SRGNodeFor(step.node)
			srgNode, err := g.Node(bound)
			if err != nil || !nodeCompatible(patternNode.Data, srgNode) {
				continue
			}
			next := state.Clone()
			next.step++
			stack = append(stack, next)
			continue
		}

		if step.id != "" {
			// fixed by id lookup, no enumeration
			if !g.HasNode(step.id) {
				continue
			}
			srgNode, err := g.Node(step.id)
			if err != nil || !nodeCompatible(patternNode.Data, srgNode) {
				continue
			}
			next := state.Clone()
			next.step++
			next.AddNode(step.node, step.id)
			stack = append(stack, next)
			continue
		}

		g.Nodes(func(srgNode *srg.Node) bool {
			if state.SRGNodeMatched(srgNode.Name) {
				return true
			}
			if !nodeCompatible(patternNode.Data, srgNode) {
				return true
			}
			next := state.Clone()
			next.step++
			next.AddNode(step.node, srgNode.Name)
			stack = append(stack, next)
			return true
		})
	}

	return complete
}
