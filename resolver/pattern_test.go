package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/srgresolver/expr"
	"github.com/c360/srgresolver/subgraph"
)

func addInputNode(t *testing.T, s *subgraph.Subgraph, name, predicate string) {
	t.Helper()
	n := subgraph.NewNode(subgraph.Input)
	if predicate != "" {
		p, err := expr.ParsePredicate(predicate)
		require.NoError(t, err)
		n.Predicates = []expr.Pred{p}
	}
	_, err := s.AddNode(name, n)
	require.NoError(t, err)
}

func addInputEdge(t *testing.T, s *subgraph.Subgraph, name, src, dst string) {
	t.Helper()
	_, err := s.AddEdge(name, src, dst, subgraph.NewEdge(subgraph.Input))
	require.NoError(t, err)
}

func TestSearchPlanIDSeed(t *testing.T) {
	s := subgraph.New("", "P")
	addInputNode(t, s, "A", "id=='world'")
	addInputNode(t, s, "B", "")
	addInputEdge(t, s, "e", "A", "B")

	p := NewPattern(s, "c1")
	require.NotEmpty(t, p.plan)

	// the id node seeds the plan with a fixed lookup
	first := p.plan[0]
	assert.Equal(t, "A", first.node)
	assert.Equal(t, "world", first.id)

	// the edge follows, B is implied by the edge and not planned
	require.Len(t, p.plan, 2)
	assert.Equal(t, "e", p.plan[1].edge)
}

func TestSearchPlanIDSeedLaterClause(t *testing.T) {
	// the id equality sits in the second predicate-list entry, as produced
	// by a wire form with two predicate clauses
	s := subgraph.New("", "P")
	n := subgraph.NewNode(subgraph.Input)
	for _, text := range []string{"type=='pose'", "id=='world'"} {
		p, err := expr.ParsePredicate(text)
		require.NoError(t, err)
		n.Predicates = append(n.Predicates, p)
	}
	_, err := s.AddNode("A", n)
	require.NoError(t, err)
	addInputNode(t, s, "B", "")
	addInputEdge(t, s, "e", "A", "B")

	p := NewPattern(s, "c1")
	require.NotEmpty(t, p.plan)
	assert.Equal(t, "A", p.plan[0].node)
	assert.Equal(t, "world", p.plan[0].id)
	require.Len(t, p.plan, 2)
	assert.Equal(t, "e", p.plan[1].edge)
}

func TestSearchPlanPredicateSeed(t *testing.T) {
	s := subgraph.New("", "P")
	addInputNode(t, s, "A", "")
	addInputNode(t, s, "B", "mode=='fixed'")
	addInputEdge(t, s, "e", "A", "B")

	p := NewPattern(s, "c1")
	require.NotEmpty(t, p.plan)
	assert.Equal(t, "B", p.plan[0].node)
	assert.Empty(t, p.plan[0].id)
	require.Len(t, p.plan, 2)
	assert.Equal(t, "e", p.plan[1].edge)
}

func TestSearchPlanEdgeSeed(t *testing.T) {
	s := subgraph.New("", "P")
	addInputNode(t, s, "A", "")
	addInputNode(t, s, "B", "")
	addInputNode(t, s, "C", "")
	addInputEdge(t, s, "ab", "A", "B")
	addInputEdge(t, s, "bc", "B", "C")

	p := NewPattern(s, "c1")
	// no predicates anywhere: plan is edges only, connectivity preserving
	require.Len(t, p.plan, 2)
	assert.Equal(t, "ab", p.plan[0].edge)
	assert.Equal(t, "bc", p.plan[1].edge)
}

func TestSearchPlanConnectivity(t *testing.T) {
	// star around M plus a disconnected extra node
	s := subgraph.New("", "P")
	addInputNode(t, s, "M", "")
	addInputNode(t, s, "A", "")
	addInputNode(t, s, "B", "")
	addInputNode(t, s, "C", "")
	addInputNode(t, s, "Lone", "kind=='beacon'")
	addInputEdge(t, s, "ma", "M", "A")
	addInputEdge(t, s, "bm", "B", "M")
	addInputEdge(t, s, "mc", "M", "C")

	p := NewPattern(s, "c1")

	// every edge appears exactly once and each edge step after the first
	// shares an endpoint with the already-planned part
	seen := map[string]bool{}
	planned := map[string]bool{}
	edges := 0
	for i, step := range p.plan {
		if step.edge != "" {
			edges++
			assert.False(t, seen[step.edge], "edge %s planned twice", step.edge)
			seen[step.edge] = true
			e, err := s.Edge(step.edge)
			require.NoError(t, err)
			if i > 0 && len(planned) > 0 {
				assert.True(t, planned[e.Source.Name] || planned[e.Target.Name],
					"edge %s does not touch the planned component", step.edge)
			}
			planned[e.Source.Name] = true
			planned[e.Target.Name] = true
		} else {
			planned[step.node] = true
		}
	}
	assert.Equal(t, 3, edges)

	// the disconnected node is planned too: as the only node with
	// predicates it seeds the plan
	foundLone := false
	for _, step := range p.plan {
		if step.node == "Lone" {
			foundLone = true
		}
	}
	assert.True(t, foundLone)
}

func TestSearchPlanIgnoresOutputs(t *testing.T) {
	s := patternSub(t, "P",
		patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "out", src: "Y", dst: "X", tag: subgraph.Output})

	p := NewPattern(s, "c1")
	for _, step := range p.plan {
		assert.NotEqual(t, "out", step.edge)
	}
}
