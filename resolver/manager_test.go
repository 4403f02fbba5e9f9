package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/expr"
	"github.com/c360/srgresolver/sourceset"
	"github.com/c360/srgresolver/srg"
	"github.com/c360/srgresolver/subgraph"
)

func poseAttrs(latency float64) *attribute.Map {
	return attribute.MapOf("type", "pose", "latency", latency)
}

func TestRegisterSRG(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))

	assert.Equal(t, 2, m.SRG().Order())
	assert.Equal(t, 1, m.SRG().Size())

	edge, err := m.SRG().Edge("A:e1")
	require.NoError(t, err)
	assert.Equal(t, "A", edge.Data.SubgraphID)
	assert.Equal(t, "e1", edge.Data.LocalName)
	assert.Empty(t, edge.Data.PatternName)
	// a base fact is its own information source
	assert.True(t, edge.Data.Sources.Equal(sourceset.New("A:e1")))

	x, err := m.SRG().Node("X")
	require.NoError(t, err)
	assert.Contains(t, x.Data.Spawners, "A")
	assert.Equal(t, "X", x.Data.Attrs.GetString("id"))
}

func TestRegisterSRGMergesNodes(t *testing.T) {
	m := newTestManager(DefaultOptions())
	a := baseSub(t, "A", edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)})
	aNode, err := a.Node("X")
	require.NoError(t, err)
	aNode.Data.Attrs.Set("foo", attribute.Number(1))
	require.NoError(t, m.RegisterSRG(a, "c1"))

	b := baseSub(t, "B", edgeSpec{name: "e2", src: "X", dst: "Z", attrs: poseAttrs(10)})
	bNode, err := b.Node("X")
	require.NoError(t, err)
	bNode.Data.Attrs.Set("bar", attribute.Number(2))
	require.NoError(t, m.RegisterSRG(b, "c2"))

	x, err := m.SRG().Node("X")
	require.NoError(t, err)
	assert.Contains(t, x.Data.Spawners, "A")
	assert.Contains(t, x.Data.Spawners, "B")
	assert.True(t, x.Data.Attrs.Has("foo"))
	assert.True(t, x.Data.Attrs.Has("bar"))

	// the merged attributes mirror back into A's stored subgraph node
	assert.True(t, aNode.Data.Attrs.Has("bar"))
}

func TestRegisterSRGMintsTempIDs(t *testing.T) {
	m := newTestManager(DefaultOptions())
	s := subgraph.New("A", "A")
	n := subgraph.NewNode(subgraph.Output)
	_, err := s.AddNode("anon", n)
	require.NoError(t, err)
	require.NoError(t, m.RegisterSRG(s, "c1"))

	assert.Equal(t, "tmp1000", n.QualifiedName)
	assert.True(t, m.SRG().HasNode("tmp1000"))
}

// E1: a pattern inverts a base relationship and a query picks up the
// derived edge plus the base it depends on.
func TestTrivialDerivation(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))

	m.RegisterPattern(patternSub(t, "Inv",
		patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "out", src: "Y", dst: "X", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose")},
	), "c1")

	assert.Equal(t, 1, fixedPoint(m))

	derived, err := m.SRG().Edge("Inv2000:out")
	require.NoError(t, err)
	assert.Equal(t, "Y", derived.Source.Name)
	assert.Equal(t, "X", derived.Target.Name)
	assert.Equal(t, "Inv", derived.Data.PatternName)
	assert.True(t, derived.Data.Sources.Equal(sourceset.New("A:e1")))

	// the base edge records the new dependant
	base, err := m.SRG().Edge("A:e1")
	require.NoError(t, err)
	assert.Contains(t, base.Data.Dependants, "Inv2000")

	// the instance is registered and references the base edge
	inst, ok := m.Repository("Inv2000")
	require.True(t, ok)
	in, err := inst.Edge("in")
	require.NoError(t, err)
	assert.Equal(t, subgraph.EdgeRef{SubgraphID: "A", EdgeName: "e1"}, in.Data.Ref)

	// query picks up the derived edge and collects the dependency chain; its
	// nodes name the SRG nodes by id, so the base edge X->Y does not match
	query := patternSub(t, "Q",
		patternEdgeSpec{name: "q", src: "Y", dst: "X", tag: subgraph.Input, predicate: "type=='pose'"},
	)
	for _, name := range []string{"X", "Y"} {
		node, err := query.Node(name)
		require.NoError(t, err)
		p, err := expr.ParsePredicate("id=='" + name + "'")
		require.NoError(t, err)
		node.Data.Predicates = []expr.Pred{p}
	}
	m.RegisterQuery(query, "c1")

	responses := m.ProcessQueries()
	require.Len(t, responses, 1)
	require.Len(t, responses["c1"], 1)
	response := responses["c1"][0]
	assert.Equal(t, "Q", response.QueryName)
	require.Len(t, response.Graphs, 3)

	names := make(map[string]bool)
	for _, g := range response.Graphs {
		names[g.Name] = true
	}
	assert.True(t, names["Q"])
	assert.True(t, names["Inv"])
	assert.True(t, names["A"])

	// repeat queries reuse the derived instance id
	firstID := response.Graphs[0].ID
	responses = m.ProcessQueries()
	assert.Equal(t, firstID, responses["c1"][0].Graphs[0].ID)
}

// E2: under disjoint-info-sources no match is applied when two input edges
// share an information source.
func TestDisjointSourcesPrune(t *testing.T) {
	build := func(opts Options) (*Manager, *Pattern) {
		m := newTestManager(opts)
		require.NoError(t, m.RegisterSRG(baseSub(t, "A",
			edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))
		m.RegisterPattern(patternSub(t, "Inv",
			patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
			patternEdgeSpec{name: "out", src: "Y", dst: "X", tag: subgraph.Output,
				attrs: attribute.MapOf("type", "pose")},
		), "c1")
		require.Equal(t, 1, fixedPoint(m))

		combine := NewPattern(patternSub(t, "Combine",
			patternEdgeSpec{name: "i1", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
			patternEdgeSpec{name: "i2", src: "Y", dst: "X", tag: subgraph.Input, predicate: "type=='pose'"},
			patternEdgeSpec{name: "o", src: "X", dst: "X", tag: subgraph.Output,
				attrs: attribute.MapOf("type", "loop")},
		), "c1")
		return m, combine
	}

	// both candidate input edges derive from the same source A:e1
	m, combine := build(DefaultOptions())
	assert.Equal(t, 0, m.ApplyPattern(combine))

	opts := DefaultOptions()
	opts.EdgeRequirement = RequireNone
	m, combine = build(opts)
	// without the requirement the match passes stage 1, but its only output
	// edge is a self loop, which stage 2 skips; nothing is instantiated
	assert.Equal(t, 0, m.ApplyPattern(combine))
}

func TestDisjointSourcesAllowIndependent(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))
	require.NoError(t, m.RegisterSRG(baseSub(t, "B",
		edgeSpec{name: "e2", src: "Y", dst: "Z", attrs: poseAttrs(10)}), "c1"))

	m.RegisterPattern(patternSub(t, "Chain",
		patternEdgeSpec{name: "i1", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "i2", src: "Y", dst: "Z", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "o", src: "X", dst: "Z", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose"),
			rules: map[string]string{"latency": "max(i1.latency,i2.latency)"}},
	), "c1")

	require.Equal(t, 1, fixedPoint(m))

	derived, err := m.SRG().Edge("Chain2000:o")
	require.NoError(t, err)
	assert.True(t, derived.Data.Sources.Equal(sourceset.New("A:e1", "B:e2")))
	// the attribute expression evaluated in global context
	assert.Equal(t, "20", derived.Data.Attrs.GetString("latency"))
}

// E3: a better derivation supersedes the subgraph it dominates, unless the
// new instance depends on it.
func TestSupersession(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "a", src: "X", dst: "Y", attrs: poseAttrs(30)}), "c1"))
	require.NoError(t, m.RegisterSRG(baseSub(t, "C",
		edgeSpec{name: "c", src: "Y", dst: "X", attrs: attribute.MapOf("type", "raw", "latency", 5)}), "c1"))

	m.RegisterPattern(patternSub(t, "Derive",
		patternEdgeSpec{name: "in", src: "Y", dst: "X", tag: subgraph.Input, predicate: "type=='raw'"},
		patternEdgeSpec{name: "out", src: "X", dst: "Y", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose"),
			rules: map[string]string{"latency": "in.latency"}},
	), "c1")

	fixedPoint(m)

	// the dominated base A is gone, the derivation through C remains
	_, ok := m.Repository("A")
	assert.False(t, ok)
	assert.False(t, m.SRG().HasEdge("A:a"))

	derived, err := m.SRG().Edge("Derive2000:out")
	require.NoError(t, err)
	assert.Equal(t, "5", derived.Data.Attrs.GetString("latency"))

	// nodes spawned by both subgraphs survive through C
	assert.True(t, m.SRG().HasNode("X"))
	assert.True(t, m.SRG().HasNode("Y"))
}

func TestNoSupersessionOnDependency(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "a", src: "X", dst: "Y", attrs: poseAttrs(30)}), "c1"))

	improve := NewPattern(patternSub(t, "Improve",
		patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "out", src: "X", dst: "Y", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose"),
			rules: map[string]string{"latency": "in.latency/2"}},
	), "c1")

	assert.Equal(t, 1, m.ApplyPattern(improve))

	// the improved edge exists, but A survives: the new instance depends on it
	_, ok := m.Repository("A")
	assert.True(t, ok)
	assert.True(t, m.SRG().HasEdge("A:a"))
	derived, err := m.SRG().Edge("Improve2000:out")
	require.NoError(t, err)
	assert.Equal(t, "15", derived.Data.Attrs.GetString("latency"))
}

// Novelty: re-deriving an edge with identical qualities and sources is
// redundant and not applied again.
func TestRedundantDerivationRejected(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))

	m.RegisterPattern(patternSub(t, "Inv",
		patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "out", src: "Y", dst: "X", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose")},
	), "c1")

	assert.Equal(t, 1, m.ApplyAllPatterns())
	// the second round finds only the redundant re-derivation
	assert.Equal(t, 0, m.ApplyAllPatterns())
	assert.Equal(t, 2, m.SRG().Size())
}

// E6: with onlyBestEdgeMatch and a best-match expression the query keeps
// only the minimising match.
func TestQueryBestMatch(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "a", src: "X", dst: "Y", attrs: poseAttrs(30)}), "c1"))
	require.NoError(t, m.RegisterSRG(baseSub(t, "B",
		edgeSpec{name: "b", src: "X", dst: "Y", attrs: poseAttrs(10)}), "c1"))

	q := patternSub(t, "Q",
		patternEdgeSpec{name: "q", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"})
	q.OnlyBestEdgeMatch = true
	best, err := expr.ParseExpression("q.latency")
	require.NoError(t, err)
	q.BestMatchExpr = best
	m.RegisterQuery(q, "c1")

	responses := m.ProcessQueries()
	require.Len(t, responses["c1"], 1)
	graphs := responses["c1"][0].Graphs
	require.Len(t, graphs, 2)

	names := make(map[string]bool)
	for _, g := range graphs {
		names[g.Name] = true
	}
	assert.True(t, names["B"], "lower latency match must win")
	assert.False(t, names["A"])
}

func TestQueryBestMatchDefaultSelection(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "a", src: "X", dst: "Y", attrs: poseAttrs(30)}), "c1"))
	require.NoError(t, m.RegisterSRG(baseSub(t, "B",
		edgeSpec{name: "b", src: "X", dst: "Y", attrs: poseAttrs(10)}), "c1"))

	q := patternSub(t, "Q",
		patternEdgeSpec{name: "q", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"})
	q.OnlyBestEdgeMatch = true
	m.RegisterQuery(q, "c1")

	// equal source counts: the first match in enumeration order wins; the
	// matcher's stack completes B:b before A:a
	responses := m.ProcessQueries()
	graphs := responses["c1"][0].Graphs
	require.Len(t, graphs, 2)
	assert.Equal(t, "B", graphs[1].Name)
}

// P4: after deleteSRG no edge of the subgraph remains, no edge lists it as
// dependant and every transitive dependant is removed too.
func TestDeleteSRGCascade(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))

	m.RegisterPattern(patternSub(t, "Inv",
		patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "out", src: "Y", dst: "X", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose")},
	), "c1")
	require.Equal(t, 1, fixedPoint(m))

	require.NoError(t, m.DeleteSRG("A"))

	assert.Equal(t, 0, m.SRG().Size())
	assert.Equal(t, 0, m.SRG().Order())
	_, ok := m.Repository("A")
	assert.False(t, ok)
	_, ok = m.Repository("Inv2000")
	assert.False(t, ok)
}

func TestDeletePattern(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))

	m.RegisterPattern(patternSub(t, "Inv",
		patternEdgeSpec{name: "in", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "out", src: "Y", dst: "X", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose")},
	), "c1")
	require.Equal(t, 1, fixedPoint(m))

	require.NoError(t, m.DeletePattern("Inv", "c1"))

	// all instances of the pattern are gone, the base remains
	assert.False(t, m.SRG().HasEdge("Inv2000:out"))
	assert.True(t, m.SRG().HasEdge("A:e1"))

	// the base edge no longer lists the instance
	base, err := m.SRG().Edge("A:e1")
	require.NoError(t, err)
	assert.Empty(t, base.Data.Dependants)

	// the pattern is no longer applied
	assert.Equal(t, 0, fixedPoint(m))
}

func TestDeleteQuery(t *testing.T) {
	m := newTestManager(DefaultOptions())
	m.RegisterQuery(patternSub(t, "Q",
		patternEdgeSpec{name: "q", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"}), "c1")

	require.NoError(t, m.DeleteQuery("Q", "c1"))
	// deleting an unknown query is an error
	assert.Error(t, m.DeleteQuery("Q", "c1"))
	assert.Error(t, m.DeleteQuery("other", "c1"))
}

// P2/P3: info-source and dependants closure over a derived SRG.
func TestProvenanceClosure(t *testing.T) {
	m := newTestManager(DefaultOptions())
	require.NoError(t, m.RegisterSRG(baseSub(t, "A",
		edgeSpec{name: "e1", src: "X", dst: "Y", attrs: poseAttrs(20)}), "c1"))
	require.NoError(t, m.RegisterSRG(baseSub(t, "B",
		edgeSpec{name: "e2", src: "Y", dst: "Z", attrs: poseAttrs(10)}), "c1"))
	m.RegisterPattern(patternSub(t, "Chain",
		patternEdgeSpec{name: "i1", src: "X", dst: "Y", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "i2", src: "Y", dst: "Z", tag: subgraph.Input, predicate: "type=='pose'"},
		patternEdgeSpec{name: "o", src: "X", dst: "Z", tag: subgraph.Output,
			attrs: attribute.MapOf("type", "pose")},
	), "c1")
	fixedPoint(m)

	m.SRG().Edges(func(e *srg.Edge) bool {
		owner, ok := m.Repository(e.Data.SubgraphID)
		require.True(t, ok, "edge %s owner missing", e.Name)

		// the owning subgraph has a matching output edge
		outEdge, err := owner.Edge(e.Data.LocalName)
		require.NoError(t, err)
		assert.True(t, outEdge.Data.IsOutput())

		// info sources are the union over the owner's input edges, or the
		// edge's own name for base facts
		want := sourceset.New()
		inputs := 0
		owner.InputEdges(func(in *subgraph.GraphEdge) bool {
			inputs++
			ref, err := m.SRG().Edge(srg.EdgeName(in.Data.Ref.SubgraphID, in.Data.Ref.EdgeName))
			require.NoError(t, err)
			want.Union(ref.Data.Sources)
			return true
		})
		if inputs == 0 {
			want = sourceset.New(e.Name)
		}
		assert.True(t, e.Data.Sources.Equal(want), "sources of %s", e.Name)

		// every dependant has an input edge referencing this edge
		for dep := range e.Data.Dependants {
			depGraph, ok := m.Repository(dep)
			require.True(t, ok)
			found := false
			depGraph.InputEdges(func(in *subgraph.GraphEdge) bool {
				if in.Data.Ref.SubgraphID == e.Data.SubgraphID && in.Data.Ref.EdgeName == e.Data.LocalName {
					found = true
					return false
				}
				return true
			})
			assert.True(t, found, "dependant %s of %s", dep, e.Name)
		}
		return true
	})
}
