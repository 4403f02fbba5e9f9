package resolver

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/expr"
	"github.com/c360/srgresolver/subgraph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(opts Options) *Manager {
	return NewManager(opts, testLogger(), nil)
}

type edgeSpec struct {
	name, src, dst string
	attrs          *attribute.Map
}

// baseSub builds a base subgraph: all nodes and edges in the output section,
// node qualified names equal to the node names.
func baseSub(t *testing.T, id string, edges ...edgeSpec) *subgraph.Subgraph {
	t.Helper()
	s := subgraph.New(id, id)
	for _, e := range edges {
		for _, nodeName := range []string{e.src, e.dst} {
			if s.HasNode(nodeName) {
				continue
			}
			n := subgraph.NewNode(subgraph.Output)
			n.QualifiedName = nodeName
			_, err := s.AddNode(nodeName, n)
			require.NoError(t, err)
		}
		edge := subgraph.NewEdge(subgraph.Output)
		if e.attrs != nil {
			edge.Attrs = e.attrs.Clone()
		}
		_, err := s.AddEdge(e.name, e.src, e.dst, edge)
		require.NoError(t, err)
	}
	return s
}

type patternEdgeSpec struct {
	name, src, dst string
	tag            subgraph.Tag
	predicate      string
	attrs          *attribute.Map
	rules          map[string]string
}

// patternSub builds a pattern or query subgraph. All referenced nodes are
// created in the input section.
func patternSub(t *testing.T, name string, edges ...patternEdgeSpec) *subgraph.Subgraph {
	t.Helper()
	s := subgraph.New("", name)
	for _, e := range edges {
		for _, nodeName := range []string{e.src, e.dst} {
			if s.HasNode(nodeName) {
				continue
			}
			_, err := s.AddNode(nodeName, subgraph.NewNode(subgraph.Input))
			require.NoError(t, err)
		}
		edge := subgraph.NewEdge(e.tag)
		if e.attrs != nil {
			edge.Attrs = e.attrs.Clone()
		}
		if e.predicate != "" {
			p, err := expr.ParsePredicate(e.predicate)
			require.NoError(t, err)
			edge.Predicates = []expr.Pred{p}
		}
		for attrName, ruleText := range e.rules {
			rule, err := expr.ParseExpression(ruleText)
			require.NoError(t, err)
			edge.Expressions = append(edge.Expressions, subgraph.Rule{Name: attrName, Expr: rule})
		}
		_, err := s.AddEdge(e.name, e.src, e.dst, edge)
		require.NoError(t, err)
	}
	return s
}

// fixedPoint applies all patterns until nothing new is instantiated.
func fixedPoint(m *Manager) int {
	total := 0
	for i := 0; i < 10; i++ {
		n := m.ApplyAllPatterns()
		total += n
		if n == 0 {
			break
		}
	}
	return total
}
