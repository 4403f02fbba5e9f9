package subgraph

import (
	"encoding/json"
	"fmt"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/expr"
)

// Document is a list of subgraphs exchanged with one client. This JSON form
// is the reference encoding; the resolver itself is neutral to syntax.
type Document struct {
	Subgraphs []*Subgraph
}

// AttrDoc is one serialized attribute. Exactly one of Value and Tree is set;
// Tree carries a nested configuration verbatim.
type AttrDoc struct {
	Name  string          `json:"name"`
	Value string          `json:"value,omitempty"`
	Tree  json.RawMessage `json:"tree,omitempty"`
}

// RuleDoc is one serialized attribute-expression rule.
type RuleDoc struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// NodeDoc is the wire form of a subgraph node.
type NodeDoc struct {
	Name          string    `json:"name"`
	Section       string    `json:"section"`
	QualifiedName string    `json:"qualified_name,omitempty"`
	Attributes    []AttrDoc `json:"attributes,omitempty"`
	Predicates    []string  `json:"predicates,omitempty"`
	Expressions   []RuleDoc `json:"expressions,omitempty"`
}

// EdgeRefDoc is the wire form of an edge reference.
type EdgeRefDoc struct {
	SubgraphID string `json:"subgraph_id"`
	EdgeName   string `json:"edge_name"`
}

// EdgeDoc is the wire form of a subgraph edge.
type EdgeDoc struct {
	Name        string      `json:"name"`
	Source      string      `json:"source"`
	Target      string      `json:"target"`
	Section     string      `json:"section"`
	Attributes  []AttrDoc   `json:"attributes,omitempty"`
	Predicates  []string    `json:"predicates,omitempty"`
	Expressions []RuleDoc   `json:"expressions,omitempty"`
	Ref         *EdgeRefDoc `json:"ref,omitempty"`
}

// SubgraphDoc is the wire form of a subgraph.
type SubgraphDoc struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name,omitempty"`
	OnlyBestEdgeMatch     bool            `json:"only_best_edge_match,omitempty"`
	BestMatchExpression   string          `json:"best_match_expression,omitempty"`
	Nodes                 []NodeDoc       `json:"nodes,omitempty"`
	Edges                 []EdgeDoc       `json:"edges,omitempty"`
	DataflowConfiguration json.RawMessage `json:"dataflow_configuration,omitempty"`
	DataflowAttributes    []AttrDoc       `json:"dataflow_attributes,omitempty"`
	DataflowClass         string          `json:"dataflow_class,omitempty"`
}

// DocumentDoc is the wire form of a per-client document.
type DocumentDoc struct {
	Subgraphs []SubgraphDoc `json:"subgraphs"`
}

// MarshalDocument encodes a document. Subgraph order is preserved; inside a
// subgraph nodes and edges serialize in lexical name order and attributes in
// insertion order, so two resolvers in the same state emit byte-identical
// documents.
func MarshalDocument(doc *Document) ([]byte, error) {
	out := DocumentDoc{Subgraphs: make([]SubgraphDoc, 0, len(doc.Subgraphs))}
	for _, s := range doc.Subgraphs {
		sd, err := encodeSubgraph(s)
		if err != nil {
			return nil, err
		}
		out.Subgraphs = append(out.Subgraphs, sd)
	}
	return json.Marshal(out)
}

// UnmarshalDocument decodes a document.
func UnmarshalDocument(data []byte) (*Document, error) {
	var in DocumentDoc
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.WrapInvalid(err, "subgraph", "UnmarshalDocument", "decode")
	}
	doc := &Document{}
	for i := range in.Subgraphs {
		s, err := DecodeSubgraph(&in.Subgraphs[i])
		if err != nil {
			return nil, err
		}
		doc.Subgraphs = append(doc.Subgraphs, s)
	}
	return doc, nil
}

// Marshal encodes a single subgraph.
func Marshal(s *Subgraph) ([]byte, error) {
	sd, err := encodeSubgraph(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sd)
}

// Unmarshal decodes a single subgraph.
func Unmarshal(data []byte) (*Subgraph, error) {
	var sd SubgraphDoc
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, errors.WrapInvalid(err, "subgraph", "Unmarshal", "decode")
	}
	return DecodeSubgraph(&sd)
}

func sectionName(t Tag) string {
	if t == Input {
		return "input"
	}
	return "output"
}

func parseSection(s string) (Tag, error) {
	switch s {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	}
	return 0, fmt.Errorf("%w: bad section %q", errors.ErrSyntax, s)
}

func encodeAttrs(m *attribute.Map) []AttrDoc {
	var out []AttrDoc
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		if tree := v.TreeValue(); tree != nil {
			raw, _ := tree.(json.RawMessage)
			out = append(out, AttrDoc{Name: key, Tree: raw})
			continue
		}
		out = append(out, AttrDoc{Name: key, Value: v.String()})
	}
	return out
}

func decodeAttrs(docs []AttrDoc) *attribute.Map {
	m := attribute.NewMap()
	for _, d := range docs {
		if len(d.Tree) > 0 {
			m.Set(d.Name, attribute.Tree(json.RawMessage(d.Tree)))
			continue
		}
		m.Set(d.Name, attribute.Text(d.Value))
	}
	return m
}

func encodeRules(rules []Rule) ([]RuleDoc, error) {
	var out []RuleDoc
	for _, r := range rules {
		text, err := expr.FormatExpression(r.Expr)
		if err != nil {
			return nil, err
		}
		out = append(out, RuleDoc{Name: r.Name, Expression: text})
	}
	return out, nil
}

func decodeRules(docs []RuleDoc) ([]Rule, error) {
	var out []Rule
	for _, d := range docs {
		e, err := expr.ParseExpression(d.Expression)
		if err != nil {
			return nil, err
		}
		out = append(out, Rule{Name: d.Name, Expr: e})
	}
	return out, nil
}

func encodePredicates(preds []expr.Pred) ([]string, error) {
	var out []string
	for _, p := range preds {
		text, err := expr.FormatPredicate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

func decodePredicates(texts []string) ([]expr.Pred, error) {
	var out []expr.Pred
	for _, t := range texts {
		p, err := expr.ParsePredicate(t)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func encodeSubgraph(s *Subgraph) (SubgraphDoc, error) {
	sd := SubgraphDoc{
		ID:                s.ID,
		Name:              s.Name,
		OnlyBestEdgeMatch: s.OnlyBestEdgeMatch,
		DataflowClass:     s.DataflowClass,
	}
	if s.BestMatchExpr != nil {
		text, err := expr.FormatExpression(s.BestMatchExpr)
		if err != nil {
			return SubgraphDoc{}, err
		}
		sd.BestMatchExpression = text
	}
	if tree := s.DataflowConfiguration.TreeValue(); tree != nil {
		if raw, ok := tree.(json.RawMessage); ok {
			sd.DataflowConfiguration = raw
		}
	} else if t := s.DataflowConfiguration.String(); t != "" {
		raw, err := json.Marshal(t)
		if err != nil {
			return SubgraphDoc{}, err
		}
		sd.DataflowConfiguration = raw
	}
	sd.DataflowAttributes = encodeAttrs(s.DataflowAttributes)

	var encodeErr error
	s.Nodes(func(n *GraphNode) bool {
		preds, err := encodePredicates(n.Data.Predicates)
		if err != nil {
			encodeErr = err
			return false
		}
		rules, err := encodeRules(n.Data.Expressions)
		if err != nil {
			encodeErr = err
			return false
		}
		sd.Nodes = append(sd.Nodes, NodeDoc{
			Name:          n.Name,
			Section:       sectionName(n.Data.Tag),
			QualifiedName: n.Data.QualifiedName,
			Attributes:    encodeAttrs(n.Data.Attrs),
			Predicates:    preds,
			Expressions:   rules,
		})
		return true
	})
	if encodeErr != nil {
		return SubgraphDoc{}, encodeErr
	}
	s.Edges(func(e *GraphEdge) bool {
		preds, err := encodePredicates(e.Data.Predicates)
		if err != nil {
			encodeErr = err
			return false
		}
		rules, err := encodeRules(e.Data.Expressions)
		if err != nil {
			encodeErr = err
			return false
		}
		ed := EdgeDoc{
			Name:        e.Name,
			Source:      e.Source.Name,
			Target:      e.Target.Name,
			Section:     sectionName(e.Data.Tag),
			Attributes:  encodeAttrs(e.Data.Attrs),
			Predicates:  preds,
			Expressions: rules,
		}
		if !e.Data.Ref.IsZero() {
			ed.Ref = &EdgeRefDoc{SubgraphID: e.Data.Ref.SubgraphID, EdgeName: e.Data.Ref.EdgeName}
		}
		sd.Edges = append(sd.Edges, ed)
		return true
	})
	if encodeErr != nil {
		return SubgraphDoc{}, encodeErr
	}
	return sd, nil
}

// DecodeSubgraph builds a subgraph from its wire form.
func DecodeSubgraph(sd *SubgraphDoc) (*Subgraph, error) {
	s := New(sd.ID, sd.Name)
	s.OnlyBestEdgeMatch = sd.OnlyBestEdgeMatch
	s.DataflowClass = sd.DataflowClass
	if sd.BestMatchExpression != "" {
		e, err := expr.ParseExpression(sd.BestMatchExpression)
		if err != nil {
			return nil, err
		}
		s.BestMatchExpr = e
	}
	if len(sd.DataflowConfiguration) > 0 {
		s.DataflowConfiguration = attribute.Tree(json.RawMessage(sd.DataflowConfiguration))
	}
	s.DataflowAttributes = decodeAttrs(sd.DataflowAttributes)

	for _, nd := range sd.Nodes {
		tag, err := parseSection(nd.Section)
		if err != nil {
			return nil, err
		}
		node := NewNode(tag)
		node.QualifiedName = nd.QualifiedName
		node.Attrs = decodeAttrs(nd.Attributes)
		if node.Predicates, err = decodePredicates(nd.Predicates); err != nil {
			return nil, err
		}
		if node.Expressions, err = decodeRules(nd.Expressions); err != nil {
			return nil, err
		}
		if _, err := s.AddNode(nd.Name, node); err != nil {
			return nil, err
		}
	}
	for _, ed := range sd.Edges {
		tag, err := parseSection(ed.Section)
		if err != nil {
			return nil, err
		}
		edge := NewEdge(tag)
		edge.Attrs = decodeAttrs(ed.Attributes)
		if edge.Predicates, err = decodePredicates(ed.Predicates); err != nil {
			return nil, err
		}
		if edge.Expressions, err = decodeRules(ed.Expressions); err != nil {
			return nil, err
		}
		if ed.Ref != nil {
			edge.Ref = EdgeRef{SubgraphID: ed.Ref.SubgraphID, EdgeName: ed.Ref.EdgeName}
		}
		if _, err := s.AddEdge(ed.Name, ed.Source, ed.Target, edge); err != nil {
			return nil, err
		}
	}
	return s, nil
}
