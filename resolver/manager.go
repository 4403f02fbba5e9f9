package resolver

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/expr"
	"github.com/c360/srgresolver/metric"
	"github.com/c360/srgresolver/sourceset"
	"github.com/c360/srgresolver/srg"
	"github.com/c360/srgresolver/subgraph"
)

// Instance is an instantiated subgraph in the repository, tagged with the
// client that owns it.
type Instance struct {
	*subgraph.Subgraph
	ClientID string
}

// QueryResponse is the answer to one query for one client. A query may be
// answered by several subgraphs which together form the solution.
type QueryResponse struct {
	QueryName string
	ClientID  string
	Graphs    []*Instance
}

// Manager maintains the SRG, the subgraph repository and the pattern and
// query repositories, and drives pattern application and query responses.
// It is single-threaded by contract: all mutations run under one logical
// thread serialised by the caller.
type Manager struct {
	srg  *srg.Graph
	repo map[string]*Instance

	patterns []*Pattern
	queries  []*Pattern

	opts Options

	// monotone id counters for applied patterns and unqualified nodes
	patternCounter int
	tempCounter    int

	log     *slog.Logger
	metrics *metric.Metrics
}

// NewManager creates a resolver with the given strategy options.
func NewManager(opts Options, log *slog.Logger, metrics *metric.Metrics) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if opts.KnownAttributes == nil {
		opts.KnownAttributes = DefaultKnownAttributes()
	}
	return &Manager{
		srg:            srg.New(),
		repo:           make(map[string]*Instance),
		opts:           opts,
		patternCounter: 2000,
		tempCounter:    1000,
		log:            log,
		metrics:        metrics,
	}
}

// SRG exposes the graph for inspection and tests.
func (m *Manager) SRG() *srg.Graph { return m.srg }

// Repository returns the instance with the given subgraph id.
func (m *Manager) Repository(id string) (*Instance, bool) {
	in, ok := m.repo[id]
	return in, ok
}

// RepositoryIDs returns all registered subgraph ids in lexical order.
func (m *Manager) RepositoryIDs() []string {
	ids := make([]string, 0, len(m.repo))
	for id := range m.repo {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegisterPattern stores a new pattern in the pattern repository.
func (m *Manager) RegisterPattern(g *subgraph.Subgraph, clientID string) {
	m.log.Info("registering pattern", "client", clientID, "name", g.Name)
	m.patterns = append(m.patterns, NewPattern(g, clientID))
}

// RegisterQuery stores a new query in the active-query repository. A query
// is compiled like a pattern; it just has no output edges.
func (m *Manager) RegisterQuery(g *subgraph.Subgraph, clientID string) {
	m.log.Info("registering query", "client", clientID, "name", g.Name)
	m.queries = append(m.queries, NewPattern(g, clientID))
}

// RegisterSRG adds a base subgraph to the SRG and stores it in the
// repository. Nodes are identified with existing SRG nodes by qualified
// name; unqualified nodes get a generated temp id.
func (m *Manager) RegisterSRG(g *subgraph.Subgraph, clientID string) error {
	m.log.Info("registering SRG", "client", clientID, "name", g.Name, "id", g.ID)

	id := g.ID
	m.repo[id] = &Instance{Subgraph: g, ClientID: clientID}

	matched := make(map[string]*srg.Node)
	var regErr error
	g.Nodes(func(n *subgraph.GraphNode) bool {
		if !n.Data.IsOutput() {
			return true
		}
		if n.Data.QualifiedName == "" {
			n.Data.QualifiedName = fmt.Sprintf("tmp%d", m.tempCounter)
			m.tempCounter++
		}
		if !n.Data.Attrs.Has("id") {
			n.Data.Attrs.Set("id", attribute.Text(n.Data.QualifiedName))
		}
		ref := srg.NodeRef{SubgraphID: id, NodeName: n.Name}
		if m.srg.HasNode(n.Data.QualifiedName) {
			srgNode, err := m.srg.Node(n.Data.QualifiedName)
			if err != nil {
				regErr = err
				return false
			}
			m.mergeNodeAttributes(srgNode, n.Data.Attrs, id, ref)
			matched[n.Name] = srgNode
		} else {
			srgNode, err := m.srg.AddNode(n.Data.QualifiedName, n.Data.Attrs, id, ref)
			if err != nil {
				regErr = err
				return false
			}
			matched[n.Name] = srgNode
		}
		return true
	})
	if regErr != nil {
		return errors.WrapInvalid(regErr, "resolver", "RegisterSRG", "node registration")
	}

	g.Edges(func(e *subgraph.GraphEdge) bool {
		if !e.Data.IsOutput() {
			return true
		}
		src := matched[e.Source.Name]
		dst := matched[e.Target.Name]
		if src == nil || dst == nil {
			regErr = fmt.Errorf("%w: endpoint of edge %s not in output section", errors.ErrNodeNotFound, e.Name)
			return false
		}
		srgEdge, err := m.srg.AddEdge(src, dst, e.Data.Attrs, id, e.Name)
		if err != nil {
			regErr = err
			return false
		}
		// a base fact is an information-source atom: its edges have exactly
		// their own unique name as source
		srgEdge.Data.Sources.Add(srgEdge.Name)
		return true
	})
	if regErr != nil {
		return errors.WrapInvalid(regErr, "resolver", "RegisterSRG", "edge registration")
	}
	return nil
}

// mergeNodeAttributes merges a further spawner into an SRG node and mirrors
// the merged attribute set into every previously bound subgraph node.
func (m *Manager) mergeNodeAttributes(n *srg.Node, attrs *attribute.Map, subgraphID string, ref srg.NodeRef) {
	m.srg.MergeNode(n, attrs, subgraphID, ref)
	for backRef := range n.Data.BackRefs {
		if backRef == ref {
			continue
		}
		in, ok := m.repo[backRef.SubgraphID]
		if !ok {
			continue
		}
		node, err := in.Node(backRef.NodeName)
		if err != nil {
			continue
		}
		node.Data.Attrs.Merge(n.Data.Attrs)
	}
}

// ApplyAllPatterns tries to apply all registered patterns once, in
// registration order. Returns the number of instantiated patterns; the
// caller iterates to a fixed point.
func (m *Manager) ApplyAllPatterns() int {
	m.log.Debug("statistics",
		"registrations", len(m.repo), "patterns", len(m.patterns), "queries", len(m.queries))

	n := 0
	for _, p := range m.patterns {
		n += m.ApplyPattern(p)
	}
	return n
}

// ApplyPattern matches one pattern against the SRG and applies every useful
// instance. Returns the number of instantiated patterns.
func (m *Manager) ApplyPattern(p *Pattern) int {
	m.log.Debug("trying to apply pattern", "client", p.ClientID, "name", p.Name)

	matches := enumerateMatches(p, m.srg)
	m.metrics.ObserveMatches(p.Name, len(matches))

	instances := 0
	var superseded []string
	for _, match := range matches {
		// decide on the un-expanded attributes first
		if !m.decideStage1(match) {
			continue
		}

		m.expandMatchingAttributes(p, match)

		var supersedes []string
		if !m.decideStage2(p, match, &supersedes) {
			continue
		}

		m.applyDetectedPattern(p, match)
		instances++
		superseded = append(superseded, supersedes...)
	}

	// remove superseded subgraphs, but only those with a single output edge
	for _, id := range superseded {
		in, ok := m.repo[id]
		if !ok {
			continue
		}
		if in.CountOutputEdges() == 1 {
			m.metrics.CountSupersession()
			if err := m.DeleteSRG(id); err != nil {
				m.log.Warn("supersession delete failed", "id", id, "error", err)
			}
		}
	}

	m.metrics.CountApplications(p.Name, instances)
	return instances
}

// expandMatchingAttributes collects the information sources of a match,
// builds the input-object table for global evaluation and evaluates the
// attribute expressions of all pattern outputs. Evaluation errors drop the
// offending attribute and never the match.
func (m *Manager) expandMatchingAttributes(p *Pattern, match *Matching) {
	match.Sources = sourceset.New()
	match.InputAttrs = make(map[string]*attribute.Map)
	match.ExpandedEdgeAttrs = make(map[string]*attribute.Map)
	match.ExpandedNodeAttrs = make(map[string]*attribute.Map)

	p.Graph.InputEdges(func(e *subgraph.GraphEdge) bool {
		srgEdgeName, err := match.SRGEdgeFor(e.Name)
		if err != nil {
			return true
		}
		srgEdge, err := m.srg.Edge(srgEdgeName)
		if err != nil {
			return true
		}
		// the new source set is the union of all input edge sets
		match.Sources.Union(srgEdge.Data.Sources)
		match.InputAttrs[e.Name] = srgEdge.Data.Attrs
		return true
	})

	p.Graph.Nodes(func(n *subgraph.GraphNode) bool {
		if !n.Data.IsInput() {
			return true
		}
		srgNodeName, err := match.SRGNodeFor(n.Name)
		if err != nil {
			return true
		}
		srgNode, err := m.srg.Node(srgNodeName)
		if err != nil {
			return true
		}
		match.InputAttrs[n.Name] = srgNode.Data.Attrs
		return true
	})

	ctx := expr.Global(match.InputAttrs, match.Sources)

	p.Graph.OutputEdges(func(e *subgraph.GraphEdge) bool {
		attrs := e.Data.Attrs.Clone()
		for _, rule := range e.Data.Expressions {
			v, err := rule.Expr.Eval(ctx)
			if err != nil {
				m.log.Info("attribute expression failed",
					"pattern", p.Name, "edge", e.Name, "attribute", rule.Name, "error", err)
				continue
			}
			attrs.Set(rule.Name, v)
		}
		match.ExpandedEdgeAttrs[e.Name] = attrs
		return true
	})

	p.Graph.Nodes(func(n *subgraph.GraphNode) bool {
		if !n.Data.IsOutput() {
			return true
		}
		attrs := n.Data.Attrs.Clone()
		for _, rule := range n.Data.Expressions {
			v, err := rule.Expr.Eval(ctx)
			if err != nil {
				m.log.Info("attribute expression failed",
					"pattern", p.Name, "node", n.Name, "attribute", rule.Name, "error", err)
				continue
			}
			attrs.Set(rule.Name, v)
		}
		match.ExpandedNodeAttrs[n.Name] = attrs
		return true
	})
}

// decideStage1 rejects matches whose input edges do not satisfy the
// configured source requirement. This prevents the resolver from
// instantiating trivial fusions such as A⁻¹·(A·B).
func (m *Manager) decideStage1(match *Matching) bool {
	if match.InputEdgeCount() <= 1 {
		return true
	}

	type edgeSources struct {
		name    string
		sources sourceset.Set
	}
	var inputs []edgeSources
	match.EdgePairs(func(_, srgEdgeName string) {
		if e, err := m.srg.Edge(srgEdgeName); err == nil {
			inputs = append(inputs, edgeSources{name: srgEdgeName, sources: e.Data.Sources})
		}
	})

	switch m.opts.EdgeRequirement {
	case RequireNewSource:
		noNewInfo := 0
		for i := range inputs {
			for j := range inputs {
				if i != j && inputs[i].sources.Contains(inputs[j].sources) {
					noNewInfo++
				}
			}
		}
		if noNewInfo >= len(inputs)-1 {
			return false
		}

	case RequireDisjointSources:
		for i := range inputs {
			for j := range inputs {
				if i != j && !inputs[i].sources.Disjoint(inputs[j].sources) {
					return false
				}
			}
		}
	}
	return true
}

// decideStage2 checks whether a match contributes at least one output edge
// with qualities not already contained in the SRG. An edge adds new
// information if a fixed (non-expression) attribute differs or at least one
// known attribute is better. Unknown expression attributes are ignored:
// without a quality direction they could cause infinite derivation chains.
// Existing subgraphs dominated on every known attribute are collected in
// supersedes, unless the new match transitively depends on them.
func (m *Manager) decideStage2(p *Pattern, match *Matching, supersedes *[]string) bool {
	createsNewEdge := false

	p.Graph.OutputEdges(func(patternEdge *subgraph.GraphEdge) bool {
		sourceName, err := match.SRGNodeFor(patternEdge.Source.Name)
		if err != nil {
			return true
		}
		targetName, err := match.SRGNodeFor(patternEdge.Target.Name)
		if err != nil {
			return true
		}
		if sourceName == targetName {
			// self loops are skipped during this check
			return true
		}
		source, err := m.srg.Node(sourceName)
		if err != nil {
			return true
		}
		expanded := match.ExpandedEdgeAttrs[patternEdge.Name]

		redundant := false
		for _, srgEdge := range source.Out {
			if redundant {
				break
			}
			if srgEdge.Target.Name != targetName {
				continue
			}

			fixedEqual := true
			betterKnown := false
			allKnownBetter := true
			for _, key := range expanded.Keys() {
				myVal, _ := expanded.Get(key)
				otherVal, otherOK := srgEdge.Data.Attrs.Get(key)

				// fixed attributes must be byte-equal
				if patternEdge.Data.Attrs.Has(key) {
					if !otherOK || !otherVal.Equal(myVal) {
						fixedEqual = false
						break
					}
				}

				dir, known := m.opts.KnownAttributes[key]
				if !known {
					continue
				}
				if !otherOK {
					// attribute not on the SRG edge, the new edge is better
					betterKnown = true
					continue
				}
				myNum, err1 := myVal.Number()
				otherNum, err2 := otherVal.Number()
				if err1 != nil || err2 != nil {
					m.log.Info("cannot compare known attribute",
						"attribute", key, "new", myVal.String(), "existing", otherVal.String())
					continue
				}
				// an attribute only counts as different beyond a 10% margin
				margin := abs(otherNum) * 0.1
				if dir == BiggerIsBetter {
					if myNum > otherNum+margin {
						betterKnown = true
					} else if myNum < otherNum-margin {
						allKnownBetter = false
					}
				} else {
					if myNum < otherNum-margin {
						betterKnown = true
					} else if myNum > otherNum+margin {
						allKnownBetter = false
					}
				}
			}

			if m.opts.AllowWorseEdges {
				redundant = fixedEqual && !betterKnown && match.Sources.Equal(srgEdge.Data.Sources)
			} else {
				redundant = fixedEqual && !betterKnown
			}

			if fixedEqual && betterKnown && allKnownBetter {
				// candidate for supersession, unless the new instance would
				// depend on the subgraph it replaces
				depends := false
				match.EdgePairs(func(_, inputEdgeName string) {
					if depends {
						return
					}
					if inputEdge, err := m.srg.Edge(inputEdgeName); err == nil {
						if m.subgraphDependsOn(inputEdge.Data.SubgraphID, srgEdge.Data.SubgraphID) {
							depends = true
						}
					}
				})
				if !depends {
					*supersedes = append(*supersedes, srgEdge.Data.SubgraphID)
				}
			}
		}

		if !redundant {
			createsNewEdge = true
		}
		return true
	})

	return createsNewEdge
}

// instantiate duplicates a pattern into a fully qualified instance: nodes
// carry the matched SRG ids, input edges reference their matched SRG edges,
// output attributes come from the expanded tables.
func (m *Manager) instantiate(p *Pattern, match *Matching) (*Instance, error) {
	inst := subgraph.New("", p.Name)
	inst.DataflowConfiguration = p.Graph.DataflowConfiguration
	inst.DataflowAttributes = p.Graph.DataflowAttributes.Clone()

	var instErr error
	p.Graph.Nodes(func(patternNode *subgraph.GraphNode) bool {
		srgNodeName, err := match.SRGNodeFor(patternNode.Name)
		if err != nil {
			instErr = err
			return false
		}
		srgNode, err := m.srg.Node(srgNodeName)
		if err != nil {
			instErr = err
			return false
		}

		node := subgraph.NewNode(patternNode.Data.Tag)
		node.Attrs = patternNode.Data.Attrs.Clone()
		node.Attrs.Merge(srgNode.Data.Attrs)
		if patternNode.Data.IsOutput() {
			if expanded := match.ExpandedNodeAttrs[patternNode.Name]; expanded != nil {
				node.Attrs.Merge(expanded)
			}
		}
		// the node is qualified now and no longer needs matching
		node.QualifiedName = srgNodeName
		if _, err := inst.AddNode(patternNode.Name, node); err != nil {
			instErr = err
			return false
		}
		return true
	})
	if instErr != nil {
		return nil, instErr
	}

	p.Graph.Edges(func(patternEdge *subgraph.GraphEdge) bool {
		switch {
		case patternEdge.Data.IsInput():
			srgEdgeName, err := match.SRGEdgeFor(patternEdge.Name)
			if err != nil {
				instErr = err
				return false
			}
			srgEdge, err := m.srg.Edge(srgEdgeName)
			if err != nil {
				instErr = err
				return false
			}
			edge := subgraph.NewEdge(subgraph.Input)
			edge.Attrs.Merge(srgEdge.Data.Attrs)
			edge.Ref = subgraph.EdgeRef{
				SubgraphID: srgEdge.Data.SubgraphID,
				EdgeName:   srgEdge.Data.LocalName,
			}
			if _, err := inst.AddEdge(patternEdge.Name, patternEdge.Source.Name, patternEdge.Target.Name, edge); err != nil {
				instErr = err
				return false
			}

		case patternEdge.Data.IsOutput():
			edge := subgraph.NewEdge(subgraph.Output)
			if expanded := match.ExpandedEdgeAttrs[patternEdge.Name]; expanded != nil {
				edge.Attrs = expanded.Clone()
			}
			if _, err := inst.AddEdge(patternEdge.Name, patternEdge.Source.Name, patternEdge.Target.Name, edge); err != nil {
				instErr = err
				return false
			}
		}
		return true
	})
	if instErr != nil {
		return nil, instErr
	}

	return &Instance{Subgraph: inst, ClientID: p.ClientID}, nil
}

// applyDetectedPattern instantiates an accepted match, inserts its output
// edges into the SRG and records the dependency links on its input edges.
func (m *Manager) applyDetectedPattern(p *Pattern, match *Matching) {
	id := fmt.Sprintf("%s%d", p.Name, m.patternCounter)
	m.patternCounter++

	inst, err := m.instantiate(p, match)
	if err != nil {
		m.log.Warn("instantiation failed", "pattern", p.Name, "error", err)
		return
	}
	inst.ID = id

	var applyErr error
	p.Graph.Edges(func(patternEdge *subgraph.GraphEdge) bool {
		switch {
		case patternEdge.Data.IsInput():
			// input edges are back-referenced from their dependencies so
			// deletions can cascade
			srgEdgeName, err := match.SRGEdgeFor(patternEdge.Name)
			if err != nil {
				applyErr = err
				return false
			}
			srgEdge, err := m.srg.Edge(srgEdgeName)
			if err != nil {
				applyErr = err
				return false
			}
			srgEdge.Data.Dependants[id] = struct{}{}

		case patternEdge.Data.IsOutput():
			sourceName, err := match.SRGNodeFor(patternEdge.Source.Name)
			if err != nil {
				applyErr = err
				return false
			}
			targetName, err := match.SRGNodeFor(patternEdge.Target.Name)
			if err != nil {
				applyErr = err
				return false
			}
			source, err := m.srg.Node(sourceName)
			if err != nil {
				applyErr = err
				return false
			}
			target, err := m.srg.Node(targetName)
			if err != nil {
				applyErr = err
				return false
			}
			instEdge, err := inst.Edge(patternEdge.Name)
			if err != nil {
				applyErr = err
				return false
			}
			srgEdge, err := m.srg.AddEdge(source, target, instEdge.Data.Attrs, id, patternEdge.Name)
			if err != nil {
				applyErr = err
				return false
			}
			srgEdge.Data.Sources = match.Sources.Clone()
			srgEdge.Data.PatternName = p.Name
		}
		return true
	})
	if applyErr != nil {
		m.log.Warn("apply failed", "pattern", p.Name, "id", id, "error", applyErr)
		return
	}

	m.repo[id] = inst
	m.log.Debug("applied pattern", "pattern", p.Name, "id", id)
}

// ProcessQueries matches every active query against the SRG and builds the
// responses, grouped by the owning client of each collected subgraph.
func (m *Manager) ProcessQueries() map[string][]*QueryResponse {
	results := make(map[string][]*QueryResponse)

	for _, q := range m.queries {
		matches := enumerateMatches(q, m.srg)
		for _, match := range matches {
			m.expandMatchingAttributes(q, match)
		}

		if q.Graph.OnlyBestEdgeMatch {
			var best *Matching
			bestCost := 0.0
			for _, match := range matches {
				cost := float64(len(match.Sources))
				if m.opts.BestMatchSelection == SelectMostSources {
					cost = -cost
				}
				if q.Graph.BestMatchExpr != nil {
					ctx := expr.Global(match.InputAttrs, match.Sources)
					if v, err := q.Graph.BestMatchExpr.Eval(ctx); err == nil {
						if n, err := v.Number(); err == nil {
							cost = n
						}
					} else {
						m.log.Info("best-match expression failed", "query", q.Name, "error", err)
					}
				}
				if best == nil || cost < bestCost {
					best = match
					bestCost = cost
				}
			}
			if best != nil {
				m.distributeResponse(q, best, results)
			}
		} else {
			for _, match := range matches {
				m.distributeResponse(q, match, results)
			}
		}
	}
	return results
}

func (m *Manager) distributeResponse(q *Pattern, match *Matching, results map[string][]*QueryResponse) {
	graphs, err := m.generateResponse(q, match)
	if err != nil {
		m.log.Warn("response generation failed", "query", q.Name, "error", err)
		return
	}
	for _, g := range graphs {
		clientResults := results[g.ClientID]
		if len(clientResults) == 0 || clientResults[len(clientResults)-1].QueryName != q.Name {
			clientResults = append(clientResults, &QueryResponse{QueryName: q.Name, ClientID: g.ClientID})
		}
		last := clientResults[len(clientResults)-1]
		last.Graphs = append(last.Graphs, g)
		results[g.ClientID] = clientResults
	}
}

// generateResponse instantiates a matched query and transitively collects
// every instantiated subgraph reachable via input-edge references. The
// query instance id is derived from a hash over the concatenated edge
// references so repeat queries reuse ids.
func (m *Manager) generateResponse(q *Pattern, match *Matching) ([]*Instance, error) {
	inst, err := m.instantiate(q, match)
	if err != nil {
		return nil, err
	}

	var refStack []subgraph.EdgeRef
	collected := make(map[string]bool)
	var repeatableID strings.Builder

	inst.Edges(func(e *subgraph.GraphEdge) bool {
		ref := e.Data.Ref
		if !ref.IsZero() && !collected[ref.SubgraphID] {
			refStack = append(refStack, ref)
			collected[ref.SubgraphID] = true
		}
		repeatableID.WriteString(ref.SubgraphID)
		repeatableID.WriteByte(':')
		repeatableID.WriteString(ref.EdgeName)
		repeatableID.WriteByte('%')
		return true
	})

	h := fnv.New64a()
	h.Write([]byte(repeatableID.String()))
	inst.ID = fmt.Sprintf("%s%x", q.Name, h.Sum64())

	collection := []*Instance{inst}
	for len(refStack) > 0 {
		ref := refStack[len(refStack)-1]
		refStack = refStack[:len(refStack)-1]

		dep, ok := m.repo[ref.SubgraphID]
		if !ok {
			return nil, fmt.Errorf("%w: referenced subgraph %s", errors.ErrNodeNotFound, ref.SubgraphID)
		}
		dep.Edges(func(e *subgraph.GraphEdge) bool {
			depRef := e.Data.Ref
			if !depRef.IsZero() && !collected[depRef.SubgraphID] {
				refStack = append(refStack, depRef)
				collected[depRef.SubgraphID] = true
			}
			return true
		})
		collection = append(collection, dep)
	}
	return collection, nil
}

// DeleteQuery removes a query from the active-query repository. Queries
// have no output edges, so nothing can depend on them.
func (m *Manager) DeleteQuery(name, clientID string) error {
	m.log.Info("deleting query", "client", clientID, "name", name)
	for i, q := range m.queries {
		if q.ClientID == clientID && q.Name == name {
			m.queries = append(m.queries[:i], m.queries[i+1:]...)
			return nil
		}
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s for client %s", errors.ErrQueryNotFound, name, clientID),
		"resolver", "DeleteQuery", "lookup")
}

// DeletePattern removes a pattern and cascades the deletion of every edge
// that was derived by one of its instances.
func (m *Manager) DeletePattern(name, clientID string) error {
	m.log.Info("deleting pattern", "client", clientID, "name", name)

	// rescan after every cascade, deletion invalidates the traversal
	for {
		var target string
		m.srg.Edges(func(e *srg.Edge) bool {
			in, ok := m.repo[e.Data.SubgraphID]
			if ok && in.Name == name && in.ClientID == clientID {
				target = e.Data.SubgraphID
				return false
			}
			return true
		})
		if target == "" {
			break
		}
		if err := m.DeleteSRG(target); err != nil {
			return err
		}
	}

	for i, p := range m.patterns {
		if p.ClientID == clientID && p.Name == name {
			m.patterns = append(m.patterns[:i], m.patterns[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteSRG removes a base subgraph or instantiated pattern from the SRG
// and transitively deletes everything that depends on it. Nodes whose
// spawner set becomes empty are removed after the walk; deferring this
// avoids invalidating the traversal mid-walk.
func (m *Manager) DeleteSRG(primalID string) error {
	m.log.Debug("deleting SRG", "id", primalID)

	deleteStack := []string{primalID}
	deleted := make(map[string]bool)
	removableNodes := make(map[string]bool)

	for len(deleteStack) > 0 {
		id := deleteStack[len(deleteStack)-1]
		deleteStack = deleteStack[:len(deleteStack)-1]

		in, ok := m.repo[id]
		if !ok {
			// common dependencies at different stack levels may already be
			// gone by the time they surface again
			m.log.Debug("subgraph already removed", "id", id)
			continue
		}

		var walkErr error
		in.Edges(func(e *subgraph.GraphEdge) bool {
			if e.Data.IsInput() {
				// clear the dependency link on the referenced edge
				ref := e.Data.Ref
				if ref.IsZero() {
					return true
				}
				primalName := srg.EdgeName(ref.SubgraphID, ref.EdgeName)
				if m.srg.HasEdge(primalName) {
					primalEdge, err := m.srg.Edge(primalName)
					if err != nil {
						walkErr = err
						return false
					}
					delete(primalEdge.Data.Dependants, id)
				}
			}
			if e.Data.IsOutput() {
				edgeName := srg.EdgeName(id, e.Name)
				srgEdge, err := m.srg.Edge(edgeName)
				if err != nil {
					walkErr = err
					return false
				}
				for dep := range srgEdge.Data.Dependants {
					if !deleted[dep] {
						deleted[dep] = true
						deleteStack = append(deleteStack, dep)
					}
				}
				if err := m.srg.RemoveEdge(edgeName); err != nil {
					walkErr = err
					return false
				}
			}
			return true
		})
		if walkErr != nil {
			return errors.WrapFatal(walkErr, "resolver", "DeleteSRG", "edge removal")
		}

		in.Nodes(func(n *subgraph.GraphNode) bool {
			if !n.Data.IsOutput() {
				return true
			}
			if !m.srg.HasNode(n.Data.QualifiedName) {
				walkErr = fmt.Errorf("%w: unregistered node %s", errors.ErrNodeNotFound, n.Data.QualifiedName)
				return false
			}
			srgNode, err := m.srg.Node(n.Data.QualifiedName)
			if err != nil {
				walkErr = err
				return false
			}
			delete(srgNode.Data.Spawners, id)
			delete(srgNode.Data.BackRefs, srg.NodeRef{SubgraphID: id, NodeName: n.Name})
			if len(srgNode.Data.Spawners) == 0 {
				removableNodes[n.Data.QualifiedName] = true
			}
			return true
		})
		if walkErr != nil {
			return errors.WrapFatal(walkErr, "resolver", "DeleteSRG", "node release")
		}

		delete(m.repo, id)
	}

	names := make([]string, 0, len(removableNodes))
	for name := range removableNodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m.log.Debug("removing node", "id", name)
		if err := m.srg.RemoveNode(name); err != nil {
			return errors.WrapFatal(err, "resolver", "DeleteSRG", "node removal")
		}
	}
	return nil
}

// subgraphDependsOn reports whether a subgraph transitively depends on
// another via input-edge references. Iterative with a visited set to bound
// stack use on deep SRGs.
func (m *Manager) subgraphDependsOn(id, targetID string) bool {
	stack := []string{id}
	visited := map[string]bool{id: true}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == targetID {
			return true
		}
		in, ok := m.repo[cur]
		if !ok {
			continue
		}
		in.Edges(func(e *subgraph.GraphEdge) bool {
			if e.Data.IsInput() && !e.Data.Ref.IsZero() && !visited[e.Data.Ref.SubgraphID] {
				visited[e.Data.Ref.SubgraphID] = true
				stack = append(stack, e.Data.Ref.SubgraphID)
			}
			return true
		})
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
