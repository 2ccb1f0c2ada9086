// Package partition clusters call-graph functions into logical modules,
// derives the inter-module dependency graph, and computes per-module
// complexity metrics. The primary strategy is modularity-maximizing
// community detection over the undirected projection of the call graph; the
// fallback is weakly-connected components.
package partition

import (
	"sort"
	"strconv"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/l3aro/carch/pkg/graph"
	"github.com/l3aro/carch/pkg/symtab"
)

// Algorithm selects the clustering strategy. This is a configuration knob,
// not a silent runtime branch: callers pick one, and only degenerate
// community output triggers the recorded fallback.
type Algorithm string

const (
	// AlgorithmCommunity is Louvain modularity maximization.
	AlgorithmCommunity Algorithm = "community"
	// AlgorithmComponents partitions by weakly-connected components.
	AlgorithmComponents Algorithm = "components"
)

// Metrics are the per-module complexity numbers.
type Metrics struct {
	NodeCount     int `json:"node_count"`
	InternalEdges int `json:"internal_edges"`
	ExternalEdges int `json:"external_edges"`
	GlobalVars    int `json:"global_vars"`
	HeapVars      int `json:"heap_vars"`
}

// Module is one cluster of functions. Member sets are disjoint across
// modules and together cover every call-graph function node.
type Module struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Metrics Metrics  `json:"metrics"`
}

// DependencyEvidence names the edge kind that proved a dependency.
type DependencyEvidence string

const (
	EvidenceCall     DependencyEvidence = "call"
	EvidenceDataFlow DependencyEvidence = "data-flow"
)

// DependencyEdge records that at least one call or data-flow edge crosses
// from a node in Source to a node in Target. Existence-only, not weighted.
type DependencyEdge struct {
	Source   string             `json:"source"`
	Target   string             `json:"target"`
	Evidence DependencyEvidence `json:"evidence"`
}

// Result is the outcome of partitioning one call graph.
type Result struct {
	Algorithm    Algorithm        `json:"algorithm"`
	Modules      []Module         `json:"modules"`
	Dependencies []DependencyEdge `json:"dependencies"`
	// FellBack is true when community detection was requested but produced
	// a degenerate partition and components were used instead.
	FellBack bool `json:"fell_back"`
}

// ModuleOf returns the module name containing the function, or "".
func (r *Result) ModuleOf(function string) string {
	for _, m := range r.Modules {
		for _, member := range m.Members {
			if member == function {
				return m.Name
			}
		}
	}
	return ""
}

// callIndex maps call-graph function names to dense gonum node ids and back.
type callIndex struct {
	names []string
	ids   map[string]int64
}

func newCallIndex(names []string) *callIndex {
	idx := &callIndex{names: names, ids: make(map[string]int64, len(names))}
	for i, n := range names {
		idx.ids[n] = int64(i)
	}
	return idx
}

// undirectedProjection builds the gonum undirected graph over defined
// functions. Edges to unresolved callees and self calls are dropped: they
// carry no clustering signal.
func undirectedProjection(g *graph.Graph, idx *callIndex) *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for _, name := range idx.names {
		ug.AddNode(simple.Node(idx.ids[name]))
	}
	for _, e := range g.CallEdges() {
		from, okFrom := idx.ids[e.Caller]
		to, okTo := idx.ids[e.Callee]
		if !okFrom || !okTo || from == to {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}
	return ug
}

// Partition clusters the call graph's function nodes with the requested
// algorithm and derives dependencies and metrics.
func Partition(g *graph.Graph, symbols *symtab.Table, algo Algorithm) Result {
	names := g.CallNodes()
	res := Result{Algorithm: algo}
	if len(names) == 0 {
		return res
	}

	idx := newCallIndex(names)
	ug := undirectedProjection(g, idx)

	var groups [][]string
	switch algo {
	case AlgorithmCommunity:
		groups = communities(ug, idx)
		if degenerate(groups, len(names)) {
			groups = components(ug, idx)
			res.FellBack = true
		}
	default:
		groups = components(ug, idx)
	}

	res.Modules = nameModules(groups)
	assignMetrics(res.Modules, g, symbols)
	res.Dependencies = deriveDependencies(res.Modules, g, symbols)
	return res
}

// communities runs Louvain modularity maximization at resolution 1.
func communities(ug *simple.UndirectedGraph, idx *callIndex) [][]string {
	reduced := community.Modularize(ug, 1.0, nil)
	return groupNames(reduced.Communities(), idx)
}

// components returns the weakly-connected components. Always succeeds.
func components(ug *simple.UndirectedGraph, idx *callIndex) [][]string {
	return groupNames(topo.ConnectedComponents(ug), idx)
}

func groupNames(nodeGroups [][]gograph.Node, idx *callIndex) [][]string {
	groups := make([][]string, 0, len(nodeGroups))
	for _, nodes := range nodeGroups {
		group := make([]string, 0, len(nodes))
		for _, n := range nodes {
			group = append(group, idx.names[n.ID()])
		}
		sort.Strings(group)
		groups = append(groups, group)
	}
	return groups
}

// degenerate reports an unusable community result: empty, or everything in
// one cluster despite multiple nodes.
func degenerate(groups [][]string, nodeCount int) bool {
	if len(groups) == 0 {
		return true
	}
	return len(groups) == 1 && nodeCount >= 2
}

// nameModules orders groups deterministically and numbers them.
func nameModules(groups [][]string) []Module {
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	modules := make([]Module, len(groups))
	for i, group := range groups {
		modules[i] = Module{
			Name:    moduleName(i),
			Members: group,
			Metrics: Metrics{NodeCount: len(group)},
		}
	}
	return modules
}

func moduleName(i int) string {
	return "module_" + strconv.Itoa(i)
}

// memberModule builds the function -> module index for a module list.
func memberModule(modules []Module) map[string]string {
	owner := make(map[string]string)
	for _, m := range modules {
		for _, member := range m.Members {
			owner[member] = m.Name
		}
	}
	return owner
}

// assignMetrics computes edge and variable metrics in a single pass over
// the call edges and the symbol table.
func assignMetrics(modules []Module, g *graph.Graph, symbols *symtab.Table) {
	owner := memberModule(modules)
	byName := make(map[string]*Module, len(modules))
	for i := range modules {
		byName[modules[i].Name] = &modules[i]
	}

	for _, e := range g.CallEdges() {
		src, okSrc := owner[e.Caller]
		dst, okDst := owner[e.Callee]
		switch {
		case okSrc && okDst && src == dst:
			byName[src].Metrics.InternalEdges++
		case okSrc && okDst:
			byName[src].Metrics.ExternalEdges++
			byName[dst].Metrics.ExternalEdges++
		case okSrc:
			byName[src].Metrics.ExternalEdges++
		case okDst:
			byName[dst].Metrics.ExternalEdges++
		}
	}

	for _, v := range symbols.Variables() {
		touched := touchedModules(v, owner)
		for name := range touched {
			m := byName[name]
			if v.IsGlobal {
				m.Metrics.GlobalVars++
			}
			if v.Heap() {
				m.Metrics.HeapVars++
			}
		}
	}
}

// touchedModules returns the modules a variable belongs to, through its
// owning function or the functions referencing it.
func touchedModules(v *symtab.Variable, owner map[string]string) map[string]bool {
	touched := make(map[string]bool)
	if m, ok := owner[v.OwnerFunction]; ok {
		touched[m] = true
	}
	for _, ref := range v.References {
		if m, ok := owner[ref.Function]; ok {
			touched[m] = true
		}
	}
	return touched
}

// deriveDependencies adds one edge per ordered module pair that has at least
// one crossing call or data-flow edge. The check short-circuits on the first
// match per pair.
func deriveDependencies(modules []Module, g *graph.Graph, symbols *symtab.Table) []DependencyEdge {
	owner := memberModule(modules)

	// Data-flow endpoints map to modules through the variable's owner
	// function; function endpoints map directly.
	nodeModule := func(id string) string {
		if m, ok := owner[id]; ok {
			return m
		}
		if v := symbols.Variable(id); v != nil {
			return owner[v.OwnerFunction]
		}
		return ""
	}

	type pair struct{ src, dst string }
	found := make(map[pair]DependencyEvidence)

	for _, e := range g.CallEdges() {
		src, dst := owner[e.Caller], owner[e.Callee]
		if src == "" || dst == "" || src == dst {
			continue
		}
		p := pair{src, dst}
		if _, ok := found[p]; !ok {
			found[p] = EvidenceCall
		}
	}
	for _, e := range g.FlowEdges() {
		src, dst := nodeModule(e.Source), nodeModule(e.Target)
		if src == "" || dst == "" || src == dst {
			continue
		}
		p := pair{src, dst}
		if _, ok := found[p]; !ok {
			found[p] = EvidenceDataFlow
		}
	}

	edges := make([]DependencyEdge, 0, len(found))
	for p, ev := range found {
		edges = append(edges, DependencyEdge{Source: p.src, Target: p.dst, Evidence: ev})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}
