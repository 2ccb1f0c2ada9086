// Package heap classifies allocation-site variables as heap-originated and
// propagates that property along assignment and return edges of the
// data-flow graph to a fixed point. Classification is a best-effort heuristic over observed
// callee names, not a points-to analysis; the heap flag it sets is monotonic.
package heap

import (
	"strings"

	"github.com/l3aro/carch/pkg/graph"
	"github.com/l3aro/carch/pkg/symtab"
)

// Policy decides whether a callee name is an allocator. A name matches when
// it is in ExactNames, or when it contains one of NamePatterns
// case-insensitively. Both lists are injectable so the heuristic can be
// tuned or replaced without touching the propagation algorithm.
type Policy struct {
	ExactNames   map[string]bool
	NamePatterns []string
}

// DefaultPolicy returns the standard C allocator set plus the conventional
// naming patterns of custom allocation helpers.
func DefaultPolicy() Policy {
	return Policy{
		ExactNames: map[string]bool{
			"malloc":        true,
			"calloc":        true,
			"realloc":       true,
			"aligned_alloc": true,
			"valloc":        true,
			"pvalloc":       true,
		},
		NamePatterns: []string{"alloc", "new", "create", "dup", "clone", "copy"},
	}
}

// NewPolicy builds a Policy from explicit lists.
func NewPolicy(exact []string, patterns []string) Policy {
	names := make(map[string]bool, len(exact))
	for _, n := range exact {
		names[n] = true
	}
	return Policy{ExactNames: names, NamePatterns: patterns}
}

// IsAllocator reports whether a callee name matches the policy.
func (p Policy) IsAllocator(name string) bool {
	if name == "" {
		return false
	}
	if p.ExactNames[name] {
		return true
	}
	lower := strings.ToLower(name)
	for _, pat := range p.NamePatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// Engine runs heap-provenance classification over one analysis run.
type Engine struct {
	policy Policy

	// AggregateHeuristic enables the secondary pass that spreads heap status
	// from struct/union pointers to pointer variables whose reference
	// metadata mentions them. Best-effort only.
	AggregateHeuristic bool
}

// NewEngine creates an engine with the given allocator policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy, AggregateHeuristic: true}
}

// Result summarizes one classification run.
type Result struct {
	// Direct is the number of variables classified from allocation sites.
	Direct int
	// Propagated is the number classified by fixed-point propagation.
	Propagated int
	// Aggregate is the number classified by the structural heuristic.
	Aggregate int
	// Passes is the number of propagation passes until convergence.
	Passes int
}

// DirectClassify marks pointer variables whose initializer or bound
// assignments name an allocator. It runs at the end of ingestion, before the
// graphs freeze.
func (e *Engine) DirectClassify(symbols *symtab.Table) int {
	marked := 0
	for _, v := range symbols.Variables() {
		if !v.IsPointer {
			continue
		}
		if v.Init != nil && v.Init.Callee != "" && e.policy.IsAllocator(v.Init.Callee) {
			if v.MarkHeap() {
				marked++
			}
			continue
		}
		for _, callee := range v.AssignedCallees {
			if e.policy.IsAllocator(callee) {
				if v.MarkHeap() {
					marked++
				}
				break
			}
		}
	}
	return marked
}

// AddHeapReferenceEdges appends a heap_reference edge from each
// heap-classified variable to every function referencing it. Must run before
// the graphs freeze.
func (e *Engine) AddHeapReferenceEdges(symbols *symtab.Table, g *graph.Graph) int {
	added := 0
	for _, name := range symbols.HeapVariables() {
		v := symbols.Variable(name)
		for _, ref := range v.References {
			if ref.Function == "" {
				continue
			}
			if g.AddFlowEdge(graph.FlowEdge{
				Source:   name,
				Target:   ref.Function,
				Kind:     graph.EdgeHeapReference,
				Location: ref.Location,
			}) {
				added++
			}
		}
	}
	return added
}

// Propagate runs the monotone fixed-point pass over the data-flow graph.
// Assignment edges carry heap status variable to variable: while any edge
// src->dst has src heap-classified, dst a known pointer variable, and dst
// unclassified, dst becomes heap-classified. Return edges carry it function
// to variable: a pointer variable bound to the result of a heap-returning
// function is heap-classified. Each pass either marks at least one variable
// or terminates, so the pass count is bounded by the variable count.
func (e *Engine) Propagate(symbols *symtab.Table, g *graph.Graph) Result {
	res := Result{}
	assigns := g.FlowEdgesOfKind(graph.EdgeAssignment)
	returns := g.FlowEdgesOfKind(graph.EdgeReturn)
	returning := e.heapReturningFunctions(symbols)

	for {
		res.Passes++
		changed := false
		for _, edge := range assigns {
			src := symbols.Variable(edge.Source)
			dst := symbols.Variable(edge.Target)
			if src == nil || dst == nil {
				continue
			}
			if src.Heap() && dst.IsPointer && !dst.Heap() {
				dst.MarkHeap()
				res.Propagated++
				changed = true
			}
		}
		for _, edge := range returns {
			if !returning[edge.Source] {
				continue
			}
			dst := symbols.Variable(edge.Target)
			if dst != nil && dst.IsPointer && !dst.Heap() {
				dst.MarkHeap()
				res.Propagated++
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if e.AggregateHeuristic {
		res.Aggregate = e.aggregatePass(symbols)
	}
	return res
}

// heapReturningFunctions computes the set of pointer-returning functions
// whose bodies reach an allocator call, transitively through other functions
// in the set. Allocation is judged per call site, not per return statement,
// so a function that allocates without returning the result still qualifies.
func (e *Engine) heapReturningFunctions(symbols *symtab.Table) map[string]bool {
	returning := make(map[string]bool)
	fns := symbols.Functions()

	for {
		changed := false
		for _, fn := range fns {
			if returning[fn.Name] || !strings.Contains(fn.ReturnType, "*") {
				continue
			}
			for _, c := range fn.Calls {
				if e.policy.IsAllocator(c.Callee) || returning[c.Callee] {
					returning[fn.Name] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}
	return returning
}

// aggregatePass approximates "member of a heap-allocated aggregate": for
// each heap-classified struct or union pointer, any other pointer variable
// whose reference metadata mentions it is also marked. Disableable; never
// authoritative.
func (e *Engine) aggregatePass(symbols *symtab.Table) int {
	marked := 0
	variables := symbols.Variables()

	for _, h := range variables {
		if !h.Heap() || !h.IsPointer {
			continue
		}
		typ := strings.ToLower(h.Type)
		if !strings.Contains(typ, "struct") && !strings.Contains(typ, "union") {
			continue
		}
		for _, v := range variables {
			if v.Name == h.Name || !v.IsPointer || v.Heap() {
				continue
			}
			if mentions(v, h.Name) {
				v.MarkHeap()
				marked++
			}
		}
	}
	return marked
}

func mentions(v *symtab.Variable, name string) bool {
	for _, ref := range v.References {
		if ref.Function == name || ref.AssignedTo == name {
			return true
		}
	}
	return false
}
