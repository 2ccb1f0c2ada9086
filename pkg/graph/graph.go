// Package graph builds the two directed multigraphs derived from the fact
// stream: the call graph (function to function) and the data-flow graph
// (typed value-provenance edges among variables and functions). Both graphs
// are append-only during ingestion and frozen afterwards.
package graph

import (
	"fmt"
	"sort"
)

// EdgeKind is the type of a data-flow edge.
type EdgeKind string

const (
	EdgeParameter     EdgeKind = "parameter"
	EdgeArgument      EdgeKind = "argument"
	EdgeAssignment    EdgeKind = "assignment"
	EdgeReturn        EdgeKind = "return"
	EdgeHeapReference EdgeKind = "heap_reference"
)

// NodeType classifies a data-flow graph node.
type NodeType string

const (
	NodeFunction  NodeType = "function"
	NodeVariable  NodeType = "variable"
	NodeParameter NodeType = "parameter"
)

// CallEdge is one call-graph edge. The callee may be unresolved: a name with
// no matching function record is legal and expected for library calls.
type CallEdge struct {
	Caller   string   `json:"caller"`
	Callee   string   `json:"callee"`
	Location string   `json:"location"`
	Args     []string `json:"args,omitempty"`
}

// FlowEdge is one typed data-flow edge. Multi-edges with differing kind or
// site are allowed; exact duplicates are not.
type FlowEdge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Kind     EdgeKind `json:"kind"`
	Location string   `json:"location"`
}

// Graph holds the call graph and the data-flow graph for one run.
type Graph struct {
	callNodes map[string]bool
	callEdges []CallEdge
	callSeen  map[string]bool

	flowNodes map[string]NodeType
	flowEdges []FlowEdge
	flowSeen  map[string]bool

	frozen bool
}

// New creates an empty graph pair.
func New() *Graph {
	return &Graph{
		callNodes: make(map[string]bool),
		callSeen:  make(map[string]bool),
		flowNodes: make(map[string]NodeType),
		flowSeen:  make(map[string]bool),
	}
}

// Freeze marks the end of the ingestion phase. All further mutation attempts
// are rejected; only variable heap flags (owned by the symbol table) may
// change after this point.
func (g *Graph) Freeze() { g.frozen = true }

// Frozen reports whether ingestion has ended.
func (g *Graph) Frozen() bool { return g.frozen }

// AddCallNode registers a defined function as a call-graph node.
func (g *Graph) AddCallNode(name string) bool {
	if g.frozen || name == "" || g.callNodes[name] {
		return false
	}
	g.callNodes[name] = true
	return true
}

// AddCallEdge appends a call edge, idempotent on (caller, callee, site).
func (g *Graph) AddCallEdge(e CallEdge) bool {
	if g.frozen || e.Caller == "" || e.Callee == "" {
		return false
	}
	key := e.Caller + "\x00" + e.Callee + "\x00" + e.Location
	if g.callSeen[key] {
		return false
	}
	g.callSeen[key] = true
	g.callEdges = append(g.callEdges, e)
	return true
}

// AddFlowNode registers a data-flow node. The first registration wins, so a
// parameter stays typed as a parameter even when later seen as a variable.
func (g *Graph) AddFlowNode(id string, t NodeType) {
	if g.frozen || id == "" {
		return
	}
	if _, ok := g.flowNodes[id]; !ok {
		g.flowNodes[id] = t
	}
}

// AddFlowEdge appends a data-flow edge, idempotent on the full
// (source, target, kind, site) tuple. Endpoint nodes are registered
// implicitly as variables when unknown.
func (g *Graph) AddFlowEdge(e FlowEdge) bool {
	if g.frozen || e.Source == "" || e.Target == "" {
		return false
	}
	key := fmt.Sprintf("%s\x00%s\x00%s\x00%s", e.Source, e.Target, e.Kind, e.Location)
	if g.flowSeen[key] {
		return false
	}
	g.flowSeen[key] = true
	g.AddFlowNode(e.Source, NodeVariable)
	g.AddFlowNode(e.Target, NodeVariable)
	g.flowEdges = append(g.flowEdges, e)
	return true
}

// CallNodes returns the defined function names, sorted.
func (g *Graph) CallNodes() []string {
	out := make([]string, 0, len(g.callNodes))
	for n := range g.callNodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasCallNode reports whether name is a defined function node.
func (g *Graph) HasCallNode(name string) bool { return g.callNodes[name] }

// CallEdges returns all call edges in insertion order.
func (g *Graph) CallEdges() []CallEdge { return g.callEdges }

// FlowEdges returns all data-flow edges in insertion order.
func (g *Graph) FlowEdges() []FlowEdge { return g.flowEdges }

// FlowEdgesOfKind returns the data-flow edges of one kind, in order.
func (g *Graph) FlowEdgesOfKind(kind EdgeKind) []FlowEdge {
	var out []FlowEdge
	for _, e := range g.flowEdges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// FlowNodes returns data-flow node ids with their types.
func (g *Graph) FlowNodes() map[string]NodeType {
	out := make(map[string]NodeType, len(g.flowNodes))
	for id, t := range g.flowNodes {
		out[id] = t
	}
	return out
}

// Successors returns the distinct callee names of a function, sorted.
func (g *Graph) Successors(caller string) []string {
	seen := make(map[string]bool)
	for _, e := range g.callEdges {
		if e.Caller == caller {
			seen[e.Callee] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
