package graph

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/l3aro/carch/pkg/fact"
	"github.com/l3aro/carch/pkg/symtab"
)

// IssueKind classifies a non-fatal ingestion problem.
type IssueKind string

const (
	// IssueIngestion marks a malformed or inconsistent fact that was skipped.
	IssueIngestion IssueKind = "ingestion"
	// IssueUnknownReference marks a dropped edge whose endpoint is not in the
	// symbol table. Expected for externally declared or library symbols.
	IssueUnknownReference IssueKind = "unknown_reference"
)

// Issue is one recorded ingestion problem. Ingestion never fails the run:
// the offending fact or edge is dropped and processing continues.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Message  string    `json:"message"`
	Location string    `json:"location,omitempty"`
}

// Builder reacts to the fact stream, populating the symbol table and both
// graphs. It is the single writer during the ingestion phase.
type Builder struct {
	symbols *symtab.Table
	graph   *Graph
	issues  []Issue
}

// NewBuilder creates a builder over the given symbol table.
func NewBuilder(symbols *symtab.Table) *Builder {
	return &Builder{symbols: symbols, graph: New()}
}

// Graph returns the graphs under construction.
func (b *Builder) Graph() *Graph { return b.graph }

// Issues returns the issues recorded so far.
func (b *Builder) Issues() []Issue { return b.issues }

func (b *Builder) report(kind IssueKind, loc string, format string, args ...interface{}) {
	b.issues = append(b.issues, Issue{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// Ingest applies one fact. Malformed facts are skipped and reported.
func (b *Builder) Ingest(f fact.Fact) {
	if !f.Valid() {
		b.report(IssueIngestion, "", "malformed fact: kind %q", f.Kind)
		return
	}

	switch f.Kind {
	case fact.KindDeclareFunction:
		b.ingestFunction(f.Function)
	case fact.KindDeclareVariable:
		b.ingestVariable(f.Variable)
	case fact.KindRecordCall:
		b.ingestCall(f.Call)
	case fact.KindRecordAssignment:
		b.ingestAssignment(f.Assignment)
	}
}

// IngestAll applies a fact list in order.
func (b *Builder) IngestAll(facts []fact.Fact) {
	for _, f := range facts {
		b.Ingest(f)
	}
}

func (b *Builder) ingestFunction(d *fact.DeclareFunction) {
	b.symbols.DeclareFunction(d)
	if !d.IsDefinition {
		return
	}

	b.graph.AddCallNode(d.Name)
	b.graph.AddFlowNode(d.Name, NodeFunction)

	for _, p := range d.Params {
		if p.Name == "" {
			continue
		}
		b.graph.AddFlowNode(p.Name, NodeParameter)
		b.graph.AddFlowEdge(FlowEdge{
			Source:   p.Name,
			Target:   d.Name,
			Kind:     EdgeParameter,
			Location: d.Location.String(),
		})
	}
}

func (b *Builder) ingestVariable(d *fact.DeclareVariable) {
	if _, err := b.symbols.DeclareVariable(d); err != nil {
		if errors.Is(err, symtab.ErrConflictingStorage) {
			b.report(IssueIngestion, d.Location.String(), "%v", err)
			return
		}
		b.report(IssueIngestion, d.Location.String(), "declaring %s: %v", d.Name, err)
	}
}

func (b *Builder) ingestCall(c *fact.RecordCall) {
	if c.Caller == "" {
		// Initializer calls at file scope have no caller; nothing to edge.
		return
	}

	b.graph.AddCallEdge(CallEdge{
		Caller:   c.Caller,
		Callee:   c.Callee,
		Location: c.Location.String(),
		Args:     c.Args,
	})
	b.symbols.AddCall(c.Caller, symtab.CallSite{
		Callee:   c.Callee,
		Location: c.Location.String(),
		Args:     c.Args,
	})

	for i, arg := range c.Args {
		if b.symbols.Variable(arg) != nil {
			b.graph.AddFlowEdge(FlowEdge{
				Source:   arg,
				Target:   c.Callee,
				Kind:     EdgeArgument,
				Location: c.Location.String(),
			})
			b.symbols.AddReference(arg, symtab.Reference{
				Function: c.Callee,
				Role:     symtab.RoleArgument,
				ArgIndex: i,
				Location: c.Location.String(),
			})
		} else if isIdentifier(arg) {
			b.report(IssueUnknownReference, c.Location.String(),
				"call to %s: argument %q not in symbol table", c.Callee, arg)
		}
	}

	if c.BoundTo != "" {
		if b.symbols.Variable(c.BoundTo) != nil {
			b.graph.AddFlowEdge(FlowEdge{
				Source:   c.Callee,
				Target:   c.BoundTo,
				Kind:     EdgeReturn,
				Location: c.Location.String(),
			})
			b.symbols.RecordAssignedCallee(c.BoundTo, c.Callee)
		} else {
			b.report(IssueUnknownReference, c.Location.String(),
				"call result bound to unknown variable %q", c.BoundTo)
		}
	}
}

func (b *Builder) ingestAssignment(a *fact.RecordAssignment) {
	target := b.symbols.Variable(a.Target)
	if target == nil {
		b.report(IssueUnknownReference, a.Location.String(),
			"assignment to unknown variable %q", a.Target)
		return
	}

	switch a.Source.Kind {
	case fact.ExprVarRef:
		if b.symbols.Variable(a.Source.VarRef) == nil {
			b.report(IssueUnknownReference, a.Location.String(),
				"assignment from unknown variable %q", a.Source.VarRef)
			return
		}
		b.graph.AddFlowEdge(FlowEdge{
			Source:   a.Source.VarRef,
			Target:   a.Target,
			Kind:     EdgeAssignment,
			Location: a.Location.String(),
		})
		b.symbols.AddReference(a.Source.VarRef, symtab.Reference{
			Function:   a.EnclosingFunction,
			Role:       symtab.RoleAssignSource,
			AssignedTo: a.Target,
			Location:   a.Location.String(),
		})
		b.symbols.AddReference(a.Target, symtab.Reference{
			Function: a.EnclosingFunction,
			Role:     symtab.RoleAssignTarget,
			Location: a.Location.String(),
		})
	case fact.ExprCall:
		// The return edge and allocator bookkeeping come from the paired
		// RecordCall fact; the assignment itself carries no variable source.
		b.symbols.RecordAssignedCallee(a.Target, a.Source.Callee)
	}
}

// isIdentifier reports whether a textual argument binding looks like a
// variable name rather than a literal.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
