// Package symtab holds the canonical records for every variable and function
// seen across the ingested fact stream. It is a pure data store: records are
// created and updated during ingestion, and after ingestion only the heap
// flag of a variable may change.
package symtab

import (
	"errors"
	"fmt"
	"sort"

	"github.com/l3aro/carch/pkg/fact"
)

// ErrConflictingStorage is returned when a re-declaration disagrees with the
// recorded storage class of an existing variable.
var ErrConflictingStorage = errors.New("conflicting storage class")

// RefRole classifies how a variable was referenced.
type RefRole string

const (
	RoleArgument     RefRole = "argument"
	RoleAssignTarget RefRole = "assignment-target"
	RoleAssignSource RefRole = "assignment-source"
)

// Reference is one observed use of a variable.
type Reference struct {
	Function   string  `json:"function,omitempty"`
	Role       RefRole `json:"role"`
	ArgIndex   int     `json:"arg_index,omitempty"`
	AssignedTo string  `json:"assigned_to,omitempty"`
	Location   string  `json:"location"`
}

// Variable is the canonical record for one variable. The heap flag is
// monotonic: MarkHeap is the only way to change it and it never resets.
type Variable struct {
	Name          string
	Type          string
	Storage       fact.StorageClass
	IsPointer     bool
	IsGlobal      bool
	IsStatic      bool
	Location      string
	OwnerFunction string
	Init          *fact.Expr
	References    []Reference

	// AssignedCallees collects callee names of calls whose result was bound
	// to this variable, for allocator classification.
	AssignedCallees []string

	heap bool
}

// Heap reports the heap-provenance flag.
func (v *Variable) Heap() bool { return v.heap }

// MarkHeap sets the heap flag. It reports whether the flag changed.
func (v *Variable) MarkHeap() bool {
	if v.heap {
		return false
	}
	v.heap = true
	return true
}

// CallSite is one outgoing call recorded on a function.
type CallSite struct {
	Callee   string   `json:"function"`
	Location string   `json:"location"`
	Args     []string `json:"arguments"`
}

// Function is the canonical record for one function. At most one definition
// record exists per name within a run: a definition sighting upgrades a
// declaration-only record in place, and a later declaration never downgrades
// a definition.
type Function struct {
	Name           string
	IsDefinition   bool
	ReturnType     string
	Params         []fact.Param
	LocalVariables []string
	Calls          []CallSite
	StartLine      int
	EndLine        int
	Location       string
}

// Table is the symbol table for one analysis run.
type Table struct {
	variables map[string]*Variable
	functions map[string]*Function
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{
		variables: make(map[string]*Variable),
		functions: make(map[string]*Function),
	}
}

// DeclareVariable ingests a variable declaration fact. Re-declaring an
// existing variable with the same identity updates metadata instead of
// duplicating the record. A storage-class conflict is reported but the
// existing record is preserved.
func (t *Table) DeclareVariable(d *fact.DeclareVariable) (*Variable, error) {
	if v, ok := t.variables[d.Name]; ok {
		if v.Storage != d.Storage {
			return v, fmt.Errorf("variable %s: %w: have %s, got %s",
				d.Name, ErrConflictingStorage, v.Storage, d.Storage)
		}
		if v.Type == "" {
			v.Type = d.Type
		}
		v.IsPointer = v.IsPointer || d.IsPointer
		if v.Init == nil {
			v.Init = d.Init
		}
		return v, nil
	}

	v := &Variable{
		Name:          d.Name,
		Type:          d.Type,
		Storage:       d.Storage,
		IsPointer:     d.IsPointer,
		IsGlobal:      d.IsGlobal,
		IsStatic:      d.IsStatic,
		Location:      d.Location.String(),
		OwnerFunction: d.EnclosingFunction,
		Init:          d.Init,
	}
	t.variables[d.Name] = v

	if d.EnclosingFunction != "" && d.Storage != fact.StorageParameter {
		if fn, ok := t.functions[d.EnclosingFunction]; ok {
			fn.LocalVariables = append(fn.LocalVariables, d.Name)
		}
	}
	return v, nil
}

// DeclareFunction ingests a function sighting. Definitions upgrade
// declaration-only records; declarations never overwrite definitions.
func (t *Table) DeclareFunction(d *fact.DeclareFunction) *Function {
	if fn, ok := t.functions[d.Name]; ok {
		if d.IsDefinition && !fn.IsDefinition {
			fn.IsDefinition = true
			fn.ReturnType = d.ReturnType
			fn.Params = d.Params
			fn.StartLine = d.StartLine
			fn.EndLine = d.EndLine
			fn.Location = d.Location.String()
		}
		return fn
	}

	fn := &Function{
		Name:         d.Name,
		IsDefinition: d.IsDefinition,
		ReturnType:   d.ReturnType,
		Params:       d.Params,
		StartLine:    d.StartLine,
		EndLine:      d.EndLine,
		Location:     d.Location.String(),
	}
	t.functions[d.Name] = fn
	return fn
}

// AddCall appends a call site to the caller's record, if the caller is known.
func (t *Table) AddCall(caller string, site CallSite) {
	fn, ok := t.functions[caller]
	if !ok {
		return
	}
	for _, c := range fn.Calls {
		if c.Callee == site.Callee && c.Location == site.Location {
			return
		}
	}
	fn.Calls = append(fn.Calls, site)
}

// AddReference appends a reference site to a variable, if known.
func (t *Table) AddReference(name string, ref Reference) bool {
	v, ok := t.variables[name]
	if !ok {
		return false
	}
	v.References = append(v.References, ref)
	return true
}

// RecordAssignedCallee remembers that a call result was bound to a variable.
func (t *Table) RecordAssignedCallee(name, callee string) bool {
	v, ok := t.variables[name]
	if !ok {
		return false
	}
	v.AssignedCallees = append(v.AssignedCallees, callee)
	return true
}

// Variable returns the record for name, or nil.
func (t *Table) Variable(name string) *Variable {
	return t.variables[name]
}

// Function returns the record for name, or nil.
func (t *Table) Function(name string) *Function {
	return t.functions[name]
}

// Variables returns all variable records sorted by name.
func (t *Table) Variables() []*Variable {
	out := make([]*Variable, 0, len(t.variables))
	for _, v := range t.variables {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Functions returns all function records sorted by name.
func (t *Table) Functions() []*Function {
	out := make([]*Function, 0, len(t.functions))
	for _, fn := range t.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HeapVariables returns the names of all heap-classified variables, sorted.
func (t *Table) HeapVariables() []string {
	var names []string
	for name, v := range t.variables {
		if v.heap {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
