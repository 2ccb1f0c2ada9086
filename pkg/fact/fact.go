// Package fact defines the normalized fact stream emitted by the C front end.
// A fact is a flat declaration, call, or assignment event, independent of the
// AST it was derived from. Downstream consumers (symbol table, graph builder)
// only ever see this schema, never tree-sitter nodes.
package fact

import "fmt"

// Kind discriminates the four fact variants.
type Kind string

const (
	KindDeclareFunction  Kind = "declare_function"
	KindDeclareVariable  Kind = "declare_variable"
	KindRecordCall       Kind = "record_call"
	KindRecordAssignment Kind = "record_assignment"
)

// Location identifies a source position. A zero Location means the position
// is unknown, which is tolerated everywhere.
type Location struct {
	File   string `json:"file" msgpack:"file"`
	Line   int    `json:"line" msgpack:"line"`
	Column int    `json:"column" msgpack:"column"`
}

// IsZero reports whether the location is unknown.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Column == 0
}

func (l Location) String() string {
	if l.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// ExprKind classifies the right-hand side of an assignment or initializer.
type ExprKind string

const (
	// ExprCall is a call expression; Callee carries the innermost callee name
	// after unwrapping casts and parentheses.
	ExprCall ExprKind = "call"
	// ExprVarRef is a plain variable reference; VarRef carries the name.
	ExprVarRef ExprKind = "var_ref"
	// ExprOther is any expression the adapter does not model further.
	ExprOther ExprKind = "other"
)

// Expr is the structured representation of an initializing or assigning
// expression, sufficient to recognize a call and its callee name.
type Expr struct {
	Kind   ExprKind `json:"kind" msgpack:"kind"`
	Callee string   `json:"callee,omitempty" msgpack:"callee,omitempty"`
	VarRef string   `json:"var_ref,omitempty" msgpack:"var_ref,omitempty"`
	Text   string   `json:"text,omitempty" msgpack:"text,omitempty"`
}

// StorageClass is the declared storage of a variable.
type StorageClass string

const (
	StorageAutomatic StorageClass = "automatic"
	StorageStatic    StorageClass = "static"
	StorageGlobal    StorageClass = "global"
	StorageParameter StorageClass = "parameter"
)

// Param is a single function parameter.
type Param struct {
	Name string `json:"name" msgpack:"name"`
	Type string `json:"type" msgpack:"type"`
}

// DeclareFunction records a function declaration or definition sighting.
type DeclareFunction struct {
	Name         string   `json:"name" msgpack:"name"`
	IsDefinition bool     `json:"is_definition" msgpack:"is_definition"`
	ReturnType   string   `json:"return_type" msgpack:"return_type"`
	Params       []Param  `json:"params" msgpack:"params"`
	StartLine    int      `json:"start_line" msgpack:"start_line"`
	EndLine      int      `json:"end_line" msgpack:"end_line"`
	Location     Location `json:"location" msgpack:"location"`
}

// DeclareVariable records a variable declaration sighting. EnclosingFunction
// is empty for file-scope variables. Init is nil when the declaration has no
// initializer the adapter could model.
type DeclareVariable struct {
	Name              string       `json:"name" msgpack:"name"`
	Type              string       `json:"type" msgpack:"type"`
	Storage           StorageClass `json:"storage" msgpack:"storage"`
	IsPointer         bool         `json:"is_pointer" msgpack:"is_pointer"`
	IsGlobal          bool         `json:"is_global" msgpack:"is_global"`
	IsStatic          bool         `json:"is_static" msgpack:"is_static"`
	Location          Location     `json:"location" msgpack:"location"`
	EnclosingFunction string       `json:"enclosing_function,omitempty" msgpack:"enclosing_function,omitempty"`
	Init              *Expr        `json:"init,omitempty" msgpack:"init,omitempty"`
}

// RecordCall records one call site. Args holds the textual argument bindings
// in order; identifiers are candidate variable references, literals are kept
// verbatim. BoundTo names the variable that receives the call result, when
// the call initializes a declaration or is the source of an assignment.
type RecordCall struct {
	Caller   string   `json:"caller" msgpack:"caller"`
	Callee   string   `json:"callee" msgpack:"callee"`
	Location Location `json:"location" msgpack:"location"`
	Args     []string `json:"args" msgpack:"args"`
	BoundTo  string   `json:"bound_to,omitempty" msgpack:"bound_to,omitempty"`
}

// RecordAssignment records an assignment to a target variable.
type RecordAssignment struct {
	Target            string   `json:"target" msgpack:"target"`
	Source            Expr     `json:"source" msgpack:"source"`
	Location          Location `json:"location" msgpack:"location"`
	EnclosingFunction string   `json:"enclosing_function,omitempty" msgpack:"enclosing_function,omitempty"`
}

// Fact is the tagged union carried on the stream. Exactly one of the variant
// fields is non-nil, selected by Kind.
type Fact struct {
	Kind       Kind              `json:"kind" msgpack:"kind"`
	Function   *DeclareFunction  `json:"function,omitempty" msgpack:"function,omitempty"`
	Variable   *DeclareVariable  `json:"variable,omitempty" msgpack:"variable,omitempty"`
	Call       *RecordCall       `json:"call,omitempty" msgpack:"call,omitempty"`
	Assignment *RecordAssignment `json:"assignment,omitempty" msgpack:"assignment,omitempty"`
}

// NewDeclareFunction wraps a DeclareFunction into a Fact.
func NewDeclareFunction(f DeclareFunction) Fact {
	return Fact{Kind: KindDeclareFunction, Function: &f}
}

// NewDeclareVariable wraps a DeclareVariable into a Fact.
func NewDeclareVariable(v DeclareVariable) Fact {
	return Fact{Kind: KindDeclareVariable, Variable: &v}
}

// NewRecordCall wraps a RecordCall into a Fact.
func NewRecordCall(c RecordCall) Fact {
	return Fact{Kind: KindRecordCall, Call: &c}
}

// NewRecordAssignment wraps a RecordAssignment into a Fact.
func NewRecordAssignment(a RecordAssignment) Fact {
	return Fact{Kind: KindRecordAssignment, Assignment: &a}
}

// Valid reports whether the fact's Kind matches its populated variant.
// Malformed facts are skipped by ingestion, never fatal.
func (f Fact) Valid() bool {
	switch f.Kind {
	case KindDeclareFunction:
		return f.Function != nil && f.Function.Name != ""
	case KindDeclareVariable:
		return f.Variable != nil && f.Variable.Name != ""
	case KindRecordCall:
		return f.Call != nil && f.Call.Callee != ""
	case KindRecordAssignment:
		return f.Assignment != nil && f.Assignment.Target != ""
	default:
		return false
	}
}

// Source yields a finite, ordered fact stream drawn from one input.
type Source interface {
	Facts() ([]Fact, error)
}
