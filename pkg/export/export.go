// Package export renders an analysis into the JSON interop document and
// reads it back. Field names are a compatibility contract with downstream
// consumers and must not change.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/l3aro/carch/pkg/graph"
	"github.com/l3aro/carch/pkg/partition"
	"github.com/l3aro/carch/pkg/symtab"
)

// VariableRecord is the exported form of one variable.
type VariableRecord struct {
	Type       string             `json:"type"`
	Storage    string             `json:"storage"`
	Location   string             `json:"location"`
	IsPointer  bool               `json:"is_pointer"`
	IsGlobal   bool               `json:"is_global"`
	IsStatic   bool               `json:"is_static"`
	IsHeap     bool               `json:"is_heap"`
	References []symtab.Reference `json:"references"`
}

// Parameter is one formal parameter of an exported function.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FunctionRecord is the exported form of one function.
type FunctionRecord struct {
	ReturnType     string            `json:"return_type"`
	Parameters     []Parameter       `json:"parameters"`
	LocalVariables []string          `json:"local_variables"`
	Calls          []symtab.CallSite `json:"calls"`
	IsDeclaration  bool              `json:"is_declaration"`
	HasBody        bool              `json:"has_body"`
}

// CallRecord is one caller/callee pair of the flat call list.
type CallRecord struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// Node is one node of an exported graph block.
type Node struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Edge is one edge of an exported graph block.
type Edge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Data   map[string]any `json:"data"`
}

// GraphBlock is the node/edge form shared by the three graph sections.
type GraphBlock struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Document is the full interop schema.
type Document struct {
	Variables     map[string]VariableRecord `json:"variables"`
	FunctionCalls []CallRecord              `json:"function_calls"`
	ControlFlow   GraphBlock                `json:"control_flow"`
	DataFlow      GraphBlock                `json:"data_flow"`
	BusinessLogic GraphBlock                `json:"business_logic"`
	Functions     map[string]FunctionRecord `json:"functions"`
}

// Build assembles the document from the analysis results. The business
// graph may be the zero value when no classifier was configured.
func Build(symbols *symtab.Table, g *graph.Graph, business partition.BusinessGraph) *Document {
	doc := &Document{
		Variables: make(map[string]VariableRecord),
		Functions: make(map[string]FunctionRecord),
	}

	for _, v := range symbols.Variables() {
		refs := v.References
		if refs == nil {
			refs = []symtab.Reference{}
		}
		doc.Variables[v.Name] = VariableRecord{
			Type:       v.Type,
			Storage:    string(v.Storage),
			Location:   v.Location,
			IsPointer:  v.IsPointer,
			IsGlobal:   v.IsGlobal,
			IsStatic:   v.IsStatic,
			IsHeap:     v.Heap() && v.IsPointer,
			References: refs,
		}
	}

	for _, f := range symbols.Functions() {
		params := make([]Parameter, 0, len(f.Params))
		for _, p := range f.Params {
			params = append(params, Parameter{Name: p.Name, Type: p.Type})
		}
		locals := f.LocalVariables
		if locals == nil {
			locals = []string{}
		}
		calls := f.Calls
		if calls == nil {
			calls = []symtab.CallSite{}
		}
		doc.Functions[f.Name] = FunctionRecord{
			ReturnType:     f.ReturnType,
			Parameters:     params,
			LocalVariables: locals,
			Calls:          calls,
			IsDeclaration:  !f.IsDefinition,
			HasBody:        f.IsDefinition,
		}
	}

	doc.FunctionCalls = make([]CallRecord, 0, len(g.CallEdges()))
	for _, e := range g.CallEdges() {
		doc.FunctionCalls = append(doc.FunctionCalls, CallRecord{Caller: e.Caller, Callee: e.Callee})
	}

	doc.ControlFlow = controlFlowBlock(g)
	doc.DataFlow = dataFlowBlock(g)
	doc.BusinessLogic = businessBlock(business)
	return doc
}

func controlFlowBlock(g *graph.Graph) GraphBlock {
	block := GraphBlock{Nodes: []Node{}, Edges: []Edge{}}
	for _, name := range g.CallNodes() {
		block.Nodes = append(block.Nodes, Node{ID: name, Data: map[string]any{"type": "function"}})
	}
	for _, e := range g.CallEdges() {
		data := map[string]any{"location": e.Location}
		if len(e.Args) > 0 {
			data["arguments"] = e.Args
		}
		block.Edges = append(block.Edges, Edge{Source: e.Caller, Target: e.Callee, Data: data})
	}
	return block
}

func dataFlowBlock(g *graph.Graph) GraphBlock {
	block := GraphBlock{Nodes: []Node{}, Edges: []Edge{}}
	nodes := g.FlowNodes()
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		block.Nodes = append(block.Nodes, Node{ID: id, Data: map[string]any{"type": string(nodes[id])}})
	}
	for _, e := range g.FlowEdges() {
		block.Edges = append(block.Edges, Edge{
			Source: e.Source,
			Target: e.Target,
			Data:   map[string]any{"kind": string(e.Kind), "location": e.Location},
		})
	}
	return block
}

func businessBlock(business partition.BusinessGraph) GraphBlock {
	block := GraphBlock{Nodes: []Node{}, Edges: []Edge{}}
	for _, n := range business.Nodes {
		block.Nodes = append(block.Nodes, Node{ID: n.ID, Data: map[string]any{"type": n.Type}})
	}
	for _, e := range business.Edges {
		block.Edges = append(block.Edges, Edge{
			Source: e.Source,
			Target: e.Target,
			Data:   map[string]any{"kind": e.Kind},
		})
	}
	return block
}

// Write encodes the document as indented JSON.
func (d *Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding analysis document: %w", err)
	}
	return nil
}

// WriteFile writes the document to path. In-memory analysis state is not
// touched on failure.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}

// Read decodes a previously exported document.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding analysis document: %w", err)
	}
	return &doc, nil
}

// ReadFile reads and decodes the document at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening analysis document: %w", err)
	}
	defer f.Close()
	return Read(f)
}
