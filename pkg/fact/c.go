package fact

import (
	"fmt"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// cParserPool is a pool of reusable tree-sitter parsers for C.
var cParserPool = sync.Pool{
	New: func() interface{} {
		parser := sitter.NewParser()
		parser.SetLanguage(c.GetLanguage())
		return parser
	},
}

// CAdapter extracts the normalized fact stream from one C translation unit.
// It satisfies Source for a single file.
type CAdapter struct {
	path    string
	content []byte
}

// NewCAdapter creates an adapter for the given file path.
func NewCAdapter(path string) *CAdapter {
	return &CAdapter{path: path}
}

// NewCAdapterFromBytes creates an adapter over in-memory source. The path is
// only used for locations.
func NewCAdapterFromBytes(path string, content []byte) *CAdapter {
	return &CAdapter{path: path, content: content}
}

// Facts parses the translation unit and returns its ordered fact stream.
func (a *CAdapter) Facts() ([]Fact, error) {
	content := a.content
	if content == nil {
		data, err := os.ReadFile(a.path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", a.path, err)
		}
		content = data
	}

	parser := cParserPool.Get().(*sitter.Parser)
	defer cParserPool.Put(parser)

	tree := parser.Parse(nil, content)
	if tree == nil {
		return nil, fmt.Errorf("parsing file %s failed", a.path)
	}
	defer tree.Close()

	w := &cWalker{content: content, path: a.path}
	w.walk(tree.RootNode(), "")
	return w.facts, nil
}

// cWalker accumulates facts during a single AST traversal. The traversal is
// pure with respect to downstream state: it only appends to facts.
type cWalker struct {
	content []byte
	path    string
	facts   []Fact
}

func (w *cWalker) emit(f Fact) {
	w.facts = append(w.facts, f)
}

func (w *cWalker) location(node *sitter.Node) Location {
	if node == nil {
		return Location{}
	}
	return Location{
		File:   w.path,
		Line:   int(node.StartPoint().Row) + 1,
		Column: int(node.StartPoint().Column) + 1,
	}
}

// walk dispatches on node type. enclosing is the name of the surrounding
// function definition, empty at file scope.
func (w *cWalker) walk(node *sitter.Node, enclosing string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_definition":
		w.walkFunctionDefinition(node)
		return
	case "declaration":
		w.walkDeclaration(node, enclosing)
		return
	case "assignment_expression":
		if enclosing != "" {
			w.walkAssignment(node, enclosing)
			return
		}
	case "call_expression":
		if enclosing != "" {
			w.emitCall(node, enclosing, "")
			// Nested calls in arguments still count as call sites.
			if args := node.ChildByFieldName("arguments"); args != nil {
				w.walkChildren(args, enclosing)
			}
			return
		}
	case "comment", "preproc_include":
		return
	}

	w.walkChildren(node, enclosing)
}

func (w *cWalker) walkChildren(node *sitter.Node, enclosing string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i), enclosing)
	}
}

// walkFunctionDefinition emits the DeclareFunction fact, one DeclareVariable
// per parameter, and then walks the body with the function as context.
func (w *cWalker) walkFunctionDefinition(node *sitter.Node) {
	name, params, returnType := w.parseSignature(node)
	if name == "" {
		return
	}

	w.emit(NewDeclareFunction(DeclareFunction{
		Name:         name,
		IsDefinition: true,
		ReturnType:   returnType,
		Params:       params,
		StartLine:    int(node.StartPoint().Row) + 1,
		EndLine:      int(node.EndPoint().Row) + 1,
		Location:     w.location(node),
	}))

	for _, p := range params {
		if p.Name == "" {
			continue
		}
		w.emit(NewDeclareVariable(DeclareVariable{
			Name:              p.Name,
			Type:              p.Type,
			Storage:           StorageParameter,
			IsPointer:         strings.Contains(p.Type, "*"),
			Location:          w.location(node),
			EnclosingFunction: name,
		}))
	}

	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, name)
	}
}

// walkDeclaration handles both function prototypes and variable declarations.
func (w *cWalker) walkDeclaration(node *sitter.Node, enclosing string) {
	if fd := findFunctionDeclarator(node); fd != nil {
		// Prototype: declaration whose declarator is a function declarator.
		name, params, returnType := w.parseSignature(node)
		if name != "" {
			w.emit(NewDeclareFunction(DeclareFunction{
				Name:       name,
				ReturnType: returnType,
				Params:     params,
				Location:   w.location(node),
			}))
		}
		return
	}

	baseType := w.declarationType(node)
	isStatic, isExtern := w.storageSpecifiers(node)
	_ = isExtern

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "init_declarator":
			decl := child.ChildByFieldName("declarator")
			name, pointer := w.declaratorName(decl)
			if name == "" {
				continue
			}
			var init *Expr
			if value := child.ChildByFieldName("value"); value != nil {
				e := w.flattenExpr(value)
				init = &e
			}
			w.emitVariable(node, name, baseType, pointer, isStatic, enclosing, init)
			w.emitInitFacts(child.ChildByFieldName("value"), name, enclosing)
		case "identifier", "pointer_declarator", "array_declarator":
			name, pointer := w.declaratorName(child)
			if name == "" {
				continue
			}
			w.emitVariable(node, name, baseType, pointer, isStatic, enclosing, nil)
		}
	}
}

func (w *cWalker) emitVariable(node *sitter.Node, name, baseType string, pointer, isStatic bool, enclosing string, init *Expr) {
	typ := baseType
	if pointer && !strings.Contains(typ, "*") {
		typ += " *"
	}

	storage := StorageAutomatic
	isGlobal := enclosing == ""
	switch {
	case isStatic:
		storage = StorageStatic
	case isGlobal:
		storage = StorageGlobal
	}

	w.emit(NewDeclareVariable(DeclareVariable{
		Name:              name,
		Type:              typ,
		Storage:           storage,
		IsPointer:         pointer || strings.Contains(baseType, "*"),
		IsGlobal:          isGlobal,
		IsStatic:          isStatic,
		Location:          w.location(node),
		EnclosingFunction: enclosing,
		Init:              init,
	}))
}

// emitInitFacts emits the call or assignment facts implied by an initializer.
// A call initializer binds its result to the declared variable.
func (w *cWalker) emitInitFacts(value *sitter.Node, name, enclosing string) {
	if value == nil {
		return
	}
	expr := w.flattenExpr(value)
	switch expr.Kind {
	case ExprCall:
		callNode := unwrapToCall(value)
		w.emit(NewRecordCall(RecordCall{
			Caller:   enclosing,
			Callee:   expr.Callee,
			Location: w.location(value),
			Args:     w.callArgs(callNode),
			BoundTo:  name,
		}))
	case ExprVarRef:
		w.emit(NewRecordAssignment(RecordAssignment{
			Target:            name,
			Source:            expr,
			Location:          w.location(value),
			EnclosingFunction: enclosing,
		}))
	}
}

// walkAssignment emits RecordAssignment plus a RecordCall when the right-hand
// side is (possibly under casts or parentheses) a call expression.
func (w *cWalker) walkAssignment(node *sitter.Node, enclosing string) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}

	if left.Type() != "identifier" {
		// Field or pointer targets are not tracked as variable assignments,
		// but calls on the right still count.
		w.walk(right, enclosing)
		return
	}
	target := w.nodeText(left)

	expr := w.flattenExpr(right)
	w.emit(NewRecordAssignment(RecordAssignment{
		Target:            target,
		Source:            expr,
		Location:          w.location(node),
		EnclosingFunction: enclosing,
	}))

	if expr.Kind == ExprCall {
		callNode := unwrapToCall(right)
		w.emit(NewRecordCall(RecordCall{
			Caller:   enclosing,
			Callee:   expr.Callee,
			Location: w.location(right),
			Args:     w.callArgs(callNode),
			BoundTo:  target,
		}))
		return
	}

	// Compound right-hand sides may still contain call sites.
	if expr.Kind == ExprOther {
		w.walk(right, enclosing)
	}
}

// emitCall records a bare call site (result not bound to a variable).
func (w *cWalker) emitCall(node *sitter.Node, enclosing, boundTo string) {
	callee := w.calleeName(node)
	if callee == "" {
		return
	}
	w.emit(NewRecordCall(RecordCall{
		Caller:   enclosing,
		Callee:   callee,
		Location: w.location(node),
		Args:     w.callArgs(node),
		BoundTo:  boundTo,
	}))
}

// calleeName resolves the function part of a call expression to a name.
func (w *cWalker) calleeName(call *sitter.Node) string {
	if call == nil {
		return ""
	}
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier", "field_expression":
		return w.nodeText(fn)
	case "parenthesized_expression":
		// (*fp)() and friends: keep the raw text as the callee name.
		return strings.Trim(w.nodeText(fn), "()*")
	default:
		return w.nodeText(fn)
	}
}

// callArgs returns the textual argument bindings of a call in order.
func (w *cWalker) callArgs(call *sitter.Node) []string {
	if call == nil {
		return nil
	}
	argList := call.ChildByFieldName("arguments")
	if argList == nil {
		return nil
	}
	var args []string
	for i := 0; i < int(argList.NamedChildCount()); i++ {
		arg := argList.NamedChild(i)
		if arg == nil || arg.Type() == "comment" {
			continue
		}
		args = append(args, w.nodeText(arg))
	}
	return args
}

// flattenExpr unwraps casts and parentheses and classifies what remains.
func (w *cWalker) flattenExpr(node *sitter.Node) Expr {
	inner := unwrap(node)
	if inner == nil {
		return Expr{Kind: ExprOther}
	}
	switch inner.Type() {
	case "call_expression":
		return Expr{Kind: ExprCall, Callee: w.calleeName(inner), Text: w.nodeText(inner)}
	case "identifier":
		return Expr{Kind: ExprVarRef, VarRef: w.nodeText(inner), Text: w.nodeText(inner)}
	default:
		return Expr{Kind: ExprOther, Text: w.nodeText(inner)}
	}
}

// unwrap strips cast_expression and parenthesized_expression wrappers.
func unwrap(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "cast_expression":
			node = node.ChildByFieldName("value")
		case "parenthesized_expression":
			next := firstNamedChild(node)
			if next == nil {
				return node
			}
			node = next
		default:
			return node
		}
	}
	return nil
}

// unwrapToCall returns the call expression under casts/parens, or nil.
func unwrapToCall(node *sitter.Node) *sitter.Node {
	inner := unwrap(node)
	if inner != nil && inner.Type() == "call_expression" {
		return inner
	}
	return nil
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Type() != "comment" {
			return child
		}
	}
	return nil
}

// parseSignature extracts name, parameters, and return type from a
// function_definition or prototype declaration node.
func (w *cWalker) parseSignature(node *sitter.Node) (string, []Param, string) {
	var returnType string
	var declarator *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_declarator", "pointer_declarator":
			declarator = child
		case "primitive_type", "type_identifier", "sized_type_specifier",
			"struct_specifier", "enum_specifier", "union_specifier":
			if returnType == "" {
				returnType = w.nodeText(child)
			}
		}
	}

	if declarator == nil {
		return "", nil, returnType
	}

	name, params, stars := w.unwrapFunctionDeclarator(declarator)
	if stars > 0 {
		returnType += " " + strings.Repeat("*", stars)
	}
	return name, params, returnType
}

// unwrapFunctionDeclarator peels pointer declarators, counting stars, down to
// the function declarator carrying the name and parameter list.
func (w *cWalker) unwrapFunctionDeclarator(node *sitter.Node) (string, []Param, int) {
	stars := 0
	for node != nil && node.Type() == "pointer_declarator" {
		stars++
		node = node.ChildByFieldName("declarator")
	}
	if node == nil || node.Type() != "function_declarator" {
		return "", nil, stars
	}

	var name string
	if d := node.ChildByFieldName("declarator"); d != nil && d.Type() == "identifier" {
		name = w.nodeText(d)
	}

	var params []Param
	if list := node.ChildByFieldName("parameters"); list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			p := list.NamedChild(i)
			if p == nil || p.Type() != "parameter_declaration" {
				continue
			}
			params = append(params, w.parseParameter(p))
		}
	}
	return name, params, stars
}

func (w *cWalker) parseParameter(node *sitter.Node) Param {
	typ := w.declarationType(node)
	name, pointer := w.declaratorName(node.ChildByFieldName("declarator"))
	if pointer && !strings.Contains(typ, "*") {
		typ += " *"
	}
	return Param{Name: name, Type: typ}
}

// declaratorName resolves a declarator node to its identifier, reporting
// whether a pointer declarator was crossed on the way.
func (w *cWalker) declaratorName(node *sitter.Node) (string, bool) {
	pointer := false
	for node != nil {
		switch node.Type() {
		case "identifier":
			return w.nodeText(node), pointer
		case "pointer_declarator":
			pointer = true
			node = node.ChildByFieldName("declarator")
		case "array_declarator", "parenthesized_declarator":
			node = node.ChildByFieldName("declarator")
			if node == nil {
				return "", pointer
			}
		default:
			return "", pointer
		}
	}
	return "", pointer
}

// declarationType returns the type text of a declaration-like node.
func (w *cWalker) declarationType(node *sitter.Node) string {
	if t := node.ChildByFieldName("type"); t != nil {
		return w.nodeText(t)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "primitive_type", "type_identifier", "sized_type_specifier",
			"struct_specifier", "enum_specifier", "union_specifier":
			return w.nodeText(child)
		}
	}
	return ""
}

func (w *cWalker) storageSpecifiers(node *sitter.Node) (isStatic, isExtern bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || child.Type() != "storage_class_specifier" {
			continue
		}
		switch w.nodeText(child) {
		case "static":
			isStatic = true
		case "extern":
			isExtern = true
		}
	}
	return isStatic, isExtern
}

// findFunctionDeclarator reports the function declarator of a prototype
// declaration, unwrapping a pointer return type.
func findFunctionDeclarator(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_declarator":
			return child
		case "pointer_declarator":
			inner := child
			for inner != nil && inner.Type() == "pointer_declarator" {
				inner = inner.ChildByFieldName("declarator")
			}
			if inner != nil && inner.Type() == "function_declarator" {
				return inner
			}
		}
	}
	return nil
}

func (w *cWalker) nodeText(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint32(len(w.content)) || end > uint32(len(w.content)) {
		return ""
	}
	return string(w.content[start:end])
}
