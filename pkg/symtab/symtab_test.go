package symtab

import (
	"errors"
	"testing"

	"github.com/l3aro/carch/pkg/fact"
)

func TestDeclareVariableIdempotent(t *testing.T) {
	tab := New()

	first, err := tab.DeclareVariable(&fact.DeclareVariable{
		Name: "p", Storage: fact.StorageAutomatic,
	})
	if err != nil {
		t.Fatalf("DeclareVariable failed: %v", err)
	}

	second, err := tab.DeclareVariable(&fact.DeclareVariable{
		Name: "p", Type: "char *", Storage: fact.StorageAutomatic, IsPointer: true,
	})
	if err != nil {
		t.Fatalf("re-declare failed: %v", err)
	}
	if first != second {
		t.Error("re-declaring should return the same record")
	}
	if second.Type != "char *" || !second.IsPointer {
		t.Errorf("re-declare should fill in metadata, got %+v", second)
	}
	if len(tab.Variables()) != 1 {
		t.Errorf("variable count = %d, want 1", len(tab.Variables()))
	}
}

func TestDeclareVariableStorageConflict(t *testing.T) {
	tab := New()

	if _, err := tab.DeclareVariable(&fact.DeclareVariable{
		Name: "g", Storage: fact.StorageGlobal, IsGlobal: true,
	}); err != nil {
		t.Fatalf("DeclareVariable failed: %v", err)
	}

	_, err := tab.DeclareVariable(&fact.DeclareVariable{
		Name: "g", Storage: fact.StorageAutomatic,
	})
	if !errors.Is(err, ErrConflictingStorage) {
		t.Fatalf("err = %v, want ErrConflictingStorage", err)
	}

	// the existing record survives the conflict
	if v := tab.Variable("g"); v == nil || v.Storage != fact.StorageGlobal {
		t.Errorf("conflicting declaration must not overwrite, got %+v", v)
	}
}

func TestDeclareFunctionUpgrade(t *testing.T) {
	tab := New()

	tab.DeclareFunction(&fact.DeclareFunction{Name: "f"})
	if tab.Function("f").IsDefinition {
		t.Fatal("declaration should not be a definition")
	}

	tab.DeclareFunction(&fact.DeclareFunction{
		Name: "f", IsDefinition: true, ReturnType: "int", StartLine: 3, EndLine: 9,
	})
	fn := tab.Function("f")
	if !fn.IsDefinition || fn.ReturnType != "int" {
		t.Errorf("definition should upgrade the record, got %+v", fn)
	}

	// a later declaration never downgrades
	tab.DeclareFunction(&fact.DeclareFunction{Name: "f"})
	if !tab.Function("f").IsDefinition {
		t.Error("declaration downgraded a definition")
	}
	if len(tab.Functions()) != 1 {
		t.Errorf("function count = %d, want 1", len(tab.Functions()))
	}
}

func TestLocalVariableListing(t *testing.T) {
	tab := New()
	tab.DeclareFunction(&fact.DeclareFunction{Name: "f", IsDefinition: true})

	tab.DeclareVariable(&fact.DeclareVariable{
		Name: "x", Storage: fact.StorageAutomatic, EnclosingFunction: "f",
	})
	tab.DeclareVariable(&fact.DeclareVariable{
		Name: "arg", Storage: fact.StorageParameter, EnclosingFunction: "f",
	})

	locals := tab.Function("f").LocalVariables
	if len(locals) != 1 || locals[0] != "x" {
		t.Errorf("locals = %v, want [x] (parameters are not locals)", locals)
	}
}

func TestMarkHeapMonotonic(t *testing.T) {
	tab := New()
	v, _ := tab.DeclareVariable(&fact.DeclareVariable{
		Name: "p", Storage: fact.StorageAutomatic, IsPointer: true,
	})

	if v.Heap() {
		t.Fatal("fresh variable must not be heap")
	}
	if !v.MarkHeap() {
		t.Error("first MarkHeap should report a change")
	}
	if v.MarkHeap() {
		t.Error("second MarkHeap should be a no-op")
	}
	if !v.Heap() {
		t.Error("heap flag must stick")
	}

	heap := tab.HeapVariables()
	if len(heap) != 1 || heap[0] != "p" {
		t.Errorf("HeapVariables = %v, want [p]", heap)
	}
}

func TestAddCallDeduplicates(t *testing.T) {
	tab := New()
	tab.DeclareFunction(&fact.DeclareFunction{Name: "f", IsDefinition: true})

	site := CallSite{Callee: "g", Location: "a.c:3:5"}
	tab.AddCall("f", site)
	tab.AddCall("f", site)
	tab.AddCall("f", CallSite{Callee: "g", Location: "a.c:9:5"})

	calls := tab.Function("f").Calls
	if len(calls) != 2 {
		t.Errorf("call sites = %d, want 2 (same site deduplicated)", len(calls))
	}
}

func TestReferencesUnknownVariable(t *testing.T) {
	tab := New()
	if tab.AddReference("nope", Reference{Function: "f"}) {
		t.Error("AddReference to unknown variable should report false")
	}
	if tab.RecordAssignedCallee("nope", "malloc") {
		t.Error("RecordAssignedCallee on unknown variable should report false")
	}
}
