package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	tmpDir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(tmpDir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
	return tmpDir
}

func scanPaths(t *testing.T, results []FileInfo) map[string]bool {
	t.Helper()
	found := make(map[string]bool)
	for _, f := range results {
		found[f.Path] = true
	}
	return found
}

func TestScannerScan(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		"main.c":           "int main(void) { return 0; }",
		"src/parser.c":     "void parse(void) {}",
		"include/parser.h": "void parse(void);",
		"README.md":        "# Test",
		"notes.txt":        "notes",
		".hidden/a.c":      "int hidden;",
		"build/gen.c":      "int generated;",
		".git/hook.c":      "int hook;",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := scanPaths(t, results)

	for _, expected := range []string{"main.c", "src/parser.c", "include/parser.h"} {
		if !found[expected] {
			t.Errorf("Expected to find %s, but it wasn't found", expected)
		}
	}
	for _, excluded := range []string{"README.md", "notes.txt", ".hidden/a.c", "build/gen.c", ".git/hook.c"} {
		if found[excluded] {
			t.Errorf("Expected %s to be excluded, but it was found", excluded)
		}
	}

	for _, f := range results {
		switch f.Path {
		case "include/parser.h":
			if !f.IsHeader {
				t.Errorf("%s should be marked as a header", f.Path)
			}
		default:
			if f.IsHeader {
				t.Errorf("%s should not be marked as a header", f.Path)
			}
		}
	}
}

func TestScannerExcludesHeaders(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		"main.c":   "int main(void) { return 0; }",
		"main.h":   "int main(void);",
		"util/a.h": "void a(void);",
	})

	opts := DefaultOptions()
	opts.IncludeHeaders = false
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := scanPaths(t, results)

	if !found["main.c"] {
		t.Error("main.c should be found")
	}
	if found["main.h"] || found["util/a.h"] {
		t.Error("headers should be excluded when IncludeHeaders is false")
	}
}

func TestScannerWithCarchignore(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		".carchignore":   "generated/\n*_test.c\n!keep_test.c\n",
		"main.c":         "int main(void) { return 0; }",
		"generated/g.c":  "int g;",
		"lexer_test.c":   "int t;",
		"keep_test.c":    "int k;",
		"src/sub_test.c": "int s;",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := scanPaths(t, results)

	if !found["main.c"] {
		t.Error("main.c should be found")
	}
	if found["generated/g.c"] {
		t.Error("generated/ contents should be ignored")
	}
	if found["lexer_test.c"] || found["src/sub_test.c"] {
		t.Error("*_test.c should be ignored at any depth")
	}
	if !found["keep_test.c"] {
		t.Error("negation pattern should re-include keep_test.c")
	}
}

func TestScannerNestedIgnoreFiles(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		"main.c":             "int main(void) { return 0; }",
		"third/.carchignore": "legacy.c\n",
		"third/legacy.c":     "int old;",
		"third/current.c":    "int cur;",
	})

	// "third" collides with no default exclude; "third_party" does.
	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := scanPaths(t, results)

	if found["third/legacy.c"] {
		t.Error("nested ignore file should apply to its directory")
	}
	if !found["third/current.c"] {
		t.Error("third/current.c should be found")
	}
}

func TestScanConvenience(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{"only.c": "int x;"})

	results, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 1 || results[0].Path != "only.c" {
		t.Errorf("Scan results = %v, want only.c", results)
	}
	if results[0].Size == 0 {
		t.Error("Size should be recorded")
	}
	if results[0].FullPath == "" {
		t.Error("FullPath should be recorded")
	}
}
