package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/carch/pkg/fact"
	"github.com/l3aro/carch/pkg/partition"
)

const sampleProgram = `#include <stdlib.h>

static int counter;

char *grab(int n) {
    char *p = malloc(n);
    return p;
}

void consume(int n) {
    char *r;
    char *q = grab(n);
    r = q;
    counter = n;
}
`

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunEndToEnd(t *testing.T) {
	path := writeSource(t, "sample.c", sampleProgram)

	opts := DefaultOptions()
	opts.Algorithm = partition.AlgorithmComponents
	a, err := Run([]string{path}, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{path}, a.Files)

	grab := a.Symbols.Function("grab")
	require.NotNil(t, grab)
	assert.True(t, grab.IsDefinition)
	assert.Contains(t, a.Graph.Successors("consume"), "grab")

	heapVars := a.Symbols.HeapVariables()
	assert.Contains(t, heapVars, "p", "allocation site")
	assert.Contains(t, heapVars, "q", "bound to the result of an allocating function")
	assert.Contains(t, heapVars, "r", "propagated over r = q")
	assert.NotContains(t, heapVars, "counter")

	assert.Equal(t, 1, a.Heap.Direct)
	assert.GreaterOrEqual(t, a.Heap.Propagated, 2)

	require.Len(t, a.Partition.Modules, 1, "grab and consume are one component")
	assert.ElementsMatch(t, []string{"grab", "consume"}, a.Partition.Modules[0].Members)

	doc := a.Document()
	assert.True(t, doc.Variables["q"].IsHeap)
	assert.True(t, doc.Functions["consume"].HasBody)
}

func TestUnreadableFileIsIsolated(t *testing.T) {
	good := writeSource(t, "good.c", sampleProgram)
	missing := filepath.Join(t.TempDir(), "absent.c")

	opts := DefaultOptions()
	opts.Algorithm = partition.AlgorithmComponents
	a, err := Run([]string{good, missing}, opts)
	require.NoError(t, err, "a per-file failure never aborts the run")

	assert.Equal(t, []string{good}, a.Files)
	require.NotNil(t, a.Symbols.Function("grab"), "the good file is still analyzed")

	var skipped []Issue
	for _, issue := range a.Issues {
		if issue.Kind == IssueFileSkipped {
			skipped = append(skipped, issue)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, missing, skipped[0].Location)
}

func TestIngestionClosesAfterFinish(t *testing.T) {
	a, err := New(DefaultOptions())
	require.NoError(t, err)
	a.Finish()

	assert.Error(t, a.IngestFile("whatever.c"))
	assert.Error(t, a.IngestFacts(nil))

	// Finish is idempotent once the phases have run.
	partitioned := a.Partition
	a.Finish()
	assert.Equal(t, partitioned, a.Partition)
}

func TestIngestFactsDirect(t *testing.T) {
	a, err := New(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, a.IngestFacts([]fact.Fact{
		fact.NewDeclareFunction(fact.DeclareFunction{Name: "solo", IsDefinition: true}),
	}))
	a.Finish()

	assert.True(t, a.Graph.HasCallNode("solo"))
	assert.True(t, a.Graph.Frozen())
}

func TestBusinessGraphFromRules(t *testing.T) {
	path := writeSource(t, "sample.c", sampleProgram)

	opts := DefaultOptions()
	opts.Algorithm = partition.AlgorithmComponents
	opts.Rules = []partition.Rule{
		{Pattern: "^grab$", Module: "allocation"},
		{Pattern: "^consume$", Module: "processing"},
	}
	a, err := Run([]string{path}, opts)
	require.NoError(t, err)

	require.NotEmpty(t, a.Business.Nodes)
	assert.NotEmpty(t, a.Business.Edges)

	var dependsOn int
	for _, e := range a.Business.Edges {
		if e.Kind == "depends_on" {
			dependsOn++
			assert.Equal(t, "processing", e.Source)
			assert.Equal(t, "allocation", e.Target)
		}
	}
	assert.Equal(t, 1, dependsOn)
}

func TestNewRejectsInvalidRules(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules = []partition.Rule{{Pattern: "([", Module: "broken"}}

	_, err := New(opts)
	assert.Error(t, err)
}

func TestExportWritesDocument(t *testing.T) {
	path := writeSource(t, "sample.c", sampleProgram)

	opts := DefaultOptions()
	opts.Algorithm = partition.AlgorithmComponents
	a, err := Run([]string{path}, opts)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, a.Export(out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
