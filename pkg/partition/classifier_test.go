package partition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/carch/pkg/fact"
	"github.com/l3aro/carch/pkg/graph"
	"github.com/l3aro/carch/pkg/symtab"
)

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `- pattern: "^db_"
  module: storage
- pattern: "^ui_"
  module: interface
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "^db_", rules[0].Pattern)
	assert.Equal(t, "storage", rules[0].Module)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestClassifierFirstMatchWins(t *testing.T) {
	c, err := NewClassifier([]Rule{
		{Pattern: "^db_init$", Module: "bootstrap"},
		{Pattern: "^db_", Module: "storage"},
	})
	require.NoError(t, err)

	module, ok := c.Classify("db_init")
	assert.True(t, ok)
	assert.Equal(t, "bootstrap", module)

	module, ok = c.Classify("db_query")
	assert.True(t, ok)
	assert.Equal(t, "storage", module)

	_, ok = c.Classify("main")
	assert.False(t, ok)
}

func TestNewClassifierRejectsBadRules(t *testing.T) {
	_, err := NewClassifier([]Rule{{Pattern: "^db_", Module: ""}})
	assert.Error(t, err, "empty module name")

	_, err = NewClassifier([]Rule{{Pattern: "([", Module: "storage"}})
	assert.Error(t, err, "invalid pattern")
}

func TestBuildBusinessGraph(t *testing.T) {
	g := graph.New()
	for _, name := range []string{"db_open", "db_query", "ui_render", "main"} {
		g.AddCallNode(name)
	}
	g.AddCallEdge(graph.CallEdge{Caller: "ui_render", Callee: "db_query"})
	g.AddCallEdge(graph.CallEdge{Caller: "db_open", Callee: "db_query"})
	g.AddCallEdge(graph.CallEdge{Caller: "main", Callee: "ui_render"})

	symbols := symtab.New()
	_, err := symbols.DeclareVariable(&fact.DeclareVariable{
		Name: "conn", Storage: fact.StorageGlobal, IsGlobal: true,
	})
	require.NoError(t, err)
	symbols.AddReference("conn", symtab.Reference{Function: "db_open"})

	c, err := NewClassifier([]Rule{
		{Pattern: "^db_", Module: "storage"},
		{Pattern: "^ui_", Module: "interface"},
	})
	require.NoError(t, err)

	bg := c.BuildBusinessGraph(g, symbols)

	types := make(map[string]string)
	for _, n := range bg.Nodes {
		types[n.ID] = n.Type
	}
	assert.Equal(t, "module", types["storage"])
	assert.Equal(t, "module", types["interface"])
	assert.Equal(t, "function", types["db_query"])
	assert.Equal(t, "global_variable", types["conn"])
	assert.NotContains(t, types, "main", "unmatched functions are left out")

	kinds := make(map[string][]BusinessEdge)
	for _, e := range bg.Edges {
		kinds[e.Kind] = append(kinds[e.Kind], e)
	}
	assert.Len(t, kinds["contains"], 3)
	require.Len(t, kinds["depends_on"], 1, "intra-module calls and calls from unmatched functions are not dependencies")
	assert.Equal(t, "interface", kinds["depends_on"][0].Source)
	assert.Equal(t, "storage", kinds["depends_on"][0].Target)
	require.Len(t, kinds["uses"], 1)
	assert.Equal(t, "storage", kinds["uses"][0].Source)
	assert.Equal(t, "conn", kinds["uses"][0].Target)
}
