package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/carch/pkg/fact"
)

func sampleFacts(name string) []fact.Fact {
	return []fact.Fact{
		fact.NewDeclareFunction(fact.DeclareFunction{Name: name, IsDefinition: true}),
		fact.NewDeclareVariable(fact.DeclareVariable{
			Name: name + "_buf", Type: "char *",
			Storage: fact.StorageAutomatic, IsPointer: true, EnclosingFunction: name,
		}),
	}
}

func TestKeyIsContentHash(t *testing.T) {
	a := Key([]byte("int main(void) { return 0; }"))
	b := Key([]byte("int main(void) { return 0; }"))
	c := Key([]byte("int main(void) { return 1; }"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestGetSet(t *testing.T) {
	c := New(0)

	_, found := c.Get("missing")
	assert.False(t, found)

	facts := sampleFacts("main")
	c.Set("k1", "main.c", facts)

	got, found := c.Get("k1")
	require.True(t, found)
	assert.Equal(t, facts, got)
	assert.Equal(t, 1, c.Len())
}

func TestSetUpdatesExisting(t *testing.T) {
	c := New(0)
	c.Set("k1", "old.c", sampleFacts("old"))
	c.Set("k1", "new.c", sampleFacts("new"))

	got, found := c.Get("k1")
	require.True(t, found)
	assert.Equal(t, "new", got[0].Function.Name)
	assert.Equal(t, 1, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c := New(2)
	c.Set("k1", "a.c", sampleFacts("a"))
	c.Set("k2", "b.c", sampleFacts("b"))

	// Touch k1 so k2 becomes the eviction victim.
	_, found := c.Get("k1")
	require.True(t, found)

	c.Set("k3", "c.c", sampleFacts("c"))

	assert.Equal(t, 2, c.Len())
	_, found = c.Get("k2")
	assert.False(t, found, "least recently used entry is evicted")
	_, found = c.Get("k1")
	assert.True(t, found)
	_, found = c.Get("k3")
	assert.True(t, found)
}

func TestDelete(t *testing.T) {
	c := New(0)
	c.Set("k1", "a.c", sampleFacts("a"))
	c.Set("k2", "b.c", sampleFacts("b"))

	c.Delete("k1")
	c.Delete("never-existed")

	assert.Equal(t, 1, c.Len())
	_, found := c.Get("k1")
	assert.False(t, found)
}

func TestClear(t *testing.T) {
	c := New(0)
	c.Set("k1", "a.c", sampleFacts("a"))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, found := c.Get("k1")
	assert.False(t, found)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := New(0)
	c.Set("k1", "a.c", sampleFacts("a"))
	c.Set("k2", "b.c", sampleFacts("b"))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	restored := New(0)
	require.NoError(t, restored.Load(&buf))

	assert.Equal(t, 2, restored.Len())
	got, found := restored.Get("k1")
	require.True(t, found)
	assert.Equal(t, "a", got[0].Function.Name)
	assert.True(t, got[1].Variable.IsPointer, "fact payloads survive the round trip")
}

func TestLoadPreservesRecencyOrder(t *testing.T) {
	c := New(0)
	c.Set("old", "a.c", sampleFacts("a"))
	c.Set("new", "b.c", sampleFacts("b"))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	restored := New(2)
	require.NoError(t, restored.Load(&buf))

	// One more insert must evict the older of the two restored entries.
	restored.Set("k3", "c.c", sampleFacts("c"))
	_, found := restored.Get("old")
	assert.False(t, found)
	_, found = restored.Get("new")
	assert.True(t, found)
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.cache")

	c := New(0)
	c.Set("k1", "a.c", sampleFacts("a"))
	require.NoError(t, c.SaveFile(path))

	restored := New(0)
	require.NoError(t, restored.LoadFile(path))
	assert.Equal(t, 1, restored.Len())
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	c := New(0)
	require.NoError(t, c.LoadFile(filepath.Join(t.TempDir(), "absent.cache")))
	assert.Equal(t, 0, c.Len())
}
