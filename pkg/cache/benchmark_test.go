package cache

import (
	"fmt"
	"testing"
)

func BenchmarkCacheGet(b *testing.B) {
	c := New(10000)
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key%d", i), "a.c", sampleFacts("f"))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key999")
	}
}

func BenchmarkCacheSet(b *testing.B) {
	c := New(10000)
	facts := sampleFacts("f")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(fmt.Sprintf("key%d", i), "a.c", facts)
	}
}
