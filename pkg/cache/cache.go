// Package cache provides an LRU cache for extracted fact streams with
// msgpack disk persistence, keyed by source content hash so cached entries
// survive file moves but not edits.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/carch/pkg/fact"
)

// Key derives the cache key for one source file's content.
func Key(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Entry is one cached fact stream with metadata.
type Entry struct {
	Key        string      `msgpack:"key"`
	Facts      []fact.Fact `msgpack:"facts"`
	Path       string      `msgpack:"path"`
	AccessedAt time.Time   `msgpack:"accessed_at"`
	CreatedAt  time.Time   `msgpack:"created_at"`
}

// listItem is an item in the doubly-linked list.
type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list, most recently used at the front.
type list struct {
	head *listItem
	tail *listItem
	len  int
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	if item.prev != nil {
		item.prev.next = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	}
	if item == l.tail {
		l.tail = item.prev
	}
	item.prev = nil
	item.next = l.head
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list) removeBack() *listItem {
	if l.tail == nil {
		return nil
	}
	item := l.tail
	l.tail = item.prev
	if l.tail != nil {
		l.tail.next = nil
	} else {
		l.head = nil
	}
	l.len--
	return item
}

// FactCache is an in-memory LRU over extracted fact streams.
type FactCache struct {
	mu      sync.RWMutex
	items   map[string]*listItem
	lru     *list
	maxSize int
}

// New creates a fact cache holding at most maxSize entries. 0 means
// unlimited.
func New(maxSize int) *FactCache {
	return &FactCache{
		items:   make(map[string]*listItem),
		lru:     &list{},
		maxSize: maxSize,
	}
}

// Get retrieves the fact stream cached under key.
func (c *FactCache) Get(key string) ([]fact.Fact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Facts, true
}

// Set stores a fact stream under key, evicting the least recently used
// entry when full.
func (c *FactCache) Set(key, path string, facts []fact.Fact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.Facts = facts
		item.Path = path
		item.AccessedAt = time.Now()
		c.lru.moveToFront(item)
		return
	}

	now := time.Now()
	item := &listItem{Entry: Entry{
		Key:        key,
		Facts:      facts,
		Path:       path,
		AccessedAt: now,
		CreatedAt:  now,
	}}
	c.items[key] = item
	c.lru.pushFront(item)

	for c.maxSize > 0 && c.lru.len > c.maxSize {
		evicted := c.lru.removeBack()
		if evicted == nil {
			break
		}
		delete(c.items, evicted.Key)
	}
}

// Delete removes a key from the cache.
func (c *FactCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.lru.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.lru.tail = item.prev
	}
	c.lru.len--
	delete(c.items, key)
}

// Clear removes all entries.
func (c *FactCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem)
	c.lru = &list{}
}

// Len returns the number of cached entries.
func (c *FactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Save persists the cache to a writer using msgpack, most recently used
// first.
func (c *FactCache) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, c.lru.len)
	for item := c.lru.head; item != nil; item = item.next {
		entries = append(entries, item.Entry)
	}
	if err := msgpack.NewEncoder(w).Encode(entries); err != nil {
		return fmt.Errorf("encoding fact cache: %w", err)
	}
	return nil
}

// Load restores the cache from a reader, replacing the current contents.
func (c *FactCache) Load(r io.Reader) error {
	var entries []Entry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("decoding fact cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem)
	c.lru = &list{}
	for i := len(entries) - 1; i >= 0; i-- {
		item := &listItem{Entry: entries[i]}
		c.items[item.Key] = item
		c.lru.pushFront(item)
	}
	return nil
}

// SaveFile saves the cache to path.
func (c *FactCache) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile loads the cache from path. A missing file is not an error.
func (c *FactCache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}
