// Package cache provides an LRU cache of encoded analysis results with disk
// persistence.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

// Entry is one cached value with metadata.
type Entry struct {
	Key        string    `msgpack:"key"`
	Value      []byte    `msgpack:"value"`
	AccessedAt time.Time `msgpack:"accessed_at"`
	CreatedAt  time.Time `msgpack:"created_at"`
}

// Size returns the number of bytes the entry accounts for.
func (e *Entry) Size() int64 { return int64(len(e.Key) + len(e.Value)) }

// LRUCache is an in-memory LRU cache of byte values.
type LRUCache struct {
	mu           sync.RWMutex
	items        map[string]*listItem
	lru          *list // most recent at front
	maxSize      int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string)
	now          func() time.Time
}

type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list of items.
type list struct {
	head *listItem // most recently accessed
	tail *listItem // least recently accessed
	len  int
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

func (l *list) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

func (l *list) removeBack() *listItem {
	item := l.tail
	if item != nil {
		l.unlink(item)
	}
	return item
}

// Options configures the LRU cache.
type Options struct {
	// MaxSize is the maximum number of entries. 0 means unlimited.
	MaxSize int

	// MaxBytes is the maximum total size of keys and values. 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when an entry is evicted to honour a limit.
	OnEvict func(key string)
}

// New creates an LRU cache.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:    make(map[string]*listItem),
		lru:      &list{},
		maxSize:  opts.MaxSize,
		maxBytes: opts.MaxBytes,
		onEvict:  opts.OnEvict,
		now:      time.Now,
	}
}

// Get returns the value stored under key and marks it most recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}
	item.AccessedAt = c.now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores value under key, evicting least recently used entries if a limit is exceeded.
func (c *LRUCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if item, exists := c.items[key]; exists {
		c.currentBytes -= item.Size()
		item.Value = value
		item.AccessedAt = now
		c.currentBytes += item.Size()
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem{Entry: Entry{Key: key, Value: value, AccessedAt: now, CreatedAt: now}}
	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += item.Size()
	c.evictIfNeeded()
}

// Delete removes key.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)
	c.currentBytes -= item.Size()
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = &list{}
	c.currentBytes = 0
}

// Len returns the number of entries.
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CurrentBytes returns the total size of all entries.
func (c *LRUCache) CurrentBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentBytes
}

// Keys returns the keys from most to least recently used.
func (c *LRUCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, c.lru.len)
	for item := c.lru.head; item != nil; item = item.next {
		keys = append(keys, item.Key)
	}
	return keys
}

func (c *LRUCache) evictIfNeeded() {
	for c.shouldEvict() {
		item := c.lru.removeBack()
		if item == nil {
			return
		}
		delete(c.items, item.Key)
		c.currentBytes -= item.Size()
		if c.onEvict != nil {
			c.onEvict(item.Key)
		}
	}
}

func (c *LRUCache) shouldEvict() bool {
	if c.maxSize > 0 && c.lru.len > c.maxSize {
		return true
	}
	return c.maxBytes > 0 && c.currentBytes > c.maxBytes
}

// Save writes all entries with msgpack, most recently used first.
func (c *LRUCache) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, c.lru.len)
	for item := c.lru.head; item != nil; item = item.next {
		entries = append(entries, item.Entry)
	}
	return msgpack.NewEncoder(w).Encode(entries)
}

// Load replaces the contents of the cache with entries written by Save.
// Limits are applied after loading.
func (c *LRUCache) Load(r io.Reader) error {
	var entries []Entry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem, len(entries))
	c.lru = &list{}
	c.currentBytes = 0

	for i := len(entries) - 1; i >= 0; i-- {
		item := &listItem{Entry: entries[i]}
		if old, dup := c.items[item.Key]; dup {
			c.lru.unlink(old)
			c.currentBytes -= old.Size()
		}
		c.items[item.Key] = item
		c.lru.pushFront(item)
		c.currentBytes += item.Size()
	}
	c.evictIfNeeded()
	return nil
}

// PersistToFile saves the cache to path, creating parent directories.
func PersistToFile(c *LRUCache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFromFile loads the cache from path. A missing file is not an error.
func LoadFromFile(c *LRUCache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}
