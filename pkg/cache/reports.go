package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/render"
)

// FileName is the name of the persisted cache inside the cache directory.
const FileName = "reports.msgpack"

// Key identifies one analysis: the program text and every option that can
// change the report.
type Key struct {
	Source        string
	Order         cfg.Order
	Strategy      cfg.Strategy
	MaxIterations int
}

// String returns the cache key: the source digest followed by a hash of the options.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Source))
	opts := struct {
		Order         string
		Strategy      string
		MaxIterations int
	}{string(k.Order), string(k.Strategy), k.MaxIterations}

	h, err := hashstructure.Hash(opts, hashstructure.FormatV2, nil)
	if err != nil {
		// Only reachable for unhashable types, which opts never contains.
		panic(err)
	}
	return fmt.Sprintf("%s-%016x", hex.EncodeToString(sum[:]), h)
}

// Stats describes cache usage.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// HitRate returns hits over lookups, or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// ReportCache stores analysis reports encoded with msgpack. It is safe for
// concurrent use.
type ReportCache struct {
	lru  *LRUCache
	path string

	mu        sync.Mutex
	hitCount  int64
	missCount int64
	dirty     bool
}

// NewReportCache creates an in-memory cache holding up to maxEntries reports.
func NewReportCache(maxEntries int) *ReportCache {
	return &ReportCache{lru: New(Options{MaxSize: maxEntries})}
}

// Open creates a cache persisted in dir and loads any existing contents.
func Open(dir string, maxEntries int) (*ReportCache, error) {
	c := NewReportCache(maxEntries)
	c.path = filepath.Join(dir, FileName)
	if err := LoadFromFile(c.lru, c.path); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the backing file, or "" for an in-memory cache.
func (c *ReportCache) Path() string { return c.path }

// Get returns the report stored under k, or ErrKeyNotFound.
func (c *ReportCache) Get(k Key) (*render.Report, error) {
	data, found := c.lru.Get(k.String())

	c.mu.Lock()
	if found {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.mu.Unlock()

	if !found {
		return nil, ErrKeyNotFound
	}

	var r render.Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		c.lru.Delete(k.String())
		return nil, fmt.Errorf("decoding cached report: %w", err)
	}
	return &r, nil
}

// Put stores r under k.
func (c *ReportCache) Put(k Key, r *render.Report) error {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	c.lru.Set(k.String(), data)

	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
	return nil
}

// Clear drops every entry and resets the counters.
func (c *ReportCache) Clear() {
	c.lru.Clear()

	c.mu.Lock()
	c.hitCount, c.missCount = 0, 0
	c.dirty = true
	c.mu.Unlock()
}

// Stats returns the current usage counters.
func (c *ReportCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:       c.lru.Len(),
		CurrentBytes: c.lru.CurrentBytes(),
		HitCount:     c.hitCount,
		MissCount:    c.missCount,
	}
}

// Flush writes the cache to its file if it changed since it was opened.
// It does nothing for an in-memory cache.
func (c *ReportCache) Flush() error {
	c.mu.Lock()
	dirty := c.dirty
	c.mu.Unlock()

	if c.path == "" || !dirty {
		return nil
	}
	if err := PersistToFile(c.lru, c.path); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}
