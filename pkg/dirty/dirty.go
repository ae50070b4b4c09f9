// Package dirty remembers the content digest of every program a batch run
// analyzed, so later runs can tell which programs changed in between.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the default filename for the tracker state.
const DefaultFile = "programs.yaml"

// programState represents the last seen state of a single program.
type programState struct {
	Path     string `yaml:"path"`
	Digest   string `yaml:"digest"`
	Dirty    bool   `yaml:"dirty"`
	LastSeen int64  `yaml:"last_seen"` // Unix timestamp
}

// trackerData is the on-disk structure.
type trackerData struct {
	Version  int            `yaml:"version"`
	Programs []programState `yaml:"programs"`
}

// Tracker tracks changed programs by content digest. Paths are used as given;
// callers pass them relative to the scanned root.
type Tracker struct {
	mu       sync.RWMutex
	programs map[string]programState
	dir      string
	file     string
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDir sets the directory holding the state file.
func WithDir(dir string) Option {
	return func(t *Tracker) {
		t.dir = dir
	}
}

// New creates a new Tracker with optional configuration.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		programs: make(map[string]programState),
		dir:      ".",
		file:     DefaultFile,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Tracker persisted in dir and loads its saved state.
func Open(dir string) (*Tracker, error) {
	t := New(WithDir(dir))
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Digest returns the SHA-256 of a program's source as hex.
func Digest(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Check records src as the current content of path and reports whether it
// differs from what was recorded before. New and changed programs are marked dirty.
func (t *Tracker) Check(path, src string) bool {
	digest := Digest(src)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, exists := t.programs[path]
	if exists && existing.Digest == digest {
		existing.LastSeen = t.now().Unix()
		t.programs[path] = existing
		return existing.Dirty
	}

	t.programs[path] = programState{
		Path:     path,
		Digest:   digest,
		Dirty:    true,
		LastSeen: t.now().Unix(),
	}
	return true
}

// IsDirty reports whether path is currently marked dirty.
func (t *Tracker) IsDirty(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.programs[path]
	return exists && state.Dirty
}

// Dirty returns every dirty program, sorted.
func (t *Tracker) Dirty() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]string, 0, len(t.programs))
	for _, state := range t.programs {
		if state.Dirty {
			result = append(result, state.Path)
		}
	}
	sort.Strings(result)
	return result
}

// ClearDirty clears the dirty flag of paths, or of every program when none are given.
func (t *Tracker) ClearDirty(paths ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(paths) == 0 {
		for path, state := range t.programs {
			state.Dirty = false
			t.programs[path] = state
		}
		return
	}

	for _, path := range paths {
		if state, exists := t.programs[path]; exists {
			state.Dirty = false
			t.programs[path] = state
		}
	}
}

// Count returns the number of dirty programs.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, state := range t.programs {
		if state.Dirty {
			count++
		}
	}
	return count
}

// TotalCount returns the number of tracked programs.
func (t *Tracker) TotalCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.programs)
}

// Remove stops tracking path, so its next Check reports a change.
func (t *Tracker) Remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.programs, path)
}

// Prune drops every program not in keep and returns the dropped paths, sorted.
func (t *Tracker) Prune(keep []string) []string {
	wanted := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		wanted[p] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for path := range t.programs {
		if _, ok := wanted[path]; !ok {
			delete(t.programs, path)
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	return removed
}

// Path returns the full path of the state file.
func (t *Tracker) Path() string {
	return filepath.Join(t.dir, t.file)
}

// Save persists the state file, creating its directory.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("failed to create tracker directory: %w", err)
	}

	f, err := os.Create(t.Path())
	if err != nil {
		return fmt.Errorf("failed to create tracker file: %w", err)
	}
	defer f.Close()

	if err := t.SaveTo(f); err != nil {
		return err
	}
	return f.Close()
}

// Load restores the state file. A missing file leaves the tracker empty.
func (t *Tracker) Load() error {
	f, err := os.Open(t.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open tracker file: %w", err)
	}
	defer f.Close()

	return t.LoadFrom(f)
}

// SaveTo writes the state to w, sorted by path.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	programs := make([]programState, 0, len(t.programs))
	for _, state := range t.programs {
		programs = append(programs, state)
	}
	t.mu.RUnlock()

	sort.Slice(programs, func(i, j int) bool { return programs[i].Path < programs[j].Path })

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(trackerData{Version: 1, Programs: programs}); err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}
	return enc.Close()
}

// LoadFrom replaces the state with what r holds.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data trackerData
	if err := yaml.NewDecoder(r).Decode(&data); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode tracker state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.programs = make(map[string]programState, len(data.Programs))
	for _, state := range data.Programs {
		t.programs[state.Path] = state
	}
	return nil
}
