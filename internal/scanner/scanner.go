// Package scanner finds program source files under a directory tree.
// It respects .glvignore files with gitignore-style patterns.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	Extension       string   // Only files with this extension are returned; empty means all
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	DefaultExcludes []string // Directory names that are never entered
	IgnoreFileName  string   // Name of the ignore file (default: .glvignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Extension:      ".wl",
		SkipHidden:     true,
		IgnoreFileName: ".glvignore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"node_modules",
			"vendor",
			"testdata",
		},
	}
}

// scopedPattern is a pattern together with the directory of its ignore file.
type scopedPattern struct {
	base string // slash separated, "" for root
	IgnorePattern
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".glvignore"
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns matching files sorted by path. A root that is a
// regular file is returned as the single result.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return []FileInfo{{Path: filepath.Base(absRoot), FullPath: absRoot, Size: info.Size()}}, nil
	}

	var patterns []scopedPattern
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			// Unreadable entries are skipped.
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if rel != "." {
			if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
				return skip(d)
			}
			if d.IsDir() && s.isDefaultExcluded(d.Name()) {
				return filepath.SkipDir
			}
			if ignored(rel, d.IsDir(), patterns) {
				return skip(d)
			}
		}

		if d.IsDir() {
			loaded, err := s.loadIgnoreFile(path, rel)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			patterns = append(patterns, loaded...)
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if s.opts.Extension != "" && filepath.Ext(path) != s.opts.Extension {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func skip(d fs.DirEntry) error {
	if d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnoreFile reads the ignore file in dir, if any. rel is dir relative to the root.
func (s *Scanner) loadIgnoreFile(dir, rel string) ([]scopedPattern, error) {
	f, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	parsed, err := ParseIgnoreFile(f)
	if err != nil {
		return nil, err
	}

	base := rel
	if base == "." {
		base = ""
	}
	scoped := make([]scopedPattern, len(parsed))
	for i, p := range parsed {
		scoped[i] = scopedPattern{base: base, IgnorePattern: p}
	}
	return scoped, nil
}

// ignored applies patterns in order; later negations override earlier matches.
func ignored(rel string, isDir bool, patterns []scopedPattern) bool {
	result := false
	for _, p := range patterns {
		sub := rel
		if p.base != "" {
			if !strings.HasPrefix(rel, p.base+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, p.base+"/")
		}
		if p.Match(sub, isDir) {
			result = !p.IsNegation()
		}
	}
	return result
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
