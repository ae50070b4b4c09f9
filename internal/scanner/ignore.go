package scanner

import (
	"bufio"
	"io"
	"path"
	"strings"
)

// IgnorePattern is one gitignore-style line.
//
// Supported syntax: a leading "!" negates, a trailing "/" only matches
// directories, a leading "/" anchors the pattern at the ignore file's directory,
// "**" spans any number of path segments and each segment is a path.Match glob.
type IgnorePattern struct {
	raw      string
	negate   bool
	dirOnly  bool
	anchored bool
	segments []string
}

// ParseIgnorePattern parses one pattern line.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}

	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	}

	p.segments = strings.Split(line, "/")
	return p
}

// ParseIgnoreFile reads patterns from r, skipping blank lines and # comments.
func ParseIgnoreFile(r io.Reader) ([]IgnorePattern, error) {
	var patterns []IgnorePattern
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation reports whether the pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool { return p.negate }

// Match reports whether rel, a slash-separated path, is matched by the pattern
// itself or lies under a matched directory.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	segs := strings.Split(strings.Trim(rel, "/"), "/")

	// The last segment names a directory only when rel is one.
	limit := len(segs)
	if p.dirOnly && !isDir {
		limit--
	}

	lastStart := len(segs) - 1
	if p.anchored {
		lastStart = 0
	}
	for start := 0; start <= lastStart; start++ {
		for end := start + 1; end <= limit; end++ {
			if matchSegments(p.segments, segs[start:end]) {
				return true
			}
		}
	}
	return false
}

func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
