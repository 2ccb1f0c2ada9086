package scanner

import (
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	pattern  string
	negation bool // pattern starts with !
	dirOnly  bool // pattern ends with /
	anchored bool // pattern starts with /
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	}

	p.segments = strings.Split(pattern, "/")
	return p
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

// Match checks if the given path matches this ignore pattern. A directory
// pattern matches the directory and everything under it.
func (p IgnorePattern) Match(relPath string) bool {
	pathSegments := strings.Split(filepath.ToSlash(relPath), "/")

	if p.anchored {
		return p.matchAt(pathSegments, p.segments)
	}
	for start := 0; start < len(pathSegments); start++ {
		if p.matchAt(pathSegments[start:], p.segments) {
			return true
		}
	}
	return false
}

// matchAt matches pattern segments against path segments from the front.
// ** matches any number of intermediate directories. A full-pattern match on
// a path prefix counts for directory patterns and for paths inside a matched
// directory.
func (p IgnorePattern) matchAt(pathSegs, patternSegs []string) bool {
	if len(patternSegs) == 0 {
		return true
	}
	if patternSegs[0] == "**" {
		if len(patternSegs) == 1 {
			return true
		}
		for i := 0; i <= len(pathSegs); i++ {
			if p.matchAt(pathSegs[i:], patternSegs[1:]) {
				return true
			}
		}
		return false
	}
	if len(pathSegs) == 0 {
		return false
	}
	if ok, err := path.Match(patternSegs[0], pathSegs[0]); err != nil || !ok {
		if !strings.EqualFold(patternSegs[0], pathSegs[0]) {
			return false
		}
	}
	return p.matchAt(pathSegs[1:], patternSegs[1:])
}
