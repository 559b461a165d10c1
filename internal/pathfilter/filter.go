package pathfilter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Filter decides whether an index-relative path is excluded from management.
// Blacklist patterns are fixed at construction; the whitelist can be swapped
// at runtime and bypasses the blacklist for matching prefixes.
type Filter struct {
	patterns []*regexp.Regexp

	mu        sync.RWMutex
	whitelist []string
}

// New compiles the blacklist patterns case-insensitively. An invalid pattern
// fails construction.
func New(patterns []string) (*Filter, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		rx, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("blacklist pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, rx)
	}
	return &Filter{patterns: compiled}, nil
}

// Excluded reports whether relPath matches any blacklist pattern. Whitelisted
// prefixes are never excluded.
func (f *Filter) Excluded(relPath string) bool {
	relPath = strings.TrimPrefix(relPath, "/")
	if relPath == "" || relPath == "." {
		return false
	}
	if f.whitelisted(relPath) {
		return false
	}
	for _, rx := range f.patterns {
		if rx.MatchString(relPath) {
			return true
		}
	}
	return false
}

// SetWhitelist replaces the runtime whitelist. Entries are prefix paths
// relative to the base path; an empty slice clears the whitelist.
func (f *Filter) SetWhitelist(paths []string) {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}
	f.mu.Lock()
	f.whitelist = cleaned
	f.mu.Unlock()
}

// Whitelist returns a copy of the active whitelist prefixes.
func (f *Filter) Whitelist() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.whitelist...)
}

func (f *Filter) whitelisted(relPath string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, prefix := range f.whitelist {
		if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
			return true
		}
	}
	return false
}
