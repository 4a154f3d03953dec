// Package pathfilter decides which repository paths auditor tracks.
package pathfilter

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects paths by extension, excluded prefix and excluded glob.
// The zero value allows every path.
type Filter struct {
	// Extensions lists allowed file extensions such as ".go". Empty allows
	// every extension.
	Extensions []string
	// ExcludedPrefixes are path prefixes that are never tracked or diffed.
	ExcludedPrefixes []string
	// ExcludedGlobs are doublestar patterns, e.g. "**/*_gen.go".
	ExcludedGlobs []string
}

// Excluded reports whether p falls under an excluded prefix or glob.
func (f Filter) Excluded(p string) bool {
	p = clean(p)
	if HasExcludedPrefix(p, f.ExcludedPrefixes) {
		return true
	}
	for _, pattern := range f.ExcludedGlobs {
		if matched, _ := doublestar.Match(pattern, p); matched {
			return true
		}
	}
	return false
}

// Allowed reports whether p has an allowed extension and is not excluded.
func (f Filter) Allowed(p string) bool {
	if f.Excluded(p) {
		return false
	}
	if len(f.Extensions) == 0 {
		return true
	}
	ext := path.Ext(p)
	for _, e := range f.Extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Validate reports the first malformed glob pattern.
func (f Filter) Validate() error {
	for _, pattern := range f.ExcludedGlobs {
		if !doublestar.ValidatePattern(pattern) {
			return doublestar.ErrBadPattern
		}
	}
	return nil
}

// HasExcludedPrefix reports whether p starts with any of prefixes.
func HasExcludedPrefix(p string, prefixes []string) bool {
	p = clean(p)
	for _, prefix := range prefixes {
		prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "/")
		if prefix != "" && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func clean(p string) string {
	return strings.TrimPrefix(p, "/")
}
