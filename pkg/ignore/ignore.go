// Package ignore provides gitignore-based path filtering using go-git
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultPatterns are always excluded from scans: version-control metadata
// and the CI metadata directory that hosts the gate itself.
var DefaultPatterns = []string{".git/", ".github/"}

// Options controls which layers feed the matcher.
type Options struct {
	// RespectGitignore layers the repository's .gitignore files and
	// .git/info/exclude on top of DefaultPatterns.
	RespectGitignore bool
	// Extra holds additional gitignore-syntax patterns.
	Extra []string
}

// Matcher provides gitignore-based path filtering relative to a repository root
type Matcher struct {
	matcher gitignore.Matcher
}

// NewMatcher creates a matcher with layered patterns:
// 1. DefaultPatterns (always)
// 2. .gitignore and .git/info/exclude when opts.RespectGitignore is set
// 3. opts.Extra
func NewMatcher(repoRoot string, opts Options) (*Matcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range DefaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	if opts.RespectGitignore {
		fs := osfs.New(repoRoot)
		gitPatterns, err := gitignore.ReadPatterns(fs, nil)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, gitPatterns...)
	}

	for _, p := range opts.Extra {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &Matcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

// Match reports whether a repository-relative path is ignored.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	parts := splitPath(filepath.ToSlash(relPath))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}

	return result
}
