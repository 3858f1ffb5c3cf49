package gate

import (
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultAllowedFiles is the allowlist used when the policy is enabled
// without explicit globs.
var DefaultAllowedFiles = []string{
	"*.md",
	"*.yaml",
	"*.yml",
	"LICENSE*",
	".gitignore",
	".gitattributes",
	".editorconfig",
}

// FileTypePolicy flags committed files that match no allow glob. Globs
// without a slash match the base name; others match the whole path.
type FileTypePolicy struct {
	allowed []string
}

// NewFileTypePolicy validates the globs. Empty means DefaultAllowedFiles.
func NewFileTypePolicy(allowed []string) (*FileTypePolicy, error) {
	if len(allowed) == 0 {
		allowed = DefaultAllowedFiles
	}
	for _, g := range allowed {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid file type pattern %q", g)
		}
	}
	return &FileTypePolicy{allowed: allowed}, nil
}

// Allowed reports whether rel matches an allow glob.
func (p *FileTypePolicy) Allowed(rel string) bool {
	base := path.Base(rel)
	for _, g := range p.allowed {
		target := rel
		if !strings.Contains(g, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(g, target); ok {
			return true
		}
	}
	return false
}

// Check returns one finding per disallowed file, in scan order.
func (p *FileTypePolicy) Check(files iter.Seq[FileEntry]) []Finding {
	var findings []Finding
	for f := range files {
		if p.Allowed(f.Path) {
			continue
		}
		findings = append(findings, Finding{
			Kind:    KindFileType,
			Message: fmt.Sprintf("file %s has a disallowed file type", f.Path),
			Path:    f.Path,
		})
	}
	return findings
}
