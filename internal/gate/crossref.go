package gate

import (
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/fulmenhq/indexgate/internal/manifest"
)

// DefaultSkipList holds documentation base names that never need an entry.
var DefaultSkipList = []string{"readme.md", "contributing.md"}

// SourceRef is a declared source after path checking. Normalized is empty
// for unsafe sources.
type SourceRef struct {
	Entry      int
	Raw        string
	Normalized string
	Safe       bool
}

// CrossReferenceChecker reconciles the scanned tree with declared sources.
type CrossReferenceChecker struct {
	skip map[string]bool
}

// NewCrossReferenceChecker uses skip (base names, case-insensitive) or
// DefaultSkipList when skip is nil.
func NewCrossReferenceChecker(skip []string) *CrossReferenceChecker {
	if skip == nil {
		skip = DefaultSkipList
	}
	c := &CrossReferenceChecker{skip: make(map[string]bool, len(skip))}
	for _, s := range skip {
		c.skip[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return c
}

// Skipped reports whether a documentation file is exempt from the orphan
// check.
func (c *CrossReferenceChecker) Skipped(rel string) bool {
	return c.skip[strings.ToLower(path.Base(rel))]
}

// Orphans reports every documentation file that no safe source names. Each
// file yields at most one finding, however many entries exist.
func (c *CrossReferenceChecker) Orphans(files iter.Seq[FileEntry], refs []SourceRef) []Finding {
	declared := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r.Safe {
			declared[r.Normalized] = true
		}
	}

	var findings []Finding
	for f := range files {
		if f.Class != ClassDoc || c.Skipped(f.Path) || declared[f.Path] {
			continue
		}
		findings = append(findings, Finding{
			Kind:    KindOrphanFile,
			Message: fmt.Sprintf("file %s is not referenced by any entry", f.Path),
			Path:    f.Path,
		})
	}
	return findings
}

// Dangling reports every safe source that does not resolve to a tree file.
// A directory source resolves when any file lives beneath it. Unsafe sources
// are not consulted.
func (c *CrossReferenceChecker) Dangling(files iter.Seq[FileEntry], refs []SourceRef) []Finding {
	var (
		tree  = make(map[string]bool)
		dirs  = make(map[string]bool)
		total int
	)
	for f := range files {
		total++
		tree[f.Path] = true
		for dir := path.Dir(f.Path); dir != "."; dir = path.Dir(dir) {
			dirs[dir+"/"] = true
		}
	}

	var findings []Finding
	for _, r := range refs {
		if !r.Safe {
			continue
		}
		var found bool
		switch {
		case r.Normalized == "./":
			found = total > 0
		case strings.HasSuffix(r.Normalized, "/"):
			found = dirs[r.Normalized]
		default:
			found = tree[r.Normalized]
		}
		if found {
			continue
		}
		findings = append(findings, Finding{
			Kind:    KindDanglingSource,
			Message: fmt.Sprintf("agent entry %d source not found: %s", r.Entry, r.Raw),
			Entry:   r.Entry,
			Field:   manifest.FieldSource,
			Path:    r.Normalized,
		})
	}
	return findings
}
