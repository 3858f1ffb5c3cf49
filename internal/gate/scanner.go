package gate

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/indexgate/pkg/ignore"
)

// FileClass is the extension-derived classification of a scanned file.
type FileClass string

const (
	ClassDoc      FileClass = "doc"
	ClassManifest FileClass = "manifest"
	ClassOther    FileClass = "other"
)

// FileEntry is a repository-relative slash path and its class.
type FileEntry struct {
	Path  string
	Class FileClass
}

// ScanOptions configures FileTreeScanner.
type ScanOptions struct {
	// Exclude holds doublestar globs matched against repository-relative
	// paths. A matching directory is pruned.
	Exclude []string
	// RespectGitignore also skips paths ignored by .gitignore.
	RespectGitignore bool
	// DocExtensions classify documentation files; defaults to .md.
	DocExtensions []string
}

var manifestExtensions = []string{".yaml", ".yml"}

// FileTreeScanner enumerates repository files. Version-control metadata and
// the CI metadata directory are always skipped, at any depth.
type FileTreeScanner struct {
	root    string
	opts    ScanOptions
	matcher *ignore.Matcher
	err     error
}

// NewFileTreeScanner validates the options and prepares the ignore rules.
func NewFileTreeScanner(root string, opts ScanOptions) (*FileTreeScanner, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	if len(opts.DocExtensions) == 0 {
		opts.DocExtensions = []string{".md"}
	}
	m, err := ignore.NewMatcher(root, ignore.Options{RespectGitignore: opts.RespectGitignore})
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}
	return &FileTreeScanner{root: root, opts: opts, matcher: m}, nil
}

// Files returns a sequence over the tree in lexical order. Each range walks
// the tree afresh; stopping early ends the walk. After ranging, Err reports a
// walk failure or cancellation.
func (s *FileTreeScanner) Files(ctx context.Context) iter.Seq[FileEntry] {
	return func(yield func(FileEntry) bool) {
		s.err = nil
		err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if s.skipped(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}
			if s.skipped(rel, false) {
				return nil
			}
			if !yield(FileEntry{Path: rel, Class: s.classify(rel)}) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			s.err = fmt.Errorf("scan %s: %w", s.root, err)
		}
	}
}

// Err returns the error from the most recent walk, if any.
func (s *FileTreeScanner) Err() error {
	return s.err
}

// Collect drains one walk into a slice.
func (s *FileTreeScanner) Collect(ctx context.Context) ([]FileEntry, error) {
	var files []FileEntry
	for f := range s.Files(ctx) {
		files = append(files, f)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *FileTreeScanner) skipped(rel string, isDir bool) bool {
	if s.matcher.Match(rel, isDir) {
		return true
	}
	for _, pattern := range s.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *FileTreeScanner) classify(rel string) FileClass {
	ext := strings.ToLower(path.Ext(rel))
	for _, d := range s.opts.DocExtensions {
		if ext == normalizeExt(d) {
			return ClassDoc
		}
	}
	for _, m := range manifestExtensions {
		if ext == m {
			return ClassManifest
		}
	}
	return ClassOther
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
