package gate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fulmenhq/indexgate/internal/manifest"
	"github.com/fulmenhq/indexgate/internal/vcs"
	"github.com/fulmenhq/indexgate/pkg/logger"
)

// Options configures an Engine. RepoRoot is required; everything else has a
// usable zero value.
type Options struct {
	RepoRoot     string
	ManifestPath string
	// Label names the change under review (e.g. a PR number) in reports.
	Label string

	// VCS enables the branch sync check when non-nil.
	VCS  vcs.VersionControl
	Sync SyncOptions

	Scan              ScanOptions
	AllowedExtensions []string
	// SkipList overrides DefaultSkipList when non-nil.
	SkipList []string

	FileTypes    bool
	AllowedFiles []string
}

// Engine runs every check against one working copy.
type Engine struct {
	opts    Options
	sync    *SyncChecker
	scanner *FileTreeScanner
	schema  SchemaValidator
	paths   *PathSafetyValidator
	xref    *CrossReferenceChecker
	policy  *FileTypePolicy
}

// NewEngine validates the options and builds the checks. Errors here are
// configuration errors.
func NewEngine(opts Options) (*Engine, error) {
	if opts.RepoRoot == "" {
		return nil, errors.New("repository root is required")
	}
	if opts.ManifestPath == "" {
		opts.ManifestPath = manifest.DefaultPath
	}

	scanner, err := NewFileTreeScanner(opts.RepoRoot, opts.Scan)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		scanner: scanner,
		schema:  SchemaValidator{ManifestName: opts.ManifestPath},
		paths:   NewPathSafetyValidator(opts.AllowedExtensions),
		xref:    NewCrossReferenceChecker(opts.SkipList),
	}
	if opts.VCS != nil {
		e.sync = NewSyncChecker(opts.VCS, opts.Sync)
	}
	if opts.FileTypes {
		if e.policy, err = NewFileTypePolicy(opts.AllowedFiles); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Run executes the checks in order: sync, manifest load, schema, path
// safety, orphans, dangling sources, file types. A missing or unparsable
// manifest ends the run with that single finding after any sync finding.
// Only I/O failures return an error.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		Label:    e.opts.Label,
		RepoRoot: e.opts.RepoRoot,
		Manifest: e.opts.ManifestPath,
	}
	defer func() { report.Duration = time.Since(start) }()

	if e.sync != nil {
		report.SyncRef = e.sync.Ref()
		syncFindings := e.sync.Check(ctx)
		report.add(syncFindings...)
		// No change summary once the port has failed.
		if !slices.ContainsFunc(syncFindings, func(f Finding) bool { return f.Kind == KindSyncCheckFailed }) {
			changes, err := e.sync.Changes(ctx)
			if err != nil {
				logger.Debug("change summary unavailable", logger.Err(err))
			}
			report.Changes = changes
			report.AddedDocs = changes.AddedDocs(e.xref)
		}
	}

	doc, err := manifest.Load(e.opts.RepoRoot, e.opts.ManifestPath)
	if err != nil {
		f, ok := manifestFinding(e.opts.ManifestPath, err)
		if !ok {
			return nil, err
		}
		logger.Error("manifest could not be loaded", logger.Err(err))
		report.add(f)
		return report, nil
	}

	files, err := e.scanner.Collect(ctx)
	if err != nil {
		return nil, err
	}
	report.Files = len(files)
	tree := slices.Values(files)
	logger.Debug("tree scanned", logger.Int("files", len(files)))

	schemaFindings, shapeOK := e.schema.Validate(doc)
	report.add(schemaFindings...)
	if shapeOK {
		typed := doc.Typed()
		report.Entries = len(doc.Entries())

		refs, pathFindings := e.paths.CheckSources(typed)
		report.add(pathFindings...)
		report.add(e.xref.Orphans(tree, refs)...)
		report.add(e.xref.Dangling(tree, refs)...)
	}

	if e.policy != nil {
		report.add(e.policy.Check(tree)...)
	}

	logger.Debug("checks complete", logger.Int("findings", len(report.Findings)))
	return report, nil
}

func manifestFinding(name string, err error) (Finding, bool) {
	var pe *manifest.ParseError
	switch {
	case errors.Is(err, manifest.ErrManifestMissing):
		return Finding{
			Kind:    KindManifestMissing,
			Message: fmt.Sprintf("missing %s file", name),
			Path:    name,
		}, true
	case errors.As(err, &pe):
		return Finding{
			Kind:    KindManifestUnparsable,
			Message: fmt.Sprintf("invalid YAML in %s: %v", name, pe.Err),
			Path:    name,
		}, true
	default:
		return Finding{}, false
	}
}
