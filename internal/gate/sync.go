package gate

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fulmenhq/indexgate/internal/vcs"
	"github.com/fulmenhq/indexgate/pkg/logger"
)

// DefaultSyncTimeout bounds each version-control call.
const DefaultSyncTimeout = 60 * time.Second

// SyncOptions configures SyncChecker.
type SyncOptions struct {
	Remote string
	Branch string
	// Fetch refreshes the remote-tracking ref before counting.
	Fetch bool
	// Timeout applies to every port call; zero means DefaultSyncTimeout.
	Timeout time.Duration
}

// SyncChecker decides whether HEAD already contains the tip of the
// reference branch: the count of commits reachable from the remote tip but
// not from HEAD must be zero.
type SyncChecker struct {
	vc   vcs.VersionControl
	opts SyncOptions
}

// NewSyncChecker fills in origin/main and the default timeout.
func NewSyncChecker(vc vcs.VersionControl, opts SyncOptions) *SyncChecker {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSyncTimeout
	}
	return &SyncChecker{vc: vc, opts: opts}
}

// Ref is the remote-tracking ref compared against HEAD.
func (s *SyncChecker) Ref() string {
	return vcs.RemoteRef(s.opts.Remote, s.opts.Branch)
}

// Check returns nil when current, one sync-stale finding when behind, or one
// sync-check-failed finding when any port call fails. It never returns an
// error.
func (s *SyncChecker) Check(ctx context.Context) []Finding {
	ref := s.Ref()

	if s.opts.Fetch {
		err := s.bounded(ctx, func(ctx context.Context) error {
			return s.vc.Fetch(ctx, s.opts.Remote, s.opts.Branch)
		})
		if err != nil {
			return s.failed("fetch", err)
		}
	}

	var tip string
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		tip, err = s.vc.ResolveRevision(ctx, ref)
		return err
	})
	if err != nil {
		return s.failed("resolve "+ref, err)
	}

	var behind int
	err = s.bounded(ctx, func(ctx context.Context) error {
		var err error
		behind, err = s.vc.CountReachable(ctx, tip, "HEAD")
		return err
	})
	if err != nil {
		return s.failed("count", err)
	}

	logger.Debug("branch sync checked", logger.String("ref", ref), logger.Int("behind", behind))
	if behind == 0 {
		return nil
	}
	return []Finding{{
		Kind: KindSyncStale,
		Message: fmt.Sprintf("branch is %d commit(s) behind %s - please rebase or merge %s into your branch",
			behind, ref, ref),
	}}
}

// ChangeSummary lists the paths changed on the branch since it left the
// reference branch. It is informational only.
type ChangeSummary struct {
	Base    string       `json:"base"`
	Changes []vcs.Change `json:"changes"`
}

// ManifestChanged reports whether the manifest itself was touched.
func (c *ChangeSummary) ManifestChanged(manifestPath string) bool {
	if c == nil {
		return false
	}
	for _, ch := range c.Changes {
		if ch.Path == manifestPath {
			return true
		}
	}
	return false
}

// AddedDocs lists added documentation files, skip-listed names excluded.
func (c *ChangeSummary) AddedDocs(xref *CrossReferenceChecker) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, ch := range c.Changes {
		if ch.Kind != vcs.ChangeAdded || !strings.EqualFold(path.Ext(ch.Path), ".md") {
			continue
		}
		if xref != nil && xref.Skipped(ch.Path) {
			continue
		}
		out = append(out, ch.Path)
	}
	return out
}

// Changes computes the change summary from the merge base of HEAD and the
// reference tip. Errors are returned to the caller, which only logs them.
func (s *SyncChecker) Changes(ctx context.Context) (*ChangeSummary, error) {
	var base string
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		base, err = s.vc.MergeBase(ctx, "HEAD", s.Ref())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("merge-base: %w", err)
	}

	var changes []vcs.Change
	err = s.bounded(ctx, func(ctx context.Context) error {
		var err error
		changes, err = s.vc.ChangedPaths(ctx, base, "HEAD")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("changed paths: %w", err)
	}
	return &ChangeSummary{Base: base, Changes: changes}, nil
}

func (s *SyncChecker) bounded(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, vcs.ErrTimeout) {
		err = fmt.Errorf("%w: %v", vcs.ErrTimeout, err)
	}
	return err
}

func (s *SyncChecker) failed(step string, err error) []Finding {
	msg := fmt.Sprintf("could not verify branch is up to date with %s: %s failed: %v", s.Ref(), step, err)
	if errors.Is(err, vcs.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("could not verify branch is up to date with %s: timed out after %s during %s",
			s.Ref(), s.opts.Timeout, step)
	}
	logger.Warn("branch sync check failed", logger.String("step", step), logger.Err(err))
	return []Finding{{Kind: KindSyncCheckFailed, Message: msg}}
}
