// Package vcs defines the version-control operations the gate consumes and
// provides backends for them: the git CLI and an in-process go-git backend.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChangeKind classifies a path changed between two revisions.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
	ChangeUnknown  ChangeKind = "unknown"
)

// Change is a single path changed between two revisions. For renames Path is
// the destination.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Path string     `json:"path"`
}

// VersionControl is the port the gate uses to reason about history. Revision
// arguments accept anything the backend can resolve (branch, remote ref,
// "HEAD", full hash).
type VersionControl interface {
	// Fetch updates the remote-tracking ref for branch from remote.
	Fetch(ctx context.Context, remote, branch string) error
	// MergeBase returns the best common ancestor of a and b.
	MergeBase(ctx context.Context, a, b string) (string, error)
	// ResolveRevision resolves a revision to a full commit hash.
	ResolveRevision(ctx context.Context, rev string) (string, error)
	// CountReachable counts commits reachable from `from` but not from `notFrom`.
	CountReachable(ctx context.Context, from, notFrom string) (int, error)
	// ChangedPaths lists paths changed between base and head.
	ChangedPaths(ctx context.Context, base, head string) ([]Change, error)
}

// ErrTimeout marks a backend call that ran out of time.
var ErrTimeout = errors.New("version control call timed out")

// RemoteRef returns the short remote-tracking ref name, e.g. "origin/main".
func RemoteRef(remote, branch string) string {
	return remote + "/" + branch
}

// wrapCtxErr converts a context deadline into ErrTimeout so callers can tell
// a hung call apart from a failing one.
func wrapCtxErr(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// changeKindFromStatus maps a `git diff --name-status` status letter.
func changeKindFromStatus(status string) ChangeKind {
	if status == "" {
		return ChangeUnknown
	}
	switch strings.ToUpper(status[:1]) {
	case "A", "C":
		return ChangeAdded
	case "M", "T":
		return ChangeModified
	case "D":
		return ChangeDeleted
	case "R":
		return ChangeRenamed
	default:
		return ChangeUnknown
	}
}

// Backend names accepted by New.
const (
	BackendCLI   = "cli"
	BackendGoGit = "gogit"
)

// New returns the named backend for the working copy at dir.
func New(backend, dir string) (VersionControl, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendCLI:
		return NewCLI(dir), nil
	case BackendGoGit, "go-git":
		g, err := OpenGoGit(dir)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown vcs backend %q (expected %s or %s)", backend, BackendCLI, BackendGoGit)
	}
}

// Unavailable returns a VersionControl whose every call fails with err. It
// lets callers report a backend that could not be opened through the same
// path as any other port failure.
func Unavailable(err error) VersionControl {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Fetch(context.Context, string, string) error { return u.err }

func (u unavailable) MergeBase(context.Context, string, string) (string, error) { return "", u.err }

func (u unavailable) ResolveRevision(context.Context, string) (string, error) { return "", u.err }

func (u unavailable) CountReachable(context.Context, string, string) (int, error) { return 0, u.err }

func (u unavailable) ChangedPaths(context.Context, string, string) ([]Change, error) {
	return nil, u.err
}
