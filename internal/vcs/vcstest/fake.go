// Package vcstest provides a scripted VersionControl for tests.
package vcstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/indexgate/internal/vcs"
)

// Fake returns scripted answers. Unset revisions resolve to a hash derived
// from their name. Delay makes every call block until it elapses or the
// context ends, which is how tests simulate a hung remote.
type Fake struct {
	FetchErr     error
	Revisions    map[string]string
	ResolveErr   error
	Base         string
	MergeBaseErr error
	Behind       int
	CountErr     error
	Changes      []vcs.Change
	ChangesErr   error
	Delay        time.Duration

	mu    sync.Mutex
	calls []string
}

var _ vcs.VersionControl = (*Fake)(nil)

// Calls returns the operations invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) record(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", call, vcs.ErrTimeout)
	}
}

func (f *Fake) Fetch(ctx context.Context, remote, branch string) error {
	if err := f.record(ctx, "fetch "+remote+" "+branch); err != nil {
		return err
	}
	return f.FetchErr
}

func (f *Fake) MergeBase(ctx context.Context, a, b string) (string, error) {
	if err := f.record(ctx, "merge-base "+a+" "+b); err != nil {
		return "", err
	}
	if f.MergeBaseErr != nil {
		return "", f.MergeBaseErr
	}
	return f.Base, nil
}

func (f *Fake) ResolveRevision(ctx context.Context, rev string) (string, error) {
	if err := f.record(ctx, "rev-parse "+rev); err != nil {
		return "", err
	}
	if f.ResolveErr != nil {
		return "", f.ResolveErr
	}
	if h, ok := f.Revisions[rev]; ok {
		return h, nil
	}
	return "hash-" + rev, nil
}

func (f *Fake) CountReachable(ctx context.Context, from, notFrom string) (int, error) {
	if err := f.record(ctx, "rev-list "+notFrom+".."+from); err != nil {
		return 0, err
	}
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return f.Behind, nil
}

func (f *Fake) ChangedPaths(ctx context.Context, base, head string) ([]vcs.Change, error) {
	if err := f.record(ctx, "diff "+base+" "+head); err != nil {
		return nil, err
	}
	if f.ChangesErr != nil {
		return nil, f.ChangesErr
	}
	return f.Changes, nil
}
