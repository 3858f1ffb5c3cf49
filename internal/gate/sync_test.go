package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fulmenhq/indexgate/internal/vcs"
	"github.com/fulmenhq/indexgate/internal/vcs/vcstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncCurrent(t *testing.T) {
	fake := &vcstest.Fake{}
	s := NewSyncChecker(fake, SyncOptions{Fetch: true})

	assert.Empty(t, s.Check(context.Background()))
	assert.Equal(t, []string{
		"fetch origin main",
		"rev-parse origin/main",
		"rev-list HEAD..hash-origin/main",
	}, fake.Calls())
}

func TestSyncStale(t *testing.T) {
	fake := &vcstest.Fake{Behind: 3, Revisions: map[string]string{"upstream/develop": "abc123"}}
	s := NewSyncChecker(fake, SyncOptions{Remote: "upstream", Branch: "develop"})

	findings := s.Check(context.Background())
	require.Len(t, findings, 1)
	assert.Equal(t, KindSyncStale, findings[0].Kind)
	assert.Equal(t,
		"branch is 3 commit(s) behind upstream/develop - please rebase or merge upstream/develop into your branch",
		findings[0].Message)
	assert.Equal(t, []string{"rev-parse upstream/develop", "rev-list HEAD..abc123"}, fake.Calls(),
		"no fetch when disabled")
}

func TestSyncFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *vcstest.Fake
		contains string
	}{
		{"fetch", &vcstest.Fake{FetchErr: errors.New("could not resolve host")}, "fetch failed: could not resolve host"},
		{"resolve", &vcstest.Fake{ResolveErr: errors.New("unknown revision")}, "resolve origin/main failed: unknown revision"},
		{"count", &vcstest.Fake{CountErr: errors.New("bad object")}, "count failed: bad object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSyncChecker(tt.fake, SyncOptions{Fetch: true})
			findings := s.Check(context.Background())
			require.Len(t, findings, 1)
			assert.Equal(t, KindSyncCheckFailed, findings[0].Kind)
			assert.Contains(t, findings[0].Message, tt.contains)
		})
	}
}

func TestSyncTimeoutBecomesFinding(t *testing.T) {
	fake := &vcstest.Fake{Delay: time.Second}
	s := NewSyncChecker(fake, SyncOptions{Fetch: true, Timeout: 20 * time.Millisecond})

	start := time.Now()
	findings := s.Check(context.Background())
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	require.Len(t, findings, 1)
	assert.Equal(t, KindSyncCheckFailed, findings[0].Kind)
	assert.Equal(t, "could not verify branch is up to date with origin/main: timed out after 20ms during fetch",
		findings[0].Message)
}

func TestSyncBackendDeadlineIsTimeout(t *testing.T) {
	fake := &vcstest.Fake{CountErr: context.DeadlineExceeded}
	s := NewSyncChecker(fake, SyncOptions{Timeout: time.Second})
	findings := s.Check(context.Background())
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "timed out after 1s during count")
}

func TestSyncChanges(t *testing.T) {
	fake := &vcstest.Fake{
		Base: "0123456789abcdef",
		Changes: []vcs.Change{
			{Kind: vcs.ChangeModified, Path: "index.yaml"},
			{Kind: vcs.ChangeAdded, Path: "docs/new.md"},
			{Kind: vcs.ChangeAdded, Path: "docs/README.md"},
			{Kind: vcs.ChangeAdded, Path: "scripts/tool.sh"},
			{Kind: vcs.ChangeDeleted, Path: "docs/old.md"},
		},
	}
	s := NewSyncChecker(fake, SyncOptions{})

	summary, err := s.Changes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", summary.Base)
	assert.True(t, summary.ManifestChanged("index.yaml"))
	assert.False(t, summary.ManifestChanged("other.yaml"))
	assert.Equal(t, []string{"docs/new.md"}, summary.AddedDocs(NewCrossReferenceChecker(nil)))
	assert.Equal(t, []string{"merge-base HEAD origin/main", "diff 0123456789abcdef HEAD"}, fake.Calls())

	var nilSummary *ChangeSummary
	assert.False(t, nilSummary.ManifestChanged("index.yaml"))
	assert.Nil(t, nilSummary.AddedDocs(nil))
}

func TestSyncChangesError(t *testing.T) {
	s := NewSyncChecker(&vcstest.Fake{MergeBaseErr: errors.New("no common ancestor")}, SyncOptions{})
	_, err := s.Changes(context.Background())
	assert.ErrorContains(t, err, "no common ancestor")
}
