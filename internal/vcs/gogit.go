package vcs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// GoGit implements VersionControl in-process with go-git, for runners that
// do not ship a git binary.
type GoGit struct {
	repo *git.Repository
	// Auth is passed to fetches; nil uses the transport default.
	Auth transport.AuthMethod
}

// OpenGoGit opens the repository containing dir.
func OpenGoGit(dir string) (*GoGit, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &GoGit{repo: repo}, nil
}

func (g *GoGit) Fetch(ctx context.Context, remote, branch string) error {
	refSpec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch))
	err := g.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       g.Auth,
		Force:      true,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return wrapCtxErr(ctx, "fetch "+remote+" "+branch, err)
}

func (g *GoGit) MergeBase(ctx context.Context, a, b string) (string, error) {
	ca, err := g.commit(a)
	if err != nil {
		return "", err
	}
	cb, err := g.commit(b)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", wrapCtxErr(ctx, "merge-base", err)
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", wrapCtxErr(ctx, "merge-base", err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("merge-base: %s and %s share no history", a, b)
	}
	return bases[0].Hash.String(), nil
}

func (g *GoGit) ResolveRevision(_ context.Context, rev string) (string, error) {
	c, err := g.commit(rev)
	if err != nil {
		return "", err
	}
	return c.Hash.String(), nil
}

func (g *GoGit) CountReachable(ctx context.Context, from, notFrom string) (int, error) {
	fromCommit, err := g.commit(from)
	if err != nil {
		return 0, err
	}
	excludeCommit, err := g.commit(notFrom)
	if err != nil {
		return 0, err
	}

	excluded := make(map[plumbing.Hash]bool)
	err = object.NewCommitPreorderIter(excludeCommit, nil, nil).ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		excluded[c.Hash] = true
		return nil
	})
	if err != nil {
		return 0, wrapCtxErr(ctx, "walk "+notFrom, err)
	}

	// Excluded commits are passed as already seen, which also prunes their ancestry.
	count := 0
	err = object.NewCommitPreorderIter(fromCommit, excluded, nil).ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, wrapCtxErr(ctx, "walk "+from, err)
	}
	return count, nil
}

func (g *GoGit) ChangedPaths(ctx context.Context, base, head string) ([]Change, error) {
	baseTree, err := g.tree(base)
	if err != nil {
		return nil, err
	}
	headTree, err := g.tree(head)
	if err != nil {
		return nil, err
	}

	diff, err := object.DiffTreeWithOptions(ctx, baseTree, headTree, &object.DiffTreeOptions{DetectRenames: true})
	if err != nil {
		return nil, wrapCtxErr(ctx, "diff "+base+" "+head, err)
	}

	changes := make([]Change, 0, len(diff))
	for _, ch := range diff {
		action, err := ch.Action()
		if err != nil {
			return nil, fmt.Errorf("diff %s %s: %w", base, head, err)
		}
		switch action {
		case merkletrie.Insert:
			changes = append(changes, Change{Kind: ChangeAdded, Path: ch.To.Name})
		case merkletrie.Delete:
			changes = append(changes, Change{Kind: ChangeDeleted, Path: ch.From.Name})
		case merkletrie.Modify:
			kind := ChangeModified
			if ch.From.Name != ch.To.Name {
				kind = ChangeRenamed
			}
			changes = append(changes, Change{Kind: kind, Path: ch.To.Name})
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func (g *GoGit) commit(rev string) (*object.Commit, error) {
	hash, err := g.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	c, err := g.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", rev, err)
	}
	return c, nil
}

func (g *GoGit) tree(rev string) (*object.Tree, error) {
	c, err := g.commit(rev)
	if err != nil {
		return nil, err
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", rev, err)
	}
	return t, nil
}
