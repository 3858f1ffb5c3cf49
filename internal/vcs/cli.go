package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CLI implements VersionControl by shelling out to git.
type CLI struct {
	// Dir is the repository working copy.
	Dir string
	// Binary is the git executable; defaults to "git" on PATH.
	Binary string
}

// NewCLI returns a CLI backend for the working copy at dir.
func NewCLI(dir string) *CLI {
	return &CLI{Dir: dir, Binary: "git"}
}

func (c *CLI) Fetch(ctx context.Context, remote, branch string) error {
	_, err := c.run(ctx, "fetch", "--quiet", remote, branch)
	return wrapCtxErr(ctx, "git fetch "+remote+" "+branch, err)
}

func (c *CLI) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := c.run(ctx, "merge-base", a, b)
	if err != nil {
		return "", wrapCtxErr(ctx, "git merge-base", err)
	}
	return strings.TrimSpace(out), nil
}

func (c *CLI) ResolveRevision(ctx context.Context, rev string) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", wrapCtxErr(ctx, "git rev-parse "+rev, err)
	}
	return strings.TrimSpace(out), nil
}

func (c *CLI) CountReachable(ctx context.Context, from, notFrom string) (int, error) {
	out, err := c.run(ctx, "rev-list", "--count", notFrom+".."+from)
	if err != nil {
		return 0, wrapCtxErr(ctx, "git rev-list --count", err)
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, fmt.Errorf("git rev-list --count: unexpected output %q", strings.TrimSpace(out))
	}
	return n, nil
}

func (c *CLI) ChangedPaths(ctx context.Context, base, head string) ([]Change, error) {
	out, err := c.run(ctx, "diff", "--name-status", "-z", base, head)
	if err != nil {
		return nil, wrapCtxErr(ctx, "git diff --name-status", err)
	}
	return parseNameStatus([]byte(out)), nil
}

// run executes git and returns stdout. A non-zero exit becomes an error
// carrying the trimmed stderr.
func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	bin := c.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("exit status %d", exitErr.ExitCode())
			}
			return "", errors.New(msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// parseNameStatus parses `git diff --name-status -z` output. Fields are
// NUL-terminated and paths are unquoted. Rename and copy records carry two
// paths; the destination is kept.
func parseNameStatus(data []byte) []Change {
	fields := strings.Split(string(data), "\x00")
	var changes []Change
	for i := 0; i < len(fields); {
		status := strings.TrimSpace(fields[i])
		i++
		if status == "" {
			continue
		}
		paths := 1
		if s := strings.ToUpper(status[:1]); s == "R" || s == "C" {
			paths = 2
		}
		if i+paths > len(fields) {
			break
		}
		p := fields[i+paths-1]
		i += paths
		if p == "" {
			continue
		}
		changes = append(changes, Change{
			Kind: changeKindFromStatus(status),
			Path: filepath.ToSlash(p),
		})
	}
	return changes
}
