// Package vcs provides the review engine's view of a git repository: the
// current commit and the line diff between a recorded commit and HEAD.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/sprite-ai/auditor/internal/diff"
	"github.com/sprite-ai/auditor/internal/pathfilter"
	"github.com/sprite-ai/auditor/internal/review"
)

var (
	ErrUnknownCommit = errors.New("commit not found in repository")
	ErrNoHead        = errors.New("repository has no HEAD commit")
)

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens the git repository containing path.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &Repository{repo: repo, path: root}, nil
}

// Root returns the worktree root directory.
func (r *Repository) Root() string {
	return r.path
}

// GitDir returns the directory holding HEAD. For linked worktrees and
// submodules, where .git is a file, this is the directory it points to.
func (r *Repository) GitDir() string {
	if st, ok := r.repo.Storer.(*filesystem.Storage); ok {
		return st.Filesystem().Root()
	}
	return filepath.Join(r.path, git.GitDirName)
}

// CurrentCommit returns the hash HEAD points to.
func (r *Repository) CurrentCommit(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", ErrNoHead
		}
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Diff returns the changed lines between prior and HEAD, leaving out files
// under any of the excluded prefixes. It returns nil when there is nothing
// to compare: no prior commit, or prior is HEAD.
func (r *Repository) Diff(ctx context.Context, prior string, exclusions []string) (*review.Diff, error) {
	if prior == "" {
		return nil, nil
	}
	head, err := r.CurrentCommit(ctx)
	if err != nil {
		return nil, err
	}
	if head == prior {
		return nil, nil
	}

	raw, err := r.Patch(ctx, prior, head)
	if err != nil {
		return nil, err
	}
	ds, err := diff.Parse(raw)
	if err != nil {
		return nil, err
	}
	return ds.LineDiffs(func(path string) bool {
		return pathfilter.HasExcludedPrefix(path, exclusions)
	}), nil
}

// Patch renders the unified diff from one commit to another.
func (r *Repository) Patch(ctx context.Context, from, to string) (string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(from))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommit, from)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(to))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommit, to)
	}
	patch, err := fromCommit.PatchContext(ctx, toCommit)
	if err != nil {
		return "", fmt.Errorf("computing patch %s..%s: %w", short(from), short(to), err)
	}
	return patch.String(), nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
