// Package gitrepo materializes a git repository on local disk for the
// duration of one operation: clone or pull, then guaranteed removal.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Git is the subset of git operations a checkout needs.
type Git interface {
	Clone(ctx context.Context, url, dir string) error
	Pull(ctx context.Context) error
}

// GitFactory returns a Git that runs its commands in dir.
type GitFactory func(dir string) Git

// GitRepo is a local checkout of a remote repository.
type GitRepo struct {
	repoURL   string
	localPath string
	scratch   string // directory created by Checkout, removed by Remove
	logger    *slog.Logger
}

// Checkout clones repoURL. With an empty localPath the clone goes into a new
// scratch directory that Remove deletes. A localPath that already holds a
// clone is pulled instead and left in place by Remove.
func Checkout(ctx context.Context, repoURL, localPath string, git GitFactory, logger *slog.Logger) (*GitRepo, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	r := &GitRepo{repoURL: repoURL, localPath: localPath, logger: logger}

	if localPath == "" {
		dir, err := os.MkdirTemp("", "helm-release-stack-*")
		if err != nil {
			return nil, fmt.Errorf("creating scratch directory: %w", err)
		}
		r.scratch = dir
		r.localPath = filepath.Join(dir, "stack")
	}

	if err := r.initRepo(ctx, git); err != nil {
		return nil, errors.Join(fmt.Errorf("initializing repo: %w", err), r.Remove())
	}
	return r, nil
}

// Path returns the local filesystem path of the checkout.
func (r *GitRepo) Path() string {
	return r.localPath
}

// Remove deletes the scratch directory, if Checkout created one. It is safe
// to call more than once.
func (r *GitRepo) Remove() error {
	if r.scratch == "" {
		return nil
	}
	dir := r.scratch
	r.scratch = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing scratch directory %s: %w", dir, err)
	}
	r.logger.Debug("scratch checkout removed", "path", dir)
	return nil
}

// initRepo clones the repository if it doesn't exist, or pulls latest if it does.
func (r *GitRepo) initRepo(ctx context.Context, git GitFactory) error {
	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		r.logger.Info("repository already exists, pulling latest", "path", r.localPath)
		return git(r.localPath).Pull(ctx)
	}

	r.logger.Info("cloning repository", "repoURL", r.repoURL, "path", r.localPath)
	return git(filepath.Dir(r.localPath)).Clone(ctx, r.repoURL, r.localPath)
}
