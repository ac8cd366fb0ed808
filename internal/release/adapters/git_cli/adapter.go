// Package gitcli implements version control operations with the git CLI.
package gitcli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nathantilsley/helm-release/internal/release/adapters/shell"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

// Adapter implements ports.VersionControlPort for one working directory.
type Adapter struct {
	dir    string
	runner ports.CommandRunner
	logger *slog.Logger
}

// New creates a git adapter operating in dir.
func New(dir string, runner ports.CommandRunner, logger *slog.Logger) *Adapter {
	return &Adapter{dir: dir, runner: runner, logger: logger}
}

// Factory returns a ports.VersionControlFactory sharing runner and logger.
func Factory(runner ports.CommandRunner, logger *slog.Logger) ports.VersionControlFactory {
	return func(dir string) ports.VersionControlPort {
		return New(dir, runner, logger)
	}
}

// Tags lists tags, most recently committed first.
func (a *Adapter) Tags(ctx context.Context) ([]string, error) {
	lines, err := a.run(ctx, "git tag --sort=-committerdate")
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	tags := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

func (a *Adapter) Tag(ctx context.Context, name string) error {
	if _, err := a.run(ctx, "git tag "+shell.Quote(name)); err != nil {
		return fmt.Errorf("creating tag %s: %w", name, err)
	}
	a.logger.Info("tag created", "tag", name)
	return nil
}

// Commit commits the changes to path, or all tracked changes when path is
// empty.
func (a *Adapter) Commit(ctx context.Context, path, message string) error {
	cmd := "git commit"
	if path != "" {
		cmd += " " + shell.Quote(path)
	} else {
		cmd += " -a"
	}
	cmd += " -m " + shell.Quote(message)
	if _, err := a.run(ctx, cmd); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	a.logger.Info("changes committed", "message", message)
	return nil
}

func (a *Adapter) Push(ctx context.Context) error {
	if _, err := a.run(ctx, "git push"); err != nil {
		return fmt.Errorf("pushing commits: %w", err)
	}
	return nil
}

func (a *Adapter) PushTags(ctx context.Context) error {
	if _, err := a.run(ctx, "git push --tags"); err != nil {
		return fmt.Errorf("pushing tags: %w", err)
	}
	return nil
}

// Clone clones url into dir. The adapter's own directory is used as the
// working directory of the command.
func (a *Adapter) Clone(ctx context.Context, url, dir string) error {
	if _, err := a.run(ctx, "git clone "+shell.Quote(url)+" "+shell.Quote(dir)); err != nil {
		return fmt.Errorf("cloning %s: %w", url, err)
	}
	return nil
}

func (a *Adapter) Pull(ctx context.Context) error {
	if _, err := a.run(ctx, "git pull --ff-only"); err != nil {
		return fmt.Errorf("pulling: %w", err)
	}
	return nil
}

// Status returns the porcelain status lines; empty means a clean tree.
func (a *Adapter) Status(ctx context.Context) ([]string, error) {
	lines, err := a.run(ctx, "git status --porcelain")
	if err != nil {
		return nil, fmt.Errorf("reading working tree status: %w", err)
	}
	var changes []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			changes = append(changes, l)
		}
	}
	return changes, nil
}

func (a *Adapter) run(ctx context.Context, command string) ([]string, error) {
	return a.runner.Run(ctx, command, a.dir)
}
