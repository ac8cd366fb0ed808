// Package githubrelease publishes pushed release tags as GitHub releases.
package githubrelease

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

// Adapter implements ports.ReleaseNotifierPort with the GitHub Releases API.
type Adapter struct {
	client *gogithub.Client
	owner  string
	repo   string
	logger *slog.Logger
}

// New creates a release notifier for repository "owner/repo".
func New(client *gogithub.Client, repository string, logger *slog.Logger) (*Adapter, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github repository must be owner/name, got %q", repository)
	}
	return &Adapter{client: client, owner: owner, repo: repo, logger: logger}, nil
}

// Announce creates a release for an already pushed tag. Versions with a
// qualifier are marked as prereleases.
func (a *Adapter) Announce(ctx context.Context, chart, tag string, version domain.Version) error {
	release, _, err := a.client.Repositories.CreateRelease(ctx, a.owner, a.repo, &gogithub.RepositoryRelease{
		TagName:    gogithub.Ptr(tag),
		Name:       gogithub.Ptr(fmt.Sprintf("%s %s", chart, version)),
		Body:       gogithub.Ptr(fmt.Sprintf("Helm chart `%s` version `%s`.", chart, version)),
		Prerelease: gogithub.Ptr(version.Qualifier != ""),
	})
	if err != nil {
		return fmt.Errorf("creating github release for %s: %w", tag, err)
	}

	a.logger.Info("github release created", "tag", tag, "url", release.GetHTMLURL())
	return nil
}
