package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nathantilsley/helm-release/internal/platform/config"
	ghclient "github.com/nathantilsley/helm-release/internal/platform/github"
	"github.com/nathantilsley/helm-release/internal/platform/gitrepo"
	"github.com/nathantilsley/helm-release/internal/platform/telemetry"
	chartindex "github.com/nathantilsley/helm-release/internal/release/adapters/chart_index"
	chartmanifest "github.com/nathantilsley/helm-release/internal/release/adapters/chart_manifest"
	"github.com/nathantilsley/helm-release/internal/release/adapters/console"
	gitcli "github.com/nathantilsley/helm-release/internal/release/adapters/git_cli"
	githubrelease "github.com/nathantilsley/helm-release/internal/release/adapters/github_release"
	helmcli "github.com/nathantilsley/helm-release/internal/release/adapters/helm_cli"
	"github.com/nathantilsley/helm-release/internal/release/adapters/helmfile"
	httpupload "github.com/nathantilsley/helm-release/internal/release/adapters/http_upload"
	linediff "github.com/nathantilsley/helm-release/internal/release/adapters/line_diff"
	"github.com/nathantilsley/helm-release/internal/release/adapters/shell"
	"github.com/nathantilsley/helm-release/internal/release/app"
	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

const diffContext = 3

// Container holds all application dependencies.
type Container struct {
	Config         config.Config
	Logger         *slog.Logger
	ReleaseService ports.ReleaseUseCase
	DeployService  ports.DeployUseCase
}

// NewContainer builds and wires all dependencies.
func NewContainer(cfg config.Config, log *slog.Logger, tel *telemetry.Telemetry, progress *console.Adapter) (*Container, error) {
	strategy, err := domain.ParseFraction(cfg.BumpStrategy)
	if err != nil {
		return nil, err
	}

	// Platform dependencies
	runner := shell.New(log, tel.Tracer, cfg.CommandTimeout, cfg.Secrets()...)
	httpClient := telemetry.HTTPClient(0)

	// Adapters
	differ := linediff.New(diffContext)
	appRepo := gitcli.New(cfg.ChartPath, runner, log)
	manifests := chartmanifest.New(differ, log)
	helm := helmcli.New(runner, log)
	uploader := httpupload.New(httpClient, cfg.UploadTimeout, log)

	// Optionally announce pushed release tags on GitHub
	var notifier ports.ReleaseNotifierPort
	if cfg.GitHub.Repository != "" {
		client, err := ghclient.NewClient(ghclient.Auth{
			Token:          cfg.GitHub.Token,
			AppID:          cfg.GitHub.AppID,
			InstallationID: cfg.GitHub.InstallationID,
			PrivateKeyPEM:  cfg.GitHub.PrivateKey,
		}, telemetry.Transport(nil))
		if err != nil {
			return nil, fmt.Errorf("creating github client: %w", err)
		}
		adapter, err := githubrelease.New(client, cfg.GitHub.Repository, log)
		if err != nil {
			return nil, err
		}
		log.Info("github release announcements enabled", "repository", cfg.GitHub.Repository)
		notifier = adapter
	}

	// The repository index is preferred; helm search needs the repo added locally.
	var charts ports.ChartRepositoryPort = helm
	if indexURL := chartindex.IndexURL(cfg.Repository.IndexURL, cfg.Repository.URL); indexURL != "" {
		charts = chartindex.New(indexURL, cfg.Repository.Username, cfg.Repository.Password, httpClient, cfg.UploadTimeout, log)
	}

	releaseService := app.NewReleaseService(
		app.ReleaseSettings{
			ChartDir:                     cfg.ChartPath,
			OverrideChartVersion:         cfg.OverrideChartVersion,
			OverrideAppVersion:           cfg.OverrideAppVersion,
			BumpVersion:                  cfg.BumpVersion,
			BumpStrategy:                 strategy,
			DeleteLocalPackage:           cfg.DeleteLocalPackage,
			RequireCleanWorkingDirectory: cfg.Git.RequireCleanWorkingDirectory,
			Commit:                       cfg.Git.Commit,
			Tag:                          cfg.Git.Tag,
			Push:                         cfg.Git.Push,
			PushTags:                     cfg.Git.PushTags,
			SignKey:                      cfg.Signature.Key,
			KeyStore:                     cfg.Signature.KeyStore,
			Repository: domain.UploadTarget{
				URL:      cfg.Repository.URL,
				Username: cfg.Repository.Username,
				Password: cfg.Repository.Password,
			},
		},
		appRepo, manifests, helm, uploader, notifier, progress,
		log, tel.Meter, tel.Tracer,
	)

	stackRepos := gitcli.Factory(runner, log)
	deployService := app.NewDeployService(
		cfg.Stack,
		appRepo,
		stackCheckout{git: stackRepos, logger: log},
		helmfile.Factory(cfg.StackFile, runner, differ, log),
		stackRepos,
		charts,
		progress,
		log, tel.Meter, tel.Tracer,
	)

	return &Container{
		Config:         cfg,
		Logger:         log,
		ReleaseService: releaseService,
		DeployService:  deployService,
	}, nil
}

// stackCheckout clones the stack repository into a scratch directory.
type stackCheckout struct {
	git    ports.VersionControlFactory
	logger *slog.Logger
}

func (s stackCheckout) Checkout(ctx context.Context, url string) (ports.Workspace, error) {
	repo, err := gitrepo.Checkout(ctx, url, "", func(dir string) gitrepo.Git { return s.git(dir) }, s.logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
