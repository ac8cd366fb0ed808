package ports

import (
	"context"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

// ReleaseUseCase is the driving port for cutting a chart release.
type ReleaseUseCase interface {
	Release(ctx context.Context) (domain.ReleaseResult, error)
	Bump(ctx context.Context) (domain.ReleaseResult, error)
}

// DeployUseCase is the driving port for reconciling the stack repository
// with the release tags of one project.
type DeployUseCase interface {
	Deploy(ctx context.Context, project string) (domain.DeployReport, error)
}
