package ports

import (
	"context"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

// CommandRunner runs a command line in a working directory and returns its
// standard output split into lines. A non-zero exit is a *domain.CommandError.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) ([]string, error)
}

// ManifestPort opens the Chart.yaml of a chart directory.
type ManifestPort interface {
	ReadManifest(chartDir string) (ManifestHandle, error)
}

// ManifestHandle gives anchored access to the fields of one Chart.yaml.
type ManifestHandle interface {
	Path() string
	ExtractName() (string, error)
	ExtractVersion() (string, error)
	WriteBackVersion(v domain.Version) error
}

// StackPort abstracts the multi-environment stack descriptor and the sync
// tool that applies it.
type StackPort interface {
	DescriptorPath() string
	ListEnvironments() ([]string, error)
	DeclaredVersion(project, environment string) (string, error)
	UpdateDeclaredVersion(project, environment, version string) error
	Sync(ctx context.Context, project, environment string) error
	LiveStatus(ctx context.Context, project, environment string) (domain.LiveRelease, error)
}

// StackFactory opens the stack descriptor inside a checked-out stack repository.
type StackFactory func(dir string) StackPort

// VersionControlPort abstracts git operations on one working directory.
type VersionControlPort interface {
	Tags(ctx context.Context) ([]string, error)
	Tag(ctx context.Context, name string) error
	Commit(ctx context.Context, path, message string) error
	Push(ctx context.Context) error
	PushTags(ctx context.Context) error
	Clone(ctx context.Context, url, dir string) error
	Pull(ctx context.Context) error
	Status(ctx context.Context) ([]string, error)
}

// VersionControlFactory returns a VersionControlPort bound to dir.
type VersionControlFactory func(dir string) VersionControlPort

// PackagerPort builds chart packages and removes them afterwards.
type PackagerPort interface {
	Package(ctx context.Context, opts domain.PackageOptions, name string, version domain.Version) (domain.Artifact, error)
	Remove(artifact domain.Artifact) error
}

// ArtifactUploaderPort publishes a packaged chart to a chart repository.
type ArtifactUploaderPort interface {
	Upload(ctx context.Context, target domain.UploadTarget, artifact domain.Artifact) error
}

// ChartRepositoryPort answers whether a chart version has been published.
type ChartRepositoryPort interface {
	Exists(ctx context.Context, chart, version string) (bool, error)
}

// ReleaseNotifierPort announces a pushed release tag, e.g. as a GitHub release.
type ReleaseNotifierPort interface {
	Announce(ctx context.Context, chart, tag string, version domain.Version) error
}

// DiffPort renders a human-readable diff between two versions of a file.
type DiffPort interface {
	ComputeDiff(baseName, headName string, base, head []byte) string
}

// ProgressPort receives one line per completed step, for the user.
type ProgressPort interface {
	Step(message string)
}

// Workspace is a local checkout that must be removed when no longer needed.
type Workspace interface {
	Path() string
	Remove() error
}

// CheckoutPort materializes a remote repository on local disk.
type CheckoutPort interface {
	Checkout(ctx context.Context, url string) (Workspace, error)
}
