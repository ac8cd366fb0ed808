package helmcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nathantilsley/helm-release/api"
	"github.com/nathantilsley/helm-release/internal/release/adapters/shell"
	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

// Adapter implements ports.PackagerPort and ports.ChartRepositoryPort by
// shelling out to the helm CLI.
type Adapter struct {
	runner ports.CommandRunner
	logger *slog.Logger
}

// New creates a new Helm CLI adapter.
func New(runner ports.CommandRunner, logger *slog.Logger) *Adapter {
	return &Adapter{runner: runner, logger: logger}
}

// Package runs `helm package` inside the chart directory so the archive and
// its provenance file land next to Chart.yaml.
func (a *Adapter) Package(ctx context.Context, opts domain.PackageOptions, name string, version domain.Version) (domain.Artifact, error) {
	var b strings.Builder
	b.WriteString("helm package . --destination .")
	if opts.Version != "" {
		b.WriteString(" --version " + shell.Quote(opts.Version))
	}
	if opts.AppVersion != "" {
		b.WriteString(" --app-version " + shell.Quote(opts.AppVersion))
	}
	if opts.Signed() {
		b.WriteString(" --sign --key " + shell.Quote(opts.SignKey) + " --keyring " + shell.Quote(opts.Keyring))
	}

	a.logger.Info("running helm package", "chartDir", opts.ChartDir, "version", version.String(), "signed", opts.Signed())
	if _, err := a.runner.Run(ctx, b.String(), opts.ChartDir); err != nil {
		return domain.Artifact{}, fmt.Errorf("packaging chart %s: %w", name, err)
	}

	return domain.ArtifactFor(opts.ChartDir, name, version, opts.Signed()), nil
}

// Remove deletes the package and its provenance file. A missing
// provenance file is not an error; a missing package is.
func (a *Adapter) Remove(artifact domain.Artifact) error {
	if err := os.Remove(artifact.PackagePath); err != nil {
		return fmt.Errorf("removing package: %w", err)
	}
	if artifact.ProvenancePath != "" {
		if err := os.Remove(artifact.ProvenancePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing provenance file: %w", err)
		}
	}
	a.logger.Debug("local package removed", "path", artifact.PackagePath)
	return nil
}

// Exists searches the locally configured helm repositories for chart at
// version. An empty version matches any version.
func (a *Adapter) Exists(ctx context.Context, chart, version string) (bool, error) {
	cmd := "helm search repo -l " + shell.Quote(chart) + " -o json"
	if strings.Contains(version, "-") {
		cmd += " --devel"
	}
	lines, err := a.runner.Run(ctx, cmd, "")
	if err != nil {
		return false, fmt.Errorf("searching repositories for %s: %w", chart, err)
	}

	var results []api.HelmSearchResult
	if err := decodeJSON(lines, &results); err != nil {
		return false, fmt.Errorf("parsing helm search output: %w", err)
	}
	for _, r := range results {
		if r.Name != chart && !strings.HasSuffix(r.Name, "/"+chart) {
			continue
		}
		if version == "" || r.Version == version {
			return true, nil
		}
	}
	return false, nil
}
