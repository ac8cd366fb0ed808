// Package helmfile reads and rewrites a helmfile stack descriptor and drives
// helmfile and helm to apply and inspect it.
package helmfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/helm-release/api"
	"github.com/nathantilsley/helm-release/internal/release/adapters/shell"
	"github.com/nathantilsley/helm-release/internal/release/anchor"
	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

// DefaultFileName is the descriptor looked up in the stack repository root.
const DefaultFileName = "helmfile.yaml"

const environmentsKey = "environments"

// Adapter implements ports.StackPort for one checked-out stack repository.
type Adapter struct {
	dir    string
	path   string
	runner ports.CommandRunner
	differ ports.DiffPort
	logger *slog.Logger
}

// New creates an adapter for the descriptor fileName inside dir.
func New(dir, fileName string, runner ports.CommandRunner, differ ports.DiffPort, logger *slog.Logger) *Adapter {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Adapter{
		dir:    dir,
		path:   filepath.Join(dir, fileName),
		runner: runner,
		differ: differ,
		logger: logger,
	}
}

// Factory returns a ports.StackFactory producing adapters that share runner,
// differ and logger.
func Factory(fileName string, runner ports.CommandRunner, differ ports.DiffPort, logger *slog.Logger) ports.StackFactory {
	return func(dir string) ports.StackPort {
		return New(dir, fileName, runner, differ, logger)
	}
}

func (a *Adapter) DescriptorPath() string { return a.path }

// ListEnvironments returns the keys of the environments mapping in document
// order.
func (a *Adapter) ListEnvironments() ([]string, error) {
	envs, err := a.environments()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(envs.Content)/2)
	for i := 0; i+1 < len(envs.Content); i += 2 {
		names = append(names, envs.Content[i].Value)
	}
	return names, nil
}

// DeclaredVersion returns the version the descriptor declares for project in
// environment.
func (a *Adapter) DeclaredVersion(project, environment string) (string, error) {
	envs, err := a.environments()
	if err != nil {
		return "", err
	}

	entry := findEntry(mappingValue(envs, environment), domain.ProjectKey(project))
	if entry == nil {
		return "", &domain.ProjectNotDeclaredError{Project: project, Environment: environment}
	}

	var values api.StackValuesEntry
	if err := entry.Decode(&values); err != nil {
		return "", fmt.Errorf("decoding %s entry for %s in %s: %w", project, environment, a.path, err)
	}
	if values.Version == "" {
		return "", &domain.FieldNotFoundError{Field: "version", Path: a.path}
	}
	return values.Version, nil
}

// UpdateDeclaredVersion rewrites the version and installed fields of the
// project's block in environment. Nothing else in the file changes.
func (a *Adapter) UpdateDeclaredVersion(project, environment, version string) error {
	info, err := os.Stat(a.path)
	if err != nil {
		return &domain.ManifestNotFoundError{Path: a.path}
	}
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", a.path, err)
	}

	path := anchor.Path{
		Keys: []string{environmentsKey, environment, "values"},
		Item: domain.ProjectKey(project),
	}

	content := string(raw)
	path.Field = "version"
	if content, err = anchor.Replace(content, path, version); err != nil {
		return a.anchorError(err, project, environment)
	}
	path.Field = "installed"
	if content, err = anchor.Replace(content, path, strconv.FormatBool(version != domain.UninstalledVersion)); err != nil {
		return a.anchorError(err, project, environment)
	}

	if err := os.WriteFile(a.path, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", a.path, err)
	}

	a.logger.Info("stack descriptor updated", "path", a.path, "project", project, "environment", environment, "version", version)
	if a.differ != nil {
		a.logger.Debug("stack descriptor diff", "diff", a.differ.ComputeDiff(a.path, a.path, raw, []byte(content)))
	}
	return nil
}

// Sync applies the descriptor for project in environment.
func (a *Adapter) Sync(ctx context.Context, project, environment string) error {
	cmd := fmt.Sprintf("helmfile -e %s --selector name=%s sync", shell.Quote(environment), shell.Quote(project))
	if _, err := a.runner.Run(ctx, cmd, a.dir); err != nil {
		return fmt.Errorf("syncing %s in %s: %w", project, environment, err)
	}
	return nil
}

// LiveStatus reports what helm has installed for project in the namespace
// helmfile assigns it in environment.
func (a *Adapter) LiveStatus(ctx context.Context, project, environment string) (domain.LiveRelease, error) {
	lines, err := a.runner.Run(ctx, fmt.Sprintf("helmfile -e %s list --output json", shell.Quote(environment)), a.dir)
	if err != nil {
		return domain.LiveRelease{}, fmt.Errorf("listing helmfile releases in %s: %w", environment, err)
	}
	var planned []api.HelmfileRelease
	if err := decodeJSON(lines, &planned); err != nil {
		return domain.LiveRelease{}, fmt.Errorf("parsing helmfile list output: %w", err)
	}

	var release *api.HelmfileRelease
	for i := range planned {
		if planned[i].Name == project && planned[i].Enabled {
			release = &planned[i]
			break
		}
	}
	if release == nil {
		a.logger.Debug("release not enabled in helmfile", "project", project, "environment", environment)
		return domain.LiveRelease{}, nil
	}

	cmd := "helm list --all"
	if release.Namespace != "" {
		cmd += " -n " + shell.Quote(release.Namespace)
	}
	cmd += " --filter " + shell.Quote("^"+project+"$") + " -o json"

	lines, err = a.runner.Run(ctx, cmd, a.dir)
	if err != nil {
		return domain.LiveRelease{}, fmt.Errorf("listing helm releases in %s: %w", release.Namespace, err)
	}
	var deployed []api.HelmRelease
	if err := decodeJSON(lines, &deployed); err != nil {
		return domain.LiveRelease{}, fmt.Errorf("parsing helm list output: %w", err)
	}

	for _, r := range deployed {
		if r.Name == project {
			return domain.LiveRelease{
				Found:     true,
				Name:      r.Name,
				Namespace: r.Namespace,
				Chart:     r.Chart,
				Status:    r.Status,
			}, nil
		}
	}
	return domain.LiveRelease{Namespace: release.Namespace}, nil
}

func (a *Adapter) anchorError(err error, project, environment string) error {
	var missing *anchor.MissingError
	if !errors.As(err, &missing) {
		return err
	}
	switch missing.Segment {
	case anchor.SegmentField:
		return &domain.FieldNotFoundError{Field: missing.Name, Path: a.path}
	case anchor.SegmentKey:
		if missing.Name == environmentsKey {
			return &domain.EnvironmentsSectionMissingError{Path: a.path}
		}
	}
	return &domain.ProjectNotDeclaredError{Project: project, Environment: environment}
}

// environments returns the environments mapping of the first document that
// has one.
func (a *Adapter) environments() (*yaml.Node, error) {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.ManifestNotFoundError{Path: a.path}
		}
		return nil, fmt.Errorf("reading %s: %w", a.path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing %s: %w", a.path, err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		if envs := mappingValue(doc.Content[0], environmentsKey); envs != nil && envs.Kind == yaml.MappingNode {
			return envs, nil
		}
	}
	return nil, &domain.EnvironmentsSectionMissingError{Path: a.path}
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// findEntry returns the block keyed by key inside an environment's values
// list. String items (values file paths) are skipped.
func findEntry(env *yaml.Node, key string) *yaml.Node {
	values := mappingValue(env, "values")
	if values == nil || values.Kind != yaml.SequenceNode {
		return nil
	}
	for _, item := range values.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) < 2 {
			continue
		}
		if item.Content[0].Value == key {
			return item.Content[1]
		}
	}
	return nil
}

// decodeJSON parses command output, ignoring any log lines printed before
// the JSON payload.
func decodeJSON(lines []string, v any) error {
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
			return json.Unmarshal([]byte(strings.Join(lines[i:], "\n")), v)
		}
	}
	return json.Unmarshal([]byte("[]"), v)
}
