package app

import (
	"context"
	"errors"
	"testing"

	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

var (
	testMeter  = noopmetric.NewMeterProvider().Meter("test")
	testTracer = nooptrace.NewTracerProvider().Tracer("test")
)

// calls records the order of side effects across all mocks of a test.
type calls []string

func (c *calls) add(s string) { *c = append(*c, s) }

type mockVCS struct {
	log     *calls
	tags    []string
	changes []string
	fail    map[string]error // operation -> error
}

func (m *mockVCS) err(op string) error {
	if m.fail == nil {
		return nil
	}
	return m.fail[op]
}

func (m *mockVCS) Tags(_ context.Context) ([]string, error) { return m.tags, m.err("tags") }

func (m *mockVCS) Tag(_ context.Context, name string) error {
	m.log.add("tag " + name)
	return m.err("tag")
}

func (m *mockVCS) Commit(_ context.Context, path, message string) error {
	m.log.add("commit " + path + ": " + message)
	return m.err("commit")
}

func (m *mockVCS) Push(_ context.Context) error {
	m.log.add("push")
	return m.err("push")
}

func (m *mockVCS) PushTags(_ context.Context) error {
	m.log.add("push tags")
	return m.err("push tags")
}

func (m *mockVCS) Clone(_ context.Context, _, _ string) error { return nil }
func (m *mockVCS) Pull(_ context.Context) error               { return nil }

func (m *mockVCS) Status(_ context.Context) ([]string, error) { return m.changes, m.err("status") }

type mockManifest struct {
	log     *calls
	name    string
	version string
	written string
}

func (m *mockManifest) ReadManifest(chartDir string) (ports.ManifestHandle, error) {
	if m.name == "" {
		return nil, &domain.ManifestNotFoundError{Path: chartDir + "/Chart.yaml"}
	}
	return m, nil
}

func (m *mockManifest) Path() string                 { return "chart/Chart.yaml" }
func (m *mockManifest) ExtractName() (string, error) { return m.name, nil }

func (m *mockManifest) ExtractVersion() (string, error) {
	if m.version == "" {
		return "", &domain.FieldNotFoundError{Field: "version", Path: m.Path()}
	}
	return m.version, nil
}

func (m *mockManifest) WriteBackVersion(v domain.Version) error {
	m.log.add("write " + v.String())
	m.written = v.String()
	return nil
}

type mockPackager struct {
	log     *calls
	opts    domain.PackageOptions
	removed bool
	err     error
}

func (m *mockPackager) Package(_ context.Context, opts domain.PackageOptions, name string, version domain.Version) (domain.Artifact, error) {
	m.log.add("package " + name + " " + version.String())
	m.opts = opts
	if m.err != nil {
		return domain.Artifact{}, m.err
	}
	return domain.ArtifactFor(opts.ChartDir, name, version, opts.Signed()), nil
}

func (m *mockPackager) Remove(_ domain.Artifact) error {
	m.log.add("remove package")
	m.removed = true
	return nil
}

type mockUploader struct {
	log    *calls
	target domain.UploadTarget
	err    error
}

func (m *mockUploader) Upload(_ context.Context, target domain.UploadTarget, artifact domain.Artifact) error {
	m.log.add("upload " + artifact.PackagePath)
	m.target = target
	return m.err
}

type mockNotifier struct {
	tags []string
}

func (m *mockNotifier) Announce(_ context.Context, _, tag string, _ domain.Version) error {
	m.tags = append(m.tags, tag)
	return nil
}

type mockProgress struct {
	steps []string
}

func (m *mockProgress) Step(message string) { m.steps = append(m.steps, message) }

type mockWorkspace struct {
	path    string
	removed int
}

func (m *mockWorkspace) Path() string { return m.path }

func (m *mockWorkspace) Remove() error {
	m.removed++
	return nil
}

type mockCheckout struct {
	ws  *mockWorkspace
	url string
	err error
}

func (m *mockCheckout) Checkout(_ context.Context, url string) (ports.Workspace, error) {
	m.url = url
	if m.err != nil {
		return nil, m.err
	}
	return m.ws, nil
}

type mockCharts struct {
	published map[string]bool // "chart-version"
	err       error
}

func (m *mockCharts) Exists(_ context.Context, chart, version string) (bool, error) {
	return m.published[chart+"-"+version], m.err
}

// mockStack keeps declared versions per environment and a simulated
// cluster that converges to the declared version on sync.
type mockStack struct {
	log          *calls
	environments []string
	declared     map[string]string
	live         map[string]domain.LiveRelease
	stuck        map[string]bool // env whose sync does not converge
	syncErr      error
}

func (m *mockStack) DescriptorPath() string { return "stack/helmfile.yaml" }

func (m *mockStack) ListEnvironments() ([]string, error) {
	if m.environments == nil {
		return nil, &domain.EnvironmentsSectionMissingError{Path: m.DescriptorPath()}
	}
	return m.environments, nil
}

func (m *mockStack) DeclaredVersion(project, env string) (string, error) {
	v, ok := m.declared[env]
	if !ok {
		return "", &domain.ProjectNotDeclaredError{Project: project, Environment: env}
	}
	return v, nil
}

func (m *mockStack) UpdateDeclaredVersion(project, env, version string) error {
	if _, ok := m.declared[env]; !ok {
		return &domain.ProjectNotDeclaredError{Project: project, Environment: env}
	}
	m.log.add("update " + env + " " + version)
	m.declared[env] = version
	return nil
}

func (m *mockStack) Sync(_ context.Context, project, env string) error {
	m.log.add("sync " + env)
	if m.syncErr != nil {
		return m.syncErr
	}
	if m.stuck[env] {
		return nil
	}
	v := m.declared[env]
	if v == domain.UninstalledVersion {
		delete(m.live, env)
		return nil
	}
	m.live[env] = domain.LiveRelease{Found: true, Name: project, Chart: project + "-" + v, Status: domain.DeployedStatus}
	return nil
}

func (m *mockStack) LiveStatus(_ context.Context, _, env string) (domain.LiveRelease, error) {
	return m.live[env], nil
}

func deployed(project, version string) domain.LiveRelease {
	return domain.LiveRelease{Found: true, Name: project, Chart: project + "-" + version, Status: domain.DeployedStatus}
}

var errBoom = errors.New("boom")

func mustVersion(t *testing.T, s string) domain.Version {
	t.Helper()
	v, err := domain.ParseVersion(s)
	if err != nil {
		t.Fatalf("parsing %s: %v", s, err)
	}
	return v
}
