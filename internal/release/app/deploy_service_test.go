package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathantilsley/helm-release/internal/platform/logger"
	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

type deployFixture struct {
	log      calls
	tags     *mockVCS
	stackVCS *mockVCS
	stack    *mockStack
	checkout *mockCheckout
	charts   *mockCharts
	progress *mockProgress
}

// newDeployFixture models a project tagged for staging and prod, where the
// stack only declares staging.
func newDeployFixture() *deployFixture {
	f := &deployFixture{progress: &mockProgress{}}
	f.tags = &mockVCS{log: &f.log, tags: []string{"prod-1.2.0", "staging-1.3.0", "staging-1.2.0", "RELEASE-1.3.0"}}
	f.stackVCS = &mockVCS{log: &f.log}
	f.stack = &mockStack{
		log:          &f.log,
		environments: []string{"staging"},
		declared:     map[string]string{"staging": "1.2.0"},
		live:         map[string]domain.LiveRelease{"staging": deployed("foo", "1.2.0")},
	}
	f.checkout = &mockCheckout{ws: &mockWorkspace{path: "/tmp/stack"}}
	f.charts = &mockCharts{published: map[string]bool{"foo-1.2.0": true, "foo-1.3.0": true}}
	return f
}

func (f *deployFixture) service(stackURL string) *DeployService {
	return NewDeployService(
		stackURL, f.tags, f.checkout,
		func(string) ports.StackPort { return f.stack },
		func(string) ports.VersionControlPort { return f.stackVCS },
		f.charts, f.progress,
		logger.New("error"), testMeter, testTracer,
	)
}

const stackURL = "git@example.com:ops/stack.git"

func TestDeploy_UpdatesDeclaredEnvironments(t *testing.T) {
	f := newDeployFixture()

	report, err := f.service(stackURL).Deploy(context.Background(), "foo")
	require.NoError(t, err)

	assert.Equal(t, stackURL, f.checkout.url)
	assert.Equal(t, calls{
		"update staging 1.3.0",
		"commit stack/helmfile.yaml: Bump foo to version 1.3.0 in the staging environment",
		"push",
		"sync staging",
	}, f.log)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, domain.ActionUpdated, report.Outcomes[0].Action)
	assert.Equal(t, "1.2.0", report.Outcomes[0].DeclaredVersion)
	assert.True(t, report.Outcomes[0].Synced)
	assert.Equal(t, 1, report.Commits())
	assert.Equal(t, 1, f.checkout.ws.removed)
}

func TestDeploy_Idempotent(t *testing.T) {
	f := newDeployFixture()
	svc := f.service(stackURL)

	_, err := svc.Deploy(context.Background(), "foo")
	require.NoError(t, err)
	f.log = nil

	report, err := svc.Deploy(context.Background(), "foo")
	require.NoError(t, err)

	assert.Empty(t, f.log, "a second pass changes nothing")
	assert.Equal(t, 0, report.Commits())
	assert.Equal(t, domain.ActionUnchanged, report.Outcomes[0].Action)
	assert.Equal(t, 2, f.checkout.ws.removed)
}

func TestDeploy_ResyncsDrift(t *testing.T) {
	f := newDeployFixture()
	f.stack.declared["staging"] = "1.3.0"
	f.stack.live["staging"] = domain.LiveRelease{Found: true, Name: "foo", Chart: "foo-1.3.0", Status: "failed"}

	report, err := f.service(stackURL).Deploy(context.Background(), "foo")
	require.NoError(t, err)

	assert.Equal(t, calls{"sync staging"}, f.log)
	assert.Equal(t, domain.ActionResynced, report.Outcomes[0].Action)
	assert.Equal(t, 0, report.Commits())
}

func TestDeploy_Uninstall(t *testing.T) {
	f := newDeployFixture()
	f.tags.tags = []string{"staging-0", "staging-1.3.0"}
	f.charts.published = nil

	report, err := f.service(stackURL).Deploy(context.Background(), "foo")
	require.NoError(t, err)

	assert.Equal(t, calls{
		"update staging 0",
		"commit stack/helmfile.yaml: Uninstall foo from the staging environment",
		"push",
		"sync staging",
	}, f.log)
	assert.False(t, f.stack.live["staging"].Found)
	assert.Equal(t, domain.ActionUpdated, report.Outcomes[0].Action)
}

func TestDeploy_NotConverging(t *testing.T) {
	f := newDeployFixture()
	f.stack.stuck = map[string]bool{"staging": true}
	f.stack.live["staging"] = domain.LiveRelease{Found: true, Name: "foo", Chart: "foo-1.3.0", Status: "pending-upgrade"}

	_, err := f.service(stackURL).Deploy(context.Background(), "foo")

	var mismatch *domain.DeploymentMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "staging", mismatch.Environment)
	assert.True(t, errors.Is(err, domain.ErrConsistency))
	assert.Equal(t, 1, f.checkout.ws.removed, "scratch checkout is removed on failure")
}

func TestDeploy_ChartNotPublished(t *testing.T) {
	f := newDeployFixture()
	f.charts.published = map[string]bool{"foo-1.2.0": true}

	_, err := f.service(stackURL).Deploy(context.Background(), "foo")

	var notFound *domain.ChartNotFoundInRepositoryError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "1.3.0", notFound.Version)
	assert.Empty(t, f.log, "stack is untouched when a check fails")
	assert.Equal(t, 1, f.checkout.ws.removed)
}

func TestDeploy_DeployedButNotDeclared(t *testing.T) {
	f := newDeployFixture()
	f.stack.live["staging"] = deployed("foo", "1.3.0")

	_, err := f.service(stackURL).Deploy(context.Background(), "foo")

	var notDeclared *domain.DeployedButNotDeclaredError
	require.ErrorAs(t, err, &notDeclared)
	assert.Empty(t, f.log)
}

func TestDeploy_ChecksAllEnvironmentsBeforeChanging(t *testing.T) {
	f := newDeployFixture()
	f.tags.tags = []string{"staging-1.3.0", "prod-1.2.0"}
	f.stack.environments = []string{"staging", "prod"}
	f.stack.declared["prod"] = "1.1.0"
	f.stack.live["prod"] = deployed("foo", "1.1.0")
	f.charts.published = map[string]bool{"foo-1.3.0": true}

	_, err := f.service(stackURL).Deploy(context.Background(), "foo")

	require.Error(t, err)
	assert.Empty(t, f.log, "staging must not be updated while prod fails its check")
}

func TestDeploy_ProjectNotDeclared(t *testing.T) {
	f := newDeployFixture()
	f.stack.environments = []string{"staging", "prod"}

	_, err := f.service(stackURL).Deploy(context.Background(), "foo")

	var missing *domain.ProjectNotDeclaredError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "prod", missing.Environment)
	assert.Empty(t, f.log)
}

func TestDeploy_NoMatchingTags(t *testing.T) {
	f := newDeployFixture()
	f.tags.tags = []string{"RELEASE-1.3.0"}

	report, err := f.service(stackURL).Deploy(context.Background(), "foo")
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, f.log)
}

func TestDeploy_Preconditions(t *testing.T) {
	t.Run("stack not configured", func(t *testing.T) {
		f := newDeployFixture()
		_, err := f.service("").Deploy(context.Background(), "foo")
		assert.ErrorIs(t, err, domain.ErrStackNotConfigured)
		assert.Empty(t, f.checkout.url)
	})

	t.Run("empty project", func(t *testing.T) {
		f := newDeployFixture()
		_, err := f.service(stackURL).Deploy(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrPrecondition)
	})

	t.Run("checkout failure", func(t *testing.T) {
		f := newDeployFixture()
		f.checkout.err = errBoom
		_, err := f.service(stackURL).Deploy(context.Background(), "foo")
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("tags failure", func(t *testing.T) {
		f := newDeployFixture()
		f.tags.fail = map[string]error{"tags": errBoom}
		_, err := f.service(stackURL).Deploy(context.Background(), "foo")
		assert.ErrorIs(t, err, errBoom)
		assert.Empty(t, f.checkout.url)
	})
}

func TestDeploy_SyncFailure(t *testing.T) {
	f := newDeployFixture()
	f.stack.syncErr = &domain.CommandError{Command: "helmfile -e staging sync", ExitCode: 1}

	report, err := f.service(stackURL).Deploy(context.Background(), "foo")

	assert.ErrorIs(t, err, domain.ErrExternalCommand)
	assert.Empty(t, report.Outcomes)
	assert.Contains(t, f.log, "push", "stack change is pushed before the sync")
}
