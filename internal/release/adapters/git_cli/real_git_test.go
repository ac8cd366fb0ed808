package gitcli

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	chartmanifest "github.com/nathantilsley/helm-release/internal/release/adapters/chart_manifest"
	linediff "github.com/nathantilsley/helm-release/internal/release/adapters/line_diff"
	"github.com/nathantilsley/helm-release/internal/release/adapters/shell"
	"github.com/nathantilsley/helm-release/internal/release/domain"
)

func TestCommit_RelativeChartDir_RealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	chartDir := filepath.Join("charts", "foo")
	require.NoError(t, os.MkdirAll(filepath.Join(root, chartDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, chartDir, chartmanifest.FileName),
		[]byte("apiVersion: v2\nname: foo\nversion: 1.0.0\n"), 0o644))
	runGit(t, root, "init")
	runGit(t, root, "config", "user.email", "test@example.com")
	runGit(t, root, "config", "user.name", "Test")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "init")
	t.Chdir(root)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	m, err := chartmanifest.New(linediff.New(3), log).ReadManifest(chartDir)
	require.NoError(t, err)
	v, err := domain.ParseVersion("1.1.0")
	require.NoError(t, err)
	require.NoError(t, m.WriteBackVersion(v))

	runner := shell.New(log, nooptrace.NewTracerProvider().Tracer("test"), time.Minute)
	a := New(chartDir, runner, log)
	require.NoError(t, a.Commit(context.Background(), m.Path(), "Bump foo to version 1.1.0"))

	changes, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\noutput: %s", args, err, output)
	}
}
