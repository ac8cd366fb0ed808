// Package chartindex checks published chart versions against a chart
// repository's index.yaml.
package chartindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"helm.sh/helm/v3/pkg/repo"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

const indexFile = "index.yaml"

// Adapter implements ports.ChartRepositoryPort over HTTP.
type Adapter struct {
	indexURL string
	username string
	password string
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an index adapter. timeout bounds each index download; zero
// disables the limit.
func New(indexURL, username, password string, client *http.Client, timeout time.Duration, logger *slog.Logger) *Adapter {
	return &Adapter{
		indexURL: indexURL,
		username: username,
		password: password,
		client:   client,
		timeout:  timeout,
		logger:   logger,
	}
}

// IndexURL derives the index location. An explicit URL wins; ChartMuseum
// style upload endpoints ending in /api/charts serve the index at the root.
func IndexURL(explicit, uploadURL string) string {
	base := explicit
	if base == "" {
		base = strings.TrimSuffix(strings.TrimSuffix(uploadURL, "/"), "/api/charts")
	}
	base = strings.TrimSuffix(base, "/")
	if base == "" || strings.HasSuffix(base, ".yaml") {
		return base
	}
	return base + "/" + indexFile
}

// Exists downloads the index and reports whether chart is listed at version.
// An empty version matches any published version.
func (a *Adapter) Exists(ctx context.Context, chart, version string) (bool, error) {
	idx, err := a.fetch(ctx)
	if err != nil {
		return false, err
	}

	cv, err := idx.Get(chart, version)
	if err != nil {
		a.logger.Debug("chart version not in index", "chart", chart, "version", version, "reason", err)
		return false, nil
	}
	return version == "" || cv.Version == version, nil
}

func (a *Adapter) fetch(ctx context.Context) (*repo.IndexFile, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating index request: %w", err)
	}
	if a.username != "" && a.password != "" {
		req.SetBasicAuth(a.username, a.password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.TimedOutError{Operation: "download of " + a.indexURL, Timeout: a.timeout}
		}
		return nil, fmt.Errorf("downloading %s: %w", a.indexURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status downloading %s: %d", a.indexURL, resp.StatusCode)
	}

	// repo.LoadIndexFile validates and sorts entries but only reads from disk.
	tmp, err := os.CreateTemp("", "helm-release-index-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.TimedOutError{Operation: "download of " + a.indexURL, Timeout: a.timeout}
		}
		return nil, fmt.Errorf("saving index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}

	idx, err := repo.LoadIndexFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("loading index from %s: %w", a.indexURL, err)
	}
	return idx, nil
}
