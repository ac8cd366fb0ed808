// Package httpupload posts packaged charts to an HTTP chart repository
// such as ChartMuseum.
package httpupload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

const maxErrorBody = 4096

// Adapter implements ports.ArtifactUploaderPort.
type Adapter struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an uploader. A zero timeout disables the upload limit.
func New(client *http.Client, timeout time.Duration, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, timeout: timeout, logger: logger}
}

// Upload posts the package as form field "chart" and, when present, the
// provenance file as "prov". Basic auth is sent only when both username and
// password are set.
func (a *Adapter) Upload(ctx context.Context, target domain.UploadTarget, artifact domain.Artifact) error {
	body, contentType, err := buildForm(artifact)
	if err != nil {
		return err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, body)
	if err != nil {
		return &domain.UploadError{URL: target.URL, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	if target.HasCredentials() {
		req.SetBasicAuth(target.Username, target.Password)
	}

	a.logger.Info("uploading chart", "url", target.URL, "package", filepath.Base(artifact.PackagePath),
		"signed", artifact.ProvenancePath != "", "auth", target.HasCredentials())

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.TimedOutError{Operation: "upload to " + target.URL, Timeout: a.timeout}
		}
		return &domain.UploadError{URL: target.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.UploadError{
			URL:        target.URL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	a.logger.Info("chart uploaded", "url", target.URL, "status", resp.StatusCode)
	return nil
}

func buildForm(artifact domain.Artifact) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := addFile(w, "chart", artifact.PackagePath); err != nil {
		return nil, "", err
	}
	if artifact.ProvenancePath != "" {
		if err := addFile(w, "prov", artifact.ProvenancePath); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func addFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating form field %s: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("writing form field %s: %w", field, err)
	}
	return nil
}
