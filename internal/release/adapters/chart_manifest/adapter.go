// Package chartmanifest reads and rewrites Chart.yaml files in place.
package chartmanifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

// FileName is the manifest file inside a chart directory.
const FileName = "Chart.yaml"

// Top-level fields only: indented keys such as dependency versions never match.
var (
	namePattern    = regexp.MustCompile(`(?m)^name:[ \t]*("[^"\r\n]*"|'[^'\r\n]*'|[^\s#]+)`)
	versionPattern = regexp.MustCompile(`(?m)^version:[ \t]*("[^"\r\n]*"|'[^'\r\n]*'|[^\s#]+)`)
)

// Adapter implements ports.ManifestPort.
type Adapter struct {
	differ ports.DiffPort
	logger *slog.Logger
}

// New creates a manifest adapter. Rewrites are logged as a diff at debug level.
func New(differ ports.DiffPort, logger *slog.Logger) *Adapter {
	return &Adapter{differ: differ, logger: logger}
}

// ReadManifest opens {chartDir}/Chart.yaml. The handle's Path is absolute,
// so it names the same file whatever directory git runs in.
func (a *Adapter) ReadManifest(chartDir string) (ports.ManifestHandle, error) {
	path, err := filepath.Abs(filepath.Join(chartDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", chartDir, err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, &domain.ManifestNotFoundError{Path: path}
	}
	return &Manifest{path: path, differ: a.differ, logger: a.logger}, nil
}

// Manifest is one Chart.yaml on disk. Every call reads the file again so
// that a write-back is visible to later extractions.
type Manifest struct {
	path   string
	differ ports.DiffPort
	logger *slog.Logger
}

func (m *Manifest) Path() string { return m.path }

func (m *Manifest) ExtractName() (string, error) {
	return m.extract(namePattern, "name")
}

func (m *Manifest) ExtractVersion() (string, error) {
	return m.extract(versionPattern, "version")
}

// WriteBackVersion replaces the value of the first top-level version line.
// All other bytes, including quoting and trailing comments, are kept.
func (m *Manifest) WriteBackVersion(v domain.Version) error {
	info, err := os.Stat(m.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", m.path, err)
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", m.path, err)
	}

	loc := versionPattern.FindSubmatchIndex(raw)
	if loc == nil {
		return &domain.FieldNotFoundError{Field: "version", Path: m.path}
	}
	start, end := loc[2], loc[3]

	value := v.String()
	if q := raw[start]; (q == '"' || q == '\'') && end-start >= 2 {
		value = string(q) + value + string(q)
	}

	updated := make([]byte, 0, len(raw)+len(value))
	updated = append(updated, raw[:start]...)
	updated = append(updated, value...)
	updated = append(updated, raw[end:]...)

	if err := os.WriteFile(m.path, updated, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", m.path, err)
	}

	m.logger.Info("chart version written", "path", m.path, "version", v.String())
	if m.differ != nil {
		m.logger.Debug("chart manifest diff", "diff", m.differ.ComputeDiff(m.path, m.path, raw, updated))
	}
	return nil
}

func (m *Manifest) extract(pattern *regexp.Regexp, field string) (string, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", m.path, err)
	}
	match := pattern.FindSubmatch(raw)
	if match == nil {
		return "", &domain.FieldNotFoundError{Field: field, Path: m.path}
	}
	value := string(match[1])
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
		value = value[1 : len(value)-1]
	}
	if strings.TrimSpace(value) == "" {
		return "", &domain.FieldNotFoundError{Field: field, Path: m.path}
	}
	return value, nil
}
