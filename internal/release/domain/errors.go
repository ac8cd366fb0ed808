package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every concrete error below matches exactly one of these
// with errors.Is.
var (
	ErrPrecondition    = errors.New("precondition failed")
	ErrNotFound        = errors.New("not found")
	ErrExternalCommand = errors.New("external command failed")
	ErrUpload          = errors.New("upload failed")
	ErrConsistency     = errors.New("consistency check failed")
	ErrTimedOut        = errors.New("timed out")
)

// ErrStackNotConfigured is returned by deploy when no stack repository URL is set.
var ErrStackNotConfigured = fmt.Errorf("%w: the stack property needs to be set in order to clone the stack", ErrPrecondition)

// InvalidVersionFormatError reports text that is not a semantic version.
type InvalidVersionFormatError struct {
	Text string
}

func (e *InvalidVersionFormatError) Error() string {
	return fmt.Sprintf("<%s> is not a valid semantic version", e.Text)
}

func (e *InvalidVersionFormatError) Is(target error) bool { return target == ErrPrecondition }

// DirtyWorkingDirectoryError is returned when a clean working directory is
// required but git reports local changes.
type DirtyWorkingDirectoryError struct {
	Changes []string
}

func (e *DirtyWorkingDirectoryError) Error() string {
	return fmt.Sprintf("working directory not clean (%d changed paths)", len(e.Changes))
}

func (e *DirtyWorkingDirectoryError) Is(target error) bool { return target == ErrPrecondition }

// ManifestNotFoundError reports a missing Chart.yaml.
type ManifestNotFoundError struct {
	Path string
}

func (e *ManifestNotFoundError) Error() string {
	return e.Path + " not found"
}

func (e *ManifestNotFoundError) Is(target error) bool { return target == ErrNotFound }

// FieldNotFoundError reports a required field missing from a file.
type FieldNotFoundError struct {
	Field string
	Path  string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%s property not found in %s", e.Field, e.Path)
}

func (e *FieldNotFoundError) Is(target error) bool { return target == ErrNotFound }

// EnvironmentsSectionMissingError reports a stack descriptor without an
// environments mapping.
type EnvironmentsSectionMissingError struct {
	Path string
}

func (e *EnvironmentsSectionMissingError) Error() string {
	return "the environments property could not be extracted from " + e.Path
}

func (e *EnvironmentsSectionMissingError) Is(target error) bool { return target == ErrNotFound }

// ProjectNotDeclaredError reports a project without an entry in an environment.
type ProjectNotDeclaredError struct {
	Project     string
	Environment string
}

func (e *ProjectNotDeclaredError) Error() string {
	return fmt.Sprintf("project %s is not declared in environment %s", e.Project, e.Environment)
}

func (e *ProjectNotDeclaredError) Is(target error) bool { return target == ErrNotFound }

// ChartNotFoundInRepositoryError reports a chart version absent from the chart repository.
type ChartNotFoundInRepositoryError struct {
	Project string
	Version string
}

func (e *ChartNotFoundInRepositoryError) Error() string {
	return fmt.Sprintf("chart not found in repository (%s, %s)", e.Project, e.Version)
}

func (e *ChartNotFoundInRepositoryError) Is(target error) bool { return target == ErrNotFound }

// CommandError is a non-zero exit of an external command. Command is
// already redacted.
type CommandError struct {
	Command  string
	Output   string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Is(target error) bool { return target == ErrExternalCommand }

// UploadError is a failed or non-2xx chart upload.
type UploadError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uploading chart to %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("uploading chart to %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

func (e *UploadError) Unwrap() error { return e.Err }

// DeploymentMismatchError reports live state that still differs from the
// desired state after a sync.
type DeploymentMismatchError struct {
	Project     string
	Version     string
	Environment string
}

func (e *DeploymentMismatchError) Error() string {
	if e.Version == UninstalledVersion {
		return fmt.Sprintf("chart still deployed after uninstall (%s, %s)", e.Project, e.Environment)
	}
	return fmt.Sprintf("chart not deployed (%s, %s, %s)", e.Project, e.Version, e.Environment)
}

func (e *DeploymentMismatchError) Is(target error) bool { return target == ErrConsistency }

// DeployedButNotDeclaredError reports a chart version running in the
// cluster while the stack descriptor declares something else.
type DeployedButNotDeclaredError struct {
	Project     string
	Version     string
	Environment string
}

func (e *DeployedButNotDeclaredError) Error() string {
	return fmt.Sprintf("chart found in cluster but not in stack (%s, %s, %s)", e.Project, e.Environment, e.Version)
}

func (e *DeployedButNotDeclaredError) Is(target error) bool { return target == ErrConsistency }

// TimedOutError reports an operation that exceeded its time budget.
type TimedOutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

func (e *TimedOutError) Is(target error) bool { return target == ErrTimedOut }
