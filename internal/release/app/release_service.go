package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

// ReleaseSettings is the part of the configuration a release run needs.
type ReleaseSettings struct {
	ChartDir             string
	OverrideChartVersion string
	OverrideAppVersion   string
	BumpVersion          bool
	BumpStrategy         domain.Fraction
	DeleteLocalPackage   bool

	RequireCleanWorkingDirectory bool
	Commit                       bool
	Tag                          bool
	Push                         bool
	PushTags                     bool

	SignKey  string
	KeyStore string

	// Repository.URL empty disables publishing.
	Repository domain.UploadTarget
}

// ReleaseService implements ports.ReleaseUseCase: bump the chart version,
// record it in git, then package, publish and push.
type ReleaseService struct {
	settings  ReleaseSettings
	vcs       ports.VersionControlPort
	manifests ports.ManifestPort
	packager  ports.PackagerPort
	uploader  ports.ArtifactUploaderPort
	notifier  ports.ReleaseNotifierPort // optional
	progress  ports.ProgressPort
	logger    *slog.Logger
	tracer    trace.Tracer
	runs      metric.Int64Counter
}

// NewReleaseService creates a ReleaseService wired with all driven ports.
// notifier may be nil.
func NewReleaseService(
	settings ReleaseSettings,
	vcs ports.VersionControlPort,
	manifests ports.ManifestPort,
	packager ports.PackagerPort,
	uploader ports.ArtifactUploaderPort,
	notifier ports.ReleaseNotifierPort,
	progress ports.ProgressPort,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
) *ReleaseService {
	return &ReleaseService{
		settings:  settings,
		vcs:       vcs,
		manifests: manifests,
		packager:  packager,
		uploader:  uploader,
		notifier:  notifier,
		progress:  progress,
		logger:    logger,
		tracer:    tracer,
		runs:      counter(meter, logger, "helm_release.releases", "Release and bump runs by command and outcome"),
	}
}

// Release runs the full release state machine. On failure the returned
// result ends in StateFailed and holds every state reached before it.
func (s *ReleaseService) Release(ctx context.Context) (domain.ReleaseResult, error) {
	return s.execute(ctx, "release", s.release)
}

// Bump writes the next chart version, commits it, tags it as
// RELEASE-chart-{version} and pushes, without packaging.
func (s *ReleaseService) Bump(ctx context.Context) (domain.ReleaseResult, error) {
	return s.execute(ctx, "bump", s.bump)
}

type releaseRun struct {
	result   domain.ReleaseResult
	logger   *slog.Logger
	progress ports.ProgressPort
}

func (r *releaseRun) reach(state domain.State, message string) {
	r.result.States = append(r.result.States, state)
	r.logger.Debug("release state reached", "state", state.String())
	if message != "" {
		r.progress.Step(message)
	}
}

func (s *ReleaseService) execute(ctx context.Context, command string, steps func(context.Context, *releaseRun) error) (domain.ReleaseResult, error) {
	ctx, span := s.tracer.Start(ctx, command)
	defer span.End()

	r := &releaseRun{
		result:   domain.ReleaseResult{States: []domain.State{domain.StateInit}},
		logger:   s.logger.With("command", command),
		progress: s.progress,
	}

	if err := steps(ctx, r); err != nil {
		last := r.result.Final()
		r.result.States = append(r.result.States, domain.StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command), attribute.String("outcome", "failed")))
		r.logger.Error("run failed", "after", last.String(), "error", err)
		return r.result, fmt.Errorf("%s failed after %s: %w", command, last, err)
	}

	r.reach(domain.StateDone, "")
	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command), attribute.String("outcome", "success")))
	return r.result, nil
}

func (s *ReleaseService) release(ctx context.Context, r *releaseRun) error {
	manifest, persisted, err := s.prepare(ctx, r)
	if err != nil {
		return err
	}
	version := r.result.Version

	if s.settings.Commit && persisted {
		msg := fmt.Sprintf("Bump %s to version %s", r.result.Chart, version)
		if err := s.vcs.Commit(ctx, manifest.Path(), msg); err != nil {
			return err
		}
		r.reach(domain.StateCommitted, "Git commit: "+msg)
	}

	if s.settings.Tag {
		tag := domain.ReleaseTagName(version)
		if err := s.vcs.Tag(ctx, tag); err != nil {
			return err
		}
		r.result.Tag = tag
		r.reach(domain.StateTagged, "Git tag: "+tag)
	}

	opts := domain.PackageOptions{
		ChartDir:   s.settings.ChartDir,
		AppVersion: s.settings.OverrideAppVersion,
		SignKey:    s.settings.SignKey,
		Keyring:    s.settings.KeyStore,
	}
	if !persisted {
		// Chart.yaml still carries the old version
		opts.Version = version.String()
	}
	artifact, err := traced(ctx, s.tracer, "package", func(ctx context.Context) (domain.Artifact, error) {
		return s.packager.Package(ctx, opts, r.result.Chart, version)
	})
	if err != nil {
		return err
	}
	r.result.Artifact = artifact
	r.reach(domain.StatePackaged, "Chart packaged")

	if s.settings.Repository.URL != "" {
		if _, err := traced(ctx, s.tracer, "publish", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.uploader.Upload(ctx, s.settings.Repository, artifact)
		}); err != nil {
			return err
		}
		r.reach(domain.StatePublished, "Chart package posted to repository")
	}

	if s.settings.DeleteLocalPackage {
		if err := s.packager.Remove(artifact); err != nil {
			return err
		}
		r.reach(domain.StateLocalArtifactCleaned, "Local package deleted")
	}

	return s.push(ctx, r)
}

func (s *ReleaseService) bump(ctx context.Context, r *releaseRun) error {
	manifest, persisted, err := s.prepare(ctx, r)
	if err != nil {
		return err
	}
	version := r.result.Version

	if s.settings.Commit && persisted {
		msg := "Chart version bumped to " + version.String()
		if err := s.vcs.Commit(ctx, manifest.Path(), msg); err != nil {
			return err
		}
		r.reach(domain.StateCommitted, "Git commit: "+msg)
	}

	if s.settings.Tag {
		tag := domain.BumpTagName(version)
		if err := s.vcs.Tag(ctx, tag); err != nil {
			return err
		}
		r.result.Tag = tag
		r.reach(domain.StateTagged, "Git tag: "+tag)
	}

	return s.push(ctx, r)
}

// prepare runs the steps shared by release and bump: precondition, manifest,
// version resolution and write-back. It reports whether the new version was
// written to Chart.yaml.
func (s *ReleaseService) prepare(ctx context.Context, r *releaseRun) (ports.ManifestHandle, bool, error) {
	if s.settings.RequireCleanWorkingDirectory {
		changes, err := s.vcs.Status(ctx)
		if err != nil {
			return nil, false, err
		}
		if len(changes) > 0 {
			return nil, false, &domain.DirtyWorkingDirectoryError{Changes: changes}
		}
	}
	r.reach(domain.StatePreconditionChecked, "")

	manifest, err := s.manifests.ReadManifest(s.settings.ChartDir)
	if err != nil {
		return nil, false, err
	}
	name, err := manifest.ExtractName()
	if err != nil {
		return nil, false, err
	}
	r.result.Chart = name
	r.reach(domain.StateManifestRead, "Chart name extracted: "+name)

	version, persist, err := s.resolveVersion(manifest)
	if err != nil {
		return nil, false, err
	}
	r.result.Version = version
	r.logger = r.logger.With("chart", name, "version", version.String())
	r.reach(domain.StateVersionResolved, "Version resolved: "+version.String())

	if persist {
		if err := manifest.WriteBackVersion(version); err != nil {
			return nil, false, err
		}
		r.reach(domain.StateVersionWritten, "Chart.yaml updated with version: "+version.String())
	}
	return manifest, persist, nil
}

// resolveVersion returns the version to release and whether it must be
// written back to Chart.yaml. An override is used verbatim and never
// written.
func (s *ReleaseService) resolveVersion(manifest ports.ManifestHandle) (domain.Version, bool, error) {
	if s.settings.OverrideChartVersion != "" {
		v, err := domain.ParseVersion(s.settings.OverrideChartVersion)
		return v, false, err
	}

	current, err := manifest.ExtractVersion()
	if err != nil {
		return domain.Version{}, false, err
	}
	v, err := domain.ParseVersion(current)
	if err != nil {
		return domain.Version{}, false, err
	}
	return v.Bump(s.settings.BumpStrategy), s.settings.BumpVersion, nil
}

// push pushes commits, then tags created in this run, as two operations.
func (s *ReleaseService) push(ctx context.Context, r *releaseRun) error {
	pushed := false
	if s.settings.Push {
		if err := s.vcs.Push(ctx); err != nil {
			return err
		}
		pushed = true
		r.progress.Step("Git push")
	}

	tagPushed := false
	if s.settings.PushTags && r.result.Tag != "" {
		if err := s.vcs.PushTags(ctx); err != nil {
			return err
		}
		pushed, tagPushed = true, true
		r.progress.Step("Git push tags")
	}
	if pushed {
		r.reach(domain.StatePushed, "")
	}

	if s.notifier != nil && tagPushed {
		if err := s.notifier.Announce(ctx, r.result.Chart, r.result.Tag, r.result.Version); err != nil {
			return err
		}
		r.progress.Step("GitHub release created: " + r.result.Tag)
	}
	return nil
}
