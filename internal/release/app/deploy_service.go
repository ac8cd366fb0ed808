package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/helm-release/internal/release/domain"
	"github.com/nathantilsley/helm-release/internal/release/ports"
)

// DeployService implements ports.DeployUseCase. It reads the environment
// tags of the project repository, records the tagged versions in the stack
// repository and syncs every environment whose cluster state differs.
type DeployService struct {
	stackURL string
	tags     ports.VersionControlPort
	checkout ports.CheckoutPort
	stacks   ports.StackFactory
	stackVCS ports.VersionControlFactory
	charts   ports.ChartRepositoryPort
	progress ports.ProgressPort
	logger   *slog.Logger
	tracer   trace.Tracer
	deploys  metric.Int64Counter
	updates  metric.Int64Counter
}

// NewDeployService creates a DeployService. An empty stackURL makes every
// Deploy fail with domain.ErrStackNotConfigured.
func NewDeployService(
	stackURL string,
	tags ports.VersionControlPort,
	checkout ports.CheckoutPort,
	stacks ports.StackFactory,
	stackVCS ports.VersionControlFactory,
	charts ports.ChartRepositoryPort,
	progress ports.ProgressPort,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
) *DeployService {
	return &DeployService{
		stackURL: stackURL,
		tags:     tags,
		checkout: checkout,
		stacks:   stacks,
		stackVCS: stackVCS,
		charts:   charts,
		progress: progress,
		logger:   logger,
		tracer:   tracer,
		deploys:  counter(meter, logger, "helm_release.deploys", "Deploy passes by outcome"),
		updates:  counter(meter, logger, "helm_release.stack_updates", "Stack descriptor updates by environment"),
	}
}

type environmentPlan struct {
	request  domain.DeployRequest
	declared string
	live     domain.LiveRelease
}

func (p environmentPlan) changed() bool {
	return p.declared != p.request.Version
}

// Deploy reconciles the stack with the project's environment tags. Every
// check that can fail runs before the first change to the stack, so a
// failing pass leaves the stack repository untouched.
func (s *DeployService) Deploy(ctx context.Context, project string) (report domain.DeployReport, err error) {
	ctx, span := s.tracer.Start(ctx, "deploy", trace.WithAttributes(attribute.String("project", project)))
	defer span.End()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.deploys.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	report.Project = project
	if project == "" {
		return report, fmt.Errorf("%w: project name is required", domain.ErrPrecondition)
	}
	if s.stackURL == "" {
		return report, domain.ErrStackNotConfigured
	}
	logger := s.logger.With("project", project)

	tags, err := s.tags.Tags(ctx)
	if err != nil {
		return report, fmt.Errorf("reading tags: %w", err)
	}

	ws, err := s.checkout.Checkout(ctx, s.stackURL)
	if err != nil {
		return report, fmt.Errorf("checking out stack: %w", err)
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}()
	s.progress.Step("Stack cloned")

	stack := s.stacks(ws.Path())
	environments, err := stack.ListEnvironments()
	if err != nil {
		return report, err
	}

	requests := domain.PlanDeployRequests(tags, environments)
	logger.Info("deploy planned", "environments", len(environments), "requests", len(requests))
	if len(requests) == 0 {
		s.progress.Step("No environment tags for " + project)
		return report, nil
	}

	plans, err := s.plan(ctx, stack, project, requests)
	if err != nil {
		return report, err
	}

	vcs := s.stackVCS(ws.Path())
	for _, p := range plans {
		outcome, err := s.apply(ctx, stack, vcs, project, p, logger)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

// plan gathers the declared and live state of every request and runs the
// consistency checks.
func (s *DeployService) plan(ctx context.Context, stack ports.StackPort, project string, requests []domain.DeployRequest) ([]environmentPlan, error) {
	plans := make([]environmentPlan, 0, len(requests))
	for _, req := range requests {
		declared, err := stack.DeclaredVersion(project, req.Environment)
		if err != nil {
			return nil, err
		}
		live, err := stack.LiveStatus(ctx, project, req.Environment)
		if err != nil {
			return nil, err
		}
		p := environmentPlan{request: req, declared: declared, live: live}

		if p.changed() && req.Installs() {
			found, err := s.charts.Exists(ctx, project, req.Version)
			if err != nil {
				return nil, fmt.Errorf("checking chart repository: %w", err)
			}
			if !found {
				return nil, &domain.ChartNotFoundInRepositoryError{Project: project, Version: req.Version}
			}
			if live.Matches(project, req.Version) {
				return nil, &domain.DeployedButNotDeclaredError{Project: project, Version: req.Version, Environment: req.Environment}
			}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (s *DeployService) apply(ctx context.Context, stack ports.StackPort, vcs ports.VersionControlPort, project string, p environmentPlan, logger *slog.Logger) (domain.EnvironmentOutcome, error) {
	req := p.request
	logger = logger.With("env", req.Environment, "version", req.Version)
	outcome := domain.EnvironmentOutcome{Request: req, DeclaredVersion: p.declared, Action: domain.ActionUnchanged}

	if p.changed() {
		if err := stack.UpdateDeclaredVersion(project, req.Environment, req.Version); err != nil {
			return outcome, err
		}
		msg := req.CommitMessage(project)
		if err := vcs.Commit(ctx, stack.DescriptorPath(), msg); err != nil {
			return outcome, err
		}
		if err := vcs.Push(ctx); err != nil {
			return outcome, err
		}
		outcome.Action = domain.ActionUpdated
		s.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("env", req.Environment)))
		s.progress.Step(msg)
		logger.Info("stack updated", "from", p.declared)
	}

	if p.live.Matches(project, req.Version) {
		logger.Debug("live release matches, sync skipped")
		return outcome, nil
	}

	if _, err := traced(ctx, s.tracer, "sync", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, stack.Sync(ctx, project, req.Environment)
	}); err != nil {
		return outcome, err
	}
	outcome.Synced = true
	if outcome.Action == domain.ActionUnchanged {
		outcome.Action = domain.ActionResynced
	}
	s.progress.Step("Synced " + project + " in " + req.Environment)

	live, err := stack.LiveStatus(ctx, project, req.Environment)
	if err != nil {
		return outcome, err
	}
	if !live.Matches(project, req.Version) {
		logger.Error("live release differs after sync", "chart", live.Chart, "status", live.Status)
		return outcome, &domain.DeploymentMismatchError{Project: project, Version: req.Version, Environment: req.Environment}
	}
	logger.Info("environment reconciled", "action", outcome.Action.String())
	return outcome, nil
}
