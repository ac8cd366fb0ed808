// Command helm-release bumps, packages and publishes helm charts and rolls
// tagged chart versions out through a helmfile stack repository.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/helm-release/internal/platform/config"
	"github.com/nathantilsley/helm-release/internal/platform/logger"
	"github.com/nathantilsley/helm-release/internal/platform/telemetry"
	"github.com/nathantilsley/helm-release/internal/release/adapters/console"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := console.New(os.Stdout, os.Getenv("NO_COLOR") == "")
	if err := newRootCommand(out).ExecuteContext(ctx); err != nil {
		out.Failure(err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(out *console.Adapter) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "helm-release",
		Short:         "Release helm charts and deploy them through a helmfile stack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default .helm-release.yaml, or $HELM_RELEASE_CONFIG)")
	config.AddFlags(root.PersistentFlags(), map[string]string{
		"logLevel":       "log level: debug, info, warn or error",
		"debug":          "debug output, including the effective configuration",
		"chartPath":      "chart directory holding Chart.yaml",
		"commandTimeout": "time limit for each external command",
		"otelEnabled":    "export traces and metrics over OTLP",
	})

	release := &cobra.Command{
		Use:   "release",
		Short: "Bump the chart version, then tag, package, publish and push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, configFile, out, func(ctx context.Context, c *Container) error {
				result, err := c.ReleaseService.Release(ctx)
				if err != nil {
					return err
				}
				out.Release("released", result)
				return nil
			})
		},
	}
	config.AddFlags(release.Flags(), releaseFlags)
	config.AddFlags(release.Flags(), map[string]string{
		"deleteLocalPackage":  "delete the package after publishing",
		"overrideAppVersion":  "appVersion passed to helm package",
		"signature.key":       "GPG key used to sign the package",
		"signature.keyStore":  "GPG keyring holding the signing key",
		"repository.url":      "chart repository upload URL",
		"repository.username": "chart repository username",
		"uploadTimeout":       "time limit for the chart upload",
	})

	bump := &cobra.Command{
		Use:   "bump",
		Short: "Bump the chart version, then commit, tag and push without packaging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, configFile, out, func(ctx context.Context, c *Container) error {
				result, err := c.ReleaseService.Bump(ctx)
				if err != nil {
					return err
				}
				out.Release("bumped", result)
				return nil
			})
		},
	}
	config.AddFlags(bump.Flags(), releaseFlags)

	deploy := &cobra.Command{
		Use:   "deploy [project]",
		Short: "Record tagged chart versions in the stack repository and sync them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, configFile, out, func(ctx context.Context, c *Container) error {
				project := c.Config.Project
				if len(args) == 1 {
					project = args[0]
				}
				report, err := c.DeployService.Deploy(ctx, project)
				if err != nil {
					return err
				}
				out.Deploy(report)
				return nil
			})
		},
	}
	config.AddFlags(deploy.Flags(), map[string]string{
		"stack":               "git URL of the stack repository",
		"stackFile":           "stack descriptor file name",
		"project":             "project to deploy when no argument is given",
		"repository.url":      "chart repository upload URL, used to locate index.yaml",
		"repository.indexUrl": "chart repository index URL",
		"repository.username": "chart repository username",
	})

	root.AddCommand(release, bump, deploy)
	return root
}

var releaseFlags = map[string]string{
	"bumpStrategy":                     "version fraction to bump: MAJOR, MINOR or PATCH",
	"bumpVersion":                      "write the bumped version to Chart.yaml",
	"overrideChartVersion":             "release this exact version instead of bumping",
	"git.requireCleanWorkingDirectory": "refuse to run with uncommitted changes",
	"git.commit":                       "commit the version change",
	"git.tag":                          "tag the release",
	"git.push":                         "push commits",
	"git.pushTags":                     "push the tag created by the run",
}

// withContainer loads the configuration, sets up logging and telemetry for
// one run and hands the wired container to fn.
func withContainer(cmd *cobra.Command, configFile string, out *console.Adapter, fn func(context.Context, *Container) error) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.LogLevel).With("runID", uuid.NewString(), "command", cmd.Name())
	if cfg.Debug {
		dumpConfig(log, cfg)
	}

	ctx := cmd.Context()
	tel, err := telemetry.New(ctx, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	container, err := NewContainer(cfg, log, tel, out)
	if err != nil {
		return fmt.Errorf("building container: %w", err)
	}
	return fn(ctx, container)
}

func dumpConfig(log *slog.Logger, cfg config.Config) {
	raw, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		log.Warn("rendering config failed", "error", err)
		return
	}
	log.Debug("effective configuration", "config", string(raw))
}
