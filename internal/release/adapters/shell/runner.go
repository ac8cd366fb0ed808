// Package shell runs external tools such as git, helm and helmfile.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

const (
	redacted        = "******"
	minSecretLength = 4
)

// Runner implements ports.CommandRunner. Command text is split into argv
// with shell quoting rules and executed directly, never through a shell.
type Runner struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	timeout time.Duration
	secrets []string
}

// New creates a Runner. A zero timeout disables the per-command limit.
// Secrets of at least minSecretLength bytes are masked in logged command
// text and in errors; shorter ones would match ordinary text.
func New(logger *slog.Logger, tracer trace.Tracer, timeout time.Duration, secrets ...string) *Runner {
	var s []string
	for _, secret := range secrets {
		if len(secret) >= minSecretLength {
			s = append(s, secret)
		}
	}
	return &Runner{logger: logger, tracer: tracer, timeout: timeout, secrets: s}
}

// Run executes command in dir and returns stdout split into lines, with
// a trailing empty line dropped.
func (r *Runner) Run(ctx context.Context, command, dir string) ([]string, error) {
	shown := r.Redact(command)

	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", shown, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	ctx, span := r.tracer.Start(ctx, "shell.run", trace.WithAttributes(
		attribute.String("command", argv[0]),
		attribute.String("dir", dir),
	))
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Debug("running command", "command", shown, "dir", dir)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from our own command templates
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("command finished", "command", shown, "duration", time.Since(start))

	if err != nil {
		span.SetStatus(codes.Error, "command failed")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.TimedOutError{Operation: shown, Timeout: r.timeout}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("running %q: %w", shown, ctxErr)
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			stderr.WriteString(err.Error())
		}
		return nil, &domain.CommandError{
			Command:  shown,
			Output:   r.Redact(combine(stdout.String(), stderr.String())),
			ExitCode: exitCode,
		}
	}

	return splitLines(stdout.String()), nil
}

// Redact masks every configured secret in s.
func (r *Runner) Redact(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

// Quote returns s quoted for use as a single argument in command text.
func Quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func combine(stdout, stderr string) string {
	switch {
	case stdout == "":
		return strings.TrimRight(stderr, "\n")
	case stderr == "":
		return strings.TrimRight(stdout, "\n")
	default:
		return strings.TrimRight(stdout, "\n") + "\n" + strings.TrimRight(stderr, "\n")
	}
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
