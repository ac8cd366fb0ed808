package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_Text(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", false)

	log.With("runID", "abc").Info("chart packaged", "chart", "foo", "path", "/tmp/a b.tgz")
	log.Debug("hidden")

	line := buf.String()
	assert.Contains(t, line, "INFO  chart packaged chart=foo path=\"/tmp/a b.tgz\" runID=abc\n")
	assert.NotContains(t, line, "hidden")
	assert.NotContains(t, line, "\033[", "no escape codes when color is off")
}

func TestNewWithWriter_Groups(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", false)

	log.WithGroup("deploy").With("env", "staging").Debug("planned", slog.Group("request", "version", "1.3.0"))

	assert.Contains(t, buf.String(), "DEBUG planned deploy.request.version=1.3.0 deploy.env=staging")
}

func TestNewWithWriter_JSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	NewWithWriter(&buf, "warn", true).Warn("slow", "seconds", 3)

	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"msg":"slow"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
