package linediff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDiff(t *testing.T) {
	base := []byte("name: foo\nversion: 1.4.7\nappVersion: \"2.3\"\n")
	head := []byte("name: foo\nversion: 1.5.0\nappVersion: \"2.3\"\n")

	got := New(1).ComputeDiff("Chart.yaml", "Chart.yaml", base, head)

	assert.True(t, strings.HasPrefix(got, "--- a/Chart.yaml\n+++ b/Chart.yaml"))
	assert.Contains(t, got, "-version: 1.4.7\n+version: 1.5.0")
	assert.Contains(t, got, " name: foo")
}

func TestComputeDiff_Identical(t *testing.T) {
	same := []byte("name: foo\n")
	assert.Empty(t, New(3).ComputeDiff("a", "b", same, same))
}
