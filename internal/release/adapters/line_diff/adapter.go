// Package linediff renders unified diffs of rewritten files for debug logs.
package linediff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Adapter implements ports.DiffPort with a line-based unified diff.
type Adapter struct {
	context int
}

// New creates a diff adapter showing context lines around each change.
func New(context int) *Adapter {
	return &Adapter{context: context}
}

// ComputeDiff returns the unified diff between base and head, or an empty
// string when they are identical.
func (a *Adapter) ComputeDiff(baseName, headName string, base, head []byte) string {
	if string(base) == string(head) {
		return ""
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(base)),
		B:        difflib.SplitLines(string(head)),
		FromFile: "a/" + strings.TrimPrefix(baseName, "/"),
		ToFile:   "b/" + strings.TrimPrefix(headName, "/"),
		Context:  a.context,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("error computing diff: %s", err)
	}
	return strings.TrimSpace(text)
}
