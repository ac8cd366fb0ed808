// Package console prints user-facing progress and results.
package console

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nathantilsley/helm-release/internal/release/domain"
)

// Adapter implements ports.ProgressPort.
type Adapter struct {
	out  io.Writer
	ok   *color.Color
	fail *color.Color
	dim  *color.Color
}

// New returns an Adapter writing to out. Colors follow fatih/color's
// terminal detection unless useColor is false.
func New(out io.Writer, useColor bool) *Adapter {
	a := &Adapter{
		out:  out,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.FgHiBlack),
	}
	if !useColor {
		for _, c := range []*color.Color{a.ok, a.fail, a.dim} {
			c.DisableColor()
		}
	}
	return a
}

// Step prints one completed step.
func (a *Adapter) Step(message string) {
	fmt.Fprintln(a.out, a.ok.Sprint("✅ ")+message)
}

// Failure prints err. Command failures also show the command line and
// what it printed.
func (a *Adapter) Failure(err error) {
	fmt.Fprintln(a.out, a.fail.Sprint("❌ ")+err.Error())

	var cmdErr *domain.CommandError
	if !errors.As(err, &cmdErr) {
		return
	}
	fmt.Fprintln(a.out, a.dim.Sprint("   command: ")+cmdErr.Command)
	if out := strings.TrimSpace(cmdErr.Output); out != "" {
		for _, l := range strings.Split(out, "\n") {
			fmt.Fprintln(a.out, a.dim.Sprint("   | ")+l)
		}
	}
}

// Release summarizes a finished release or bump run; verb is "released"
// or "bumped".
func (a *Adapter) Release(verb string, r domain.ReleaseResult) {
	msg := fmt.Sprintf("%s %s %s", r.Chart, r.Version, verb)
	if r.Tag != "" {
		msg += " (" + r.Tag + ")"
	}
	fmt.Fprintln(a.out, a.ok.Sprint("✅ ")+msg)
}

// Deploy summarizes a finished deploy pass.
func (a *Adapter) Deploy(r domain.DeployReport) {
	if len(r.Outcomes) == 0 {
		fmt.Fprintln(a.out, a.ok.Sprint("✅ ")+"nothing to deploy for "+r.Project)
		return
	}
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%s %s: %s", o.Request.Environment, o.Request.Version, o.Action)
		if o.Synced {
			line += ", synced"
		}
		fmt.Fprintln(a.out, a.ok.Sprint("✅ ")+line)
	}
}
