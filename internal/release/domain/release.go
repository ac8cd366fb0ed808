package domain

import "path/filepath"

// State is a step of the release state machine.
type State int

const (
	StateInit State = iota
	StatePreconditionChecked
	StateManifestRead
	StateVersionResolved
	StateVersionWritten
	StateCommitted
	StateTagged
	StatePackaged
	StatePublished
	StateLocalArtifactCleaned
	StatePushed
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:                 "Init",
	StatePreconditionChecked:  "PreconditionChecked",
	StateManifestRead:         "ManifestRead",
	StateVersionResolved:      "VersionResolved",
	StateVersionWritten:       "VersionWritten",
	StateCommitted:            "Committed",
	StateTagged:               "Tagged",
	StatePackaged:             "Packaged",
	StatePublished:            "Published",
	StateLocalArtifactCleaned: "LocalArtifactCleaned",
	StatePushed:               "Pushed",
	StateDone:                 "Done",
	StateFailed:               "Failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Artifact is a packaged chart on disk. ProvenancePath is empty for
// unsigned packages.
type Artifact struct {
	PackagePath    string
	ProvenancePath string
}

// ArtifactFor returns the artifact helm writes for chart name and version
// into dir.
func ArtifactFor(dir, name string, version Version, signed bool) Artifact {
	pkg := filepath.Join(dir, name+"-"+version.String()+".tgz")
	a := Artifact{PackagePath: pkg}
	if signed {
		a.ProvenancePath = pkg + ".prov"
	}
	return a
}

// PackageOptions controls a single helm package invocation.
type PackageOptions struct {
	ChartDir   string
	Version    string // explicit --version, empty to use Chart.yaml
	AppVersion string // explicit --app-version
	SignKey    string
	Keyring    string
}

// Signed reports whether the package will be signed. Both a key and a
// keyring are required.
func (o PackageOptions) Signed() bool {
	return o.SignKey != "" && o.Keyring != ""
}

// UploadTarget is the chart repository endpoint and its optional credentials.
type UploadTarget struct {
	URL      string
	Username string
	Password string
}

// HasCredentials reports whether basic auth should be sent.
func (t UploadTarget) HasCredentials() bool {
	return t.Username != "" && t.Password != ""
}

// ReleaseResult records the outcome of one release or bump run.
type ReleaseResult struct {
	Chart    string
	Version  Version
	Tag      string
	Artifact Artifact
	States   []State
}

// Final returns the last state reached.
func (r ReleaseResult) Final() State {
	if len(r.States) == 0 {
		return StateInit
	}
	return r.States[len(r.States)-1]
}
