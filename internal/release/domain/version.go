package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fraction selects which component of a Version is incremented by Bump.
type Fraction int

const (
	Major Fraction = iota
	Minor
	Patch
)

var fractionNames = [...]string{
	Major: "MAJOR",
	Minor: "MINOR",
	Patch: "PATCH",
}

// String returns the upper-case name of the fraction.
func (f Fraction) String() string {
	if f < 0 || int(f) >= len(fractionNames) {
		return "UNKNOWN"
	}
	return fractionNames[f]
}

// ParseFraction parses a bump strategy name, ignoring case.
// An empty string yields the default strategy, Minor.
func ParseFraction(s string) (Fraction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return Minor, nil
	case "MAJOR":
		return Major, nil
	case "MINOR":
		return Minor, nil
	case "PATCH":
		return Patch, nil
	default:
		return 0, fmt.Errorf("unknown bump strategy %q (expected MAJOR, MINOR or PATCH)", s)
	}
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-(\S+))?$`)

// Version is an immutable semantic version: major.minor.patch with an
// optional qualifier appended after a literal "-".
type Version struct {
	Major     uint64
	Minor     uint64
	Patch     uint64
	Qualifier string
}

// ParseVersion parses text of the form "1.2.3" or "1.2.3-rc1".
// Anything else, including partial versions like "1.2", is rejected.
func ParseVersion(text string) (Version, error) {
	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return Version{}, &InvalidVersionFormatError{Text: text}
	}

	var parts [3]uint64
	for i := range parts {
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return Version{}, &InvalidVersionFormatError{Text: text}
		}
		parts[i] = n
	}

	return Version{
		Major:     parts[0],
		Minor:     parts[1],
		Patch:     parts[2],
		Qualifier: m[4],
	}, nil
}

// Bump returns a new Version with the given fraction incremented and every
// lower fraction reset to zero. The qualifier is kept as is.
func (v Version) Bump(f Fraction) Version {
	switch f {
	case Major:
		return Version{Major: v.Major + 1, Qualifier: v.Qualifier}
	case Minor:
		return Version{Major: v.Major, Minor: v.Minor + 1, Qualifier: v.Qualifier}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1, Qualifier: v.Qualifier}
	}
}

// String formats the version in its canonical form.
func (v Version) String() string {
	s := strconv.FormatUint(v.Major, 10) + "." +
		strconv.FormatUint(v.Minor, 10) + "." +
		strconv.FormatUint(v.Patch, 10)
	if v.Qualifier != "" {
		s += "-" + v.Qualifier
	}
	return s
}

// ReleaseTagName is the git tag recorded for a released chart version.
func ReleaseTagName(v Version) string {
	return "RELEASE-" + v.String()
}

// BumpTagName is the git tag recorded when only the chart version is bumped.
func BumpTagName(v Version) string {
	return "RELEASE-chart-" + v.String()
}
