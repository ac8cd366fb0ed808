package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"0.0.0",
		"1.2.3",
		"10.20.30",
		"1.2.3-rc1",
		"1.2.3-alpha.1+build.5",
	} {
		t.Run(s, func(t *testing.T) {
			v, err := ParseVersion(s)
			require.NoError(t, err)
			assert.Equal(t, s, v.String())
		})
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"1.2",
		"a.b.c",
		"1.2.3.4",
		"1x2x3",
		"v1.2.3",
		"1.2.3-",
		"1.2.3 ",
		"99999999999999999999.0.0",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseVersion(s)
			require.Error(t, err)

			var invalid *InvalidVersionFormatError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, s, invalid.Text)
			assert.True(t, errors.Is(err, ErrPrecondition))
		})
	}
}

func TestVersion_Bump(t *testing.T) {
	tests := []struct {
		in       string
		fraction Fraction
		want     string
	}{
		{"1.4.7", Major, "2.0.0"},
		{"1.4.7", Minor, "1.5.0"},
		{"1.4.7", Patch, "1.4.8"},
		{"1.4.7-rc1", Major, "2.0.0-rc1"},
		{"1.4.7-rc1", Minor, "1.5.0-rc1"},
		{"1.4.7-rc1", Patch, "1.4.8-rc1"},
		{"0.0.0", Patch, "0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.in+"/"+tt.fraction.String(), func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			require.NoError(t, err)

			bumped := v.Bump(tt.fraction)
			assert.Equal(t, tt.want, bumped.String())
			assert.Equal(t, tt.in, v.String(), "original must not change")

			again, err := ParseVersion(bumped.String())
			require.NoError(t, err)
			assert.Equal(t, bumped, again)
		})
	}
}

func TestParseFraction(t *testing.T) {
	tests := []struct {
		in      string
		want    Fraction
		wantErr bool
	}{
		{"", Minor, false},
		{"major", Major, false},
		{"MINOR", Minor, false},
		{" Patch ", Patch, false},
		{"build", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFraction(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFraction_String(t *testing.T) {
	assert.Equal(t, "MAJOR", Major.String())
	assert.Equal(t, "PATCH", Patch.String())
	assert.Equal(t, "UNKNOWN", Fraction(42).String())
}

func TestTagNames(t *testing.T) {
	v := Version{Major: 1, Minor: 3, Qualifier: "rc1"}
	assert.Equal(t, "RELEASE-1.3.0-rc1", ReleaseTagName(v))
	assert.Equal(t, "RELEASE-chart-1.3.0-rc1", BumpTagName(v))
}
