package metadata

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlat(t *testing.T) {
	input := "foo||1.2|3.4|x86_64|uri|MIT\n" +
		"bar||2.0|1.1|noarch|uri\n"

	packages, err := ParseFlat(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, packages, 2)

	foo := packages["foo"]
	assert.Equal(t, "foo", foo.Name)
	assert.Equal(t, "1.2", foo.Version)
	assert.Equal(t, "3.4", foo.Release)
	assert.Equal(t, "x86_64", foo.Arch)
	assert.Equal(t, "MIT", foo.License)
	assert.NotEmpty(t, foo.Checksum)

	// license column is optional
	assert.Equal(t, "unknown", packages["bar"].License)
}

func TestParseFlatSkipsBlankLines(t *testing.T) {
	input := "\nfoo||1.2|3.4|x86_64|uri|MIT\n\n"

	packages, err := ParseFlat(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, packages, 1)
}

func TestParseFlatMalformedLine(t *testing.T) {
	_, err := ParseFlat(strings.NewReader("not-a-packages-file\n"))
	require.Error(t, err)
}

func TestParseFlatChecksumPerLine(t *testing.T) {
	a, err := ParseFlat(strings.NewReader("foo||1.2|3.4|x86_64|uri|MIT\n"))
	require.NoError(t, err)
	b, err := ParseFlat(strings.NewReader("foo||1.2|3.5|x86_64|uri|MIT\n"))
	require.NoError(t, err)

	assert.NotEqual(t, a["foo"].Checksum, b["foo"].Checksum)
}

const sampleReport = `<?xml version="1.0"?>
<report buildtime="1680000000">
  <binary name="kernel-default" version="5.14.21" release="150500.55.83.1" binaryarch="x86_64" license="GPL-2.0-only">/kernel-default.rpm</binary>
  <binary name="filesystem" version="84.87" release="150400.3.3.1" binaryarch="x86_64">/filesystem.rpm</binary>
</report>`

func TestParseReport(t *testing.T) {
	packages, err := ParseReport(strings.NewReader(sampleReport))
	require.NoError(t, err)
	require.Len(t, packages, 2)

	kernel := packages["kernel-default"]
	assert.Equal(t, "5.14.21", kernel.Version)
	assert.Equal(t, "150500.55.83.1", kernel.Release)
	assert.Equal(t, "x86_64", kernel.Arch)
	assert.Equal(t, "GPL-2.0-only", kernel.License)
	assert.NotEmpty(t, kernel.Checksum)

	// absent license attribute defaults to unknown
	assert.Equal(t, "unknown", packages["filesystem"].License)
}

func TestParseReportRejectsGarbage(t *testing.T) {
	_, err := ParseReport(strings.NewReader("foo||1.2|3.4|x86_64|uri|MIT\n"))
	require.Error(t, err)
}

func TestPackagesJSONRoundTrip(t *testing.T) {
	packages, err := ParseFlat(strings.NewReader("foo||1.2|3.4|x86_64|uri|MIT\n"))
	require.NoError(t, err)

	data, err := json.Marshal(packages)
	require.NoError(t, err)

	var decoded Packages
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, packages, decoded)
}
