// Package metadata parses OBS image package manifests. Two shapes exist in
// the wild: the pipe-delimited .packages flat file and the XML .report
// produced by newer build services.
package metadata

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Package describes one binary package inside an image.
type Package struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Release  string `json:"release"`
	Arch     string `json:"arch"`
	License  string `json:"license"`
	Checksum string `json:"checksum"`
}

// Packages maps package name to its record. The map is rebuilt wholesale on
// every metadata fetch, never mutated incrementally.
type Packages map[string]Package

// MetadataUnavailableError wraps the parse failures of both manifest shapes.
// It is fatal only when the caller declared conditions to evaluate.
type MetadataUnavailableError struct {
	ReportErr error
	FlatErr   error
}

func (e *MetadataUnavailableError) Error() string {
	return fmt.Sprintf("package metadata unavailable: report: %v, packages: %v", e.ReportErr, e.FlatErr)
}

func (e *MetadataUnavailableError) Kind() string { return "MetadataUnavailableError" }

// ParseFlat reads the pipe-delimited packages file:
//
//	name|<empty>|version|release|arch|uri|license
//
// The license field is optional and defaults to "unknown". Each record keeps
// an md5 hex digest of its raw line.
func ParseFlat(r io.Reader) (Packages, error) {
	packages := make(Packages)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 5 {
			return nil, fmt.Errorf("malformed packages line: %q", line)
		}

		license := "unknown"
		if len(fields) > 6 && strings.TrimSpace(fields[6]) != "" {
			license = strings.TrimSpace(fields[6])
		}

		packages[fields[0]] = Package{
			Name:     fields[0],
			Version:  fields[2],
			Release:  fields[3],
			Arch:     fields[4],
			License:  license,
			Checksum: lineDigest(line),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read packages file: %w", err)
	}

	return packages, nil
}

// report mirrors the OBS build report XML.
type report struct {
	XMLName   xml.Name       `xml:"report"`
	BuildTime string         `xml:"buildtime,attr"`
	Binaries  []reportBinary `xml:"binary"`
}

type reportBinary struct {
	XMLName xml.Name `xml:"binary"`
	Name    string   `xml:"name,attr"`
	Version string   `xml:"version,attr"`
	Release string   `xml:"release,attr"`
	Arch    string   `xml:"binaryarch,attr"`
	License string   `xml:"license,attr"`
	Path    string   `xml:",chardata"`
}

// ParseReport reads the XML build report. License defaults to "unknown" when
// the attribute is absent; the record checksum is an md5 hex digest of the
// binary element's textual representation.
func ParseReport(r io.Reader) (Packages, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}

	var doc report
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	packages := make(Packages, len(doc.Binaries))
	for _, bin := range doc.Binaries {
		license := bin.License
		if license == "" {
			license = "unknown"
		}

		rendered, err := xml.Marshal(bin)
		if err != nil {
			return nil, fmt.Errorf("render report element for %s: %w", bin.Name, err)
		}

		packages[bin.Name] = Package{
			Name:     bin.Name,
			Version:  bin.Version,
			Release:  bin.Release,
			Arch:     bin.Arch,
			License:  license,
			Checksum: lineDigest(string(rendered)),
		}
	}

	return packages, nil
}

func lineDigest(line string) string {
	sum := md5.Sum([]byte(line))
	return hex.EncodeToString(sum[:])
}
