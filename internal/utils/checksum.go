package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// FileDigest computes the SHA256 digest of a file, streamed.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer Close(f)

	digester := digest.SHA256.Digester()
	if _, err := io.Copy(digester.Hash(), f); err != nil {
		return "", fmt.Errorf("failed to compute SHA256 for %s: %w", path, err)
	}
	return digester.Digest(), nil
}

// VerifyFileChecksum compares a file's SHA256 against an expected hex digest.
func VerifyFileChecksum(path, expectedHex string) error {
	actual, err := FileDigest(path)
	if err != nil {
		return err
	}

	expected := digest.NewDigestFromEncoded(digest.SHA256, expectedHex)
	if err := expected.Validate(); err != nil {
		return fmt.Errorf("invalid expected checksum %q: %w", expectedHex, err)
	}
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected.Encoded(), actual.Encoded())
	}
	return nil
}

// ChecksumFromSidecar extracts the checksum token from an OBS sidecar file.
// The expected layout is an inline-signed text block with the checksum on
// the 4th line; files without that line fall back to the first token of the
// first line.
func ChecksumFromSidecar(content string) (string, error) {
	lines := strings.Split(content, "\n")
	if len(lines) >= 4 {
		if token := strings.TrimSpace(lines[3]); token != "" {
			return firstToken(token), nil
		}
	}

	for _, line := range lines {
		if token := strings.TrimSpace(line); token != "" {
			return firstToken(token), nil
		}
	}
	return "", fmt.Errorf("no checksum token found in sidecar file")
}

func firstToken(line string) string {
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return line
}
