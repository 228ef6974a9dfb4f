package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func repoServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			body, ok := files[r.URL.Path[1:]]
			if !ok {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, body)
			return
		}
		for name := range files {
			fmt.Fprintf(w, "<a href=%q>%s</a>", name, name)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		expectedError string
	}{
		{
			name:          "conditions and conditions-file together",
			args:          []string{"download", "--image-name", "img", "--conditions", "[]", "--conditions-file", "c.json"},
			expectedError: "mutually exclusive",
		},
		{
			name:          "missing image name",
			args:          []string{"download", "--image-name", ""},
			expectedError: "image name is required",
		},
		{
			name:          "broken inline conditions",
			args:          []string{"download", "--image-name", "img", "--conditions", `{"not":"an array"}`},
			expectedError: "conditions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd()
			root.SetArgs(append(tt.args, "--quiet"))
			_, err := root.ExecuteC()

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("expected %q in error, got: %v", tt.expectedError, err)
			}
		})
	}
}

func TestDownloadCmd_EndToEnd(t *testing.T) {
	image := "raw image bytes"
	sum := sha256.Sum256([]byte(image))
	base := "openSUSE-Leap-15.6-EC2.x86_64-1.0.0-Build1.1"

	srv := repoServer(t, map[string]string{
		base + ".packages":      "zlib||1.2.13|1.1|x86_64|drpm\n",
		base + ".raw.xz":        image,
		base + ".raw.xz.sha256": hex.EncodeToString(sum[:]) + " " + base + ".raw.xz\n",
	})
	dir := t.TempDir()

	root := NewRootCmd()
	root.SetArgs([]string{
		"download",
		"--download-url", srv.URL,
		"--image-name", "openSUSE-Leap-15.6-EC2",
		"--target-dir", dir,
		"--extension", "raw.xz",
		"--quiet",
	})
	if _, err := root.ExecuteC(); err != nil {
		t.Fatalf("download command failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, base+".raw.xz")); err != nil {
		t.Fatalf("image not downloaded: %v", err)
	}
}

func TestPackagesListCmd_EndToEnd(t *testing.T) {
	base := "openSUSE-Leap-15.6-EC2.x86_64-1.0.0-Build1.1"
	srv := repoServer(t, map[string]string{
		base + ".packages": "zlib||1.2.13|1.1|x86_64|drpm\n",
	})

	root := NewRootCmd()
	root.SetArgs([]string{
		"packages", "list", "--json",
		"--download-url", srv.URL,
		"--image-name", "openSUSE-Leap-15.6-EC2",
		"--quiet",
	})
	if _, err := root.ExecuteC(); err != nil {
		t.Fatalf("packages list failed: %v", err)
	}
}
