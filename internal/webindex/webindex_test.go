package webindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/service"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

const indexPage = `<html><body>
<a href="../">Parent</a>
<a href="./openSUSE-Leap.x86_64-1.0.0-Build1.1.packages">pkg</a>
<a href="openSUSE-Leap.x86_64-1.0.0-Build1.1.qcow2">img</a>
<a href="openSUSE-Leap.x86_64-1.0.0-Build1.1.qcow2">dup</a>
<a href="other-image.qcow2">other</a>
</body></html>`

func TestListScrapesAnchors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(indexPage)); err != nil {
			t.Errorf("write index page: %v", err)
		}
	}))
	defer srv.Close()

	ix := New(srv.URL, service.NewHTTPClient(5*time.Second))
	names, err := ix.List(context.Background(), "openSUSE-Leap")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []string{
		"openSUSE-Leap.x86_64-1.0.0-Build1.1.packages",
		"openSUSE-Leap.x86_64-1.0.0-Build1.1.qcow2",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("unexpected listing: %v", names)
	}
}

func TestListFallsBackToJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "jsontable" {
			payload := `{"data":[{"name":"img.x86_64-2.0.0-Build5.5.raw.xz"},{"name":"unrelated.txt"}]}`
			if _, err := w.Write([]byte(payload)); err != nil {
				t.Errorf("write JSON listing: %v", err)
			}
			return
		}
		// HTML index with no matching anchors
		if _, err := w.Write([]byte("<html><body><a href=\"../\">up</a></body></html>")); err != nil {
			t.Errorf("write index page: %v", err)
		}
	}))
	defer srv.Close()

	ix := New(srv.URL, service.NewHTTPClient(5*time.Second))
	names, err := ix.List(context.Background(), "img")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []string{"img.x86_64-2.0.0-Build5.5.raw.xz"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("unexpected listing: %v", names)
	}
}

func TestListJSONUnavailableYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("<html><body>no anchors</body></html>")); err != nil {
			t.Errorf("write page: %v", err)
		}
	}))
	defer srv.Close()

	ix := New(srv.URL, service.NewHTTPClient(5*time.Second))
	names, err := ix.List(context.Background(), "img")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty listing, got %v", names)
	}
}

func TestFileURL(t *testing.T) {
	ix := New("https://mirror.example.com/images/", nil)
	got := ix.FileURL("img.qcow2")
	if got != "https://mirror.example.com/images/img.qcow2" {
		t.Errorf("unexpected file URL %q", got)
	}
}
