package asset

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, payload string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalResource(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "left.png", "OK")

	res, err := NewResource(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if res.IsRemote() {
		t.Fatal("expected local resource")
	}
	if res.Name() != "left.png" {
		t.Fatalf("expected name to be left.png; got %s", res.Name())
	}

	data, _ := io.ReadAll(res)
	if string(data) != "OK" {
		t.Fatalf("expected payload OK; got %q", data)
	}

	_, err = NewResource(filepath.Join(t.TempDir(), "missing.png"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error; got %v", err)
	}
}

func TestLocalRelativeResource(t *testing.T) {
	dir := t.TempDir()
	leftPath := writeTempFile(t, dir, "left.png", "L")
	writeTempFile(t, dir, "label.png", "GT")

	left, err := NewResource(leftPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer left.Close()

	label, err := NewResource("label.png", left)
	if err != nil {
		t.Fatal(err)
	}
	defer label.Close()

	data, _ := io.ReadAll(label)
	if string(data) != "GT" {
		t.Fatalf("expected payload GT; got %q", data)
	}
}

func TestHttpResource(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "right.png", "OK")

	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer server.Close()

	res, err := NewResource(server.URL+"/right.png", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if !res.IsRemote() || res.Name() != "right.png" {
		t.Fatalf("expected remote resource named right.png; got %s (remote: %t)", res.Name(), res.IsRemote())
	}

	fetchUrl := server.URL + "/file-not-found.png"
	expError := fmt.Sprintf("resource: could not fetch '%s': status %d", fetchUrl, 404)
	_, err = NewResource(fetchUrl, nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestRemoteRelativeResources(t *testing.T) {
	serverHits := 0
	serverFn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHits++
		switch r.URL.Path {
		case "/pair/left.png", "/pair/label.png":
			w.Write([]byte("OK"))
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(serverFn)
	defer server.Close()

	left, err := NewResource(server.URL+"/pair/left.png", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer left.Close()

	label, err := NewResource("label.png", left)
	if err != nil {
		t.Fatal(err)
	}
	defer label.Close()

	if serverHits != 2 {
		t.Fatalf("expected server to receive 2 requests; got %d", serverHits)
	}
}

func TestUnsupportedResourceScheme(t *testing.T) {
	expError := "resource: unsupported scheme 'gopher'"
	_, err := NewResource("gopher://digging.png", nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestResourceConnectionRefusedError(t *testing.T) {
	_, err := NewResource("http://localhost:12345/left.png", nil)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected to get 'connection refused error'; got %v", err)
	}
}

func TestResourceFromStream(t *testing.T) {
	res := NewResourceFromStream("embedded.png", strings.NewReader("payload"))
	defer res.Close()

	if res.Path() != "embedded.png" || res.IsRemote() {
		t.Fatalf("unexpected stream resource %s", res.Path())
	}
}
