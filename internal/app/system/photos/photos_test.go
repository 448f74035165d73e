package photos

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func uploadRequest(t *testing.T, filename, contentType string, body []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="photo"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(body)
	w.Close()

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	return file, header
}

func TestSaveAndRemove(t *testing.T) {
	store, err := New(t.TempDir(), "/photos")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	file, header := uploadRequest(t, "me.png", "image/png", []byte("pngdata"))
	defer file.Close()

	ref, err := store.Save(file, header)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Errorf("ref %q should keep the .png extension", ref)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), ref))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "pngdata" {
		t.Errorf("saved content = %q", data)
	}

	if err := store.Remove(ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), ref)); !os.IsNotExist(err) {
		t.Error("file should be gone after Remove")
	}
	// Removing again is fine.
	if err := store.Remove(ref); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	store, err := New(t.TempDir(), "/photos")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	file, header := uploadRequest(t, "notes.txt", "text/plain", []byte("hello"))
	defer file.Close()

	if _, err := store.Save(file, header); err != ErrNotImage {
		t.Errorf("Save = %v, want ErrNotImage", err)
	}
}

func TestSaveSanitizesFilename(t *testing.T) {
	store, err := New(t.TempDir(), "/photos")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	file, header := uploadRequest(t, "../../etc/passwd.weird", "image/png", []byte("x"))
	defer file.Close()

	ref, err := store.Save(file, header)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(ref, "/") || strings.Contains(ref, "..") {
		t.Errorf("ref %q should not contain path components", ref)
	}
	if !strings.HasSuffix(ref, ".bin") {
		t.Errorf("ref %q should fall back to .bin for unknown extensions", ref)
	}
}

func TestResolveURL(t *testing.T) {
	store, err := New(t.TempDir(), "photos")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := store.ResolveURL("https://example.com/", "abc.png"); got != "https://example.com/photos/abc.png" {
		t.Errorf("ResolveURL = %q", got)
	}
	if got := store.ResolveURL("https://example.com", ""); got != "" {
		t.Errorf("ResolveURL with empty ref = %q, want empty", got)
	}
}
