package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newStaticDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "js"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"calendar-icon.png": "png-bytes",
		"sw.js":             "self.addEventListener('push', () => {})",
		"js/app.js":         "console.log('app')",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func serveAsset(h *StaticHandler, filename string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/static/"+filename, nil)
	req.SetPathValue("filename", filename)
	rec := httptest.NewRecorder()
	h.Asset(rec, req)
	return rec
}

func TestStaticServesNestedAssets(t *testing.T) {
	h := NewStaticHandler(newStaticDir(t))

	rec := serveAsset(h, "js/app.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("nested asset status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Content-Type = %q, want application/javascript", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q, want the long-lived asset policy", cc)
	}

	rec = serveAsset(h, "calendar-icon.png")
	if rec.Code != http.StatusOK {
		t.Errorf("icon status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("icon Content-Type = %q, want image/png", ct)
	}
}

func TestStaticServiceWorkerHeaders(t *testing.T) {
	h := NewStaticHandler(newStaticDir(t))

	rec := serveAsset(h, "sw.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("sw.js status = %d, want 200", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("sw.js Cache-Control = %q, want no-cache", cc)
	}
	if swa := rec.Header().Get("Service-Worker-Allowed"); swa != "/" {
		t.Errorf("Service-Worker-Allowed = %q, want /", swa)
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	dir := newStaticDir(t)
	// A file just outside the asset root that traversal would reach.
	secret := filepath.Join(filepath.Dir(dir), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewStaticHandler(dir)
	for _, filename := range []string{"../secret.txt", "js/../../secret.txt", ".."} {
		rec := serveAsset(h, filename)
		if rec.Code == http.StatusOK {
			t.Errorf("Asset(%q) status = 200, want the escape refused", filename)
		}
	}
}
