package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves the calendar page and its assets (icons, stylesheets,
// the service worker). Everything is read from a plain directory so the
// frontend can be swapped without rebuilding the server.
type StaticHandler struct {
	dir string
}

func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{dir: dir}
}

// Index serves the single-page app shell.
func (h *StaticHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}

// Asset serves one file from the static directory. The path value may span
// several segments ("js/app.js"); rooted cleaning keeps it inside the asset
// root.
func (h *StaticHandler) Asset(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}

	// Prevent directory traversal: ".." segments collapse against the root.
	filename = strings.TrimPrefix(path.Clean("/"+filename), "/")
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}
	full := filepath.Join(h.dir, filepath.FromSlash(filename))

	if _, err := os.Stat(full); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mimeFromExtension(strings.ToLower(path.Ext(filename))))
	if path.Base(filename) == "sw.js" {
		// The browser must pick up service worker updates promptly.
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Service-Worker-Allowed", "/")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}

	http.ServeFile(w, r, full)
}

func mimeFromExtension(ext string) string {
	switch ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
