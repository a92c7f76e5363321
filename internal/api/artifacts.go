package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ArtifactHandler serves generated build output files.
type ArtifactHandler struct {
	outputDir string
}

// NewArtifactHandler creates a handler rooted at the build output directory.
func NewArtifactHandler(outputDir string) *ArtifactHandler {
	return &ArtifactHandler{outputDir: outputDir}
}

// safeName validates that name is a relative path without traversal and
// returns the absolute path under the output dir.
func (h *ArtifactHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid path: %s", name)
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid path: %s", name)
		}
	}
	root := filepath.Clean(h.outputDir)
	abs := filepath.Join(root, filepath.FromSlash(name))
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes output directory")
	}
	return abs, nil
}

// ServeFile handles GET /api/artifacts/*.
func (h *ArtifactHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	abs, err := h.safeName(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, statErr := os.Stat(abs)
	if statErr != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(abs, ".js") {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	}
	http.ServeFile(w, r, abs)
}
