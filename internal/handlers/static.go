package handlers

import (
	"net/http"
	"strings"

	"github.com/dataset-m/dsm/internal/images"
)

// HandleStatic serves the original image files of the dataset under /static/
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/static/")

	// Prevent directory traversal attacks
	if strings.Contains(rel, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}
	if !images.IsImage(rel) {
		http.NotFound(w, r)
		return
	}

	p, err := h.resolve(rel)
	if err != nil {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, p)
}
