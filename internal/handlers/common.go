package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/storage"
)

// Handler serves the label API for one dataset root
type Handler struct {
	root         string
	sessionStore *storage.SessionStore
}

// New returns a handler confined to root
func New(root string) (*Handler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Handler{
		root:         abs,
		sessionStore: storage.New(),
	}, nil
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/images", h.HandleImages)
	mux.HandleFunc("/api/labels", h.HandleLabels)
	mux.HandleFunc("/api/thumbnail", h.HandleThumbnail)
	mux.HandleFunc("/api/upload", h.HandleUpload)
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/trash", h.HandleTrash)
	mux.HandleFunc("/api/restore", h.HandleRestore)
	mux.HandleFunc("/api/bin", h.HandleBin)
	mux.HandleFunc("/static/", h.HandleStatic)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.S().Errorw("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.S().Errorw("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		logger.S().Error(message)
	} else {
		logger.S().Debugw("Request rejected", "message", message, "code", code)
	}
	http.Error(w, message, code)
}

// resolve maps a slash separated path relative to the root onto disk,
// rejecting anything that would leave the root
func (h *Handler) resolve(rel string) (string, error) {
	p := filepath.Join(h.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(h.root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the dataset root", rel)
	}
	return p, nil
}

// inside reports whether abs is the root or below it
func (h *Handler) inside(abs string) bool {
	r, err := filepath.Rel(h.root, abs)
	return err == nil && !filepath.IsAbs(r) && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// relative is the inverse of resolve
func (h *Handler) relative(abs string) string {
	r, err := filepath.Rel(h.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (models.Session, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return models.Session{}, false
	}
	return session, true
}

// imageParam resolves the image query parameter to an existing image file
func (h *Handler) imageParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	rel := r.URL.Query().Get("image")
	if rel == "" {
		h.writeError(w, "image is required", http.StatusBadRequest)
		return "", false
	}
	p, err := h.resolve(rel)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return "", false
	}
	return p, true
}
