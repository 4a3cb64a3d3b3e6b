package handlers

import (
	"errors"
	"net/http"

	"github.com/dataset-m/dsm/internal/recyclebin"
)

type binEntry struct {
	recyclebin.Entry
	Bin          string `json:"bin"`
	OriginalPath string `json:"original_path"`
}

// HandleTrash moves path into the recycle bin next to it
func (h *Handler) HandleTrash(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := r.URL.Query().Get("path")
	if rel == "" {
		h.writeError(w, "path is required", http.StatusBadRequest)
		return
	}
	p, err := h.resolve(rel)
	if err != nil || p == h.root {
		h.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	dst, err := recyclebin.Trash(p)
	if err != nil {
		h.writeError(w, "Failed to move to recycle bin: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, map[string]string{"path": h.relative(dst)})
}

// HandleRestore moves name out of bin back to where it came from
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	bin, err := h.resolve(q.Get("bin"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := q.Get("name")
	if name == "" {
		h.writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	dst, err := recyclebin.Destination(bin, name)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.inside(dst) {
		h.writeError(w, "restore destination is outside the dataset root", http.StatusBadRequest)
		return
	}

	restored, err := recyclebin.Restore(bin, name)
	switch {
	case errors.Is(err, recyclebin.ErrNotInBin):
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		h.writeError(w, "Failed to restore: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, map[string]string{"path": h.relative(restored)})
}

// HandleBin lists every recycle bin entry below the root
func (h *Handler) HandleBin(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := recyclebin.List(h.root)
	if err != nil {
		h.writeError(w, "Failed to list recycle bin: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]binEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, binEntry{Entry: e, Bin: h.relative(e.Bin), OriginalPath: h.relative(e.OriginalPath)})
	}
	h.writeJSON(w, out)
}
