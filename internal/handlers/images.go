package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/recyclebin"
	"github.com/dataset-m/dsm/internal/yolo"
)

const (
	defaultThumbnailSize = 256
	maxThumbnailSize     = 2048
)

// HandleImages lists the images of dir, or of the whole tree below it with
// recursive=1. Recycle bins and label folders are never listed.
func (h *Handler) HandleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dir, err := h.resolve(r.URL.Query().Get("dir"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		h.writeError(w, "Directory not found", http.StatusNotFound)
		return
	}
	if filepath.Base(dir) == recyclebin.DirName {
		h.writeError(w, "Use /api/bin to list the recycle bin", http.StatusBadRequest)
		return
	}

	var paths []string
	if r.URL.Query().Get("recursive") == "1" {
		paths, err = images.Find(dir, []string{recyclebin.DirName, yolo.LabelsDir})
	} else {
		paths, err = images.ListDir(dir)
	}
	if err != nil {
		h.writeError(w, "Failed to list images: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]models.ImageItem, 0, len(paths))
	for _, p := range paths {
		item := models.ImageItem{
			Path:     h.relative(p),
			Name:     filepath.Base(p),
			HasLabel: yolo.HasLabel(p),
		}
		if width, height, err := images.Dimensions(p); err == nil {
			item.Width, item.Height = width, height
		} else {
			logger.S().Warnw("Failed to get image dimensions", "image", p, "error", err)
		}
		items = append(items, item)
	}
	h.writeJSON(w, items)
}

// HandleThumbnail renders a JPEG thumbnail no larger than size x size
func (h *Handler) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := h.imageParam(w, r)
	if !ok {
		return
	}

	size := defaultThumbnailSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxThumbnailSize {
			h.writeError(w, "Invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}

	img, err := images.Load(p)
	if err != nil {
		h.writeError(w, "Failed to decode image: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if err := imaging.Encode(w, images.Thumbnail(img, size), imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		logger.S().Errorw("Unable to encode thumbnail", "image", p, "err", err)
	}
}
