package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/recyclebin"
)

const maxUploadSize = 64 << 20

// HandleUpload stores a multipart "image" file into the dir folder of the dataset
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dir, err := h.resolve(r.URL.Query().Get("dir"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filepath.Base(dir) == recyclebin.DirName {
		h.writeError(w, "Cannot upload into the recycle bin", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !images.IsImage(name) {
		h.writeError(w, "Unsupported image type: "+filepath.Ext(name), http.StatusBadRequest)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.writeError(w, "Failed to create directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	dst, err := createUnique(filepath.Join(dir, name))
	if err != nil {
		h.writeError(w, "Failed to save image: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		h.writeError(w, "Failed to save image: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := dst.Close(); err != nil {
		h.writeError(w, "Failed to save image: "+err.Error(), http.StatusInternalServerError)
		return
	}

	item := models.ImageItem{Path: h.relative(dst.Name()), Name: filepath.Base(dst.Name())}
	if width, height, err := images.Dimensions(dst.Name()); err == nil {
		item.Width, item.Height = width, height
	} else {
		logger.S().Warnw("Failed to get image dimensions", "error", err)
	}
	logger.S().Infow("Image uploaded", "path", item.Path, "size", header.Size)
	h.writeJSONStatus(w, http.StatusCreated, item)
}

// createUnique creates path exclusively, falling back to name_1.ext, name_2.ext, ...
func createUnique(path string) (*os.File, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 1; i < 10000; i++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		candidate = stem + "_" + strconv.Itoa(i) + ext
	}
	return nil, fmt.Errorf("no free name for %s", path)
}
