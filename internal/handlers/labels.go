package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/dataset-m/dsm/internal/annotation"
	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/yolo"
)

// LabelsResponse is the decoded label file of one image
type LabelsResponse struct {
	Image       string                  `json:"image"`
	Width       int                     `json:"width"`
	Height      int                     `json:"height"`
	Classes     []string                `json:"classes"`
	Annotations []annotation.Annotation `json:"annotations"`
}

type labelsRequest struct {
	Annotations []annotation.Annotation `json:"annotations"`
	// Session, when set, records the image as the session's current one
	Session string `json:"session,omitempty"`
}

// HandleLabels reads (GET) or replaces (PUT) the labels of an image
func (h *Handler) HandleLabels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.getLabels(w, r)
	case "PUT":
		h.putLabels(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) classList(imagePath string) (*annotation.ClassList, error) {
	names, err := yolo.ReadClasses(yolo.ClassesPath(imagePath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return annotation.NewClassList(names...), nil
}

func (h *Handler) labelsResponse(imagePath string) (*LabelsResponse, error) {
	classes, err := h.classList(imagePath)
	if err != nil {
		return nil, err
	}
	width, height, err := images.Dimensions(imagePath)
	if err != nil {
		return nil, err
	}
	anns, err := yolo.Load(imagePath, classes)
	if err != nil {
		return nil, err
	}
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	return &LabelsResponse{
		Image:       h.relative(imagePath),
		Width:       width,
		Height:      height,
		Classes:     classes.Names(),
		Annotations: anns,
	}, nil
}

func (h *Handler) getLabels(w http.ResponseWriter, r *http.Request) {
	p, ok := h.imageParam(w, r)
	if !ok {
		return
	}
	resp, err := h.labelsResponse(p)
	if err != nil {
		h.writeError(w, "Failed to read labels: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.writeJSON(w, resp)
}

func (h *Handler) putLabels(w http.ResponseWriter, r *http.Request) {
	p, ok := h.imageParam(w, r)
	if !ok {
		return
	}

	var req labelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	for i, a := range req.Annotations {
		if err := a.Validate(); err != nil {
			h.writeError(w, "Invalid annotation "+strconv.Itoa(i)+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	classes, err := h.classList(p)
	if err != nil {
		h.writeError(w, "Failed to read classes: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := yolo.SaveImage(p, req.Annotations, classes); err != nil {
		h.writeError(w, "Failed to save labels: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Session != "" {
		rel := h.relative(p)
		h.sessionStore.Update(req.Session, func(s *models.Session) { s.CurrentImage = rel })
	}

	resp, err := h.labelsResponse(p)
	if err != nil {
		h.writeError(w, "Failed to read labels: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, resp)
}
