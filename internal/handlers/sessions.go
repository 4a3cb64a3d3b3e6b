package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dataset-m/dsm/internal/models"
)

type sessionRequest struct {
	Mode         models.AnnotationMode `json:"mode"`
	CurrentImage *string               `json:"current_image"`
	Label        *string               `json:"label"`
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.sessionStore.GetAll())
	case "POST":
		var req sessionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.Mode != "" && !req.Mode.Valid() {
			h.writeError(w, "Invalid mode. Must be 'rectangle' or 'polygon'", http.StatusBadRequest)
			return
		}
		session := h.sessionStore.Create(req.Mode)
		h.writeJSONStatus(w, http.StatusCreated, session)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		h.writeJSON(w, session)
	case "PUT":
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Mode != "" && !req.Mode.Valid() {
			h.writeError(w, "Invalid mode. Must be 'rectangle' or 'polygon'", http.StatusBadRequest)
			return
		}
		if req.CurrentImage != nil && *req.CurrentImage != "" {
			if _, err := h.resolve(*req.CurrentImage); err != nil {
				h.writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		updated, _ := h.sessionStore.Update(sessionID, func(s *models.Session) {
			if req.Mode != "" {
				s.Mode = req.Mode
			}
			if req.CurrentImage != nil {
				s.CurrentImage = *req.CurrentImage
			}
			if req.Label != nil {
				s.Label = *req.Label
			}
		})
		h.writeJSON(w, updated)
	case "DELETE":
		h.sessionStore.Delete(sessionID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
