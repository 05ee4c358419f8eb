package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
)

type SchoolHandler struct {
	schools *store.SchoolStore
	logger  *slog.Logger
}

func NewSchoolHandler(schools *store.SchoolStore, logger *slog.Logger) *SchoolHandler {
	return &SchoolHandler{schools: schools, logger: logger}
}

func (h *SchoolHandler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	school, err := h.schools.CreateSchool(req.Name)
	if err != nil {
		h.logger.Error("create school", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create school"})
		return
	}
	writeJSON(w, http.StatusCreated, school)
}

func (h *SchoolHandler) ListSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := h.schools.ListSchools()
	if err != nil {
		h.logger.Error("list schools", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list schools"})
		return
	}
	if schools == nil {
		schools = []model.School{}
	}
	writeJSON(w, http.StatusOK, schools)
}

func (h *SchoolHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	schoolID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	school, err := h.schools.GetSchool(schoolID)
	if err != nil {
		h.logger.Error("get school", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up school"})
		return
	}
	if school == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "school not found"})
		return
	}

	class, err := h.schools.CreateClass(schoolID, req.Name)
	if err != nil {
		h.logger.Error("create class", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create class"})
		return
	}
	writeJSON(w, http.StatusCreated, class)
}

func (h *SchoolHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	schoolID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	classes, err := h.schools.ListClasses(schoolID)
	if err != nil {
		h.logger.Error("list classes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list classes"})
		return
	}
	if classes == nil {
		classes = []model.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}
