package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
	"github.com/pokeayman/pokeayman/internal/websocket"
)

type StudentHandler struct {
	students *store.StudentStore
	schools  *store.SchoolStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewStudentHandler(students *store.StudentStore, schools *store.SchoolStore, hub *websocket.Hub, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{students: students, schools: schools, hub: hub, logger: logger}
}

type studentRequest struct {
	ClassID int64  `json:"class_id"`
	Name    string `json:"name"`
}

func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	class, err := h.schools.GetClass(req.ClassID)
	if err != nil {
		h.logger.Error("get class", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up class"})
		return
	}
	if class == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "class not found"})
		return
	}

	student, err := h.students.Create(class.ID, class.SchoolID, req.Name)
	if err != nil {
		h.logger.Error("create student", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create student"})
		return
	}

	h.broadcast(websocket.NewEvent("student", "created", student.ID, nil))

	writeJSON(w, http.StatusCreated, student)
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	var students []model.Student
	var err error

	if classStr := r.URL.Query().Get("class_id"); classStr != "" {
		classID, perr := strconv.ParseInt(classStr, 10, 64)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid class_id"})
			return
		}
		students, err = h.students.ListByClass(classID)
	} else if schoolStr := r.URL.Query().Get("school_id"); schoolStr != "" {
		schoolID, perr := strconv.ParseInt(schoolStr, 10, 64)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid school_id"})
			return
		}
		students, err = h.students.ListBySchool(schoolID)
	} else {
		students, err = h.students.ListAll()
	}

	if err != nil {
		h.logger.Error("list students", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list students"})
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	student, err := h.students.GetByID(id)
	if err != nil {
		h.logger.Error("get student", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get student"})
		return
	}
	if student == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "student not found"})
		return
	}

	writeJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
