package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
	"github.com/pokeayman/pokeayman/internal/websocket"
)

type HomeworkHandler struct {
	homeworks *store.HomeworkStore
	students  *store.StudentStore
	ledger    *ledger.Service
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewHomeworkHandler(homeworks *store.HomeworkStore, students *store.StudentStore, svc *ledger.Service, hub *websocket.Hub, logger *slog.Logger) *HomeworkHandler {
	return &HomeworkHandler{homeworks: homeworks, students: students, ledger: svc, hub: hub, logger: logger}
}

func (h *HomeworkHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type homeworkRequest struct {
	ClassID     int64      `json:"class_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CoinReward  int        `json:"coin_reward"`
	DueAt       *time.Time `json:"due_at"`
}

func (h *HomeworkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req homeworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.CoinReward < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coin_reward must be >= 0"})
		return
	}

	homework, err := h.homeworks.Create(req.ClassID, req.Title, req.Description, req.CoinReward, req.DueAt)
	if err != nil {
		h.logger.Error("create homework", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create homework"})
		return
	}

	h.broadcast(websocket.NewEvent("homework", "created", homework.ID, nil))

	writeJSON(w, http.StatusCreated, homework)
}

func (h *HomeworkHandler) List(w http.ResponseWriter, r *http.Request) {
	classID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	homeworks, err := h.homeworks.ListByClass(classID)
	if err != nil {
		h.logger.Error("list homeworks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list homeworks"})
		return
	}
	if homeworks == nil {
		homeworks = []model.Homework{}
	}
	writeJSON(w, http.StatusOK, homeworks)
}

func (h *HomeworkHandler) Submit(w http.ResponseWriter, r *http.Request) {
	homeworkID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		StudentID int64 `json:"student_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	homework, err := h.homeworks.GetByID(homeworkID)
	if err != nil {
		h.logger.Error("get homework", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get homework"})
		return
	}
	if homework == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "homework not found"})
		return
	}

	student, err := h.students.GetByID(req.StudentID)
	if err != nil {
		h.logger.Error("get student", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get student"})
		return
	}
	if student == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "student not found"})
		return
	}

	submission, err := h.homeworks.Submit(homeworkID, req.StudentID)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "student has already submitted this homework"})
		return
	}

	h.broadcast(websocket.NewEvent("homework", "submitted", homeworkID, map[string]any{"student_id": req.StudentID}))

	writeJSON(w, http.StatusCreated, submission)
}

func (h *HomeworkHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	homeworkID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	submissions, err := h.homeworks.ListSubmissions(homeworkID)
	if err != nil {
		h.logger.Error("list submissions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list submissions"})
		return
	}
	if submissions == nil {
		submissions = []model.HomeworkSubmission{}
	}
	writeJSON(w, http.StatusOK, submissions)
}

// Review approves or rejects a pending submission. Approval pays the
// homework's coin reward through the ledger; the pending-state guard in the
// store means a submission can never be paid twice.
func (h *HomeworkHandler) Review(w http.ResponseWriter, r *http.Request) {
	submissionID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	status := model.SubmissionRejected
	if req.Approve {
		status = model.SubmissionApproved
	}

	submission, err := h.homeworks.ReviewSubmission(submissionID, status)
	if errors.Is(err, store.ErrAlreadyReviewed) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "submission was already reviewed"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "submission not found"})
		return
	}

	if req.Approve {
		homework, err := h.homeworks.GetByID(submission.HomeworkID)
		if err != nil || homework == nil {
			h.logger.Error("get homework for reward", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up homework reward"})
			return
		}
		if homework.CoinReward > 0 {
			if _, err := h.ledger.AwardCoins(r.Context(), submission.StudentID, homework.CoinReward, "homework: "+homework.Title); err != nil {
				h.logger.Error("award homework reward", "submission_id", submissionID, "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "submission approved but awarding coins failed"})
				return
			}
		}
	}

	h.broadcast(websocket.NewEvent("homework", "reviewed", submission.HomeworkID, map[string]any{
		"submission_id": submission.ID,
		"status":        string(status),
	}))

	writeJSON(w, http.StatusOK, submission)
}
