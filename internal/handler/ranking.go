package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/ranking"
)

type RankingHandler struct {
	rankings *ranking.Aggregator
	logger   *slog.Logger
}

func NewRankingHandler(rankings *ranking.Aggregator, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{rankings: rankings, logger: logger}
}

// Get computes the leaderboard for the requested scope. With no query
// parameters the scope is global; class_id wins over school_id when both
// are present.
func (h *RankingHandler) Get(w http.ResponseWriter, r *http.Request) {
	var scope ranking.Scope

	if classStr := r.URL.Query().Get("class_id"); classStr != "" {
		classID, err := strconv.ParseInt(classStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid class_id"})
			return
		}
		scope.ClassID = &classID
	} else if schoolStr := r.URL.Query().Get("school_id"); schoolStr != "" {
		schoolID, err := strconv.ParseInt(schoolStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid school_id"})
			return
		}
		scope.SchoolID = &schoolID
	}

	rows, err := h.rankings.Compute(scope)
	if err != nil {
		h.logger.Error("compute rankings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute rankings"})
		return
	}
	if rows == nil {
		rows = []model.RankingRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}
