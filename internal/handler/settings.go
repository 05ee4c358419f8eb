package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pokeayman/pokeayman/internal/store"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewSettingsHandler(settings *store.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

func (h *SettingsHandler) GetEconomy(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetEconomySettings()
	if err != nil {
		h.logger.Error("get economy settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type economySettingsRequest struct {
	RankingCoinWeight  *int `json:"ranking_coin_weight"`
	RankingValueWeight *int `json:"ranking_value_weight"`
	MysteryBallPrice   *int `json:"mystery_ball_price"`
}

func (h *SettingsHandler) UpdateEconomy(w http.ResponseWriter, r *http.Request) {
	var req economySettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	updates := map[string]*int{
		"ranking_coin_weight":  req.RankingCoinWeight,
		"ranking_value_weight": req.RankingValueWeight,
		"mystery_ball_price":   req.MysteryBallPrice,
	}
	for key, value := range updates {
		if value == nil {
			continue
		}
		if *value < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": key + " must be >= 0"})
			return
		}
		if err := h.settings.Set(key, strconv.Itoa(*value)); err != nil {
			h.logger.Error("update setting", "key", key, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update settings"})
			return
		}
	}

	h.GetEconomy(w, r)
}
