package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pokeayman/pokeayman/internal/ledger"
	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
	"github.com/pokeayman/pokeayman/internal/websocket"
)

// LedgerHandler exposes the reward operations.
type LedgerHandler struct {
	ledger   *ledger.Service
	settings *store.SettingsStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewLedgerHandler(svc *ledger.Service, settings *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: svc, settings: settings, hub: hub, logger: logger}
}

func (h *LedgerHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// writeLedgerError translates the error taxonomy into a specific,
// actionable response. Raw store errors never reach the client.
func (h *LedgerHandler) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Student doesn't have enough coins"})
	case errors.Is(err, ledger.ErrStudentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "student not found"})
	case errors.Is(err, ledger.ErrPokemonNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pokemon not found in catalog"})
	case errors.Is(err, ledger.ErrEntryNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "collection entry not found"})
	case errors.Is(err, ledger.ErrRefundFailed):
		h.logger.Error("refund failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "purchase failed and the refund also failed; the student's coins need manual correction",
		})
	case errors.Is(err, ledger.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable, try again shortly"})
	default:
		h.logger.Error("ledger operation failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

type coinRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

func (h *LedgerHandler) AwardCoins(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req coinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "teacher award"
	}

	balance, err := h.ledger.AwardCoins(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.broadcast(websocket.NewEvent("balance", "updated", id, nil))

	writeJSON(w, http.StatusOK, balance)
}

func (h *LedgerHandler) RemoveCoins(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req coinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	balance, err := h.ledger.RemoveCoins(r.Context(), id, req.Amount)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.broadcast(websocket.NewEvent("balance", "updated", id, nil))

	writeJSON(w, http.StatusOK, balance)
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

type awardPokemonRequest struct {
	PokemonID string `json:"pokemon_id"`
	Source    string `json:"source"`
}

func (h *LedgerHandler) AwardPokemon(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req awardPokemonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PokemonID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pokemon_id is required"})
		return
	}
	source := model.Source(req.Source)
	if req.Source == "" {
		source = model.SourceTeacherAward
	}
	if !model.ValidSource(source) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source"})
		return
	}

	entry, err := h.ledger.AwardPokemon(r.Context(), id, req.PokemonID, source)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.broadcast(websocket.NewEvent("collection", "updated", id, nil))

	writeJSON(w, http.StatusCreated, entry)
}

func (h *LedgerHandler) RemovePokemon(w http.ResponseWriter, r *http.Request) {
	entryID := r.PathValue("entry_id")
	if entryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entry id"})
		return
	}

	if err := h.ledger.RemovePokemon(r.Context(), entryID); err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.broadcast(websocket.NewEvent("collection", "entry_removed", 0, map[string]any{"entry_id": entryID}))

	w.WriteHeader(http.StatusNoContent)
}

type purchaseRequest struct {
	PokemonID string `json:"pokemon_id"`
}

func (h *LedgerHandler) PurchasePokemon(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PokemonID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pokemon_id is required"})
		return
	}

	entry, balance, err := h.ledger.PurchasePokemon(r.Context(), id, req.PokemonID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.broadcast(websocket.NewEvent("collection", "updated", id, nil))

	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry, "balance": balance})
}

func (h *LedgerHandler) OpenMysteryBall(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	price := h.settings.GetInt("mystery_ball_price", 10)

	entry, balance, err := h.ledger.OpenMysteryBall(r.Context(), id, price)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.broadcast(websocket.NewEvent("collection", "updated", id, nil))

	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry, "balance": balance})
}

func (h *LedgerHandler) ListCollection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	entries, err := h.ledger.ListCollection(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	if entries == nil {
		entries = []model.CollectionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
