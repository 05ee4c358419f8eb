package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/store"
)

type CatalogHandler struct {
	catalog *store.CatalogStore
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *store.CatalogStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	pokemon, err := h.catalog.List()
	if err != nil {
		h.logger.Error("list catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list catalog"})
		return
	}
	if pokemon == nil {
		pokemon = []model.Pokemon{}
	}
	writeJSON(w, http.StatusOK, pokemon)
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	pokemon, err := h.catalog.GetPokemon(id)
	if err != nil {
		h.logger.Error("get pokemon", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get pokemon"})
		return
	}
	if pokemon == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pokemon not found in catalog"})
		return
	}
	writeJSON(w, http.StatusOK, pokemon)
}

// Import loads catalog entries. Existing ids are skipped, never modified.
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	var pokemon []model.Pokemon
	if err := json.NewDecoder(r.Body).Decode(&pokemon); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	for _, p := range pokemon {
		if p.ID == "" || p.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "every entry needs an id and a name"})
			return
		}
		if p.Price < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
			return
		}
	}

	inserted, err := h.catalog.Import(pokemon)
	if err != nil {
		h.logger.Error("import catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to import catalog"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"imported": inserted})
}
