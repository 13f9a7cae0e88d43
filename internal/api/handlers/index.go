package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bellwetherhq/bellwether/internal/service"
	"github.com/bellwetherhq/bellwether/internal/store"
)

// IndexHandler exposes the computed belief state index.
type IndexHandler struct {
	aggregator *service.AggregationService
}

func NewIndexHandler(aggregator *service.AggregationService) *IndexHandler {
	return &IndexHandler{aggregator: aggregator}
}

// Latest handles GET /v1/markets/{id}/index
func (h *IndexHandler) Latest(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	bsi, err := h.aggregator.Latest(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no index computed yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get index")
		return
	}

	writeJSON(w, http.StatusOK, bsi)
}

// History handles GET /v1/markets/{id}/index/history
func (h *IndexHandler) History(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	indexes, err := h.aggregator.History(r.Context(), marketID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list index history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  indexes,
		"count": len(indexes),
	})
}
