package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bellwetherhq/bellwether/internal/service"
)

// SettlementHandler triggers and previews settlement for resolved
// markets.
type SettlementHandler struct {
	settlement *service.SettlementService
}

func NewSettlementHandler(settlement *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

// Settle handles POST /v1/markets/{id}/settle
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	result, err := h.settlement.SettleMarket(r.Context(), marketID)
	if err != nil {
		h.writeSettlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Preview handles GET /v1/markets/{id}/settlement
func (h *SettlementHandler) Preview(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	result, err := h.settlement.Preview(r.Context(), marketID)
	if err != nil {
		h.writeSettlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Inflection handles GET /v1/markets/{id}/inflection
func (h *SettlementHandler) Inflection(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	infl, err := h.settlement.Inflection(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, service.ErrNoInflection) {
			writeError(w, http.StatusNotFound, "no confirmed inflection")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get inflection")
		return
	}

	writeJSON(w, http.StatusOK, infl)
}

func (h *SettlementHandler) writeSettlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMarketNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case errors.Is(err, service.ErrMarketNotResolved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoInflection):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to settle market")
	}
}
