package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/service"
)

// MarketHandler handles market lifecycle endpoints.
type MarketHandler struct {
	markets *service.MarketService
}

func NewMarketHandler(markets *service.MarketService) *MarketHandler {
	return &MarketHandler{markets: markets}
}

type createMarketRequest struct {
	Creator     string                 `json:"creator"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Condition   domain.BeliefCondition `json:"condition"`
	Config      domain.MarketConfig    `json:"config"`
}

// Create handles POST /v1/markets
func (h *MarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Creator == "" {
		writeError(w, http.StatusBadRequest, "creator is required")
		return
	}

	market := &domain.Market{
		Creator:     req.Creator,
		Type:        domain.MarketType(req.Type),
		Description: req.Description,
		Condition:   req.Condition,
		Config:      req.Config,
	}

	if err := h.markets.Create(r.Context(), market); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMarketType),
			errors.Is(err, domain.ErrInvalidConfig),
			errors.Is(err, domain.ErrInvalidCondition):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create market")
		}
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// GetByID handles GET /v1/markets/{id}
func (h *MarketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	market, err := h.markets.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// List handles GET /v1/markets
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListOpen(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  markets,
		"count": len(markets),
	})
}

// Cancel handles POST /v1/markets/{id}/cancel
func (h *MarketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	if err := h.markets.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrMarketNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, service.ErrMarketNotCancelable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel market")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
