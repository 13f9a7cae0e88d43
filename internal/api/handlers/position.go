package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/service"
)

// PositionHandler handles stake placement and bucket aggregates.
type PositionHandler struct {
	positions *service.PositionService
}

func NewPositionHandler(positions *service.PositionService) *PositionHandler {
	return &PositionHandler{positions: positions}
}

type placePositionRequest struct {
	Owner  string    `json:"owner"`
	Start  time.Time `json:"bucket_start"`
	End    time.Time `json:"bucket_end"`
	Amount uint64    `json:"amount"`
}

// Place handles POST /v1/markets/{id}/positions
func (h *PositionHandler) Place(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	var req placePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bucket := domain.TimeBucket{Start: req.Start, End: req.End}
	pos, err := h.positions.Place(r.Context(), marketID, req.Owner, bucket, req.Amount, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarketNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, service.ErrMarketNotOpen):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrMissingOwner),
			errors.Is(err, domain.ErrInvalidBucket),
			errors.Is(err, service.ErrStakeOutOfBounds),
			errors.Is(err, service.ErrBucketOutOfRange),
			errors.Is(err, service.ErrAmountOverflow):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to place position")
		}
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

// GetByID handles GET /v1/positions/{id}
func (h *PositionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position ID")
		return
	}

	pos, err := h.positions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPositionNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// ListByMarket handles GET /v1/markets/{id}/positions
func (h *PositionHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	positions, err := h.positions.ListByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  positions,
		"count": len(positions),
	})
}

// Aggregates handles GET /v1/markets/{id}/buckets
func (h *PositionHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	aggs, err := h.positions.BucketAggregates(r.Context(), marketID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate buckets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  aggs,
		"count": len(aggs),
	})
}
