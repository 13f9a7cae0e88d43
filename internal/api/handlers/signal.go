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

// SignalHandler handles signal ingestion and history endpoints.
type SignalHandler struct {
	signals *service.SignalService
}

func NewSignalHandler(signals *service.SignalService) *SignalHandler {
	return &SignalHandler{signals: signals}
}

type ingestSignalRequest struct {
	Source     string            `json:"source"`
	Kind       string            `json:"kind"`
	Value      float64           `json:"value"`
	Weight     float64           `json:"weight"`
	Confidence *float64          `json:"confidence,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Ingest handles POST /v1/markets/{id}/signals
func (h *SignalHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	var req ingestSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	if req.ObservedAt.IsZero() {
		req.ObservedAt = now
	}
	if req.Weight == 0 {
		req.Weight = 1.0
	}

	sig := domain.BeliefSignal{
		Source:     req.Source,
		Kind:       domain.SignalKind(req.Kind),
		Value:      req.Value,
		Weight:     req.Weight,
		Confidence: req.Confidence,
		ObservedAt: req.ObservedAt,
		Metadata:   req.Metadata,
	}

	if err := h.signals.Ingest(r.Context(), marketID, sig, now); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignal):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMarketNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, service.ErrMarketClosed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrSignalRejected):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to ingest signal")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// History handles GET /v1/markets/{id}/signals
func (h *SignalHandler) History(w http.ResponseWriter, r *http.Request) {
	marketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market ID")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp, expected RFC3339")
			return
		}
	}

	signals, err := h.signals.History(r.Context(), marketID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  signals,
		"count": len(signals),
	})
}
