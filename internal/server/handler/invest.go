package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// InvestStarter starts background investment runs. *service.InvestService
// satisfies it.
type InvestStarter interface {
	StartInvestment(ctx context.Context, req domain.InvestmentRequest) (string, error)
}

// InvestHandler accepts investment requests over HTTP.
type InvestHandler struct {
	service InvestStarter
}

// NewInvestHandler creates an InvestHandler.
func NewInvestHandler(service InvestStarter) *InvestHandler {
	return &InvestHandler{service: service}
}

// investAccepted is the response body for a started run.
type investAccepted struct {
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
}

// Invest decodes an investment request, starts the pipeline in the
// background, and returns the operation id for progress tracking.
// POST /api/invest
func (h *InvestHandler) Invest(w http.ResponseWriter, r *http.Request) {
	var req domain.InvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	operationID, err := h.service.StartInvestment(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "an investment is already running for this wallet")
		case errors.Is(err, domain.ErrConfiguration):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, investAccepted{
		OperationID: operationID,
		Status:      string(domain.StatusRecommendationInit),
	})
}
