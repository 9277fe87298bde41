package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// OperationReader serves operation records. *service.InvestService satisfies
// it.
type OperationReader interface {
	GetOperation(ctx context.Context, id string) (*domain.Operation, error)
	ListOperations(ctx context.Context, f domain.OperationFilter) ([]*domain.Operation, error)
}

// OperationsHandler serves operation history over HTTP.
type OperationsHandler struct {
	service OperationReader
}

// NewOperationsHandler creates an OperationsHandler.
func NewOperationsHandler(service OperationReader) *OperationsHandler {
	return &OperationsHandler{service: service}
}

// List returns operations matching the optional user_id, status, and limit
// query parameters.
// GET /api/operations
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	f := domain.OperationFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: domain.OperationStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = limit
	}

	ops, err := h.service.ListOperations(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ops == nil {
		ops = []*domain.Operation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": ops,
		"count":      len(ops),
	})
}

// Get returns a single operation by id.
// GET /api/operations/{id}
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "operation id is required")
		return
	}

	op, err := h.service.GetOperation(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "operation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, op)
}
