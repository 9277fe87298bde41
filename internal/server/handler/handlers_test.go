package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

type fakeStarter struct {
	id  string
	err error
	req domain.InvestmentRequest
}

func (f *fakeStarter) StartInvestment(ctx context.Context, req domain.InvestmentRequest) (string, error) {
	f.req = req
	return f.id, f.err
}

type fakeOperations struct {
	op      *domain.Operation
	ops     []*domain.Operation
	getErr  error
	listErr error
}

func (f *fakeOperations) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	return f.op, f.getErr
}

func (f *fakeOperations) ListOperations(ctx context.Context, filter domain.OperationFilter) ([]*domain.Operation, error) {
	return f.ops, f.listErr
}

func TestInvestAccepted(t *testing.T) {
	starter := &fakeStarter{id: "op-1"}
	h := NewInvestHandler(starter)

	body := `{"userId":"user-1","totalUsd":100,"riskyBps":3000}`
	req := httptest.NewRequest(http.MethodPost, "/api/invest", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Invest(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "op-1", resp["operationId"])
	assert.Equal(t, "user-1", starter.req.UserID)
	assert.Equal(t, 100.0, starter.req.TotalUSD)
}

func TestInvestBadBody(t *testing.T) {
	h := NewInvestHandler(&fakeStarter{})

	req := httptest.NewRequest(http.MethodPost, "/api/invest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.Invest(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvestValidationError(t *testing.T) {
	h := NewInvestHandler(&fakeStarter{err: domain.ErrConfiguration})

	req := httptest.NewRequest(http.MethodPost, "/api/invest", strings.NewReader(`{"userId":"u"}`))
	rec := httptest.NewRecorder()

	h.Invest(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvestWalletBusy(t *testing.T) {
	h := NewInvestHandler(&fakeStarter{err: domain.ErrLockHeld})

	req := httptest.NewRequest(http.MethodPost, "/api/invest", strings.NewReader(`{"userId":"u","totalUsd":1}`))
	rec := httptest.NewRecorder()

	h.Invest(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOperationsGet(t *testing.T) {
	ops := &fakeOperations{op: &domain.Operation{ID: "op-1", Status: domain.StatusActiveInvestment}}
	h := NewOperationsHandler(ops)

	req := httptest.NewRequest(http.MethodGet, "/api/operations/op-1", nil)
	req.SetPathValue("id", "op-1")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got domain.Operation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "op-1", got.ID)
}

func TestOperationsGetNotFound(t *testing.T) {
	h := NewOperationsHandler(&fakeOperations{getErr: domain.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/operations/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()

	h.Get(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationsList(t *testing.T) {
	h := NewOperationsHandler(&fakeOperations{ops: []*domain.Operation{
		{ID: "op-1"}, {ID: "op-2"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/operations?user_id=u&limit=10", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Operations []*domain.Operation `json:"operations"`
		Count      int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestOperationsListBadLimit(t *testing.T) {
	h := NewOperationsHandler(&fakeOperations{})

	req := httptest.NewRequest(http.MethodGet, "/api/operations?limit=banana", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperationsListEmptyIsArray(t *testing.T) {
	h := NewOperationsHandler(&fakeOperations{})

	req := httptest.NewRequest(http.MethodGet, "/api/operations", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"operations":[]`)
}

func TestOperationsListStoreError(t *testing.T) {
	h := NewOperationsHandler(&fakeOperations{listErr: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/api/operations", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), "1.2.3")
}
