package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-occ/internal/adapter/storage"
	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/core/service"
)

func newTestService(t *testing.T, inv *domain.Inventory) *service.SellService {
	t.Helper()
	repo := storage.NewMemoryAdapter()
	if inv != nil {
		require.NoError(t, repo.CreateInventory(context.Background(), *inv))
	}
	return service.NewSellService(repo)
}

func newTestMux(t *testing.T, inv *domain.Inventory) *http.ServeMux {
	mux := http.NewServeMux()
	NewHTTPHandler(newTestService(t, inv), zerolog.Nop()).Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_Sell(t *testing.T) {
	mux := newTestMux(t, &domain.Inventory{ID: 1, Stock: 1})

	rec := do(t, mux, http.MethodPost, "/api/sell", `{"inventory_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SellHTTPResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "committed", resp.Outcome)
	require.NotNil(t, resp.Observed)
	assert.EqualValues(t, 1, resp.Observed.Stock)

	rec = do(t, mux, http.MethodPost, "/api/sell", `{"inventory_id":1}`)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"insufficient_stock"`)

	rec = do(t, mux, http.MethodGet, "/api/inventory/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var inv InventoryHTTPResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&inv))
	assert.Equal(t, InventoryHTTPResponse{ID: 1, Stock: 0, Version: 1}, inv)
}

func TestHTTPHandler_SellErrors(t *testing.T) {
	mux := newTestMux(t, nil)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "not found", method: http.MethodPost, body: `{"inventory_id":7}`, status: http.StatusNotFound},
		{name: "invalid body", method: http.MethodPost, body: `{`, status: http.StatusBadRequest},
		{name: "missing id", method: http.MethodPost, body: `{}`, status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, body: "", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, "/api/sell", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHTTPHandler_GetInventory(t *testing.T) {
	mux := newTestMux(t, nil)

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/inventory/3", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/inventory/abc", "").Code)
}

func TestHTTPHandler_Simulate(t *testing.T) {
	mux := newTestMux(t, &domain.Inventory{ID: 1, Stock: 5})

	rec := do(t, mux, http.MethodPost, "/api/simulate", `{"inventory_id":1,"attempts":10,"pace_ms":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SimulateHTTPResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 5, resp.Committed)
	assert.Len(t, resp.Attempts, 10)
	require.NotNil(t, resp.Final)
	assert.Equal(t, InventoryHTTPResponse{ID: 1, Stock: 0, Version: 5}, *resp.Final)
	assert.Equal(t, 5, resp.Outcomes["committed"])

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/simulate", `{"inventory_id":1,"attempts":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/simulate", `{"inventory_id":1,"attempts":5000}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/simulate", `{"inventory_id":1,"attempts":2,"pace_ms":-1}`).Code)
}

func TestHTTPHandler_HealthCheck(t *testing.T) {
	rec := do(t, newTestMux(t, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
