package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/core/service"
)

type HTTPHandler struct {
	sellService *service.SellService
	logger      zerolog.Logger
}

type SellHTTPRequest struct {
	InventoryID int64 `json:"inventory_id"`
}

type InventoryHTTPResponse struct {
	ID      int64 `json:"id"`
	Stock   int64 `json:"stock"`
	Version int64 `json:"version"`
}

type SellHTTPResponse struct {
	Success   bool                   `json:"success"`
	Outcome   string                 `json:"outcome"`
	Message   string                 `json:"message"`
	Attempt   int                    `json:"attempt"`
	AttemptID string                 `json:"attempt_id,omitempty"`
	Observed  *InventoryHTTPResponse `json:"observed,omitempty"`
}

type SimulateHTTPRequest struct {
	InventoryID      int64 `json:"inventory_id"`
	Attempts         int   `json:"attempts"`
	PaceMS           int64 `json:"pace_ms"`
	AttemptTimeoutMS int64 `json:"attempt_timeout_ms"`
}

type SimulateHTTPResponse struct {
	Committed int                    `json:"committed"`
	Outcomes  map[string]int         `json:"outcomes"`
	Attempts  []SellHTTPResponse     `json:"attempts"`
	Final     *InventoryHTTPResponse `json:"final"`
}

type errorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(sellService *service.SellService, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{sellService: sellService, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/sell", h.Sell)
	mux.HandleFunc("POST /api/simulate", h.Simulate)
	mux.HandleFunc("GET /api/inventory/{id}", h.GetInventory)
}

func (h *HTTPHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InventoryID <= 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	res := h.sellService.Sell(r.Context(), 0, req.InventoryID)
	if res.Err != nil {
		h.logger.Error().Err(res.Err).Int64("inventory_id", req.InventoryID).Msg("sell failed")
	}

	writeJSON(w, outcomeStatus(res.Outcome), toSellResponse(res))
}

func (h *HTTPHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InventoryID <= 0 || req.Attempts <= 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.Attempts > maxSimulateAttempts {
		writeError(w, http.StatusBadRequest, "too many attempts")
		return
	}

	report, err := h.sellService.Simulate(r.Context(), domain.SimulationConfig{
		InventoryID:    req.InventoryID,
		Attempts:       req.Attempts,
		Pace:           time.Duration(req.PaceMS) * time.Millisecond,
		AttemptTimeout: time.Duration(req.AttemptTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Int64("inventory_id", req.InventoryID).Msg("simulate failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := SimulateHTTPResponse{
		Committed: report.Committed,
		Outcomes:  make(map[string]int, len(domain.Outcomes)),
		Attempts:  make([]SellHTTPResponse, 0, len(report.Results)),
		Final:     toInventoryResponse(report.Final),
	}
	for _, o := range domain.Outcomes {
		if n := report.Count(o); n > 0 {
			resp.Outcomes[string(o)] = n
		}
	}
	for _, res := range report.Results {
		resp.Attempts = append(resp.Attempts, toSellResponse(res))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}

	inv, err := h.sellService.GetInventory(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("inventory_id", id).Msg("get inventory failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "inventory not found")
		return
	}

	writeJSON(w, http.StatusOK, toInventoryResponse(inv))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toSellResponse(res domain.AttemptResult) SellHTTPResponse {
	return SellHTTPResponse{
		Success:   res.Outcome.Sold(),
		Outcome:   string(res.Outcome),
		Message:   outcomeMessage(res.Outcome),
		Attempt:   res.Index,
		AttemptID: res.AttemptID,
		Observed:  toInventoryResponse(res.Observed),
	}
}

func toInventoryResponse(inv *domain.Inventory) *InventoryHTTPResponse {
	if inv == nil {
		return nil
	}
	return &InventoryHTTPResponse{ID: inv.ID, Stock: inv.Stock, Version: inv.Version}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorHTTPResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
