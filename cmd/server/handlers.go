package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/income"
	"proptoken/internal/market"
	"proptoken/internal/observability"
	"proptoken/internal/settlement"
	"proptoken/internal/storage"
	"proptoken/internal/tokenize"
)

// startHTTPServer starts the HTTP server for the API plus
// health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("GET /status", s.handleStatus)

	// Tokenization lifecycle
	mux.HandleFunc("POST /assets", s.handleSubmitAsset)
	mux.HandleFunc("GET /assets/{id}", s.handleGetAsset)
	mux.HandleFunc("POST /assets/{id}/approve", s.handleApproveAsset)
	mux.HandleFunc("POST /assets/{id}/reject", s.handleRejectAsset)
	mux.HandleFunc("POST /assets/{id}/tokenize", s.handleTokenizeAsset)
	mux.HandleFunc("GET /assets/{id}/holders", s.handleAssetHolders)

	// Primary-market settlement
	mux.HandleFunc("POST /purchases", s.handlePurchase)

	// Secondary market
	mux.HandleFunc("POST /orders", s.handleSubmitOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", s.handleCancelOrder)

	// Income distribution
	mux.HandleFunc("POST /distributions", s.handleDistribute)

	// Ownership queries
	mux.HandleFunc("GET /holdings", s.handleHoldings)

	// Ledger integrity audit
	mux.HandleFunc("GET /audit", s.handleAudit)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status            string    `json:"status"`
	Uptime            string    `json:"uptime"`
	StorageMode       string    `json:"storage_mode"`
	LastReconcileScan time.Time `json:"last_reconcile_scan,omitempty"`
	ReconcileFindings int       `json:"reconcile_findings"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := "postgres+clickhouse"
	if s.useMemory {
		mode = "memory"
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:            "running",
		Uptime:            time.Since(s.startedAt).String(),
		StorageMode:       mode,
		LastReconcileScan: s.lastReconcileScan,
		ReconcileFindings: s.reconcileFindings,
	})
}

type submitAssetRequest struct {
	SellerID    string  `json:"seller_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Kind        string  `json:"kind"`
	TotalValue  float64 `json:"total_value"`
	SizeMetric  float64 `json:"size_metric"`
	MonthlyRent float64 `json:"monthly_rent"`
	AnnualYield float64 `json:"annual_yield"`
}

func (s *Server) handleSubmitAsset(w http.ResponseWriter, r *http.Request) {
	var req submitAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := s.tokenizer.Submit(r.Context(), tokenize.SubmitRequest{
		SellerID:    req.SellerID,
		Title:       req.Title,
		Description: req.Description,
		Kind:        domain.AssetKind(req.Kind),
		TotalValue:  req.TotalValue,
		SizeMetric:  req.SizeMetric,
		MonthlyRent: req.MonthlyRent,
		AnnualYield: req.AnnualYield,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, assetResponse(asset))
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.stores.assetStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse(asset))
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleApproveAsset(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	json.NewDecoder(r.Body).Decode(&req)

	asset, err := s.tokenizer.Approve(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse(asset))
}

func (s *Server) handleRejectAsset(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	json.NewDecoder(r.Body).Decode(&req)

	asset, err := s.tokenizer.Reject(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse(asset))
}

func (s *Server) handleTokenizeAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.tokenizer.Tokenize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse(asset))
}

func (s *Server) handleAssetHolders(w http.ResponseWriter, r *http.Request) {
	holders, err := s.ownership.Holders(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holders)
}

type purchaseRequest struct {
	BuyerID   string  `json:"buyer_id"`
	AssetID   string  `json:"asset_id"`
	Units     int64   `json:"units"`
	Amount    float64 `json:"amount"`
	ClientKey string  `json:"client_key"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := s.settler.SettlePurchase(r.Context(), settlement.PurchaseRequest{
		BuyerID:   req.BuyerID,
		AssetID:   req.AssetID,
		Units:     req.Units,
		Amount:    req.Amount,
		ClientKey: req.ClientKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse(row))
}

type submitOrderRequest struct {
	HolderID   string  `json:"holder_id"`
	AssetID    string  `json:"asset_id"`
	Side       string  `json:"side"`
	Units      int64   `json:"units"`
	LimitPrice float64 `json:"limit_price"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.market.SubmitOrder(r.Context(), req.HolderID, req.AssetID,
		domain.OrderSide(req.Side), req.Units, req.LimitPrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse(order))
}

type cancelOrderRequest struct {
	HolderID string `json:"holder_id"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.market.CancelOrder(r.Context(), req.HolderID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse(order))
}

type distributeRequest struct {
	AssetID     string  `json:"asset_id"`
	Period      string  `json:"period"`
	TotalIncome float64 `json:"total_income"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.distributor.Distribute(r.Context(), req.AssetID, req.Period, req.TotalIncome)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holderID := r.URL.Query().Get("holder")
	assetID := r.URL.Query().Get("asset")
	if holderID == "" || assetID == "" {
		writeError(w, http.StatusBadRequest, "holder and asset query parameters are required")
		return
	}

	holding, err := s.ownership.HoldingsOf(r.Context(), holderID, assetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	fraction, err := s.ownership.OwnershipFraction(r.Context(), holderID, assetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"holder_id":          holding.HolderID,
		"asset_id":           holding.AssetID,
		"units_owned":        holding.UnitsOwned,
		"cost_basis":         holding.CostBasis,
		"ownership_fraction": fraction,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.auditor.AuditAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets_audited": report.AssetsAudited,
		"clean":          report.Clean(),
		"findings":       report.Findings,
	})
}

// assetResponse maps a domain asset to its JSON shape.
func assetResponse(a *domain.Asset) map[string]interface{} {
	return map[string]interface{}{
		"id":             a.ID,
		"title":          a.Title,
		"description":    a.Description,
		"kind":           a.Kind,
		"total_value":    a.TotalValue,
		"size_metric":    a.SizeMetric,
		"total_units":    a.TotalUnits,
		"unit_price":     a.UnitPrice,
		"units_sold":     a.UnitsSold,
		"monthly_rent":   a.MonthlyRent,
		"annual_yield":   a.AnnualYield,
		"symbol":         a.Symbol,
		"seller_id":      a.SellerID,
		"issuer_account": a.IssuerAccount,
		"status":         a.Status,
		"review_notes":   a.ReviewNotes,
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
	}
}

// transactionResponse maps a ledger row to its JSON shape.
func transactionResponse(tx *domain.LedgerTransaction) map[string]interface{} {
	resp := map[string]interface{}{
		"id":         tx.ID,
		"type":       tx.Type,
		"status":     tx.Status,
		"holder_id":  tx.HolderID,
		"asset_id":   tx.AssetID,
		"amount":     tx.Amount,
		"units":      tx.Units,
		"unit_price": tx.UnitPrice,
		"op_ref":     tx.OpRef,
		"metadata":   tx.Metadata,
		"created_at": tx.CreatedAt,
	}
	if tx.CompletedAt != nil {
		resp["completed_at"] = *tx.CompletedAt
	}
	return resp
}

// orderResponse maps an order to its JSON shape.
func orderResponse(o *domain.Order) map[string]interface{} {
	return map[string]interface{}{
		"id":           o.ID,
		"holder_id":    o.HolderID,
		"asset_id":     o.AssetID,
		"side":         o.Side,
		"units":        o.Units,
		"limit_price":  o.LimitPrice,
		"units_filled": o.UnitsFilled,
		"status":       o.Status,
		"created_at":   o.CreatedAt,
		"updated_at":   o.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps engine sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tokenize.ErrInvalidTransition),
		errors.Is(err, settlement.ErrNotPurchasable),
		errors.Is(err, settlement.ErrInsufficientUnits),
		errors.Is(err, settlement.ErrPriceMismatch),
		errors.Is(err, market.ErrInsufficientBalance),
		errors.Is(err, market.ErrOrderClosed),
		errors.Is(err, income.ErrNotDistributable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrNotOrderOwner):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
