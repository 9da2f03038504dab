package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
	"github.com/wealthwatch/portfolio-service/internal/valuation"
)

// PositionStore is the positions storage boundary.
type PositionStore interface {
	CreatePosition(p *models.Position) error
	GetPositionByID(id int64) (*models.Position, error)
	ListPositionsByHolder(holderID int64, status models.PositionStatus) ([]*models.Position, error)
	UpdatePosition(p *models.Position) error
	ClosePosition(id int64, sellPrice decimal.Decimal, sellDate time.Time) (*models.Position, error)
	DeletePosition(id int64) error
}

// QuoteReader serves latest-quote reads.
type QuoteReader interface {
	GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error)
}

// CloseReader reads stored daily closes for the history endpoint.
type CloseReader interface {
	GetLatestCloseOnOrBefore(symbol string, date time.Time) (*models.DailyClose, error)
}

// MutationEmitter announces durable position writes. Implementations must be
// best-effort: the write has already succeeded by the time they are called.
type MutationEmitter interface {
	PositionAdded(ctx context.Context, p *models.Position)
	PositionUpdated(ctx context.Context, p *models.Position)
	PositionClosed(ctx context.Context, p *models.Position)
	PositionDeleted(ctx context.Context, holderID, positionID int64)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	positions PositionStore
	quotes    QuoteReader
	closes    CloseReader
	emitter   MutationEmitter
	logger    *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(positions PositionStore, quotes QuoteReader, closes CloseReader, emitter MutationEmitter, logger *zap.Logger) *Handler {
	return &Handler{
		positions: positions,
		quotes:    quotes,
		closes:    closes,
		emitter:   emitter,
		logger:    logger,
	}
}

// ListPositions handles GET /api/positions?status=open|closed|all
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	holderID, ok := HolderID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	status := models.PositionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusOpen
	}
	if !models.ValidStatus(status) {
		http.Error(w, "status must be open, closed or all", http.StatusBadRequest)
		return
	}

	positions, err := h.positions.ListPositionsByHolder(holderID, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []*models.Position{}
	}

	respondJSON(w, http.StatusOK, positions)
}

// AddPosition handles POST /api/positions
func (h *Handler) AddPosition(w http.ResponseWriter, r *http.Request) {
	holderID, ok := HolderID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Ticker   string          `json:"ticker"`
		Quantity decimal.Decimal `json:"quantity"`
		BuyPrice decimal.Decimal `json:"buyPrice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsPositive() || !req.BuyPrice.IsPositive() {
		http.Error(w, "quantity and buyPrice must be positive", http.StatusBadRequest)
		return
	}

	position := &models.Position{
		HolderID: holderID,
		Ticker:   ticker,
		Quantity: req.Quantity,
		BuyPrice: req.BuyPrice,
	}
	if err := h.positions.CreatePosition(position); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The write is durable; delivery is a best-effort add-on.
	h.emitter.PositionAdded(r.Context(), position)

	respondJSON(w, http.StatusCreated, position)
}

// UpdatePosition handles PUT /api/positions/{id}
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	_, position, ok := h.ownedPosition(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity  decimal.Decimal  `json:"quantity"`
		BuyPrice  decimal.Decimal  `json:"buyPrice"`
		SellPrice *decimal.Decimal `json:"sellPrice,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsPositive() || !req.BuyPrice.IsPositive() {
		http.Error(w, "quantity and buyPrice must be positive", http.StatusBadRequest)
		return
	}
	if req.SellPrice != nil && position.Open() {
		http.Error(w, "sellPrice can only be edited on a closed position", http.StatusBadRequest)
		return
	}
	if req.SellPrice != nil && !req.SellPrice.IsPositive() {
		http.Error(w, "sellPrice must be positive", http.StatusBadRequest)
		return
	}

	position.Quantity = req.Quantity
	position.BuyPrice = req.BuyPrice
	if req.SellPrice != nil {
		position.SellPrice = req.SellPrice
	}

	if err := h.positions.UpdatePosition(position); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.emitter.PositionUpdated(r.Context(), position)

	respondJSON(w, http.StatusOK, position)
}

// ClosePosition handles PUT /api/positions/{id}/close
func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	_, position, ok := h.ownedPosition(w, r)
	if !ok {
		return
	}
	if position.Closed() {
		http.Error(w, "position not found or already closed", http.StatusNotFound)
		return
	}

	var req struct {
		SellPrice decimal.Decimal `json:"sellPrice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.SellPrice.IsPositive() {
		http.Error(w, "sellPrice is required", http.StatusBadRequest)
		return
	}

	closed, err := h.positions.ClosePosition(position.ID, req.SellPrice, time.Now())
	if err != nil {
		http.Error(w, "position not found or already closed", http.StatusNotFound)
		return
	}

	h.emitter.PositionClosed(r.Context(), closed)

	respondJSON(w, http.StatusOK, closed)
}

// DeletePosition handles DELETE /api/positions/{id}
func (h *Handler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	holderID, position, ok := h.ownedPosition(w, r)
	if !ok {
		return
	}

	if err := h.positions.DeletePosition(position.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.emitter.PositionDeleted(r.Context(), holderID, position.ID)

	w.WriteHeader(http.StatusNoContent)
}

// GetQuotes handles GET /api/quotes?symbols=AAPL,MSFT
func (h *Handler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		http.Error(w, "symbols parameter is required", http.StatusBadRequest)
		return
	}

	quotes, err := h.quotes.GetQuotes(r.Context(), strings.Split(raw, ","))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if quotes == nil {
		quotes = []models.Quote{}
	}

	respondJSON(w, http.StatusOK, quotes)
}

// GetSummary handles GET /api/analytics/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	holderID, ok := HolderID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	positions, err := h.positions.ListPositionsByHolder(holderID, models.StatusAll)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	quoteMap := make(map[string]models.Quote)
	if symbols := openTickers(positions); len(symbols) > 0 {
		quotes, err := h.quotes.GetQuotes(r.Context(), symbols)
		if err != nil {
			// Valuation falls back to cost basis for unquoted positions.
			h.logger.Warn("quote fetch for summary failed", zap.Error(err))
		}
		for _, q := range quotes {
			quoteMap[q.Symbol] = q
		}
	}

	respondJSON(w, http.StatusOK, valuation.Summarize(positions, quoteMap))
}

// HistoryItem is one month-end portfolio value.
type HistoryItem struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// GetHistory handles GET /api/analytics/history?months=n
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	holderID, ok := HolderID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	months := 12
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "months must be a positive integer", http.StatusBadRequest)
			return
		}
		months = n
	}

	positions, err := h.positions.ListPositionsByHolder(holderID, models.StatusAll)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	history := make([]HistoryItem, 0, months)
	for _, monthEnd := range monthEnds(time.Now(), months) {
		total := decimal.Zero
		for _, p := range positions {
			total = total.Add(h.valueAt(p, monthEnd))
		}
		history = append(history, HistoryItem{
			Date:  monthEnd.Format("2006-01-02"),
			Value: total.Round(2),
		})
	}

	respondJSON(w, http.StatusOK, history)
}

// valueAt prices one position at a historical date: nothing before purchase,
// realized value after close, otherwise the last stored close (cost basis
// when no close has been recorded yet).
func (h *Handler) valueAt(p *models.Position, at time.Time) decimal.Decimal {
	if p.BuyDate.After(at) {
		return decimal.Zero
	}
	if p.Closed() && !p.SellDate.After(at) {
		return p.SellPrice.Mul(p.Quantity)
	}

	price := p.BuyPrice
	if h.closes != nil {
		if close, err := h.closes.GetLatestCloseOnOrBefore(p.Ticker, at); err != nil {
			h.logger.Warn("failed to read stored close",
				zap.String("symbol", p.Ticker), zap.Error(err))
		} else if close != nil {
			price = close.Close
		}
	}
	return price.Mul(p.Quantity)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ownedPosition loads the position in the route and checks it belongs to the
// authenticated holder. Foreign positions read as not found.
func (h *Handler) ownedPosition(w http.ResponseWriter, r *http.Request) (int64, *models.Position, bool) {
	holderID, ok := HolderID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, nil, false
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid position id", http.StatusBadRequest)
		return 0, nil, false
	}

	position, err := h.positions.GetPositionByID(id)
	if err != nil || position.HolderID != holderID {
		http.Error(w, "position not found", http.StatusNotFound)
		return 0, nil, false
	}
	return holderID, position, true
}

func openTickers(positions []*models.Position) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, p := range positions {
		if p.Open() && !seen[p.Ticker] {
			seen[p.Ticker] = true
			symbols = append(symbols, p.Ticker)
		}
	}
	return symbols
}

func monthEnds(now time.Time, months int) []time.Time {
	ends := make([]time.Time, 0, months)
	year, month, _ := now.Date()
	for i := months - 1; i >= 0; i-- {
		// Day 0 of the next month is the last day of this one.
		m := time.Date(year, month-time.Month(i)+1, 0, 23, 59, 59, 0, now.Location())
		if m.After(now) {
			m = now
		}
		ends = append(ends, m)
	}
	return ends
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
