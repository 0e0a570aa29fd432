package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetSalesSummary(ctx context.Context, arg database.GetSalesSummaryParams) (database.GetSalesSummaryRow, error)
	GetPaymentSummary(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error)
	GetItemSales(ctx context.Context, arg database.GetItemSalesParams) ([]database.GetItemSalesRow, error)
}

// ReportsHandler handles report endpoints. All figures come from settlements.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers report endpoints. Expected mount: /reports (ADMIN only).
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales-summary", h.SalesSummary)
	r.Get("/payment-summary", h.PaymentSummary)
	r.Get("/item-sales", h.ItemSales)
}

// --- Response types ---

type salesSummaryResponse struct {
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	BillCount     int64  `json:"bill_count"`
	GrossSales    string `json:"gross_sales"`
	TotalDiscount string `json:"total_discount"`
	TotalTax      string `json:"total_tax"`
	NetRevenue    string `json:"net_revenue"`
}

type paymentSummaryResponse struct {
	PaymentMethod string `json:"payment_method"`
	BillCount     int64  `json:"bill_count"`
	TotalAmount   string `json:"total_amount"`
}

type itemSalesResponse struct {
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name"`
	QuantitySold int64  `json:"quantity_sold"`
	TotalRevenue string `json:"total_revenue"`
}

// --- Handlers ---

// SalesSummary returns bill count and totals for a date range.
func (h *ReportsHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	row, err := h.store.GetSalesSummary(r.Context(), database.GetSalesSummaryParams{
		CreatedAt:   pgtype.Timestamptz{Time: startDate, Valid: true},
		CreatedAt_2: pgtype.Timestamptz{Time: endDate, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: get sales summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, salesSummaryResponse{
		StartDate:     startDate.Format("2006-01-02"),
		EndDate:       endDate.AddDate(0, 0, -1).Format("2006-01-02"),
		BillCount:     row.BillCount,
		GrossSales:    numericToString(row.GrossSales),
		TotalDiscount: numericToString(row.TotalDiscount),
		TotalTax:      numericToString(row.TotalTax),
		NetRevenue:    numericToString(row.NetRevenue),
	})
}

// PaymentSummary returns totals grouped by payment method for a date range.
func (h *ReportsHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetPaymentSummary(r.Context(), database.GetPaymentSummaryParams{
		CreatedAt:   pgtype.Timestamptz{Time: startDate, Valid: true},
		CreatedAt_2: pgtype.Timestamptz{Time: endDate, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: get payment summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = paymentSummaryResponse{
			PaymentMethod: row.PaymentMethod,
			BillCount:     row.BillCount,
			TotalAmount:   numericToString(row.TotalAmount),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ItemSales returns the best-selling menu items for a date range, by
// quantity. Optional limit (default 20, max 100).
func (h *ReportsHandler) ItemSales(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, 100)
	}

	rows, err := h.store.GetItemSales(r.Context(), database.GetItemSalesParams{
		CreatedAt:   pgtype.Timestamptz{Time: startDate, Valid: true},
		CreatedAt_2: pgtype.Timestamptz{Time: endDate, Valid: true},
		Limit:       int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: get item sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]itemSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = itemSalesResponse{
			MenuItemID:   row.MenuItemID,
			Name:         row.Name,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// reportLocation is the restaurant's business day zone. Dates in reports
// and "today" on the kitchen display are midnight to midnight here.
func reportLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback when the tz database is missing from the image
		loc = time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

// parseDateRange reads start_date and end_date (YYYY-MM-DD) from the query.
// The returned end is exclusive. Default: the last 30 days including today.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	loc := reportLocation()

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		// Make end_date exclusive by adding 1 day
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
