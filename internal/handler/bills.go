package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/kot-api/internal/enum"
	mw "github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/receipt"
	"github.com/kiwari-pos/kot-api/internal/service"
)

// BillingServicer computes and settles bills. Satisfied by *service.BillingService.
type BillingServicer interface {
	Preview(ctx context.Context, kotID uuid.UUID, opts service.BillOptions) (*service.BillResult, error)
	Settle(ctx context.Context, req service.SettleRequest) (*service.BillResult, error)
	Receipt(ctx context.Context, kotID uuid.UUID) (*service.BillResult, error)
}

// ReceiptHeader is printed at the top of every receipt.
type ReceiptHeader struct {
	RestaurantName string
	GSTIN          string
}

// BillHandler handles billing endpoints for a KOT.
type BillHandler struct {
	svc    BillingServicer
	header ReceiptHeader
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(svc BillingServicer, header ReceiptHeader) *BillHandler {
	return &BillHandler{svc: svc, header: header}
}

// RegisterRoutes registers billing endpoints. Expected mount: /kots/{id}/bill
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Use(mw.RequireRole(enum.UserRoleCashier))

	r.Get("/", h.Preview)
	r.Post("/", h.Settle)
	r.Get("/receipt.pdf", h.Receipt)
}

// --- Request / Response types ---

type settleRequest struct {
	DiscountPercent string `json:"discount_percent"`
	PaymentMethod   string `json:"payment_method"`
	AmountReceived  string `json:"amount_received"`
	// CustomerID is optional and links the bill to a registered customer.
	CustomerID string `json:"customer_id"`
}

type billResponse struct {
	KOT        service.KOTView         `json:"kot"`
	Bill       service.BillView        `json:"bill"`
	Settled    bool                    `json:"settled"`
	Settlement *service.SettlementView `json:"settlement,omitempty"`
}

func toBillResponse(res *service.BillResult) billResponse {
	resp := billResponse{
		KOT:  service.NewKOTView(service.ToPosKOT(res.Kot, res.Items)),
		Bill: service.NewBillView(res.Bill),
	}
	if res.Settlement != nil {
		sv := service.NewSettlementView(*res.Settlement)
		resp.Settled = true
		resp.Settlement = &sv
	}
	return resp
}

// parseBillOptions validates the discount and cash amount strings.
// Empty strings mean zero. The discount is rounded to the precision it is
// stored at.
func parseBillOptions(discount, method, received string) (service.BillOptions, string) {
	opts := service.BillOptions{PaymentMethod: method}
	var err error
	if opts.DiscountPercent, err = parseOptionalDecimal(discount); err != nil {
		return opts, "invalid discount_percent"
	}
	opts.DiscountPercent = opts.DiscountPercent.Round(pos.DiscountPlaces)
	if opts.AmountReceived, err = parseOptionalDecimal(received); err != nil {
		return opts, "invalid amount_received"
	}
	if opts.AmountReceived.IsNegative() {
		return opts, "amount_received must be >= 0"
	}
	return opts, ""
}

// --- Handlers ---

// Preview computes the bill for the KOT without recording anything.
// Query: discount, method, received. Out-of-range discounts are clamped.
func (h *BillHandler) Preview(w http.ResponseWriter, r *http.Request) {
	kotID, ok := urlUUID(w, r, "id", "kot")
	if !ok {
		return
	}

	q := r.URL.Query()
	opts, msg := parseBillOptions(q.Get("discount"), q.Get("method"), q.Get("received"))
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	res, err := h.svc.Preview(r.Context(), kotID, opts)
	if err != nil {
		writeServiceError(w, "preview bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(res))
}

// Settle records payment. The first settlement of a KOT returns 201; any
// repeat returns the original settlement with 200.
func (h *BillHandler) Settle(w http.ResponseWriter, r *http.Request) {
	kotID, ok := urlUUID(w, r, "id", "kot")
	if !ok {
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	opts, msg := parseBillOptions(req.DiscountPercent, req.PaymentMethod, req.AmountReceived)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	settle := service.SettleRequest{KotID: kotID, BillOptions: opts}
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
			return
		}
		settle.CustomerID = &id
	}
	if claims := mw.ClaimsFromContext(r.Context()); claims != nil {
		settle.ProcessedBy = claims.UserID
	}

	res, err := h.svc.Settle(r.Context(), settle)
	if err != nil {
		writeServiceError(w, "settle bill", err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toBillResponse(res))
}

// Receipt renders the settled bill as a PDF.
func (h *BillHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	kotID, ok := urlUUID(w, r, "id", "kot")
	if !ok {
		return
	}

	res, err := h.svc.Receipt(r.Context(), kotID)
	if err != nil {
		writeServiceError(w, "load receipt", err)
		return
	}

	k := service.ToPosKOT(res.Kot, res.Items)
	rc := receipt.Receipt{
		RestaurantName: h.header.RestaurantName,
		GSTIN:          h.header.GSTIN,
		BillNumber:     res.Settlement.BillNumber,
		KOTNumber:      k.Number,
		TableNumber:    k.TableNumber,
		Waiter:         k.Waiter,
		SettledAt:      res.Settlement.CreatedAt,
		Items:          k.Items,
		Bill:           res.Bill,
	}
	pdf, err := receipt.Render(rc)
	if err != nil {
		log.Printf("ERROR: render receipt: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+rc.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Printf("ERROR: write receipt: %v", err)
	}
}
