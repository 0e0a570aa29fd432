package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/handler"
	"github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mock service ---

// fakeBilling computes real bills over a fixed KOT and keeps one
// settlement, like the service does.
type fakeBilling struct {
	kot        database.Kot
	items      []database.KotItem
	settlement *database.Settlement
	lastOpts   service.BillOptions
	lastSettle service.SettleRequest
	customers  map[uuid.UUID]bool
}

func newFakeBilling(status string) *fakeBilling {
	k := database.Kot{
		ID: uuid.New(), KotNumber: "KOT-001", TableID: uuid.New(), TableNumber: "T-04",
		Status: status, Priority: enum.PriorityNormal, WaiterName: "Amit", CreatedAt: time.Now(),
	}
	return &fakeBilling{
		kot: k,
		items: []database.KotItem{{
			ID: uuid.New(), KotID: k.ID, MenuItemID: uuid.New(), Name: "Biryani",
			UnitPrice: toNumeric("250"), Quantity: 2,
		}},
	}
}

func (f *fakeBilling) compute(opts service.BillOptions) pos.Bill {
	return pos.ComputeBill(pos.BillInput{
		Items:           service.ToPosKOT(f.kot, f.items).Items,
		DiscountPercent: opts.DiscountPercent,
		Tax:             pos.DefaultTaxConfig(),
		PaymentMethod:   opts.PaymentMethod,
		AmountReceived:  opts.AmountReceived,
	})
}

func (f *fakeBilling) check(kotID uuid.UUID) error {
	if kotID != f.kot.ID {
		return service.ErrKOTNotFound
	}
	return nil
}

func (f *fakeBilling) Preview(_ context.Context, kotID uuid.UUID, opts service.BillOptions) (*service.BillResult, error) {
	if err := f.check(kotID); err != nil {
		return nil, err
	}
	f.lastOpts = opts
	if f.settlement != nil {
		return &service.BillResult{Kot: f.kot, Items: f.items, Bill: service.SettlementBill(*f.settlement), Settlement: f.settlement}, nil
	}
	return &service.BillResult{Kot: f.kot, Items: f.items, Bill: f.compute(opts)}, nil
}

func (f *fakeBilling) Settle(_ context.Context, req service.SettleRequest) (*service.BillResult, error) {
	if err := f.check(req.KotID); err != nil {
		return nil, err
	}
	f.lastSettle = req
	if f.settlement != nil {
		return &service.BillResult{Kot: f.kot, Items: f.items, Bill: service.SettlementBill(*f.settlement), Settlement: f.settlement, Replayed: true}, nil
	}
	if !enum.IsPaymentMethod(req.PaymentMethod) {
		return nil, service.ErrInvalidPaymentMethod
	}
	if !pos.IsBillable(f.kot.Status) {
		return nil, service.ErrNotBillable
	}
	bill := f.compute(req.BillOptions)
	if req.PaymentMethod == enum.PaymentMethodCash && bill.AmountReceived.LessThan(bill.GrandTotal) {
		return nil, service.ErrInsufficientCash
	}
	if req.CustomerID != nil && !f.customers[*req.CustomerID] {
		return nil, service.ErrCustomerNotFound
	}
	s := database.Settlement{
		ID: uuid.New(), KotID: f.kot.ID, BillNumber: "INV-" + f.kot.KotNumber,
		Subtotal: toNumeric(bill.Subtotal.String()), DiscountPercent: toNumeric(bill.DiscountPercent.String()),
		DiscountAmount: toNumeric(bill.DiscountAmount.String()), TaxableAmount: toNumeric(bill.TaxableAmount.String()),
		CgstRate: toNumeric(bill.CGSTRate.String()), SgstRate: toNumeric(bill.SGSTRate.String()),
		CgstAmount: toNumeric(bill.CGST.String()), SgstAmount: toNumeric(bill.SGST.String()),
		GrandTotal: toNumeric(bill.GrandTotal.String()), PaymentMethod: req.PaymentMethod,
		ProcessedBy: req.ProcessedBy, CreatedAt: time.Now(),
	}
	if req.CustomerID != nil {
		s.CustomerID = pgtype.UUID{Bytes: *req.CustomerID, Valid: true}
	}
	if bill.AmountReceived != nil {
		s.AmountReceived = toNumeric(bill.AmountReceived.String())
		s.ChangeAmount = toNumeric(bill.Change.String())
	}
	f.settlement = &s
	f.kot.Status = enum.KOTStatusCompleted
	return &service.BillResult{Kot: f.kot, Items: f.items, Bill: bill, Settlement: &s}, nil
}

func (f *fakeBilling) Receipt(ctx context.Context, kotID uuid.UUID) (*service.BillResult, error) {
	res, err := f.Preview(ctx, kotID, service.BillOptions{})
	if err != nil {
		return nil, err
	}
	if res.Settlement == nil {
		return nil, service.ErrNotSettled
	}
	return res, nil
}

func setupBillRouter(svc handler.BillingServicer) http.Handler {
	h := handler.NewBillHandler(svc, handler.ReceiptHeader{RestaurantName: "Kiwari Kitchen", GSTIN: "29ABCDE1234F1Z5"})
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.Route("/kots/{id}/bill", h.RegisterRoutes)
	return r
}

func billPath(f *fakeBilling) string {
	return "/kots/" + f.kot.ID.String() + "/bill"
}

// --- Tests ---

func TestBillPreview(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	router := setupBillRouter(f)
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	rr := doJSON(t, router, http.MethodGet, billPath(f)+"?discount=10&method=cash&received=500", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	bill := resp["bill"].(map[string]interface{})
	want := map[string]string{
		"subtotal":        "500.00",
		"discount_amount": "50.00",
		"taxable_amount":  "450.00",
		"cgst":            "11.25",
		"sgst":            "11.25",
		"total_tax":       "22.50",
		"grand_total":     "472.50",
		"change":          "27.50",
	}
	for k, v := range want {
		if bill[k] != v {
			t.Errorf("%s: got %v, want %s", k, bill[k], v)
		}
	}
	if resp["settled"] != false {
		t.Errorf("settled: got %v", resp["settled"])
	}
	if !f.lastOpts.DiscountPercent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("discount passed: got %s", f.lastOpts.DiscountPercent)
	}
}

func TestBillPreview_DiscountRoundedBeforeCompute(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	router := setupBillRouter(f)
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	rr := doJSON(t, router, http.MethodGet, billPath(f)+"?discount=12.345&method=upi", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if !f.lastOpts.DiscountPercent.Equal(decimal.RequireFromString("12.35")) {
		t.Errorf("discount passed: got %s, want 12.35", f.lastOpts.DiscountPercent)
	}
	// 500 × 12.35% = 61.75
	bill := decodeResponse(t, rr)["bill"].(map[string]interface{})
	if bill["discount_amount"] != "61.75" {
		t.Errorf("discount_amount: got %v, want 61.75", bill["discount_amount"])
	}
}

func TestBillPreview_BadInput(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	router := setupBillRouter(f)
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	for _, q := range []string{"discount=ten", "received=lots", "received=-5"} {
		rr := doJSON(t, router, http.MethodGet, billPath(f)+"?"+q, tok, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}

	rr := doJSON(t, router, http.MethodGet, "/kots/"+uuid.NewString()+"/bill", tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown kot: got %d, want 404", rr.Code)
	}
}

func TestBill_CashierOnly(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	router := setupBillRouter(f)

	for _, role := range []string{enum.UserRoleWaiter, enum.UserRoleChef} {
		tok, _ := tokenFor(t, role)
		rr := doJSON(t, router, http.MethodGet, billPath(f), tok, nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s: got %d, want 403", role, rr.Code)
		}
	}
}

func TestBillSettle_Idempotent(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	router := setupBillRouter(f)
	tok, cashierID := tokenFor(t, enum.UserRoleCashier)
	body := map[string]string{"discount_percent": "10", "payment_method": "cash", "amount_received": "500"}

	rr := doJSON(t, router, http.MethodPost, billPath(f), tok, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first settle: got %d; body: %s", rr.Code, rr.Body.String())
	}
	first := decodeResponse(t, rr)
	if first["settled"] != true {
		t.Errorf("settled: got %v", first["settled"])
	}
	if f.lastSettle.ProcessedBy != cashierID {
		t.Errorf("processed_by: got %s, want %s", f.lastSettle.ProcessedBy, cashierID)
	}
	settlement := first["settlement"].(map[string]interface{})
	if settlement["bill_number"] != "INV-KOT-001" {
		t.Errorf("bill_number: got %v", settlement["bill_number"])
	}

	rr = doJSON(t, router, http.MethodPost, billPath(f), tok, map[string]string{"payment_method": "card"})
	if rr.Code != http.StatusOK {
		t.Fatalf("second settle: got %d, want 200", rr.Code)
	}
	second := decodeResponse(t, rr)
	if second["settlement"].(map[string]interface{})["id"] != settlement["id"] {
		t.Error("replay returned a different settlement")
	}
	if second["bill"].(map[string]interface{})["payment_method"] != "cash" {
		t.Errorf("replay should keep the original method, got %v", second["bill"])
	}
}

func TestBillSettle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status string
		body   map[string]string
		want   int
	}{
		{"missing method", enum.KOTStatusReady, map[string]string{}, http.StatusBadRequest},
		{"unknown method", enum.KOTStatusReady, map[string]string{"payment_method": "cheque"}, http.StatusBadRequest},
		{"short cash", enum.KOTStatusReady, map[string]string{"payment_method": "cash", "amount_received": "100"}, http.StatusBadRequest},
		{"not ready", enum.KOTStatusPreparing, map[string]string{"payment_method": "upi"}, http.StatusConflict},
		{"bad discount", enum.KOTStatusReady, map[string]string{"payment_method": "upi", "discount_percent": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeBilling(tt.status)
			router := setupBillRouter(f)
			tok, _ := tokenFor(t, enum.UserRoleCashier)

			rr := doJSON(t, router, http.MethodPost, billPath(f), tok, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
			if f.settlement != nil {
				t.Error("no settlement should be recorded")
			}
		})
	}
}

func TestBillSettle_Customer(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	known := uuid.New()
	f.customers = map[uuid.UUID]bool{known: true}
	router := setupBillRouter(f)
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	rr := doJSON(t, router, http.MethodPost, billPath(f), tok, map[string]string{"payment_method": "upi", "customer_id": "regular"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed customer_id: got %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, billPath(f), tok, map[string]string{"payment_method": "upi", "customer_id": uuid.NewString()})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown customer: got %d, want 404", rr.Code)
	}
	if f.settlement != nil {
		t.Fatal("no settlement should be recorded for an unknown customer")
	}

	rr = doJSON(t, router, http.MethodPost, billPath(f), tok, map[string]string{"payment_method": "upi", "customer_id": known.String()})
	if rr.Code != http.StatusCreated {
		t.Fatalf("settle: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if f.lastSettle.CustomerID == nil || *f.lastSettle.CustomerID != known {
		t.Errorf("customer passed: got %v", f.lastSettle.CustomerID)
	}
	settlement := decodeResponse(t, rr)["settlement"].(map[string]interface{})
	if settlement["customer_id"] != known.String() {
		t.Errorf("settlement customer_id: got %v", settlement["customer_id"])
	}
}

func TestBillReceipt(t *testing.T) {
	f := newFakeBilling(enum.KOTStatusReady)
	router := setupBillRouter(f)
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	rr := doJSON(t, router, http.MethodGet, billPath(f)+"/receipt.pdf", tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unsettled: got %d, want 404", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, billPath(f), tok, map[string]string{"payment_method": "upi"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("settle: got %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, billPath(f)+"/receipt.pdf", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("receipt: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type: got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "INV-KOT-001.pdf") {
		t.Errorf("content disposition: got %q", cd)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}
