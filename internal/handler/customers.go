package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	mw "github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/service"
	"github.com/shopspring/decimal"
)

const minPhoneDigits = 7

// CustomerStore defines the database methods needed by customer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	ListCustomers(ctx context.Context, arg database.ListCustomersParams) ([]database.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	DeactivateCustomer(ctx context.Context, id uuid.UUID) (int64, error)
	GetCustomerStats(ctx context.Context, customerID pgtype.UUID) (database.GetCustomerStatsRow, error)
	ListCustomerSettlements(ctx context.Context, arg database.ListCustomerSettlementsParams) ([]database.Settlement, error)
}

// CustomerHandler handles the customer register. A customer is identified
// by phone number; settled bills can be linked to one.
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer endpoints. Expected mount: /customers.
// Cashiers can look customers up to link a bill; only admins edit.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleCashier))
		r.Get("/", h.List)
		r.Get("/lookup", h.Lookup)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/stats", h.Stats)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/bills", h.Bills)
	})
}

// --- Request / Response types ---

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type customerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type customerStatsResponse struct {
	TotalOrders int64      `json:"total_orders"`
	TotalSpent  string     `json:"total_spent"`
	AvgTicket   string     `json:"avg_ticket"`
	LastVisit   *time.Time `json:"last_visit"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	resp := customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Email.Valid {
		resp.Email = &c.Email.String
	}
	if c.Notes.Valid {
		resp.Notes = &c.Notes.String
	}
	return resp
}

func toCustomerStatsResponse(s database.GetCustomerStatsRow) customerStatsResponse {
	spent := service.NumericToDecimal(s.TotalSpent)
	avg := decimal.Zero
	if s.TotalOrders > 0 {
		avg = spent.Div(decimal.NewFromInt(s.TotalOrders))
	}
	resp := customerStatsResponse{
		TotalOrders: s.TotalOrders,
		TotalSpent:  spent.StringFixed(2),
		AvgTicket:   avg.StringFixed(2),
	}
	if s.LastVisit.Valid {
		resp.LastVisit = &s.LastVisit.Time
	}
	return resp
}

// normalizePhone strips spaces, dashes, dots and parentheses so
// "+91 98765-43210" and "+919876543210" are the same key. It returns ""
// for anything that is not a phone number.
func normalizePhone(s string) string {
	var b strings.Builder
	digits := 0
	for i, c := range strings.TrimSpace(s) {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
			digits++
		case c == '+' && i == 0:
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '.' || c == '(' || c == ')':
		default:
			return ""
		}
	}
	if digits < minPhoneDigits {
		return ""
	}
	return b.String()
}

func optionalTextValue(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// validate trims the request and normalizes its phone. It returns an error
// message, or "" when the request is usable.
func (req *customerRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if strings.TrimSpace(req.Phone) == "" {
		return "phone is required"
	}
	phone := normalizePhone(req.Phone)
	if phone == "" {
		return "invalid phone"
	}
	req.Phone = phone
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		return "invalid email format"
	}
	return ""
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = min(v, 100)
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// --- Handlers ---

// List returns active customers, optionally filtered by name, phone or email.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	var search pgtype.Text
	if s := strings.TrimSpace(r.URL.Query().Get("search")); s != "" {
		search = pgtype.Text{String: s, Valid: true}
	}

	customers, err := h.store.ListCustomers(r.Context(), database.ListCustomersParams{
		Search: search,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Lookup finds the active customer registered under ?phone=.
func (h *CustomerHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	phone := normalizePhone(r.URL.Query().Get("phone"))
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid phone"})
		return
	}

	customer, err := h.store.GetCustomerByPhone(r.Context(), phone)
	if err != nil {
		h.writeLookupError(w, "lookup customer", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Get returns a single customer by ID.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.customer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Create registers a customer. Phone numbers are unique among active customers.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	customer, err := h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
		Name:  req.Name,
		Phone: req.Phone,
		Email: optionalTextValue(req.Email),
		Notes: optionalTextValue(req.Notes),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "phone already registered"})
			return
		}
		log.Printf("ERROR: create customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

// Update replaces a customer's details.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	customerID, ok := urlUUID(w, r, "id", "customer")
	if !ok {
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	customer, err := h.store.UpdateCustomer(r.Context(), database.UpdateCustomerParams{
		ID:    customerID,
		Name:  req.Name,
		Phone: req.Phone,
		Email: optionalTextValue(req.Email),
		Notes: optionalTextValue(req.Notes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "phone already registered"})
			return
		}
		log.Printf("ERROR: update customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Delete deactivates a customer. Settled bills keep their link.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	customerID, ok := urlUUID(w, r, "id", "customer")
	if !ok {
		return
	}

	n, err := h.store.DeactivateCustomer(r.Context(), customerID)
	if err != nil {
		log.Printf("ERROR: delete customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats returns visit and spend totals derived from the customer's settled bills.
func (h *CustomerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.customer(w, r)
	if !ok {
		return
	}

	stats, err := h.store.GetCustomerStats(r.Context(), pgtype.UUID{Bytes: customer.ID, Valid: true})
	if err != nil {
		log.Printf("ERROR: get customer stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerStatsResponse(stats))
}

// Bills returns the customer's settled bills, newest first.
func (h *CustomerHandler) Bills(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.customer(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)

	settlements, err := h.store.ListCustomerSettlements(r.Context(), database.ListCustomerSettlementsParams{
		CustomerID: pgtype.UUID{Bytes: customer.ID, Valid: true},
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list customer bills: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]service.SettlementView, len(settlements))
	for i, s := range settlements {
		resp[i] = service.NewSettlementView(s)
	}

	writeJSON(w, http.StatusOK, resp)
}

// customer loads the active customer named by the {id} path parameter,
// writing the error response itself when it cannot.
func (h *CustomerHandler) customer(w http.ResponseWriter, r *http.Request) (database.Customer, bool) {
	customerID, ok := urlUUID(w, r, "id", "customer")
	if !ok {
		return database.Customer{}, false
	}
	c, err := h.store.GetCustomer(r.Context(), customerID)
	if err != nil {
		h.writeLookupError(w, "get customer", err)
		return database.Customer{}, false
	}
	return c, true
}

func (h *CustomerHandler) writeLookupError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		return
	}
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
