package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	mw "github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
)

var (
	errMenuItemUnavailable = errors.New("menu item is not available")
	errCartLineNotFound    = errors.New("item is not in the cart")
)

// CartStore keeps the in-progress cart of each table.
// Satisfied by *cartstore.Store.
type CartStore interface {
	Get(ctx context.Context, tableID string) (*pos.Cart, error)
	Update(ctx context.Context, tableID string, fn func(*pos.Cart) error) (*pos.Cart, error)
	Delete(ctx context.Context, tableID string) error
}

// CartCatalog looks up the rows a cart refers to.
// Satisfied by *database.Queries.
type CartCatalog interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
}

// KOTSender turns a cart into a kitchen ticket. Satisfied by *service.KOTService.
type KOTSender interface {
	SendToKitchen(ctx context.Context, req service.SendToKitchenRequest) (*service.KOTResult, error)
}

// CartHandler handles the order cart of a table.
type CartHandler struct {
	carts   CartStore
	catalog CartCatalog
	sender  KOTSender
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts CartStore, catalog CartCatalog, sender KOTSender) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog, sender: sender}
}

// RegisterRoutes registers cart endpoints. Expected mount: /tables/{id}/cart
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Use(mw.RequireRole(enum.UserRoleWaiter))

	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{menuItemID}", h.UpdateItem)
	r.Delete("/items/{menuItemID}", h.RemoveItem)
	r.Post("/send", h.Send)
}

// --- Request / Response types ---

type addCartItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
}

type updateCartItemRequest struct {
	Quantity *int    `json:"quantity"`
	Note     *string `json:"note"`
}

type sendCartRequest struct {
	Priority   string `json:"priority"`
	GuestCount int    `json:"guest_count"`
}

type cartResponse struct {
	TableID   string                `json:"table_id"`
	Items     []service.KOTItemView `json:"items"`
	ItemCount int                   `json:"item_count"`
	Subtotal  string                `json:"subtotal"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
}

func toCartResponse(c *pos.Cart) cartResponse {
	resp := cartResponse{
		TableID:  c.TableID,
		Items:    service.NewItemViews(c.Items),
		Subtotal: c.Subtotal().StringFixed(2),
	}
	for _, it := range c.Items {
		resp.ItemCount += it.Quantity
	}
	if !c.UpdatedAt.IsZero() {
		resp.UpdatedAt = &c.UpdatedAt
	}
	return resp
}

// --- Handlers ---

// table resolves the {id} path parameter to an existing table.
func (h *CartHandler) table(w http.ResponseWriter, r *http.Request) (database.DiningTable, bool) {
	id, ok := urlUUID(w, r, "id", "table")
	if !ok {
		return database.DiningTable{}, false
	}
	t, err := h.catalog.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return database.DiningTable{}, false
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.DiningTable{}, false
	}
	return t, true
}

func (h *CartHandler) writeCartError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errMenuItemUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, errCartLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeServiceError(w, op, err)
	}
}

// Get returns the table's cart. A table with no cart gets an empty one.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Get(r.Context(), t.ID.String())
	if err != nil {
		h.writeCartError(w, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// Clear drops every line of the cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}

	if err := h.carts.Delete(r.Context(), t.ID.String()); err != nil {
		h.writeCartError(w, "clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds one unit of a menu item, merging with an existing line.
// Name and price are captured from the menu at this point.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	menuID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
		return
	}

	item, err := h.catalog.GetMenuItem(r.Context(), menuID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !item.IsAvailable {
		h.writeCartError(w, "add cart item", errMenuItemUnavailable)
		return
	}

	cart, err := h.carts.Update(r.Context(), t.ID.String(), func(c *pos.Cart) error {
		c.AddItem(pos.MenuItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Price:     service.NumericToDecimal(item.Price),
			Category:  item.Category,
			Available: item.IsAvailable,
		})
		return nil
	})
	if err != nil {
		h.writeCartError(w, "add cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// UpdateItem changes the quantity and/or note of a line. A quantity of
// zero or less removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	lineID := chi.URLParam(r, "menuItemID")

	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity == nil && req.Note == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity or note is required"})
		return
	}
	if req.Quantity != nil && *req.Quantity > pos.MaxLineQuantity {
		writeServiceError(w, "update cart item", service.ErrInvalidQuantity)
		return
	}

	cart, err := h.carts.Update(r.Context(), t.ID.String(), func(c *pos.Cart) error {
		if !hasLine(c, lineID) {
			return errCartLineNotFound
		}
		if req.Note != nil {
			c.UpdateNote(lineID, *req.Note)
		}
		if req.Quantity != nil {
			c.UpdateQuantity(lineID, *req.Quantity)
		}
		return nil
	})
	if err != nil {
		h.writeCartError(w, "update cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// RemoveItem drops a line. Removing an absent line is not an error.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	lineID := chi.URLParam(r, "menuItemID")

	cart, err := h.carts.Update(r.Context(), t.ID.String(), func(c *pos.Cart) error {
		c.RemoveItem(lineID)
		return nil
	})
	if err != nil {
		h.writeCartError(w, "remove cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// Send turns the cart into a KOT, occupies the table, and removes the sent
// lines from the cart.
func (h *CartHandler) Send(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}

	var req sendCartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	cart, err := h.carts.Get(r.Context(), t.ID.String())
	if err != nil {
		h.writeCartError(w, "get cart", err)
		return
	}
	if cart.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
		return
	}

	sent := cart.Snapshot()
	sendReq := service.SendToKitchenRequest{
		TableID:    t.ID,
		Priority:   req.Priority,
		GuestCount: req.GuestCount,
		Items:      sent,
	}
	if claims := mw.ClaimsFromContext(r.Context()); claims != nil {
		sendReq.WaiterID = claims.UserID
		sendReq.WaiterName = claims.Name
	}

	result, err := h.sender.SendToKitchen(r.Context(), sendReq)
	if err != nil {
		writeServiceError(w, "send to kitchen", err)
		return
	}

	// Only the sent quantities leave the cart; edits made by another device
	// during the send stay for the next KOT. The KOT is already committed, so
	// a failure here is logged rather than reported.
	if _, err := h.carts.Update(r.Context(), t.ID.String(), func(c *pos.Cart) error {
		c.Subtract(sent)
		return nil
	}); err != nil {
		log.Printf("ERROR: clear cart after send (table %s): %v", t.ID, err)
	}

	writeJSON(w, http.StatusCreated, result.View())
}

func hasLine(c *pos.Cart, lineID string) bool {
	for _, it := range c.Items {
		if it.MenuItemID == lineID {
			return true
		}
	}
	return false
}
