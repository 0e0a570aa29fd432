package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	mw "github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context, arg database.ListTablesParams) ([]database.DiningTable, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.DiningTable, error)
}

// TableServicer applies the manual table moves. Satisfied by *service.TableService.
type TableServicer interface {
	Apply(ctx context.Context, id uuid.UUID, action string) (*database.DiningTable, error)
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	store TableStore
	svc   TableServicer
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, svc TableServicer) *TableHandler {
	return &TableHandler{store: store, svc: svc}
}

// RegisterRoutes registers table endpoints. Expected mount: /tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/counts", h.Counts)
	r.Get("/{id}", h.Get)

	r.With(mw.RequireRole(enum.UserRoleAdmin)).Post("/", h.Create)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(enum.UserRoleWaiter, enum.UserRoleCashier))
		r.Post("/{id}/reserve", h.action(service.TableActionReserve))
		r.Post("/{id}/unreserve", h.action(service.TableActionUnreserve))
		r.Post("/{id}/request-bill", h.action(service.TableActionRequestBill))
	})
}

type createTableRequest struct {
	TableNumber string `json:"table_number"`
	Seats       int32  `json:"seats"`
}

// List returns tables ordered by number, filtered by status and a search
// on the table number (q).
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params database.ListTablesParams

	if s := q.Get("status"); s != "" && s != "all" {
		if !slices.Contains(enum.TableStatuses, s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := strings.TrimSpace(q.Get("q")); s != "" {
		params.Search = pgtype.Text{String: s, Valid: true}
	}

	tables, err := h.store.ListTables(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]service.TableView, len(tables))
	for i, t := range tables {
		resp[i] = service.NewTableView(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Counts returns the number of tables per status plus "all", for the
// floor plan filter tabs.
func (h *TableHandler) Counts(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context(), database.ListTablesParams{})
	if err != nil {
		log.Printf("ERROR: list tables for counts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	pts := make([]pos.Table, len(tables))
	for i, t := range tables {
		pts[i] = pos.Table{ID: t.ID.String(), Number: t.TableNumber, Status: t.Status}
	}
	writeJSON(w, http.StatusOK, pos.CountTables(pts))
}

// Get returns a single table.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "table")
	if !ok {
		return
	}

	t, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, service.NewTableView(t))
}

// Create adds an available table.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.TableNumber = strings.TrimSpace(req.TableNumber)
	if req.TableNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number is required"})
		return
	}
	if req.Seats <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seats must be > 0"})
		return
	}

	t, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		TableNumber: req.TableNumber,
		Seats:       req.Seats,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table number already exists"})
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, service.NewTableView(t))
}

func (h *TableHandler) action(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id", "table")
		if !ok {
			return
		}

		t, err := h.svc.Apply(r.Context(), id, name)
		if err != nil {
			writeServiceError(w, "table "+name, err)
			return
		}

		writeJSON(w, http.StatusOK, service.NewTableView(*t))
	}
}
