package handler

import (
	"context"
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
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
)

const (
	defaultKOTLimit = 100
	maxKOTLimit     = 500
)

// KOTStore defines the read-side database methods needed by KOT handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type KOTStore interface {
	ListKots(ctx context.Context, arg database.ListKotsParams) ([]database.Kot, error)
	GetKot(ctx context.Context, id uuid.UUID) (database.Kot, error)
	ListKotItemsByKot(ctx context.Context, kotID uuid.UUID) ([]database.KotItem, error)
}

// KOTServicer moves KOTs through the kitchen. Satisfied by *service.KOTService.
type KOTServicer interface {
	Advance(ctx context.Context, id uuid.UUID) (*service.KOTResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*service.KOTResult, error)
}

// KOTHandler handles the kitchen worklist endpoints.
type KOTHandler struct {
	store KOTStore
	svc   KOTServicer
	loc   *time.Location
}

// NewKOTHandler creates a new KOTHandler.
func NewKOTHandler(store KOTStore, svc KOTServicer) *KOTHandler {
	return &KOTHandler{store: store, svc: svc, loc: reportLocation()}
}

// RegisterRoutes registers KOT endpoints. Expected mount: /kots
func (h *KOTHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/counts", h.Counts)
	r.Get("/{id}", h.Get)
	r.With(mw.RequireRole(enum.UserRoleChef)).Post("/{id}/advance", h.Advance)
	r.With(mw.RequireRole(enum.UserRoleChef, enum.UserRoleWaiter)).Post("/{id}/cancel", h.Cancel)
}

// parseStatusFilter accepts a comma-separated list of statuses. Empty or
// "all" means no filter.
func parseStatusFilter(s string) ([]string, error) {
	if s == "" || s == "all" {
		return nil, nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if !pos.IsKOTStatus(part) {
			return nil, errors.New("invalid status filter: " + part)
		}
		out = append(out, part)
	}
	return out, nil
}

// withItems loads the lines of each KOT and maps them to the domain type.
func (h *KOTHandler) withItems(ctx context.Context, kots []database.Kot) ([]pos.KOT, error) {
	out := make([]pos.KOT, len(kots))
	for i, k := range kots {
		items, err := h.store.ListKotItemsByKot(ctx, k.ID)
		if err != nil {
			return nil, err
		}
		out[i] = service.ToPosKOT(k, items)
	}
	return out, nil
}

// List returns KOTs in worklist order: high priority first, then oldest first.
func (h *KOTHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	statuses, err := parseStatusFilter(q.Get("status"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := defaultKOTLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxKOTLimit)
	}

	kots, err := h.store.ListKots(r.Context(), database.ListKotsParams{
		Statuses: statuses,
		Limit:    int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: list kots: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	worklist, err := h.withItems(r.Context(), kots)
	if err != nil {
		log.Printf("ERROR: list kot items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	pos.SortWorklist(worklist)

	resp := make([]service.KOTView, len(worklist))
	for i, k := range worklist {
		resp[i] = service.NewKOTView(k)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Counts returns today's KOT count per status plus "all", for the kitchen
// display filter tabs.
func (h *KOTHandler) Counts(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)

	kots, err := h.store.ListKots(r.Context(), database.ListKotsParams{
		Since: pgtype.Timestamptz{Time: midnight, Valid: true},
		Limit: 10000,
	})
	if err != nil {
		log.Printf("ERROR: list kots for counts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	pk := make([]pos.KOT, len(kots))
	for i, k := range kots {
		pk[i] = service.ToPosKOT(k, nil)
	}
	writeJSON(w, http.StatusOK, pos.CountByStatus(pk))
}

// Get returns a single KOT with its lines.
func (h *KOTHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "kot")
	if !ok {
		return
	}

	k, err := h.store.GetKot(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "kot not found"})
			return
		}
		log.Printf("ERROR: get kot: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	items, err := h.store.ListKotItemsByKot(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list kot items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, service.NewKOTView(service.ToPosKOT(k, items)))
}

// Advance moves a KOT one step forward: pending → preparing → ready → completed.
func (h *KOTHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "kot")
	if !ok {
		return
	}

	result, err := h.svc.Advance(r.Context(), id)
	if err != nil {
		writeServiceError(w, "advance kot", err)
		return
	}
	writeJSON(w, http.StatusOK, result.View())
}

// Cancel cancels a pending or preparing KOT and frees its table.
func (h *KOTHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "kot")
	if !ok {
		return
	}

	result, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, "cancel kot", err)
		return
	}
	writeJSON(w, http.StatusOK, result.View())
}
