package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/handler"
	"github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
)

// --- Mocks ---

type mockTableStore struct {
	tables   []database.DiningTable
	lastList database.ListTablesParams
	dupe     bool
}

func (m *mockTableStore) addTable(number, status string) database.DiningTable {
	t := database.DiningTable{ID: uuid.New(), TableNumber: number, Seats: 4, Status: status}
	if status == enum.TableStatusOccupied || status == enum.TableStatusBilling {
		t.ActiveKotID = pgtype.UUID{Bytes: uuid.New(), Valid: true}
		t.WaiterName = pgtype.Text{String: "Raj", Valid: true}
		t.GuestCount = pgtype.Int4{Int32: 2, Valid: true}
	}
	m.tables = append(m.tables, t)
	return t
}

func (m *mockTableStore) ListTables(_ context.Context, arg database.ListTablesParams) ([]database.DiningTable, error) {
	m.lastList = arg
	var out []database.DiningTable
	for _, t := range m.tables {
		if arg.Status.Valid && t.Status != arg.Status.String {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTableStore) GetTable(_ context.Context, id uuid.UUID) (database.DiningTable, error) {
	for _, t := range m.tables {
		if t.ID == id {
			return t, nil
		}
	}
	return database.DiningTable{}, pgx.ErrNoRows
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.DiningTable, error) {
	if m.dupe {
		return database.DiningTable{}, &pgconn.PgError{Code: "23505", ConstraintName: "dining_tables_table_number_key"}
	}
	return m.addTable(arg.TableNumber, enum.TableStatusAvailable), nil
}

type mockTableService struct {
	applyFn func(ctx context.Context, id uuid.UUID, action string) (*database.DiningTable, error)
}

func (m *mockTableService) Apply(ctx context.Context, id uuid.UUID, action string) (*database.DiningTable, error) {
	return m.applyFn(ctx, id, action)
}

func setupTableRouter(store handler.TableStore, svc handler.TableServicer) http.Handler {
	h := handler.NewTableHandler(store, svc)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.Route("/tables", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestTableList(t *testing.T) {
	store := &mockTableStore{}
	store.addTable("T-01", enum.TableStatusAvailable)
	occupied := store.addTable("T-02", enum.TableStatusOccupied)
	router := setupTableRouter(store, &mockTableService{})
	tok, _ := tokenFor(t, enum.UserRoleWaiter)

	rr := doJSON(t, router, http.MethodGet, "/tables?status=occupied", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("got %d tables, want 1", len(resp))
	}
	if resp[0]["active_kot_id"] != uuid.UUID(occupied.ActiveKotID.Bytes).String() {
		t.Errorf("active_kot_id: got %v", resp[0]["active_kot_id"])
	}
	if resp[0]["waiter"] != "Raj" || resp[0]["guest_count"] != float64(2) {
		t.Errorf("waiter/guests: got %v/%v", resp[0]["waiter"], resp[0]["guest_count"])
	}
}

func TestTableList_StatusAllAndInvalid(t *testing.T) {
	store := &mockTableStore{}
	router := setupTableRouter(store, &mockTableService{})
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	rr := doJSON(t, router, http.MethodGet, "/tables?status=all", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("all: got %d", rr.Code)
	}
	if store.lastList.Status.Valid {
		t.Error("status=all should not filter")
	}

	rr = doJSON(t, router, http.MethodGet, "/tables?status=dirty", tok, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid: got %d, want 400", rr.Code)
	}
}

func TestTableCounts(t *testing.T) {
	store := &mockTableStore{}
	store.addTable("T-01", enum.TableStatusAvailable)
	store.addTable("T-02", enum.TableStatusAvailable)
	store.addTable("T-03", enum.TableStatusOccupied)
	store.addTable("T-04", enum.TableStatusBilling)
	router := setupTableRouter(store, &mockTableService{})
	tok, _ := tokenFor(t, enum.UserRoleWaiter)

	rr := doJSON(t, router, http.MethodGet, "/tables/counts", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	var counts map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]int{"all": 4, "available": 2, "occupied": 1, "reserved": 0, "billing": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("%s: got %d, want %d", k, counts[k], v)
		}
	}
}

func TestTableGet(t *testing.T) {
	store := &mockTableStore{}
	tbl := store.addTable("T-07", enum.TableStatusReserved)
	router := setupTableRouter(store, &mockTableService{})
	tok, _ := tokenFor(t, enum.UserRoleChef)

	rr := doJSON(t, router, http.MethodGet, "/tables/"+tbl.ID.String(), tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["table_number"] != "T-07" || resp["status"] != "reserved" {
		t.Errorf("got %v", resp)
	}

	rr = doJSON(t, router, http.MethodGet, "/tables/"+uuid.NewString(), tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing: got %d, want 404", rr.Code)
	}
}

func TestTableCreate(t *testing.T) {
	store := &mockTableStore{}
	router := setupTableRouter(store, &mockTableService{})
	admin, _ := tokenFor(t, enum.UserRoleAdmin)
	waiter, _ := tokenFor(t, enum.UserRoleWaiter)

	rr := doJSON(t, router, http.MethodPost, "/tables", waiter, map[string]interface{}{"table_number": "T-13", "seats": 4})
	if rr.Code != http.StatusForbidden {
		t.Errorf("waiter: got %d, want 403", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, "/tables", admin, map[string]interface{}{"table_number": " T-13 ", "seats": 4})
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp["table_number"] != "T-13" || resp["status"] != "available" {
		t.Errorf("got %v", resp)
	}

	rr = doJSON(t, router, http.MethodPost, "/tables", admin, map[string]interface{}{"table_number": "T-14", "seats": 0})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("zero seats: got %d, want 400", rr.Code)
	}

	store.dupe = true
	rr = doJSON(t, router, http.MethodPost, "/tables", admin, map[string]interface{}{"table_number": "T-13", "seats": 2})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate: got %d, want 409", rr.Code)
	}
}

func TestTableActions(t *testing.T) {
	store := &mockTableStore{}
	tbl := store.addTable("T-05", enum.TableStatusAvailable)

	var gotAction string
	svc := &mockTableService{applyFn: func(_ context.Context, id uuid.UUID, action string) (*database.DiningTable, error) {
		gotAction = action
		if action == service.TableActionRequestBill {
			return nil, fmt.Errorf("table T-05: %w", pos.ErrInvalidTableTransition)
		}
		out := tbl
		out.Status = enum.TableStatusReserved
		return &out, nil
	}}
	router := setupTableRouter(store, svc)
	tok, _ := tokenFor(t, enum.UserRoleWaiter)

	rr := doJSON(t, router, http.MethodPost, "/tables/"+tbl.ID.String()+"/reserve", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reserve: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if gotAction != service.TableActionReserve {
		t.Errorf("action: got %q", gotAction)
	}

	rr = doJSON(t, router, http.MethodPost, "/tables/"+tbl.ID.String()+"/request-bill", tok, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("request-bill: got %d, want 409", rr.Code)
	}

	chef, _ := tokenFor(t, enum.UserRoleChef)
	rr = doJSON(t, router, http.MethodPost, "/tables/"+tbl.ID.String()+"/unreserve", chef, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("chef: got %d, want 403", rr.Code)
	}
}

func TestTableActions_NotFound(t *testing.T) {
	svc := &mockTableService{applyFn: func(context.Context, uuid.UUID, string) (*database.DiningTable, error) {
		return nil, service.ErrTableNotFound
	}}
	router := setupTableRouter(&mockTableStore{}, svc)
	tok, _ := tokenFor(t, enum.UserRoleCashier)

	rr := doJSON(t, router, http.MethodPost, "/tables/"+uuid.NewString()+"/unreserve", tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}
