package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/events"
	"github.com/shopspring/decimal"
)

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockTxBeginner struct {
	tx  *mockTx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}

// mockStore satisfies KOTStore, BillingStore and TableStore. Each method
// calls its func field; newMockStore wires them to an in-memory state.
type mockStore struct {
	getTableForUpdateFn  func(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	updateTableStateFn   func(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error)
	getNextKotSeqFn      func(ctx context.Context) (int32, error)
	createKotFn          func(ctx context.Context, arg database.CreateKotParams) (database.Kot, error)
	createKotItemFn      func(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error)
	getKotFn             func(ctx context.Context, id uuid.UUID) (database.Kot, error)
	getKotForUpdateFn    func(ctx context.Context, id uuid.UUID) (database.Kot, error)
	listKotItemsByKotFn  func(ctx context.Context, kotID uuid.UUID) ([]database.KotItem, error)
	updateKotStatusFn    func(ctx context.Context, arg database.UpdateKotStatusParams) (database.Kot, error)
	getSettlementByKotFn func(ctx context.Context, kotID uuid.UUID) (database.Settlement, error)
	createSettlementFn   func(ctx context.Context, arg database.CreateSettlementParams) (database.Settlement, error)
}

func (m *mockStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	return m.getTableForUpdateFn(ctx, id)
}
func (m *mockStore) UpdateTableState(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error) {
	return m.updateTableStateFn(ctx, arg)
}
func (m *mockStore) GetNextKotSeq(ctx context.Context) (int32, error) {
	return m.getNextKotSeqFn(ctx)
}
func (m *mockStore) CreateKot(ctx context.Context, arg database.CreateKotParams) (database.Kot, error) {
	return m.createKotFn(ctx, arg)
}
func (m *mockStore) CreateKotItem(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error) {
	return m.createKotItemFn(ctx, arg)
}
func (m *mockStore) GetKot(ctx context.Context, id uuid.UUID) (database.Kot, error) {
	return m.getKotFn(ctx, id)
}
func (m *mockStore) GetKotForUpdate(ctx context.Context, id uuid.UUID) (database.Kot, error) {
	return m.getKotForUpdateFn(ctx, id)
}
func (m *mockStore) ListKotItemsByKot(ctx context.Context, kotID uuid.UUID) ([]database.KotItem, error) {
	return m.listKotItemsByKotFn(ctx, kotID)
}
func (m *mockStore) UpdateKotStatus(ctx context.Context, arg database.UpdateKotStatusParams) (database.Kot, error) {
	return m.updateKotStatusFn(ctx, arg)
}
func (m *mockStore) GetSettlementByKot(ctx context.Context, kotID uuid.UUID) (database.Settlement, error) {
	return m.getSettlementByKotFn(ctx, kotID)
}
func (m *mockStore) CreateSettlement(ctx context.Context, arg database.CreateSettlementParams) (database.Settlement, error) {
	return m.createSettlementFn(ctx, arg)
}

// memState is the in-memory backing for newMockStore. Writes are visible
// immediately; rollback is not modelled.
type memState struct {
	tables      map[uuid.UUID]database.DiningTable
	kots        map[uuid.UUID]database.Kot
	items       map[uuid.UUID][]database.KotItem
	settlements map[uuid.UUID]database.Settlement
	customers   map[uuid.UUID]bool
	seq         int32
}

func newMemState() *memState {
	return &memState{
		tables:      map[uuid.UUID]database.DiningTable{},
		kots:        map[uuid.UUID]database.Kot{},
		items:       map[uuid.UUID][]database.KotItem{},
		settlements: map[uuid.UUID]database.Settlement{},
		customers:   map[uuid.UUID]bool{},
	}
}

func (st *memState) addTable(number, status string) database.DiningTable {
	t := database.DiningTable{ID: uuid.New(), TableNumber: number, Seats: 4, Status: status}
	st.tables[t.ID] = t
	return t
}

// addKOT inserts a KOT with one 250.00 × 2 line and links its table.
func (st *memState) addKOT(table database.DiningTable, status string) database.Kot {
	st.seq++
	k := database.Kot{
		ID:          uuid.New(),
		KotNumber:   fmt.Sprintf("KOT-%03d", st.seq),
		Seq:         st.seq,
		TableID:     table.ID,
		TableNumber: table.TableNumber,
		Status:      status,
		Priority:    enum.PriorityNormal,
		WaiterName:  "Raj",
		CreatedAt:   time.Now(),
	}
	st.kots[k.ID] = k
	st.items[k.ID] = []database.KotItem{{
		ID:         uuid.New(),
		KotID:      k.ID,
		MenuItemID: uuid.New(),
		Name:       "Biryani",
		UnitPrice:  moneyToNumeric(decimal.NewFromInt(250)),
		Quantity:   2,
	}}
	table.Status = enum.TableStatusOccupied
	table.ActiveKotID = pgtype.UUID{Bytes: k.ID, Valid: true}
	st.tables[table.ID] = table
	return k
}

func newMockStore(st *memState) *mockStore {
	var mu sync.Mutex
	getKot := func(ctx context.Context, id uuid.UUID) (database.Kot, error) {
		mu.Lock()
		defer mu.Unlock()
		k, ok := st.kots[id]
		if !ok {
			return database.Kot{}, pgx.ErrNoRows
		}
		return k, nil
	}
	return &mockStore{
		getTableForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
			mu.Lock()
			defer mu.Unlock()
			t, ok := st.tables[id]
			if !ok {
				return database.DiningTable{}, pgx.ErrNoRows
			}
			return t, nil
		},
		updateTableStateFn: func(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error) {
			mu.Lock()
			defer mu.Unlock()
			t, ok := st.tables[arg.ID]
			if !ok || t.Status != arg.Status_2 {
				return database.DiningTable{}, pgx.ErrNoRows
			}
			t.Status = arg.Status
			t.ActiveKotID = arg.ActiveKotID
			t.WaiterName = arg.WaiterName
			t.GuestCount = arg.GuestCount
			st.tables[arg.ID] = t
			return t, nil
		},
		getNextKotSeqFn: func(ctx context.Context) (int32, error) {
			mu.Lock()
			defer mu.Unlock()
			return st.seq + 1, nil
		},
		createKotFn: func(ctx context.Context, arg database.CreateKotParams) (database.Kot, error) {
			mu.Lock()
			defer mu.Unlock()
			k := database.Kot{
				ID:          uuid.New(),
				KotNumber:   arg.KotNumber,
				Seq:         arg.Seq,
				TableID:     arg.TableID,
				TableNumber: arg.TableNumber,
				Status:      enum.KOTStatusPending,
				Priority:    arg.Priority,
				WaiterID:    arg.WaiterID,
				WaiterName:  arg.WaiterName,
				CreatedAt:   time.Now(),
			}
			st.seq = arg.Seq
			st.kots[k.ID] = k
			return k, nil
		},
		createKotItemFn: func(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error) {
			mu.Lock()
			defer mu.Unlock()
			it := database.KotItem{
				ID:         uuid.New(),
				KotID:      arg.KotID,
				MenuItemID: arg.MenuItemID,
				Position:   arg.Position,
				Name:       arg.Name,
				UnitPrice:  arg.UnitPrice,
				Quantity:   arg.Quantity,
				Notes:      arg.Notes,
			}
			st.items[arg.KotID] = append(st.items[arg.KotID], it)
			return it, nil
		},
		getKotFn:          getKot,
		getKotForUpdateFn: getKot,
		listKotItemsByKotFn: func(ctx context.Context, kotID uuid.UUID) ([]database.KotItem, error) {
			mu.Lock()
			defer mu.Unlock()
			return st.items[kotID], nil
		},
		updateKotStatusFn: func(ctx context.Context, arg database.UpdateKotStatusParams) (database.Kot, error) {
			mu.Lock()
			defer mu.Unlock()
			k, ok := st.kots[arg.ID]
			if !ok || k.Status != arg.Status_2 {
				return database.Kot{}, pgx.ErrNoRows
			}
			k.Status = arg.Status
			st.kots[arg.ID] = k
			return k, nil
		},
		getSettlementByKotFn: func(ctx context.Context, kotID uuid.UUID) (database.Settlement, error) {
			mu.Lock()
			defer mu.Unlock()
			s, ok := st.settlements[kotID]
			if !ok {
				return database.Settlement{}, pgx.ErrNoRows
			}
			return s, nil
		},
		createSettlementFn: func(ctx context.Context, arg database.CreateSettlementParams) (database.Settlement, error) {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := st.settlements[arg.KotID]; ok {
				return database.Settlement{}, &pgconn.PgError{Code: "23505", ConstraintName: "settlements_kot_id_key"}
			}
			if arg.CustomerID.Valid && !st.customers[uuid.UUID(arg.CustomerID.Bytes)] {
				return database.Settlement{}, &pgconn.PgError{Code: "23503", ConstraintName: "settlements_customer_id_fkey"}
			}
			s := database.Settlement{
				ID:              uuid.New(),
				KotID:           arg.KotID,
				BillNumber:      arg.BillNumber,
				Subtotal:        arg.Subtotal,
				DiscountPercent: arg.DiscountPercent,
				DiscountAmount:  arg.DiscountAmount,
				TaxableAmount:   arg.TaxableAmount,
				CgstRate:        arg.CgstRate,
				SgstRate:        arg.SgstRate,
				CgstAmount:      arg.CgstAmount,
				SgstAmount:      arg.SgstAmount,
				GrandTotal:      arg.GrandTotal,
				PaymentMethod:   arg.PaymentMethod,
				AmountReceived:  arg.AmountReceived,
				ChangeAmount:    arg.ChangeAmount,
				ProcessedBy:     arg.ProcessedBy,
				CustomerID:      arg.CustomerID,
				CreatedAt:       time.Now(),
			}
			st.settlements[arg.KotID] = s
			return s, nil
		},
	}
}

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingNotifier) Notify(_ context.Context, evs ...events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return NumericToDecimal(n).Equal(decimal.RequireFromString(expected))
}
