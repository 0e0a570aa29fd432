package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/events"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/shopspring/decimal"
)

func newTestKOTService(store *mockStore) (*KOTService, *mockTx, *recordingNotifier) {
	tx := &mockTx{}
	n := &recordingNotifier{}
	svc := NewKOTService(&mockTxBeginner{tx: tx}, func(database.DBTX) KOTStore { return store }, n)
	return svc, tx, n
}

func cartLines() []pos.LineItem {
	return []pos.LineItem{
		{MenuItemID: uuid.NewString(), Name: "Paneer Butter Masala", Price: decimal.NewFromInt(220), Quantity: 2},
		{MenuItemID: uuid.NewString(), Name: "Garlic Naan", Price: decimal.NewFromInt(45), Quantity: 4, Note: "extra butter"},
	}
}

// =====================
// Validation tests
// =====================

func TestSendToKitchen_Validation(t *testing.T) {
	svc, _, _ := newTestKOTService(newMockStore(newMemState()))

	tests := []struct {
		name string
		req  SendToKitchenRequest
		want error
	}{
		{"empty items", SendToKitchenRequest{}, ErrEmptyItems},
		{"zero quantity", SendToKitchenRequest{Items: []pos.LineItem{{MenuItemID: uuid.NewString(), Quantity: 0}}}, ErrInvalidQuantity},
		{"quantity over cap", SendToKitchenRequest{Items: []pos.LineItem{{MenuItemID: uuid.NewString(), Quantity: pos.MaxLineQuantity + 1}}}, ErrInvalidQuantity},
		{"quantity beyond int32", SendToKitchenRequest{Items: []pos.LineItem{{MenuItemID: uuid.NewString(), Quantity: 1<<32 + 1}}}, ErrInvalidQuantity},
		{"bad menu id", SendToKitchenRequest{Items: []pos.LineItem{{MenuItemID: "naan", Quantity: 1}}}, ErrInvalidMenuItemID},
		{"bad priority", SendToKitchenRequest{Items: cartLines(), Priority: "urgent"}, ErrInvalidPriority},
		{"negative guests", SendToKitchenRequest{Items: cartLines(), GuestCount: -1}, ErrInvalidGuestCount},
		{"unknown table", SendToKitchenRequest{TableID: uuid.New(), Items: cartLines()}, ErrTableNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendToKitchen(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// =====================
// SendToKitchen
// =====================

func TestSendToKitchen_Success(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-03", enum.TableStatusAvailable)
	svc, tx, notifier := newTestKOTService(newMockStore(st))

	res, err := svc.SendToKitchen(context.Background(), SendToKitchenRequest{
		TableID:    table.ID,
		WaiterID:   uuid.New(),
		WaiterName: "Priya",
		GuestCount: 3,
		Items:      cartLines(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}

	if res.Kot.KotNumber != "KOT-001" {
		t.Errorf("kot number: got %s, want KOT-001", res.Kot.KotNumber)
	}
	if res.Kot.Status != enum.KOTStatusPending || res.Kot.Priority != enum.PriorityNormal {
		t.Errorf("status/priority: got %s/%s", res.Kot.Status, res.Kot.Priority)
	}
	if len(res.Items) != 2 || res.Items[1].Notes.String != "extra butter" || res.Items[1].Position != 1 {
		t.Fatalf("items: got %+v", res.Items)
	}
	if !numericEquals(res.Items[0].UnitPrice, "220") {
		t.Errorf("unit price snapshot lost")
	}

	got := st.tables[table.ID]
	if got.Status != enum.TableStatusOccupied || uuidString(got.ActiveKotID) != res.Kot.ID.String() {
		t.Errorf("table not occupied by the new kot: %+v", got)
	}
	if got.GuestCount.Int32 != 3 || got.WaiterName.String != "Priya" {
		t.Errorf("guests/waiter: %+v", got)
	}
	if err := toPosTable(got).Validate(); err != nil {
		t.Errorf("table invariant: %v", err)
	}

	if view := res.View(); view.Subtotal != "620.00" {
		t.Errorf("view subtotal: got %s, want 620.00", view.Subtotal)
	}

	types := notifier.types()
	if len(types) != 2 || types[0] != events.TypeKOTCreated || types[1] != events.TypeTableUpdated {
		t.Errorf("events: got %v", types)
	}
}

func TestSendToKitchen_ReservedTableIsOccupied(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-07", enum.TableStatusReserved)
	svc, _, _ := newTestKOTService(newMockStore(st))

	if _, err := svc.SendToKitchen(context.Background(), SendToKitchenRequest{
		TableID: table.ID, Priority: enum.PriorityHigh, Items: cartLines(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.tables[table.ID].Status != enum.TableStatusOccupied {
		t.Errorf("status: got %s", st.tables[table.ID].Status)
	}
}

func TestSendToKitchen_BusyTable(t *testing.T) {
	for _, status := range []string{enum.TableStatusOccupied, enum.TableStatusBilling} {
		t.Run(status, func(t *testing.T) {
			st := newMemState()
			table := st.addTable("T-01", enum.TableStatusAvailable)
			existing := st.addKOT(table, enum.KOTStatusPreparing)
			tb := st.tables[table.ID]
			tb.Status = status
			st.tables[table.ID] = tb

			svc, tx, notifier := newTestKOTService(newMockStore(st))
			_, err := svc.SendToKitchen(context.Background(), SendToKitchenRequest{TableID: table.ID, Items: cartLines()})
			if !errors.Is(err, pos.ErrTableBusy) {
				t.Fatalf("expected ErrTableBusy, got %v", err)
			}
			if tx.committed {
				t.Error("transaction should not commit")
			}
			if uuidString(st.tables[table.ID].ActiveKotID) != existing.ID.String() {
				t.Error("table link changed")
			}
			if len(notifier.types()) != 0 {
				t.Errorf("unexpected events: %v", notifier.types())
			}
		})
	}
}

func TestSendToKitchen_RetriesOnNumberConflict(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-04", enum.TableStatusAvailable)
	store := newMockStore(st)

	calls := 0
	create := store.createKotFn
	store.createKotFn = func(ctx context.Context, arg database.CreateKotParams) (database.Kot, error) {
		calls++
		if calls == 1 {
			return database.Kot{}, &pgconn.PgError{Code: "23505", ConstraintName: "kots_kot_number_key"}
		}
		return create(ctx, arg)
	}

	svc, _, _ := newTestKOTService(store)
	if _, err := svc.SendToKitchen(context.Background(), SendToKitchenRequest{TableID: table.ID, Items: cartLines()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("create calls: got %d, want 2", calls)
	}
}

func TestSendToKitchen_GivesUpAfterRetries(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-04", enum.TableStatusAvailable)
	store := newMockStore(st)

	calls := 0
	store.createKotFn = func(ctx context.Context, arg database.CreateKotParams) (database.Kot, error) {
		calls++
		return database.Kot{}, &pgconn.PgError{Code: "23505", ConstraintName: "kots_kot_number_key"}
	}

	svc, _, _ := newTestKOTService(store)
	_, err := svc.SendToKitchen(context.Background(), SendToKitchenRequest{TableID: table.ID, Items: cartLines()})
	if err == nil || !isUniqueViolation(err, "kots_kot_number_key") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if calls != maxKOTNumberRetries {
		t.Errorf("calls: got %d, want %d", calls, maxKOTNumberRetries)
	}
}

func TestSendToKitchen_OtherUniqueViolationNotRetried(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-04", enum.TableStatusAvailable)
	store := newMockStore(st)

	calls := 0
	store.createKotItemFn = func(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error) {
		calls++
		return database.KotItem{}, &pgconn.PgError{Code: "23505", ConstraintName: "kot_items_pkey"}
	}

	svc, _, _ := newTestKOTService(store)
	_, err := svc.SendToKitchen(context.Background(), SendToKitchenRequest{TableID: table.ID, Items: cartLines()})
	if err == nil || !strings.Contains(err.Error(), "create kot item") {
		t.Fatalf("expected create kot item error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

// =====================
// Advance / Cancel
// =====================

func TestAdvance(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-02", enum.TableStatusAvailable)
	kot := st.addKOT(table, enum.KOTStatusPending)
	svc, _, notifier := newTestKOTService(newMockStore(st))

	for _, want := range []string{enum.KOTStatusPreparing, enum.KOTStatusReady, enum.KOTStatusCompleted} {
		res, err := svc.Advance(context.Background(), kot.ID)
		if err != nil {
			t.Fatalf("advance to %s: %v", want, err)
		}
		if res.Kot.Status != want {
			t.Fatalf("status: got %s, want %s", res.Kot.Status, want)
		}
	}

	if _, err := svc.Advance(context.Background(), kot.ID); !errors.Is(err, pos.ErrInvalidTransition) {
		t.Errorf("advance completed: expected ErrInvalidTransition, got %v", err)
	}
	if st.tables[table.ID].Status != enum.TableStatusOccupied {
		t.Error("advancing to completed must not release the table before billing")
	}
	if n := len(notifier.events); n != 3 || notifier.events[2].RoutingKey() != "kot.updated.completed" {
		t.Errorf("events: got %d, last %+v", n, notifier.events)
	}
}

func TestAdvance_NotFound(t *testing.T) {
	svc, _, _ := newTestKOTService(newMockStore(newMemState()))
	if _, err := svc.Advance(context.Background(), uuid.New()); !errors.Is(err, ErrKOTNotFound) {
		t.Errorf("expected ErrKOTNotFound, got %v", err)
	}
}

func TestAdvance_LostRace(t *testing.T) {
	st := newMemState()
	kot := st.addKOT(st.addTable("T-02", enum.TableStatusAvailable), enum.KOTStatusPending)
	store := newMockStore(st)

	// Someone else cancels between our read and our write.
	get := store.getKotFn
	store.getKotFn = func(ctx context.Context, id uuid.UUID) (database.Kot, error) {
		k, err := get(ctx, id)
		moved := st.kots[id]
		moved.Status = enum.KOTStatusCancelled
		st.kots[id] = moved
		return k, err
	}

	svc, _, _ := newTestKOTService(store)
	if _, err := svc.Advance(context.Background(), kot.ID); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
}

func TestCancel_ReleasesTable(t *testing.T) {
	for _, from := range []string{enum.KOTStatusPending, enum.KOTStatusPreparing} {
		t.Run(from, func(t *testing.T) {
			st := newMemState()
			table := st.addTable("T-09", enum.TableStatusAvailable)
			kot := st.addKOT(table, from)
			svc, _, notifier := newTestKOTService(newMockStore(st))

			res, err := svc.Cancel(context.Background(), kot.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Kot.Status != enum.KOTStatusCancelled {
				t.Errorf("status: got %s", res.Kot.Status)
			}
			got := st.tables[table.ID]
			if got.Status != enum.TableStatusAvailable || got.ActiveKotID.Valid {
				t.Errorf("table not released: %+v", got)
			}
			if types := notifier.types(); len(types) != 2 || types[0] != events.TypeKOTCancelled {
				t.Errorf("events: got %v", types)
			}
		})
	}
}

func TestCancel_Rejected(t *testing.T) {
	for _, from := range []string{enum.KOTStatusReady, enum.KOTStatusCompleted, enum.KOTStatusCancelled} {
		t.Run(from, func(t *testing.T) {
			st := newMemState()
			table := st.addTable("T-09", enum.TableStatusAvailable)
			kot := st.addKOT(table, from)
			svc, _, _ := newTestKOTService(newMockStore(st))

			if _, err := svc.Cancel(context.Background(), kot.ID); !errors.Is(err, pos.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if st.kots[kot.ID].Status != from {
				t.Errorf("status changed to %s", st.kots[kot.ID].Status)
			}
			if st.tables[table.ID].Status != enum.TableStatusOccupied {
				t.Error("table released")
			}
		})
	}
}

func TestCancel_TableLinkedElsewhereIsLeftAlone(t *testing.T) {
	st := newMemState()
	table := st.addTable("T-10", enum.TableStatusAvailable)
	old := st.addKOT(table, enum.KOTStatusPending)
	current := st.addKOT(st.tables[table.ID], enum.KOTStatusPreparing)

	svc, _, notifier := newTestKOTService(newMockStore(st))
	res, err := svc.Cancel(context.Background(), old.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table != nil {
		t.Error("expected no table change")
	}
	if uuidString(st.tables[table.ID].ActiveKotID) != current.ID.String() {
		t.Error("table link changed")
	}
	if types := notifier.types(); len(types) != 1 {
		t.Errorf("events: got %v", types)
	}
}
