package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/events"
	"github.com/kiwari-pos/kot-api/internal/pos"
)

const maxKOTNumberRetries = 3

// Errors returned by the KOT service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be between 1 and 999")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
	ErrInvalidGuestCount = errors.New("guest_count must be >= 0")
	ErrTableNotFound     = errors.New("table not found")
	ErrKOTNotFound       = errors.New("kot not found")
	// ErrStatusConflict means the row changed between read and write.
	ErrStatusConflict = errors.New("status changed concurrently")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// KOTStore defines the DB methods the KOT service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type KOTStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	UpdateTableState(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error)
	GetNextKotSeq(ctx context.Context) (int32, error)
	CreateKot(ctx context.Context, arg database.CreateKotParams) (database.Kot, error)
	CreateKotItem(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error)
	GetKot(ctx context.Context, id uuid.UUID) (database.Kot, error)
	GetKotForUpdate(ctx context.Context, id uuid.UUID) (database.Kot, error)
	ListKotItemsByKot(ctx context.Context, kotID uuid.UUID) ([]database.KotItem, error)
	UpdateKotStatus(ctx context.Context, arg database.UpdateKotStatusParams) (database.Kot, error)
}

// NewKOTStore creates a KOTStore from a DBTX (pool or tx).
type NewKOTStore func(db database.DBTX) KOTStore

// SendToKitchenRequest turns a table's cart into a KOT.
type SendToKitchenRequest struct {
	TableID    uuid.UUID
	WaiterID   uuid.UUID
	WaiterName string
	Priority   string
	GuestCount int
	Items      []pos.LineItem
}

// KOTResult is a KOT with its items and, when it changed, its table.
type KOTResult struct {
	Kot   database.Kot
	Items []database.KotItem
	Table *database.DiningTable
}

func (r *KOTResult) View() KOTView {
	return NewKOTView(ToPosKOT(r.Kot, r.Items))
}

type KOTService struct {
	pool     TxBeginner
	newStore NewKOTStore
	notifier events.Notifier
}

func NewKOTService(pool TxBeginner, newStore NewKOTStore, notifier events.Notifier) *KOTService {
	if notifier == nil {
		notifier = events.Discard{}
	}
	return &KOTService{pool: pool, newStore: newStore, notifier: notifier}
}

// SendToKitchen creates a pending KOT from the cart lines and occupies the
// table. Retries up to maxKOTNumberRetries times when two sends race for
// the same ticket number.
func (s *KOTService) SendToKitchen(ctx context.Context, req SendToKitchenRequest) (*KOTResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	menuIDs := make([]uuid.UUID, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 || it.Quantity > pos.MaxLineQuantity {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(it.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		menuIDs[i] = id
	}
	if req.Priority != "" && !enum.IsPriority(req.Priority) {
		return nil, ErrInvalidPriority
	}
	if req.GuestCount < 0 {
		return nil, ErrInvalidGuestCount
	}
	priority := pos.NormalizePriority(req.Priority)

	var lastErr error
	for attempt := 0; attempt < maxKOTNumberRetries; attempt++ {
		result, err := s.sendTx(ctx, req, menuIDs, priority)
		if err == nil {
			view := result.View()
			s.notifier.Notify(ctx,
				events.Event{Type: events.TypeKOTCreated, Status: result.Kot.Status, Priority: priority, Payload: view},
				events.Event{Type: events.TypeTableUpdated, Payload: NewTableView(*result.Table)},
			)
			return result, nil
		}
		if isUniqueViolation(err, "kots_kot_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" && pgErr.ConstraintName == constraint
	}
	return false
}

func (s *KOTService) sendTx(ctx context.Context, req SendToKitchenRequest, menuIDs []uuid.UUID, priority string) (*KOTResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}
	pt := toPosTable(table)
	if pt.Status != enum.TableStatusAvailable && pt.Status != enum.TableStatusReserved {
		return nil, fmt.Errorf("table %s is %s: %w", pt.Number, pt.Status, pos.ErrTableBusy)
	}

	seq, err := store.GetNextKotSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next kot number: %w", err)
	}

	kot, err := store.CreateKot(ctx, database.CreateKotParams{
		KotNumber:   fmt.Sprintf("KOT-%03d", seq),
		Seq:         seq,
		TableID:     table.ID,
		TableNumber: table.TableNumber,
		Priority:    priority,
		WaiterID:    req.WaiterID,
		WaiterName:  req.WaiterName,
	})
	if err != nil {
		return nil, fmt.Errorf("create kot: %w", err)
	}

	items := make([]database.KotItem, 0, len(req.Items))
	for i, it := range req.Items {
		item, err := store.CreateKotItem(ctx, database.CreateKotItemParams{
			KotID:      kot.ID,
			MenuItemID: menuIDs[i],
			Position:   int32(i),
			Name:       it.Name,
			UnitPrice:  moneyToNumeric(it.Price),
			Quantity:   int32(it.Quantity),
			Notes:      optionalText(it.Note),
		})
		if err != nil {
			return nil, fmt.Errorf("create kot item: %w", err)
		}
		items = append(items, item)
	}

	if err := pos.Occupy(&pt, kot.ID.String(), req.WaiterName, req.GuestCount); err != nil {
		return nil, err
	}
	updated, err := store.UpdateTableState(ctx, tableStateParams(table.ID, pt, table.Status))
	if err != nil {
		return nil, fmt.Errorf("occupy table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &KOTResult{Kot: kot, Items: items, Table: &updated}, nil
}

// Advance moves the KOT one step along pending → preparing → ready → completed.
func (s *KOTService) Advance(ctx context.Context, id uuid.UUID) (*KOTResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetKot(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKOTNotFound
		}
		return nil, fmt.Errorf("get kot: %w", err)
	}

	k := pos.KOT{Status: current.Status}
	if err := pos.Advance(&k); err != nil {
		return nil, err
	}

	// Guarded update: only applies if nobody else moved it since we read it.
	updated, err := store.UpdateKotStatus(ctx, database.UpdateKotStatusParams{
		ID:       id,
		Status:   k.Status,
		Status_2: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update kot status: %w", err)
	}

	items, err := store.ListKotItemsByKot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list kot items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &KOTResult{Kot: updated, Items: items}
	s.notifier.Notify(ctx, events.Event{
		Type:     events.TypeKOTUpdated,
		Status:   updated.Status,
		Priority: updated.Priority,
		Payload:  result.View(),
	})
	return result, nil
}

// Cancel moves a pending or preparing KOT to cancelled and frees its table.
func (s *KOTService) Cancel(ctx context.Context, id uuid.UUID) (*KOTResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetKotForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKOTNotFound
		}
		return nil, fmt.Errorf("lock kot: %w", err)
	}

	k := pos.KOT{Status: current.Status}
	if err := pos.Cancel(&k); err != nil {
		return nil, err
	}

	updated, err := store.UpdateKotStatus(ctx, database.UpdateKotStatusParams{
		ID:       id,
		Status:   k.Status,
		Status_2: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update kot status: %w", err)
	}

	table, err := releaseTable(ctx, store, current.TableID, current.ID)
	if err != nil {
		return nil, err
	}

	items, err := store.ListKotItemsByKot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list kot items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &KOTResult{Kot: updated, Items: items, Table: table}
	evs := []events.Event{{
		Type:     events.TypeKOTCancelled,
		Status:   updated.Status,
		Priority: updated.Priority,
		Payload:  result.View(),
	}}
	if table != nil {
		evs = append(evs, events.Event{Type: events.TypeTableUpdated, Payload: NewTableView(*table)})
	}
	s.notifier.Notify(ctx, evs...)
	return result, nil
}

// tableReleaser is the subset of stores releaseTable needs.
type tableReleaser interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	UpdateTableState(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error)
}

// releaseTable frees the table if it still points at kotID. It returns nil
// when the table was left alone.
func releaseTable(ctx context.Context, store tableReleaser, tableID, kotID uuid.UUID) (*database.DiningTable, error) {
	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("lock table: %w", err)
	}
	if table.ActiveKotID != (pgtype.UUID{Bytes: kotID, Valid: true}) {
		return nil, nil
	}

	pt := toPosTable(table)
	if err := pos.Release(&pt); err != nil {
		return nil, err
	}
	updated, err := store.UpdateTableState(ctx, tableStateParams(table.ID, pt, table.Status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("release table: %w", err)
	}
	return &updated, nil
}
