package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/events"
	"github.com/kiwari-pos/kot-api/internal/pos"
)

// Table actions exposed over HTTP.
const (
	TableActionReserve     = "reserve"
	TableActionUnreserve   = "unreserve"
	TableActionRequestBill = "request-bill"
)

var ErrUnknownTableAction = errors.New("unknown table action")

var tableActions = map[string]func(*pos.Table) error{
	TableActionReserve:     pos.Reserve,
	TableActionUnreserve:   pos.Unreserve,
	TableActionRequestBill: pos.RequestBill,
}

// TableStore is satisfied by *database.Queries.
type TableStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	UpdateTableState(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error)
}

type NewTableStore func(db database.DBTX) TableStore

// TableService applies the manual table moves. Occupy and release happen
// as part of sending and settling KOTs.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
	notifier events.Notifier
}

func NewTableService(pool TxBeginner, newStore NewTableStore, notifier events.Notifier) *TableService {
	if notifier == nil {
		notifier = events.Discard{}
	}
	return &TableService{pool: pool, newStore: newStore, notifier: notifier}
}

func (s *TableService) Apply(ctx context.Context, id uuid.UUID, action string) (*database.DiningTable, error) {
	move, ok := tableActions[action]
	if !ok {
		return nil, ErrUnknownTableAction
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}

	pt := toPosTable(table)
	if err := move(&pt); err != nil {
		return nil, err
	}

	updated, err := store.UpdateTableState(ctx, tableStateParams(table.ID, pt, table.Status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.Notify(ctx, events.Event{Type: events.TypeTableUpdated, Payload: NewTableView(updated)})
	return &updated, nil
}
