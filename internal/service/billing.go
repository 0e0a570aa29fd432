package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/events"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/shopspring/decimal"
)

// Errors returned by the billing service.
var (
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrNotBillable          = errors.New("kot is not ready for billing")
	ErrInsufficientCash     = errors.New("amount_received is less than grand total")
	ErrNotSettled           = errors.New("kot has no settlement")
	ErrCustomerNotFound     = errors.New("customer not found")
)

// BillingStore defines the DB methods the billing service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type BillingStore interface {
	GetKot(ctx context.Context, id uuid.UUID) (database.Kot, error)
	GetKotForUpdate(ctx context.Context, id uuid.UUID) (database.Kot, error)
	ListKotItemsByKot(ctx context.Context, kotID uuid.UUID) ([]database.KotItem, error)
	UpdateKotStatus(ctx context.Context, arg database.UpdateKotStatusParams) (database.Kot, error)
	GetSettlementByKot(ctx context.Context, kotID uuid.UUID) (database.Settlement, error)
	CreateSettlement(ctx context.Context, arg database.CreateSettlementParams) (database.Settlement, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	UpdateTableState(ctx context.Context, arg database.UpdateTableStateParams) (database.DiningTable, error)
}

type NewBillingStore func(db database.DBTX) BillingStore

// BillOptions are the cashier's inputs on top of the KOT's items.
type BillOptions struct {
	DiscountPercent decimal.Decimal
	PaymentMethod   string
	AmountReceived  decimal.Decimal
}

type SettleRequest struct {
	KotID       uuid.UUID
	ProcessedBy uuid.UUID
	// CustomerID optionally links the bill to a registered customer.
	CustomerID *uuid.UUID
	BillOptions
}

// BillResult is a computed (or stored) bill and the KOT it belongs to.
type BillResult struct {
	Kot        database.Kot
	Items      []database.KotItem
	Bill       pos.Bill
	Settlement *database.Settlement
	Table      *database.DiningTable
	// Replayed is set when Settle found an existing settlement.
	Replayed bool
}

type BillingService struct {
	pool     TxBeginner
	newStore NewBillingStore
	tax      pos.TaxConfig
	notifier events.Notifier
}

func NewBillingService(pool TxBeginner, newStore NewBillingStore, tax pos.TaxConfig, notifier events.Notifier) *BillingService {
	if notifier == nil {
		notifier = events.Discard{}
	}
	return &BillingService{pool: pool, newStore: newStore, tax: tax, notifier: notifier}
}

func (s *BillingService) compute(items []database.KotItem, opts BillOptions) pos.Bill {
	return pos.ComputeBill(pos.BillInput{
		Items:           toLineItems(items),
		DiscountPercent: opts.DiscountPercent,
		Tax:             s.tax,
		PaymentMethod:   opts.PaymentMethod,
		AmountReceived:  opts.AmountReceived,
	})
}

func validatePaymentMethod(m string) error {
	if m != "" && !enum.IsPaymentMethod(m) {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// Preview computes the bill for a KOT without writing anything. An
// existing settlement is returned instead of a fresh computation.
func (s *BillingService) Preview(ctx context.Context, kotID uuid.UUID, opts BillOptions) (*BillResult, error) {
	if err := validatePaymentMethod(opts.PaymentMethod); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	kot, err := store.GetKot(ctx, kotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKOTNotFound
		}
		return nil, fmt.Errorf("get kot: %w", err)
	}
	items, err := store.ListKotItemsByKot(ctx, kotID)
	if err != nil {
		return nil, fmt.Errorf("list kot items: %w", err)
	}

	existing, err := store.GetSettlementByKot(ctx, kotID)
	switch {
	case err == nil:
		return &BillResult{Kot: kot, Items: items, Bill: SettlementBill(existing), Settlement: &existing}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get settlement: %w", err)
	}

	return &BillResult{Kot: kot, Items: items, Bill: s.compute(items, opts)}, nil
}

// Settle records payment for a KOT. It is idempotent per KOT: a second call
// returns the first settlement unchanged with Replayed set. Settling
// completes a ready KOT and frees its table.
func (s *BillingService) Settle(ctx context.Context, req SettleRequest) (*BillResult, error) {
	if req.PaymentMethod == "" {
		return nil, ErrInvalidPaymentMethod
	}
	if err := validatePaymentMethod(req.PaymentMethod); err != nil {
		return nil, err
	}

	result, err := s.settleTx(ctx, req)
	if err != nil && isUniqueViolation(err, "settlements_kot_id_key") {
		// Lost a race with a concurrent settle; report the winner's row.
		return s.replay(ctx, req.KotID)
	}
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		evs := []events.Event{{Type: events.TypeBillSettled, Payload: NewSettlementView(*result.Settlement)}}
		if result.Table != nil {
			evs = append(evs, events.Event{Type: events.TypeTableUpdated, Payload: NewTableView(*result.Table)})
		}
		s.notifier.Notify(ctx, evs...)
	}
	return result, nil
}

func (s *BillingService) settleTx(ctx context.Context, req SettleRequest) (*BillResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	kot, err := store.GetKotForUpdate(ctx, req.KotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKOTNotFound
		}
		return nil, fmt.Errorf("lock kot: %w", err)
	}
	items, err := store.ListKotItemsByKot(ctx, req.KotID)
	if err != nil {
		return nil, fmt.Errorf("list kot items: %w", err)
	}

	existing, err := store.GetSettlementByKot(ctx, req.KotID)
	if err == nil {
		return &BillResult{Kot: kot, Items: items, Bill: SettlementBill(existing), Settlement: &existing, Replayed: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get settlement: %w", err)
	}

	if !pos.IsBillable(kot.Status) {
		return nil, fmt.Errorf("kot %s is %s: %w", kot.KotNumber, kot.Status, ErrNotBillable)
	}

	bill := s.compute(items, req.BillOptions)
	if req.PaymentMethod == enum.PaymentMethodCash && bill.AmountReceived.LessThan(bill.GrandTotal) {
		return nil, ErrInsufficientCash
	}

	params := database.CreateSettlementParams{
		KotID:           kot.ID,
		BillNumber:      "INV-" + kot.KotNumber,
		Subtotal:        moneyToNumeric(bill.Subtotal),
		DiscountPercent: decimalToNumeric(bill.DiscountPercent),
		DiscountAmount:  moneyToNumeric(bill.DiscountAmount),
		TaxableAmount:   moneyToNumeric(bill.TaxableAmount),
		CgstRate:        decimalToNumeric(bill.CGSTRate),
		SgstRate:        decimalToNumeric(bill.SGSTRate),
		CgstAmount:      moneyToNumeric(bill.CGST),
		SgstAmount:      moneyToNumeric(bill.SGST),
		GrandTotal:      moneyToNumeric(bill.GrandTotal),
		PaymentMethod:   bill.PaymentMethod,
		ProcessedBy:     req.ProcessedBy,
	}
	if req.CustomerID != nil {
		params.CustomerID = pgtype.UUID{Bytes: *req.CustomerID, Valid: true}
	}
	if bill.AmountReceived != nil {
		params.AmountReceived = moneyToNumeric(*bill.AmountReceived)
		params.ChangeAmount = moneyToNumeric(*bill.Change)
	}
	settlement, err := store.CreateSettlement(ctx, params)
	if err != nil {
		if isForeignKeyViolation(err, "settlements_customer_id_fkey") {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("create settlement: %w", err)
	}

	if kot.Status == enum.KOTStatusReady {
		kot, err = store.UpdateKotStatus(ctx, database.UpdateKotStatusParams{
			ID:       kot.ID,
			Status:   enum.KOTStatusCompleted,
			Status_2: enum.KOTStatusReady,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStatusConflict
			}
			return nil, fmt.Errorf("complete kot: %w", err)
		}
	}

	table, err := releaseTable(ctx, store, kot.TableID, kot.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &BillResult{Kot: kot, Items: items, Bill: bill, Settlement: &settlement, Table: table}, nil
}

func (s *BillingService) replay(ctx context.Context, kotID uuid.UUID) (*BillResult, error) {
	result, err := s.Preview(ctx, kotID, BillOptions{})
	if err != nil {
		return nil, err
	}
	if result.Settlement == nil {
		return nil, ErrNotSettled
	}
	result.Replayed = true
	return result, nil
}

// Receipt returns the stored settlement for a KOT, for printing.
func (s *BillingService) Receipt(ctx context.Context, kotID uuid.UUID) (*BillResult, error) {
	result, err := s.Preview(ctx, kotID, BillOptions{})
	if err != nil {
		return nil, err
	}
	if result.Settlement == nil {
		return nil, ErrNotSettled
	}
	return result, nil
}
