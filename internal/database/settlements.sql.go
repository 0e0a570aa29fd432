package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const settlementColumns = `id, kot_id, bill_number, subtotal, discount_percent, discount_amount, taxable_amount,
  cgst_rate, sgst_rate, cgst_amount, sgst_amount, grand_total, payment_method, amount_received,
  change_amount, processed_by, customer_id, created_at`

func scanSettlement(row interface{ Scan(...any) error }) (Settlement, error) {
	var i Settlement
	err := row.Scan(
		&i.ID,
		&i.KotID,
		&i.BillNumber,
		&i.Subtotal,
		&i.DiscountPercent,
		&i.DiscountAmount,
		&i.TaxableAmount,
		&i.CgstRate,
		&i.SgstRate,
		&i.CgstAmount,
		&i.SgstAmount,
		&i.GrandTotal,
		&i.PaymentMethod,
		&i.AmountReceived,
		&i.ChangeAmount,
		&i.ProcessedBy,
		&i.CustomerID,
		&i.CreatedAt,
	)
	return i, err
}

const getSettlementByKot = `-- name: GetSettlementByKot :one
SELECT ` + settlementColumns + ` FROM settlements
WHERE kot_id = $1
`

func (q *Queries) GetSettlementByKot(ctx context.Context, kotID uuid.UUID) (Settlement, error) {
	return scanSettlement(q.db.QueryRow(ctx, getSettlementByKot, kotID))
}

const createSettlement = `-- name: CreateSettlement :one
INSERT INTO settlements (
  kot_id, bill_number, subtotal, discount_percent, discount_amount, taxable_amount,
  cgst_rate, sgst_rate, cgst_amount, sgst_amount, grand_total, payment_method,
  amount_received, change_amount, processed_by, customer_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + settlementColumns

type CreateSettlementParams struct {
	KotID           uuid.UUID      `json:"kot_id"`
	BillNumber      string         `json:"bill_number"`
	Subtotal        pgtype.Numeric `json:"subtotal"`
	DiscountPercent pgtype.Numeric `json:"discount_percent"`
	DiscountAmount  pgtype.Numeric `json:"discount_amount"`
	TaxableAmount   pgtype.Numeric `json:"taxable_amount"`
	CgstRate        pgtype.Numeric `json:"cgst_rate"`
	SgstRate        pgtype.Numeric `json:"sgst_rate"`
	CgstAmount      pgtype.Numeric `json:"cgst_amount"`
	SgstAmount      pgtype.Numeric `json:"sgst_amount"`
	GrandTotal      pgtype.Numeric `json:"grand_total"`
	PaymentMethod   string         `json:"payment_method"`
	AmountReceived  pgtype.Numeric `json:"amount_received"`
	ChangeAmount    pgtype.Numeric `json:"change_amount"`
	ProcessedBy     uuid.UUID      `json:"processed_by"`
	CustomerID      pgtype.UUID    `json:"customer_id"`
}

func (q *Queries) CreateSettlement(ctx context.Context, arg CreateSettlementParams) (Settlement, error) {
	return scanSettlement(q.db.QueryRow(ctx, createSettlement,
		arg.KotID,
		arg.BillNumber,
		arg.Subtotal,
		arg.DiscountPercent,
		arg.DiscountAmount,
		arg.TaxableAmount,
		arg.CgstRate,
		arg.SgstRate,
		arg.CgstAmount,
		arg.SgstAmount,
		arg.GrandTotal,
		arg.PaymentMethod,
		arg.AmountReceived,
		arg.ChangeAmount,
		arg.ProcessedBy,
		arg.CustomerID,
	))
}
