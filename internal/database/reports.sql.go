package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getSalesSummary = `-- name: GetSalesSummary :one
SELECT
  COUNT(*)::bigint                              AS bill_count,
  COALESCE(SUM(subtotal), 0)::numeric           AS gross_sales,
  COALESCE(SUM(discount_amount), 0)::numeric    AS total_discount,
  COALESCE(SUM(cgst_amount + sgst_amount), 0)::numeric AS total_tax,
  COALESCE(SUM(grand_total), 0)::numeric        AS net_revenue
FROM settlements
WHERE created_at >= $1 AND created_at < $2
`

type GetSalesSummaryParams struct {
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	CreatedAt_2 pgtype.Timestamptz `json:"created_at_2"`
}

type GetSalesSummaryRow struct {
	BillCount     int64          `json:"bill_count"`
	GrossSales    pgtype.Numeric `json:"gross_sales"`
	TotalDiscount pgtype.Numeric `json:"total_discount"`
	TotalTax      pgtype.Numeric `json:"total_tax"`
	NetRevenue    pgtype.Numeric `json:"net_revenue"`
}

func (q *Queries) GetSalesSummary(ctx context.Context, arg GetSalesSummaryParams) (GetSalesSummaryRow, error) {
	row := q.db.QueryRow(ctx, getSalesSummary, arg.CreatedAt, arg.CreatedAt_2)
	var i GetSalesSummaryRow
	err := row.Scan(
		&i.BillCount,
		&i.GrossSales,
		&i.TotalDiscount,
		&i.TotalTax,
		&i.NetRevenue,
	)
	return i, err
}

const getPaymentSummary = `-- name: GetPaymentSummary :many
SELECT payment_method, COUNT(*)::bigint AS bill_count, SUM(grand_total)::numeric AS total_amount
FROM settlements
WHERE created_at >= $1 AND created_at < $2
GROUP BY payment_method
ORDER BY total_amount DESC
`

type GetPaymentSummaryParams struct {
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	CreatedAt_2 pgtype.Timestamptz `json:"created_at_2"`
}

type GetPaymentSummaryRow struct {
	PaymentMethod string         `json:"payment_method"`
	BillCount     int64          `json:"bill_count"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg GetPaymentSummaryParams) ([]GetPaymentSummaryRow, error) {
	rows, err := q.db.Query(ctx, getPaymentSummary, arg.CreatedAt, arg.CreatedAt_2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetPaymentSummaryRow{}
	for rows.Next() {
		var i GetPaymentSummaryRow
		if err := rows.Scan(&i.PaymentMethod, &i.BillCount, &i.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getItemSales = `-- name: GetItemSales :many
SELECT ki.menu_item_id::text, ki.name, SUM(ki.quantity)::bigint AS quantity_sold,
  SUM(ki.unit_price * ki.quantity)::numeric AS total_revenue
FROM settlements s
JOIN kot_items ki ON ki.kot_id = s.kot_id
WHERE s.created_at >= $1 AND s.created_at < $2
GROUP BY ki.menu_item_id, ki.name
ORDER BY quantity_sold DESC, total_revenue DESC
LIMIT $3
`

type GetItemSalesParams struct {
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	CreatedAt_2 pgtype.Timestamptz `json:"created_at_2"`
	Limit       int32              `json:"limit"`
}

type GetItemSalesRow struct {
	MenuItemID   string         `json:"menu_item_id"`
	Name         string         `json:"name"`
	QuantitySold int64          `json:"quantity_sold"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
}

func (q *Queries) GetItemSales(ctx context.Context, arg GetItemSalesParams) ([]GetItemSalesRow, error) {
	rows, err := q.db.Query(ctx, getItemSales, arg.CreatedAt, arg.CreatedAt_2, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetItemSalesRow{}
	for rows.Next() {
		var i GetItemSalesRow
		if err := rows.Scan(&i.MenuItemID, &i.Name, &i.QuantitySold, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
