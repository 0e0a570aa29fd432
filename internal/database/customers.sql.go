package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, name, phone, email, notes, is_active, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (Customer, error) {
	var i Customer
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Phone,
		&i.Email,
		&i.Notes,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCustomers = `-- name: ListCustomers :many
SELECT ` + customerColumns + ` FROM customers
WHERE is_active = TRUE
  AND ($1::text IS NULL
       OR name ILIKE '%' || $1 || '%'
       OR phone LIKE '%' || $1 || '%'
       OR email ILIKE '%' || $1 || '%')
ORDER BY name, phone
LIMIT $2 OFFSET $3
`

type ListCustomersParams struct {
	Search pgtype.Text `json:"search"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Customer{}
	for rows.Next() {
		i, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCustomer = `-- name: GetCustomer :one
SELECT ` + customerColumns + ` FROM customers
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, id))
}

const getCustomerByPhone = `-- name: GetCustomerByPhone :one
SELECT ` + customerColumns + ` FROM customers
WHERE phone = $1 AND is_active = TRUE
`

func (q *Queries) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByPhone, phone))
}

const createCustomer = `-- name: CreateCustomer :one
INSERT INTO customers (name, phone, email, notes)
VALUES ($1, $2, $3, $4)
RETURNING ` + customerColumns

type CreateCustomerParams struct {
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Email pgtype.Text `json:"email"`
	Notes pgtype.Text `json:"notes"`
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer,
		arg.Name,
		arg.Phone,
		arg.Email,
		arg.Notes,
	))
}

const updateCustomer = `-- name: UpdateCustomer :one
UPDATE customers SET
  name = $2,
  phone = $3,
  email = $4,
  notes = $5,
  updated_at = now()
WHERE id = $1 AND is_active = TRUE
RETURNING ` + customerColumns

type UpdateCustomerParams struct {
	ID    uuid.UUID   `json:"id"`
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Email pgtype.Text `json:"email"`
	Notes pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, updateCustomer,
		arg.ID,
		arg.Name,
		arg.Phone,
		arg.Email,
		arg.Notes,
	))
}

const deactivateCustomer = `-- name: DeactivateCustomer :execrows
UPDATE customers SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) DeactivateCustomer(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deactivateCustomer, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getCustomerStats = `-- name: GetCustomerStats :one
SELECT
  COUNT(*)::bigint                       AS total_orders,
  COALESCE(SUM(grand_total), 0)::numeric AS total_spent,
  MAX(created_at)::timestamptz           AS last_visit
FROM settlements
WHERE customer_id = $1
`

type GetCustomerStatsRow struct {
	TotalOrders int64              `json:"total_orders"`
	TotalSpent  pgtype.Numeric     `json:"total_spent"`
	LastVisit   pgtype.Timestamptz `json:"last_visit"`
}

func (q *Queries) GetCustomerStats(ctx context.Context, customerID pgtype.UUID) (GetCustomerStatsRow, error) {
	row := q.db.QueryRow(ctx, getCustomerStats, customerID)
	var i GetCustomerStatsRow
	err := row.Scan(&i.TotalOrders, &i.TotalSpent, &i.LastVisit)
	return i, err
}

const listCustomerSettlements = `-- name: ListCustomerSettlements :many
SELECT ` + settlementColumns + ` FROM settlements
WHERE customer_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListCustomerSettlementsParams struct {
	CustomerID pgtype.UUID `json:"customer_id"`
	Limit      int32       `json:"limit"`
	Offset     int32       `json:"offset"`
}

func (q *Queries) ListCustomerSettlements(ctx context.Context, arg ListCustomerSettlementsParams) ([]Settlement, error) {
	rows, err := q.db.Query(ctx, listCustomerSettlements, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Settlement{}
	for rows.Next() {
		i, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
