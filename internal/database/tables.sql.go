package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, table_number, seats, status, active_kot_id, waiter_name, guest_count, updated_at`

func scanDiningTable(row interface{ Scan(...any) error }) (DiningTable, error) {
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.TableNumber,
		&i.Seats,
		&i.Status,
		&i.ActiveKotID,
		&i.WaiterName,
		&i.GuestCount,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM dining_tables
WHERE ($1::text IS NULL OR status = $1::text)
  AND ($2::text IS NULL OR table_number ILIKE '%' || $2::text || '%')
ORDER BY table_number
`

type ListTablesParams struct {
	Status pgtype.Text `json:"status"`
	Search pgtype.Text `json:"search"`
}

func (q *Queries) ListTables(ctx context.Context, arg ListTablesParams) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables, arg.Status, arg.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DiningTable{}
	for rows.Next() {
		i, err := scanDiningTable(rows)
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

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM dining_tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM dining_tables
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (table_number, seats)
VALUES ($1, $2)
RETURNING ` + tableColumns

type CreateTableParams struct {
	TableNumber string `json:"table_number"`
	Seats       int32  `json:"seats"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, createTable, arg.TableNumber, arg.Seats))
}

const updateTableState = `-- name: UpdateTableState :one
UPDATE dining_tables
SET status = $2, active_kot_id = $3, waiter_name = $4, guest_count = $5, updated_at = now()
WHERE id = $1 AND status = $6
RETURNING ` + tableColumns

// UpdateTableStateParams.Status_2 is the status the caller read; the update
// only applies if the row still has it.
type UpdateTableStateParams struct {
	ID          uuid.UUID   `json:"id"`
	Status      string      `json:"status"`
	ActiveKotID pgtype.UUID `json:"active_kot_id"`
	WaiterName  pgtype.Text `json:"waiter_name"`
	GuestCount  pgtype.Int4 `json:"guest_count"`
	Status_2    string      `json:"status_2"`
}

func (q *Queries) UpdateTableState(ctx context.Context, arg UpdateTableStateParams) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, updateTableState,
		arg.ID,
		arg.Status,
		arg.ActiveKotID,
		arg.WaiterName,
		arg.GuestCount,
		arg.Status_2,
	))
}
