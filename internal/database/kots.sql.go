package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const kotColumns = `id, kot_number, seq, table_id, table_number, status, priority, waiter_id, waiter_name, created_at, updated_at`

func scanKot(row interface{ Scan(...any) error }) (Kot, error) {
	var i Kot
	err := row.Scan(
		&i.ID,
		&i.KotNumber,
		&i.Seq,
		&i.TableID,
		&i.TableNumber,
		&i.Status,
		&i.Priority,
		&i.WaiterID,
		&i.WaiterName,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextKotSeq = `-- name: GetNextKotSeq :one
SELECT COALESCE(MAX(seq), 0)::int + 1 FROM kots
`

func (q *Queries) GetNextKotSeq(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextKotSeq).Scan(&next)
	return next, err
}

const createKot = `-- name: CreateKot :one
INSERT INTO kots (kot_number, seq, table_id, table_number, priority, waiter_id, waiter_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + kotColumns

type CreateKotParams struct {
	KotNumber   string    `json:"kot_number"`
	Seq         int32     `json:"seq"`
	TableID     uuid.UUID `json:"table_id"`
	TableNumber string    `json:"table_number"`
	Priority    string    `json:"priority"`
	WaiterID    uuid.UUID `json:"waiter_id"`
	WaiterName  string    `json:"waiter_name"`
}

func (q *Queries) CreateKot(ctx context.Context, arg CreateKotParams) (Kot, error) {
	return scanKot(q.db.QueryRow(ctx, createKot,
		arg.KotNumber,
		arg.Seq,
		arg.TableID,
		arg.TableNumber,
		arg.Priority,
		arg.WaiterID,
		arg.WaiterName,
	))
}

const createKotItem = `-- name: CreateKotItem :one
INSERT INTO kot_items (kot_id, menu_item_id, position, name, unit_price, quantity, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, kot_id, menu_item_id, position, name, unit_price, quantity, notes
`

type CreateKotItemParams struct {
	KotID      uuid.UUID      `json:"kot_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Position   int32          `json:"position"`
	Name       string         `json:"name"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
	Quantity   int32          `json:"quantity"`
	Notes      pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateKotItem(ctx context.Context, arg CreateKotItemParams) (KotItem, error) {
	row := q.db.QueryRow(ctx, createKotItem,
		arg.KotID,
		arg.MenuItemID,
		arg.Position,
		arg.Name,
		arg.UnitPrice,
		arg.Quantity,
		arg.Notes,
	)
	var i KotItem
	err := row.Scan(
		&i.ID,
		&i.KotID,
		&i.MenuItemID,
		&i.Position,
		&i.Name,
		&i.UnitPrice,
		&i.Quantity,
		&i.Notes,
	)
	return i, err
}

const getKot = `-- name: GetKot :one
SELECT ` + kotColumns + ` FROM kots
WHERE id = $1
`

func (q *Queries) GetKot(ctx context.Context, id uuid.UUID) (Kot, error) {
	return scanKot(q.db.QueryRow(ctx, getKot, id))
}

const getKotForUpdate = `-- name: GetKotForUpdate :one
SELECT ` + kotColumns + ` FROM kots
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetKotForUpdate(ctx context.Context, id uuid.UUID) (Kot, error) {
	return scanKot(q.db.QueryRow(ctx, getKotForUpdate, id))
}

const listKots = `-- name: ListKots :many
SELECT ` + kotColumns + ` FROM kots
WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
  AND ($2::timestamptz IS NULL OR created_at >= $2::timestamptz)
ORDER BY created_at DESC
LIMIT $3
`

type ListKotsParams struct {
	Statuses []string           `json:"statuses"`
	Since    pgtype.Timestamptz `json:"since"`
	Limit    int32              `json:"limit"`
}

func (q *Queries) ListKots(ctx context.Context, arg ListKotsParams) ([]Kot, error) {
	statuses := arg.Statuses
	if statuses == nil {
		statuses = []string{}
	}
	rows, err := q.db.Query(ctx, listKots, statuses, arg.Since, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Kot{}
	for rows.Next() {
		i, err := scanKot(rows)
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

const listKotItemsByKot = `-- name: ListKotItemsByKot :many
SELECT id, kot_id, menu_item_id, position, name, unit_price, quantity, notes FROM kot_items
WHERE kot_id = $1
ORDER BY position
`

func (q *Queries) ListKotItemsByKot(ctx context.Context, kotID uuid.UUID) ([]KotItem, error) {
	rows, err := q.db.Query(ctx, listKotItemsByKot, kotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []KotItem{}
	for rows.Next() {
		var i KotItem
		if err := rows.Scan(
			&i.ID,
			&i.KotID,
			&i.MenuItemID,
			&i.Position,
			&i.Name,
			&i.UnitPrice,
			&i.Quantity,
			&i.Notes,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateKotStatus = `-- name: UpdateKotStatus :one
UPDATE kots
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + kotColumns

// UpdateKotStatusParams.Status_2 is the status the caller read; the update
// only applies if the row still has it.
type UpdateKotStatusParams struct {
	ID       uuid.UUID `json:"id"`
	Status   string    `json:"status"`
	Status_2 string    `json:"status_2"`
}

func (q *Queries) UpdateKotStatus(ctx context.Context, arg UpdateKotStatusParams) (Kot, error) {
	return scanKot(q.db.QueryRow(ctx, updateKotStatus, arg.ID, arg.Status, arg.Status_2))
}
