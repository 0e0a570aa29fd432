package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type MenuItem struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Category    string         `json:"category"`
	Price       pgtype.Numeric `json:"price"`
	IsAvailable bool           `json:"is_available"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Kot struct {
	ID          uuid.UUID `json:"id"`
	KotNumber   string    `json:"kot_number"`
	Seq         int32     `json:"seq"`
	TableID     uuid.UUID `json:"table_id"`
	TableNumber string    `json:"table_number"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	WaiterID    uuid.UUID `json:"waiter_id"`
	WaiterName  string    `json:"waiter_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type KotItem struct {
	ID         uuid.UUID      `json:"id"`
	KotID      uuid.UUID      `json:"kot_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Position   int32          `json:"position"`
	Name       string         `json:"name"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
	Quantity   int32          `json:"quantity"`
	Notes      pgtype.Text    `json:"notes"`
}

type DiningTable struct {
	ID          uuid.UUID   `json:"id"`
	TableNumber string      `json:"table_number"`
	Seats       int32       `json:"seats"`
	Status      string      `json:"status"`
	ActiveKotID pgtype.UUID `json:"active_kot_id"`
	WaiterName  pgtype.Text `json:"waiter_name"`
	GuestCount  pgtype.Int4 `json:"guest_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Settlement struct {
	ID              uuid.UUID      `json:"id"`
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
	CreatedAt       time.Time      `json:"created_at"`
}

type Customer struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	Email     pgtype.Text `json:"email"`
	Notes     pgtype.Text `json:"notes"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
