package service

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a database NUMERIC. NULL and NaN read as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// decimalToNumeric keeps full precision. Tax rates need more than 2 places.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func moneyToNumeric(d decimal.Decimal) pgtype.Numeric {
	return decimalToNumeric(d.Round(pos.CurrencyPlaces))
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// toPosTable maps a row onto the domain type the table rules operate on.
func toPosTable(t database.DiningTable) pos.Table {
	return pos.Table{
		ID:          t.ID.String(),
		Number:      t.TableNumber,
		Seats:       int(t.Seats),
		Status:      t.Status,
		ActiveKOTID: uuidString(t.ActiveKotID),
		Waiter:      t.WaiterName.String,
		Guests:      int(t.GuestCount.Int32),
	}
}

// tableStateParams builds a guarded update from the table's new state;
// prevStatus is the status that was read.
func tableStateParams(id uuid.UUID, t pos.Table, prevStatus string) database.UpdateTableStateParams {
	p := database.UpdateTableStateParams{
		ID:         id,
		Status:     t.Status,
		WaiterName: optionalText(t.Waiter),
		Status_2:   prevStatus,
	}
	if kid, err := uuid.Parse(t.ActiveKOTID); err == nil {
		p.ActiveKotID = pgtype.UUID{Bytes: kid, Valid: true}
	}
	if t.Guests > 0 {
		p.GuestCount = pgtype.Int4{Int32: int32(t.Guests), Valid: true}
	}
	return p
}

func toLineItems(items []database.KotItem) []pos.LineItem {
	out := make([]pos.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, pos.LineItem{
			MenuItemID: it.MenuItemID.String(),
			Name:       it.Name,
			Price:      NumericToDecimal(it.UnitPrice),
			Quantity:   int(it.Quantity),
			Note:       it.Notes.String,
		})
	}
	return out
}

// ToPosKOT maps a KOT row and its items onto the domain type.
func ToPosKOT(k database.Kot, items []database.KotItem) pos.KOT {
	return pos.KOT{
		ID:          k.ID.String(),
		Number:      k.KotNumber,
		TableID:     k.TableID.String(),
		TableNumber: k.TableNumber,
		Items:       toLineItems(items),
		Status:      k.Status,
		Priority:    k.Priority,
		Waiter:      k.WaiterName,
		CreatedAt:   k.CreatedAt,
	}
}
