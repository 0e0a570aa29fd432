// Package pos holds the order, kitchen ticket, billing, and table rules of
// the restaurant. Everything here is pure: callers load state, apply an
// operation, and persist the result.
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every produced money figure is rounded to.
const CurrencyPlaces = 2

// MaxLineQuantity caps the quantity of a single cart or KOT line.
const MaxLineQuantity = 999

// MenuItem is catalog reference data. The order flow only reads it.
type MenuItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Category  string
	Available bool
}

// LineItem is one menu item in a cart or KOT. Name and price are copied
// from the menu when the item is first added, so later menu edits do not
// change an order already being built.
type LineItem struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Note       string          `json:"note"`
}

// Total is price × quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart accumulates line items for one table before they are sent to the kitchen.
// Line ids are menu item ids.
type Cart struct {
	TableID   string     `json:"table_id"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for the table.
func NewCart(tableID string) *Cart {
	return &Cart{TableID: tableID, Items: []LineItem{}}
}

// AddItem increments the line for m, or appends a new line with quantity 1.
// A line already at MaxLineQuantity is left unchanged.
func (c *Cart) AddItem(m MenuItem) {
	if i := c.indexOf(m.ID); i >= 0 {
		if c.Items[i].Quantity >= MaxLineQuantity {
			return
		}
		c.Items[i].Quantity++
		c.touch()
		return
	}
	c.Items = append(c.Items, LineItem{
		MenuItemID: m.ID,
		Name:       m.Name,
		Price:      m.Price,
		Quantity:   1,
	})
	c.touch()
}

// UpdateQuantity sets the quantity of a line. Zero or negative removes it;
// values above MaxLineQuantity are clamped.
func (c *Cart) UpdateQuantity(lineID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(lineID)
		return
	}
	quantity = min(quantity, MaxLineQuantity)
	if i := c.indexOf(lineID); i >= 0 {
		c.Items[i].Quantity = quantity
		c.touch()
	}
}

// UpdateNote replaces the free-text note of a line.
func (c *Cart) UpdateNote(lineID, note string) {
	if i := c.indexOf(lineID); i >= 0 {
		c.Items[i].Note = note
		c.touch()
	}
}

// RemoveItem drops a line. Absent ids are ignored.
func (c *Cart) RemoveItem(lineID string) {
	i := c.indexOf(lineID)
	if i < 0 {
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.touch()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Subtotal is the sum of price × quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.Items)
}

// Snapshot returns a copy of the lines, safe to hand to a KOT.
func (c *Cart) Snapshot() []LineItem {
	out := make([]LineItem, len(c.Items))
	copy(out, c.Items)
	return out
}

// Subtract removes the quantities in sent from the cart. Lines that reach
// zero are dropped; lines added or raised since the snapshot keep the
// difference.
func (c *Cart) Subtract(sent []LineItem) {
	for _, s := range sent {
		i := c.indexOf(s.MenuItemID)
		if i < 0 {
			continue
		}
		if c.Items[i].Quantity <= s.Quantity {
			c.RemoveItem(s.MenuItemID)
			continue
		}
		c.Items[i].Quantity -= s.Quantity
		c.touch()
	}
}

// Subtotal sums price × quantity over items.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total())
	}
	return sum
}

func (c *Cart) indexOf(lineID string) int {
	for i, it := range c.Items {
		if it.MenuItemID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
