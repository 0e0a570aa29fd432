package service

import (
	"time"

	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/shopspring/decimal"
)

// Views are the JSON shapes shared by HTTP responses and realtime events.
// Money is always a fixed two-place string.

type KOTItemView struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note,omitempty"`
	LineTotal  string `json:"line_total"`
}

type KOTView struct {
	ID          string        `json:"id"`
	KOTNumber   string        `json:"kot_number"`
	TableID     string        `json:"table_id"`
	TableNumber string        `json:"table_number"`
	Status      string        `json:"status"`
	Priority    string        `json:"priority"`
	Waiter      string        `json:"waiter"`
	Items       []KOTItemView `json:"items"`
	Subtotal    string        `json:"subtotal"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewItemViews renders cart or KOT lines.
func NewItemViews(lines []pos.LineItem) []KOTItemView {
	items := make([]KOTItemView, len(lines))
	for i, it := range lines {
		items[i] = KOTItemView{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Price:      it.Price.StringFixed(2),
			Quantity:   it.Quantity,
			Note:       it.Note,
			LineTotal:  it.Total().StringFixed(2),
		}
	}
	return items
}

func NewKOTView(k pos.KOT) KOTView {
	items := NewItemViews(k.Items)
	return KOTView{
		ID:          k.ID,
		KOTNumber:   k.Number,
		TableID:     k.TableID,
		TableNumber: k.TableNumber,
		Status:      k.Status,
		Priority:    pos.NormalizePriority(k.Priority),
		Waiter:      k.Waiter,
		Items:       items,
		Subtotal:    pos.Subtotal(k.Items).StringFixed(2),
		CreatedAt:   k.CreatedAt,
	}
}

type TableView struct {
	ID          string `json:"id"`
	TableNumber string `json:"table_number"`
	Seats       int    `json:"seats"`
	Status      string `json:"status"`
	ActiveKOTID string `json:"active_kot_id,omitempty"`
	Waiter      string `json:"waiter,omitempty"`
	GuestCount  int    `json:"guest_count,omitempty"`
}

func NewTableView(t database.DiningTable) TableView {
	pt := toPosTable(t)
	return TableView{
		ID:          pt.ID,
		TableNumber: pt.Number,
		Seats:       pt.Seats,
		Status:      pt.Status,
		ActiveKOTID: pt.ActiveKOTID,
		Waiter:      pt.Waiter,
		GuestCount:  pt.Guests,
	}
}

type BillView struct {
	Subtotal        string  `json:"subtotal"`
	DiscountPercent string  `json:"discount_percent"`
	DiscountAmount  string  `json:"discount_amount"`
	TaxableAmount   string  `json:"taxable_amount"`
	CGSTRate        string  `json:"cgst_rate"`
	SGSTRate        string  `json:"sgst_rate"`
	CGST            string  `json:"cgst"`
	SGST            string  `json:"sgst"`
	TotalTax        string  `json:"total_tax"`
	GrandTotal      string  `json:"grand_total"`
	PaymentMethod   string  `json:"payment_method,omitempty"`
	AmountReceived  *string `json:"amount_received,omitempty"`
	Change          *string `json:"change,omitempty"`
}

func fixedPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func NewBillView(b pos.Bill) BillView {
	return BillView{
		Subtotal:        b.Subtotal.StringFixed(2),
		DiscountPercent: b.DiscountPercent.String(),
		DiscountAmount:  b.DiscountAmount.StringFixed(2),
		TaxableAmount:   b.TaxableAmount.StringFixed(2),
		CGSTRate:        b.CGSTRate.String(),
		SGSTRate:        b.SGSTRate.String(),
		CGST:            b.CGST.StringFixed(2),
		SGST:            b.SGST.StringFixed(2),
		TotalTax:        b.TotalTax.StringFixed(2),
		GrandTotal:      b.GrandTotal.StringFixed(2),
		PaymentMethod:   b.PaymentMethod,
		AmountReceived:  fixedPtr(b.AmountReceived),
		Change:          fixedPtr(b.Change),
	}
}

// SettlementBill rebuilds the bill figures stored with a settlement.
func SettlementBill(s database.Settlement) pos.Bill {
	b := pos.Bill{
		Subtotal:        NumericToDecimal(s.Subtotal),
		DiscountPercent: NumericToDecimal(s.DiscountPercent),
		DiscountAmount:  NumericToDecimal(s.DiscountAmount),
		TaxableAmount:   NumericToDecimal(s.TaxableAmount),
		CGSTRate:        NumericToDecimal(s.CgstRate),
		SGSTRate:        NumericToDecimal(s.SgstRate),
		CGST:            NumericToDecimal(s.CgstAmount),
		SGST:            NumericToDecimal(s.SgstAmount),
		GrandTotal:      NumericToDecimal(s.GrandTotal),
		PaymentMethod:   s.PaymentMethod,
	}
	b.TotalTax = b.CGST.Add(b.SGST)
	if s.AmountReceived.Valid {
		r := NumericToDecimal(s.AmountReceived)
		b.AmountReceived = &r
	}
	if s.ChangeAmount.Valid {
		c := NumericToDecimal(s.ChangeAmount)
		b.Change = &c
	}
	return b
}

type SettlementView struct {
	ID         string    `json:"id"`
	KOTID      string    `json:"kot_id"`
	BillNumber string    `json:"bill_number"`
	CustomerID *string   `json:"customer_id"`
	Bill       BillView  `json:"bill"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewSettlementView(s database.Settlement) SettlementView {
	v := SettlementView{
		ID:         s.ID.String(),
		KOTID:      s.KotID.String(),
		BillNumber: s.BillNumber,
		Bill:       NewBillView(SettlementBill(s)),
		CreatedAt:  s.CreatedAt,
	}
	if s.CustomerID.Valid {
		id := uuidString(s.CustomerID)
		v.CustomerID = &id
	}
	return v
}
