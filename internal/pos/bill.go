package pos

import (
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Precision of the stored bill inputs. A bill is computed from the rounded
// values so that the persisted inputs reproduce the persisted amounts.
const (
	DiscountPlaces = 2
	RatePlaces     = 4
)

// TaxConfig holds the GST split as fractions (0.025 = 2.5%).
type TaxConfig struct {
	CGSTRate decimal.Decimal
	SGSTRate decimal.Decimal
}

// DefaultTaxConfig is 2.5% CGST + 2.5% SGST.
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{
		CGSTRate: decimal.RequireFromString("0.025"),
		SGSTRate: decimal.RequireFromString("0.025"),
	}
}

// BillInput is everything a bill is derived from. Keep it alongside a
// settled bill to reproduce it later.
type BillInput struct {
	Items           []LineItem
	DiscountPercent decimal.Decimal
	Tax             TaxConfig
	PaymentMethod   string
	// AmountReceived is only read for cash.
	AmountReceived decimal.Decimal
}

// Bill is the computed view over a BillInput.
type Bill struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxableAmount   decimal.Decimal
	CGSTRate        decimal.Decimal
	SGSTRate        decimal.Decimal
	CGST            decimal.Decimal
	SGST            decimal.Decimal
	TotalTax        decimal.Decimal
	GrandTotal      decimal.Decimal
	PaymentMethod   string
	// AmountReceived and Change are nil unless the method is cash.
	AmountReceived *decimal.Decimal
	Change         *decimal.Decimal
}

// ClampDiscount limits a discount percent to [0, 100] and rounds it to
// DiscountPlaces.
func ClampDiscount(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p.Round(DiscountPlaces)
}

// ComputeBill derives a bill. Each component is rounded to the paisa and the
// grand total is the exact sum of the rounded taxable amount and taxes.
func ComputeBill(in BillInput) Bill {
	pct := ClampDiscount(in.DiscountPercent)
	cgstRate := in.Tax.CGSTRate.Round(RatePlaces)
	sgstRate := in.Tax.SGSTRate.Round(RatePlaces)

	subtotal := Subtotal(in.Items).Round(CurrencyPlaces)
	discount := subtotal.Mul(pct).Div(hundred).Round(CurrencyPlaces)
	taxable := subtotal.Sub(discount)
	cgst := taxable.Mul(cgstRate).Round(CurrencyPlaces)
	sgst := taxable.Mul(sgstRate).Round(CurrencyPlaces)
	totalTax := cgst.Add(sgst)
	grand := taxable.Add(totalTax)

	b := Bill{
		Subtotal:        subtotal,
		DiscountPercent: pct,
		DiscountAmount:  discount,
		TaxableAmount:   taxable,
		CGSTRate:        cgstRate,
		SGSTRate:        sgstRate,
		CGST:            cgst,
		SGST:            sgst,
		TotalTax:        totalTax,
		GrandTotal:      grand,
		PaymentMethod:   in.PaymentMethod,
	}

	if in.PaymentMethod == enum.PaymentMethodCash {
		received := in.AmountReceived.Round(CurrencyPlaces)
		change := decimal.Max(decimal.Zero, received.Sub(grand))
		b.AmountReceived = &received
		b.Change = &change
	}
	return b
}
