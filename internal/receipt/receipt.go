// Package receipt renders a settled bill as an 80mm thermal-style PDF.
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/shopspring/decimal"
)

const (
	pageWidth   = 80.0
	margin      = 4.0
	lineHeight  = 4.5
	baseHeight  = 120.0 // header, totals and footer
	contentWide = pageWidth - 2*margin
)

type Receipt struct {
	RestaurantName string
	GSTIN          string
	BillNumber     string
	KOTNumber      string
	TableNumber    string
	Waiter         string
	SettledAt      time.Time
	Items          []pos.LineItem
	Bill           pos.Bill
}

// Filename is the suggested download name, e.g. INV-KOT-001.pdf.
func (r Receipt) Filename() string {
	return r.BillNumber + ".pdf"
}

func Render(r Receipt) ([]byte, error) {
	height := baseHeight + float64(len(r.Items))*lineHeight*2
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: pageWidth, Ht: height},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	pdf.SetFont("Courier", "B", 11)
	pdf.CellFormat(contentWide, 6, safe(r.RestaurantName), "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	if r.GSTIN != "" {
		pdf.CellFormat(contentWide, lineHeight, "GSTIN: "+r.GSTIN, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(contentWide, lineHeight, "TAX INVOICE", "", 1, "C", false, 0, "")
	rule(pdf)

	pair(pdf, "Bill", r.BillNumber)
	pair(pdf, "KOT", r.KOTNumber)
	pair(pdf, "Table", r.TableNumber)
	pair(pdf, "Waiter", safe(r.Waiter))
	pair(pdf, "Date", r.SettledAt.Format("02 Jan 2006 15:04"))
	rule(pdf)

	pdf.SetFont("Courier", "B", 8)
	pdf.CellFormat(contentWide-30, lineHeight, "Item", "", 0, "L", false, 0, "")
	pdf.CellFormat(10, lineHeight, "Qty", "", 0, "R", false, 0, "")
	pdf.CellFormat(20, lineHeight, "Amount", "", 1, "R", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	for _, it := range r.Items {
		pdf.CellFormat(contentWide-30, lineHeight, truncate(it.Name, 22), "", 0, "L", false, 0, "")
		pdf.CellFormat(10, lineHeight, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, lineHeight, money(it.Total()), "", 1, "R", false, 0, "")
		if it.Note != "" {
			pdf.CellFormat(contentWide, lineHeight, "  ("+truncate(it.Note, 30)+")", "", 1, "L", false, 0, "")
		}
	}
	rule(pdf)

	b := r.Bill
	amount(pdf, "Subtotal", b.Subtotal)
	if b.DiscountAmount.IsPositive() {
		amount(pdf, fmt.Sprintf("Discount (%s%%)", b.DiscountPercent.String()), b.DiscountAmount.Neg())
	}
	amount(pdf, "Taxable", b.TaxableAmount)
	amount(pdf, fmt.Sprintf("CGST @ %s%%", percent(b.CGSTRate)), b.CGST)
	amount(pdf, fmt.Sprintf("SGST @ %s%%", percent(b.SGSTRate)), b.SGST)
	rule(pdf)

	pdf.SetFont("Courier", "B", 10)
	amount(pdf, "GRAND TOTAL", b.GrandTotal)
	pdf.SetFont("Courier", "", 8)
	pair(pdf, "Paid by", strings.ToUpper(b.PaymentMethod))
	if b.AmountReceived != nil {
		amount(pdf, "Received", *b.AmountReceived)
	}
	if b.Change != nil {
		amount(pdf, "Change", *b.Change)
	}
	rule(pdf)
	pdf.CellFormat(contentWide, lineHeight, "Thank you! Visit again.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func rule(pdf *gofpdf.Fpdf) {
	pdf.CellFormat(contentWide, 2, "", "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func pair(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(contentWide/2, lineHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(contentWide/2, lineHeight, value, "", 1, "R", false, 0, "")
}

func amount(pdf *gofpdf.Fpdf, label string, d decimal.Decimal) {
	pair(pdf, label, money(d))
}

// Core PDF fonts have no rupee glyph.
func money(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}

func percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String()
}

func safe(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}
