// Package document renders and stores the invoice and shipping label for
// approved orders, as an asynchronous follow-up decoupled from the approval
// itself.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/domicile785-droid/Cycle-World/internal/order"
)

const (
	companyName    = "Cycle World Pvt Ltd"
	companyStreet  = "Plot 42, Okhla Industrial Estate, Phase III"
	companyCity    = "New Delhi, Delhi 110020"
	companyTaxLine = "GSTIN: 07AABCC1234D1Z5"
)

// InvoiceNumber is derived from the order id so replayed document jobs
// produce the same number.
func InvoiceNumber(orderID string) string {
	return "CW-INV-" + strings.ToUpper(tail(orderID, 6))
}

// TrackingNumber is likewise stable per order.
func TrackingNumber(orderID string) string {
	compact := strings.ReplaceAll(orderID, "-", "")
	return "CW-TRK-" + strings.ToUpper(tail(compact, 10))
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// RenderInvoice produces the invoice PDF for an order. It is a pure function
// of the order data: on error no bytes are returned.
func RenderInvoice(detail *order.Detail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	const margin = 20.0

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(79, 70, 229)
	pdf.Text(margin, 25, companyName)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.Text(margin, 32, companyStreet)
	pdf.Text(margin, 37, companyCity)
	pdf.Text(margin, 42, companyTaxLine)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(140, 25, "INVOICE: "+InvoiceNumber(detail.Order.ID))
	pdf.Text(140, 32, "Date: "+detail.Order.CreatedAt.Format("02 Jan 2006"))
	pdf.Text(140, 39, "Order ID: #"+head(detail.Order.ID, 8))

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.Text(margin, 60, "BILL TO:")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(margin, 64)
	pdf.MultiCell(80, 5, detail.Order.ShippingAddress, "", "L", false)
	pdf.Text(margin, 92, "Mobile: "+orDefault(detail.Order.CustomerMobile, "N/A"))

	pdf.SetXY(margin, 100)
	pdf.SetFillColor(79, 70, 229)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(80, 8, "Product Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Total", "1", 1, "R", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, it := range detail.Items {
		pdf.SetX(margin)
		pdf.CellFormat(80, 8, it.ProductName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", it.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 8, formatPrice(it.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, formatPrice(it.Price*it.Quantity), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetX(margin)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(135, 8, "Grand Total:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, formatPrice(detail.Order.TotalPrice), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderShippingLabel produces the A6 shipping label with a QR code of the
// order id.
func RenderShippingLabel(detail *order.Detail) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 105, Ht: 148},
	})
	pdf.AddPage()

	const margin = 10.0

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(margin, 15, "ORDER ID")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(margin, 22, "#"+strings.ToUpper(head(detail.Order.ID, 12)))

	png, err := qrcode.Encode(detail.Order.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("order-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("order-qr", 65, 10, 30, 30, false, opts, 0, "")

	pdf.Line(margin, 45, 95, 45)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(margin, 52, "SHIP TO:")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(margin, 56)
	pdf.MultiCell(85, 5, detail.Order.ShippingAddress, "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(margin, 135, "Tracking: "+TrackingNumber(detail.Order.ID))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render shipping label: %w", err)
	}
	return buf.Bytes(), nil
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func formatPrice(v int64) string {
	return fmt.Sprintf("Rs %d", v)
}
