// Package receipt renders the pickup ticket of an order as a PDF with a QR
// code the counter scans at pickup.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"optimeal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrNotPickable = errors.New("order cannot be picked up")

// Payload is the QR content: order:<id>|<shift>.
func Payload(o models.Order) string {
	return fmt.Sprintf("order:%d|%s", o.ID, o.Shift)
}

func price(n int64) string {
	return fmt.Sprintf("$ %d", n)
}

// Render writes the ticket for o. Cancelled orders have no ticket.
func Render(w io.Writer, o models.Order) error {
	if o.Status == models.OrderCancelled {
		return ErrNotPickable
	}

	qrPNG, err := qrcode.Encode(Payload(o), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Order #%d", o.ID))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Status: "+string(o.Status))
	pdf.Ln(6)
	if o.Shift != "" {
		pdf.Cell(0, 7, "Pickup shift: "+o.Shift)
		pdf.Ln(6)
	}
	if !o.PickUpTime.IsZero() {
		pdf.Cell(0, 7, "Pickup time: "+o.PickUpTime.Format(time.DateTime))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 98, 12, 36, 36, false, imageOpts, 0, "")

	pdf.SetY(52)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 7, "Item", "B", 0, "", false, 0, "")
	pdf.CellFormat(15, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Price", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, it := range o.OrderItems {
		name := it.Product.Name
		if it.Side != nil {
			name += " + " + it.Side.Name
		}
		pdf.CellFormat(90, 6, tr(name), "", 0, "", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprint(it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, price(it.Price*int64(it.Quantity)), "", 1, "R", false, 0, "")
		if it.Notes != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(130, 5, tr("  "+it.Notes), "", 1, "", false, 0, "")
			pdf.SetFont("Arial", "", 10)
		}
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(105, 8, "Total", "T", 0, "", false, 0, "")
	pdf.CellFormat(25, 8, price(o.TotalPrice), "T", 1, "R", false, 0, "")

	return pdf.Output(w)
}
