package payment

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// FormatAmount renders minor units as "INR 500.00".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, minor/100, minor%100)
}

// RenderReceipt draws a single-page A4 receipt.
func RenderReceipt(r Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 12, "Event Registration Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Receipt No: "+r.ReceiptNumber, "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+r.PaidAt.Format("2006-01-02 15:04"), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Attendee", r.AttendeeName},
		{"Email", r.AttendeeEmail},
		{"Event", r.EventName},
		{"Event Date", r.EventDate},
		{"Venue", r.Venue},
		{"Order ID", r.OrderID},
		{"Payment ID", r.PaymentID},
		{"Method", r.Method},
		{"Amount Paid", FormatAmount(r.Amount, r.Currency)},
	}

	widths := []float64{50, 130}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(widths[0], 8, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(widths[1], 8, row[1], "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This is a system generated receipt.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
