package invoice

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Invoices"

var exportHeaders = []string{
	"Invoice Date",
	"Invoice ID",
	"Vendor",
	"Customer",
	"Category",
	"Status",
	"Due Date",
	"Payment Date",
	"Currency",
	"Total",
	"Tax",
	"File",
}

// ExportXLSX renders the invoices matching filter as an XLSX workbook, in
// the same order ListInvoices returns them
func (s *Service) ExportXLSX(workspaceID string, filter AnalyticsFilter) ([]byte, error) {
	invoices, err := s.ListInvoices(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("exporting invoices: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	row := 2
	for _, inv := range invoices {
		if !filter.matches(inv) {
			continue
		}
		values := []any{
			inv.InvoiceDate.Format("2006-01-02"),
			deref(inv.InvoiceNumber),
			inv.VendorName,
			inv.CustomerName,
			inv.Category,
			string(inv.Status),
			formatDate(inv.DueDate),
			formatDate(inv.PaymentDate),
			inv.Currency,
			inv.InvoiceTotal,
			optionalCell(inv.TotalTax),
			inv.OriginalFileName,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", row, err)
			}
		}
		row++
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 14)
	_ = f.SetColWidth(exportSheet, "C", "D", 28)
	_ = f.SetColWidth(exportSheet, "E", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func optionalCell(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}
