package billing

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// Exporter renders invoices as XLSX workbooks for download
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new invoice exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export builds a single-sheet workbook for the invoice: a header block,
// one row per billing event line, and a totals footer.
func (ex *Exporter) Export(inv *entity.Invoice, company *entity.Company, events []*entity.BillingEvent) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Invoice"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		ex.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	ex.setCell(f, sheet, "A1", "Invoice")
	ex.setCell(f, sheet, "A2", "Number")
	ex.setCell(f, sheet, "B2", inv.Number)
	ex.setCell(f, sheet, "A3", "Company")
	ex.setCell(f, sheet, "B3", company.Name)
	ex.setCell(f, sheet, "A4", "Period")
	ex.setCell(f, sheet, "B4", fmt.Sprintf("%s to %s",
		inv.PeriodStart.Format("2006-01-02"), inv.PeriodEnd.Format("2006-01-02")))
	ex.setCell(f, sheet, "A5", "Status")
	ex.setCell(f, sheet, "B5", inv.Status)
	ex.setCell(f, sheet, "A6", "Payment terms")
	ex.setCell(f, sheet, "B6", fmt.Sprintf("Net %d days", company.PaymentTermsDays))

	headerRow := 8
	for col, title := range []string{"Date", "Type", "Description", "Quantity", "Unit Amount", "Line Total"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		ex.setCell(f, sheet, cell, title)
	}

	row := headerRow + 1
	for _, ev := range events {
		values := []interface{}{
			ev.CreatedAt.Format("2006-01-02"),
			ev.EventType,
			ev.Description,
			ev.Quantity,
			centsToDollars(ev.AmountCents),
			centsToDollars(ev.LineTotalCents()),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			ex.setCell(f, sheet, cell, v)
		}
		row++
	}

	row++
	for _, line := range []struct {
		label string
		cents int64
	}{
		{"Subtotal", inv.SubtotalCents},
		{"Discount", inv.DiscountCents},
		{"Tax", inv.TaxCents},
		{"Total", inv.TotalCents},
	} {
		labelCell, _ := excelize.CoordinatesToCellName(5, row)
		valueCell, _ := excelize.CoordinatesToCellName(6, row)
		ex.setCell(f, sheet, labelCell, line.label)
		ex.setCell(f, sheet, valueCell, centsToDollars(line.cents))
		row++
	}

	ex.logger.Info("Invoice workbook built",
		zap.String("number", inv.Number),
		zap.Int("lines", len(events)))

	return f, nil
}

func (ex *Exporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		ex.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
