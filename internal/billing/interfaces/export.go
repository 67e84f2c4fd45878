package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

// BuildLedgerPDF renders a member statement.
func BuildLedgerPDF(ledger billing.Ledger, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Member Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Member: %s, %s (#%d)", ledger.Member.Surname, ledger.Member.GivenName, ledger.Member.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Document: %s", ledger.Member.DocumentID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total charged: %s", money.Format(ledger.TotalBruto)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total paid: %s", money.Format(ledger.TotalPagado)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Balance: %s", money.Format(ledger.TotalSaldo)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "State", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, month := range ledger.Months {
		for _, entry := range month.Entries {
			pdf.CellFormat(20, 6, month.Period.String(), "1", 0, "C", false, 0, "")
			pdf.CellFormat(85, 6, entry.Description, "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, string(entry.State), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, money.Format(entry.Delta), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(130, 6, fmt.Sprintf("Balance %s", month.Period), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money.Format(month.Balance), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		pdf.CellFormat(130, 6, fmt.Sprintf("Running balance %s", month.Period), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money.Format(month.Running), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerXLSX renders a member statement as one row per entry.
func BuildLedgerXLSX(ledger billing.Ledger) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := "statement"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(sheet, "A1", "Member")
	_ = f.SetCellValue(sheet, "B1", ledger.Member.Surname+", "+ledger.Member.GivenName)
	_ = f.SetCellValue(sheet, "A2", "Document")
	_ = f.SetCellValue(sheet, "B2", ledger.Member.DocumentID)
	_ = f.SetCellValue(sheet, "A3", "Total charged")
	_ = f.SetCellValue(sheet, "B3", ledger.TotalBruto.InexactFloat64())
	_ = f.SetCellValue(sheet, "A4", "Total paid")
	_ = f.SetCellValue(sheet, "B4", ledger.TotalPagado.InexactFloat64())
	_ = f.SetCellValue(sheet, "A5", "Balance")
	_ = f.SetCellValue(sheet, "B5", ledger.TotalSaldo.InexactFloat64())

	headers := []string{"Period", "Type", "Kind", "Description", "State", "Delta", "Reference"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 7)
		_ = f.SetCellValue(sheet, cell, header)
	}
	line := 8
	for _, month := range ledger.Months {
		for _, entry := range month.Entries {
			_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), month.Period.String())
			_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", line), entry.Type)
			_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", line), string(entry.Kind))
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", line), entry.Description)
			_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", line), string(entry.State))
			_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", line), entry.Delta.InexactFloat64())
			_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", line), entry.ReferenceCode)
			line++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDelinquencyXLSX renders the arrears report with a summary sheet.
func BuildDelinquencyXLSX(rows []billing.DelinquencyRow, totals billing.ReportTotals, filter billing.DelinquencyFilter) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	summarySheet := "summary"
	rowsSheet := "members"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(rowsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Delinquency Report")
	_ = f.SetCellValue(summarySheet, "A3", "State")
	_ = f.SetCellValue(summarySheet, "B3", string(filter.Normalize().State))
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", filter.From.String())
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", filter.To.String())
	_ = f.SetCellValue(summarySheet, "A6", "Members")
	_ = f.SetCellValue(summarySheet, "B6", totals.Members)
	_ = f.SetCellValue(summarySheet, "A7", "Charges")
	_ = f.SetCellValue(summarySheet, "B7", totals.Charges)
	_ = f.SetCellValue(summarySheet, "A8", "Outstanding")
	_ = f.SetCellValue(summarySheet, "B8", totals.Outstanding.InexactFloat64())

	headers := []string{"Member ID", "Surname", "Given name", "Document", "Charges", "Outstanding", "Oldest period"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(rowsSheet, cell, header)
	}
	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("A%d", line), row.Member.ID)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("B%d", line), row.Member.Surname)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("C%d", line), row.Member.GivenName)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("D%d", line), row.Member.DocumentID)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("E%d", line), row.Charges)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("F%d", line), row.Outstanding.InexactFloat64())
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("G%d", line), row.OldestPeriod.String())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
