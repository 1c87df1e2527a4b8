// Package export writes datasets and monthly summaries out as XLSX
// workbooks, for users who want the raw numbers outside the dashboard.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
)

const (
	recordsSheet = "Records"
	summarySheet = "Summary"
)

// Workbook builds an XLSX with a Records sheet for the dataset and a
// Summary sheet for the monthly rollup, and writes it to w.
func Workbook(w io.Writer, ds *dataset.Dataset, summary budget.MonthlySummary) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), recordsSheet)
	if err := writeRecords(f, ds); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	if err := writeSummary(f, summary); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, ds *dataset.Dataset) error {
	header := []interface{}{"Date", "Class", "Value", "Description"}
	if err := f.SetSheetRow(recordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range ds.Records() {
		amount := rec.Amount.InexactFloat64()
		row := []interface{}{rec.Date.String(), rec.Category, amount, rec.Description}
		if rec.Malformed {
			row[2] = rec.RawAmount
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, summary budget.MonthlySummary) error {
	rows := [][]interface{}{
		{"Month", summary.Month},
		{"Total Spent", summary.TotalAmount.InexactFloat64()},
		{"Expected Revenue", summary.ExpectedRevenue.InexactFloat64()},
		{"Days Recorded", summary.DaysRecorded},
		{},
		{"Class", "Spent", "Budgeted"},
	}

	for _, class := range classOrder(summary) {
		rows = append(rows, []interface{}{
			class,
			summary.TotalByClass[class].InexactFloat64(),
			summary.ExpectedAmounts[class].InexactFloat64(),
		})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func classOrder(summary budget.MonthlySummary) []string {
	var known []string
	seen := make(map[string]bool)
	for _, class := range budget.DefaultClasses {
		if _, ok := summary.TotalByClass[class]; ok {
			known = append(known, class)
			seen[class] = true
		}
	}
	for class := range summary.TotalByClass {
		if !seen[class] {
			known = append(known, class)
		}
	}
	return known
}
