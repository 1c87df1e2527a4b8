package export

import (
	"bytes"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
	"github.com/dvloznov/finance-dashboard/internal/domain"
)

func TestWorkbook(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 1, Day: 15}
	ds := dataset.New([]string{"Data", "Class", "Value"}, []domain.Record{
		{Date: d, Category: "Mercado", Amount: decimal.NewFromFloat(120.50), Description: "groceries"},
		{Date: d, Category: "Lazer", Malformed: true, RawAmount: "abc"},
	})
	summary := budget.MonthlySummary{
		Month:           "2024-01",
		TotalAmount:     decimal.NewFromFloat(120.50),
		TotalByClass:    map[string]decimal.Decimal{"Mercado": decimal.NewFromFloat(120.50)},
		ExpectedAmounts: map[string]decimal.Decimal{"Mercado": decimal.NewFromInt(1250)},
		ExpectedRevenue: decimal.NewFromInt(5000),
		DaysRecorded:    1,
	}

	var buf bytes.Buffer
	if err := Workbook(&buf, ds, summary); err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(recordsSheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", recordsSheet, err)
	}
	if len(rows) != 3 {
		t.Fatalf("Records rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][1] != "Class" {
		t.Errorf("Header = %v", rows[0])
	}
	if rows[1][1] != "Mercado" {
		t.Errorf("Row 1 class = %s, want Mercado", rows[1][1])
	}
	// Malformed amounts keep their raw text.
	if rows[2][2] != "abc" {
		t.Errorf("Malformed value = %s, want abc", rows[2][2])
	}

	sum, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", summarySheet, err)
	}
	if sum[0][1] != "2024-01" {
		t.Errorf("Summary month = %s, want 2024-01", sum[0][1])
	}
}
