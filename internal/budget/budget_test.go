package budget

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/dataset"
	"github.com/dvloznov/finance-dashboard/internal/domain"
)

func TestValidatePercentages(t *testing.T) {
	tests := []struct {
		name        string
		percentages map[string]float64
		wantErr     bool
	}{
		{
			name:        "normal split",
			percentages: map[string]float64{"Mercado": 25, "Aluguel": 20, "Lazer": 10},
			wantErr:     false,
		},
		{
			name:        "exactly at cap",
			percentages: map[string]float64{"A": 100, "B": 50},
			wantErr:     false,
		},
		{
			name:        "over cap",
			percentages: map[string]float64{"A": 100, "B": 51},
			wantErr:     true,
		},
		{
			name:        "negative percentage",
			percentages: map[string]float64{"A": -5},
			wantErr:     true,
		},
		{
			name:        "empty split",
			percentages: map[string]float64{},
			wantErr:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePercentages(tt.percentages)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePercentages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpectedAmounts(t *testing.T) {
	settings := Settings{
		MonthlyExpectedRevenue: decimal.NewFromInt(5000),
		ClassPercentages:       map[string]float64{"Mercado": 25.0, "Internet": 2.0},
	}

	amounts := ExpectedAmounts(settings)

	if got := amounts["Mercado"]; !got.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("Mercado expected = %s, want 1250", got)
	}
	if got := amounts["Internet"]; !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Internet expected = %s, want 100", got)
	}
}

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if !settings.MonthlyExpectedRevenue.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Default revenue = %s, want 5000", settings.MonthlyExpectedRevenue)
	}
	if len(settings.ClassPercentages) != len(DefaultClasses) {
		t.Errorf("Default split has %d classes, want %d", len(settings.ClassPercentages), len(DefaultClasses))
	}
	if err := ValidatePercentages(settings.ClassPercentages); err != nil {
		t.Errorf("Default split invalid: %v", err)
	}
}

func TestSettingsClasses_StableOrder(t *testing.T) {
	settings := DefaultSettings()
	settings.ClassPercentages["Viagem"] = 5.0

	classes := settings.Classes()
	if len(classes) != len(DefaultClasses)+1 {
		t.Fatalf("Classes() len = %d, want %d", len(classes), len(DefaultClasses)+1)
	}
	for i, c := range DefaultClasses {
		if classes[i] != c {
			t.Errorf("Classes()[%d] = %s, want %s", i, classes[i], c)
		}
	}
}

func TestSnapshotFromDataset(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 1, Day: 15}
	ds := dataset.New(nil, []domain.Record{
		{Date: d, Category: "Food", Amount: decimal.NewFromInt(10)},
		{Date: d, Category: "Food", Amount: decimal.NewFromInt(5)},
		{Date: d, Category: "Rent", Malformed: true, RawAmount: "??"},
	})

	snap := SnapshotFromDataset(ds, d)

	if snap.SnapshotID == "" {
		t.Error("Expected snapshot ID to be generated")
	}
	if snap.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", snap.RecordCount)
	}
	if !snap.TotalAmount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("TotalAmount = %s, want 15 (malformed excluded)", snap.TotalAmount)
	}
	if !snap.TotalByClass["Food"].Equal(decimal.NewFromInt(15)) {
		t.Errorf("Food total = %s, want 15", snap.TotalByClass["Food"])
	}
}

func TestSummarize(t *testing.T) {
	settings := DefaultSettings()
	snapshots := []Snapshot{
		snapOn("2024-01-14", 100, map[string]float64{"Mercado": 100}),
		snapOn("2024-01-15", 150, map[string]float64{"Mercado": 120, "Lazer": 30}),
	}

	summary := Summarize(settings, snapshots, "2024-01")

	if summary.Month != "2024-01" {
		t.Errorf("Month = %s, want 2024-01", summary.Month)
	}
	if summary.DaysRecorded != 2 {
		t.Errorf("DaysRecorded = %d, want 2", summary.DaysRecorded)
	}
	// Latest snapshot carries the month-to-date state.
	if !summary.TotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("TotalAmount = %s, want 150", summary.TotalAmount)
	}
	if !summary.TotalByClass["Lazer"].Equal(decimal.NewFromInt(30)) {
		t.Errorf("Lazer total = %s, want 30", summary.TotalByClass["Lazer"])
	}
	// Zero-valued classes must still appear for chart rendering.
	if _, ok := summary.TotalByClass["Carro"]; !ok {
		t.Error("Expected all configured classes present in TotalByClass")
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(DefaultSettings(), nil, "2024-02")

	if !summary.TotalAmount.IsZero() {
		t.Errorf("TotalAmount = %s, want 0", summary.TotalAmount)
	}
	if summary.DaysRecorded != 0 {
		t.Errorf("DaysRecorded = %d, want 0", summary.DaysRecorded)
	}
}

func snapOn(date string, total float64, byClass map[string]float64) Snapshot {
	d, err := civil.ParseDate(date)
	if err != nil {
		panic(err)
	}
	classes := make(map[string]decimal.Decimal, len(byClass))
	for c, v := range byClass {
		classes[c] = decimal.NewFromFloat(v)
	}
	return Snapshot{
		SnapshotID:   "snap-" + date,
		Date:         d,
		TotalAmount:  decimal.NewFromFloat(total),
		TotalByClass: classes,
	}
}
