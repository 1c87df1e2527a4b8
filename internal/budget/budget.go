// Package budget holds the user's spending plan: expected monthly revenue
// split across expense classes by percentage, the daily snapshots the
// dashboard persists, and the monthly summary derived from both.
package budget

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/dataset"
)

// MaxPercentageTotal is the cap on the sum of class percentages. Some
// headroom over 100% is allowed for deliberate overallocation.
const MaxPercentageTotal = 150.0

// DefaultClasses are the expense classes of a fresh installation.
var DefaultClasses = []string{
	"Lazer", "Limpeza", "Roupas", "Lavanderia", "Mercado",
	"Casa", "Restaurante", "Aluguel", "Luz", "Internet",
	"Farmácia", "Carro",
}

// Settings is the user's budget configuration.
type Settings struct {
	MonthlyExpectedRevenue decimal.Decimal    `json:"monthly_expected_revenue"`
	ClassPercentages       map[string]float64 `json:"expense_class_percentages"`
	LastUpdated            time.Time          `json:"last_updated"`
}

// DefaultSettings returns the settings a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		MonthlyExpectedRevenue: decimal.NewFromInt(5000),
		ClassPercentages: map[string]float64{
			"Lazer":      10.0,
			"Limpeza":    3.0,
			"Roupas":     8.0,
			"Lavanderia": 2.0,
			"Mercado":    25.0,
			"Casa":       10.0,
			"Restaurante": 15.0,
			"Aluguel":    20.0,
			"Luz":        3.0,
			"Internet":   2.0,
			"Farmácia":   2.0,
			"Carro":      0.0,
		},
		LastUpdated: time.Now(),
	}
}

// Classes returns the configured expense classes in stable order: the
// default classes first, then any additional configured ones.
func (s Settings) Classes() []string {
	seen := make(map[string]bool, len(DefaultClasses))
	result := make([]string, 0, len(s.ClassPercentages))
	for _, c := range DefaultClasses {
		if _, ok := s.ClassPercentages[c]; ok {
			result = append(result, c)
			seen[c] = true
		}
	}
	for c := range s.ClassPercentages {
		if !seen[c] {
			result = append(result, c)
		}
	}
	return result
}

// ValidatePercentages checks a percentage split before it is saved.
func ValidatePercentages(percentages map[string]float64) error {
	total := 0.0
	for class, pct := range percentages {
		if pct < 0 {
			return fmt.Errorf("class %q has negative percentage %.1f", class, pct)
		}
		total += pct
	}
	if total > MaxPercentageTotal {
		return fmt.Errorf("percentages sum to %.1f%%, exceeding the %.0f%% cap", total, MaxPercentageTotal)
	}
	return nil
}

// ExpectedAmounts computes the budgeted amount per class from the settings.
func ExpectedAmounts(s Settings) map[string]decimal.Decimal {
	amounts := make(map[string]decimal.Decimal, len(s.ClassPercentages))
	hundred := decimal.NewFromInt(100)
	for class, pct := range s.ClassPercentages {
		amounts[class] = s.MonthlyExpectedRevenue.Mul(decimal.NewFromFloat(pct)).Div(hundred)
	}
	return amounts
}

// Snapshot is one day's worth of fetched expenses, persisted so summaries
// survive across fetches.
type Snapshot struct {
	SnapshotID   string                     `json:"snapshot_id"`
	Date         civil.Date                 `json:"date"`
	TotalAmount  decimal.Decimal            `json:"total_amount"`
	TotalByClass map[string]decimal.Decimal `json:"total_by_class"`
	RecordCount  int                        `json:"record_count"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// SnapshotFromDataset rolls a dataset up into a snapshot for the given day.
func SnapshotFromDataset(ds *dataset.Dataset, date civil.Date) Snapshot {
	return Snapshot{
		SnapshotID:   uuid.New().String(),
		Date:         date,
		TotalAmount:  ds.Total(),
		TotalByClass: ds.TotalByCategory(),
		RecordCount:  ds.Len(),
		CreatedAt:    time.Now(),
	}
}

// MonthlySummary is the per-month rollup the presentation layer renders.
type MonthlySummary struct {
	Month           string                     `json:"month"`
	TotalAmount     decimal.Decimal            `json:"total_amount"`
	TotalByClass    map[string]decimal.Decimal `json:"total_by_class"`
	DaysRecorded    int                        `json:"days_recorded"`
	ExpectedAmounts map[string]decimal.Decimal `json:"expected_amounts"`
	ExpectedRevenue decimal.Decimal            `json:"expected_revenue"`
}

// Store persists settings and daily snapshots.
type Store interface {
	// Settings returns the current settings, defaults when never saved.
	Settings(ctx context.Context) (Settings, error)

	// UpdateSettings replaces revenue and percentage split. Fails when the
	// split exceeds the percentage cap.
	UpdateSettings(ctx context.Context, revenue decimal.Decimal, percentages map[string]float64) error

	// SaveSnapshot saves a daily snapshot, replacing any existing snapshot
	// for the same date.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// ListSnapshots returns snapshots for a month (YYYY-MM), newest first.
	// An empty month returns all retained snapshots.
	ListSnapshots(ctx context.Context, month string) ([]Snapshot, error)
}

// Summarize builds a monthly summary from settings and that month's
// snapshots. The latest snapshot per day wins; snapshots already replace
// same-day entries at save time, so each element is one day.
func Summarize(settings Settings, snapshots []Snapshot, month string) MonthlySummary {
	summary := MonthlySummary{
		Month:           month,
		TotalByClass:    make(map[string]decimal.Decimal),
		DaysRecorded:    len(snapshots),
		ExpectedAmounts: ExpectedAmounts(settings),
		ExpectedRevenue: settings.MonthlyExpectedRevenue,
	}

	for _, class := range settings.Classes() {
		summary.TotalByClass[class] = decimal.Zero
	}

	// Snapshots carry cumulative month-to-date totals (the sheet holds the
	// whole current month), so the newest snapshot of the month is the
	// month's state, not a sum over days.
	if len(snapshots) > 0 {
		latest := snapshots[0]
		for _, s := range snapshots {
			if s.Date.After(latest.Date) {
				latest = s
			}
		}
		summary.TotalAmount = latest.TotalAmount
		for class, total := range latest.TotalByClass {
			summary.TotalByClass[class] = total
		}
	} else {
		summary.TotalAmount = decimal.Zero
	}

	return summary
}
