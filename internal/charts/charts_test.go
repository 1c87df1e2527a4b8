package charts

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
)

func summaryWith(total float64, byClass, expected map[string]float64) budget.MonthlySummary {
	s := budget.MonthlySummary{
		Month:           "2024-01",
		TotalAmount:     decimal.NewFromFloat(total),
		TotalByClass:    make(map[string]decimal.Decimal),
		ExpectedAmounts: make(map[string]decimal.Decimal),
		ExpectedRevenue: decimal.NewFromInt(5000),
	}
	for c, v := range byClass {
		s.TotalByClass[c] = decimal.NewFromFloat(v)
	}
	for c, v := range expected {
		s.ExpectedAmounts[c] = decimal.NewFromFloat(v)
	}
	return s
}

func TestBudgetOverview(t *testing.T) {
	fig := BudgetOverview(summaryWith(3000, nil, nil))

	if len(fig.Traces) != 1 {
		t.Fatalf("Traces = %d, want 1", len(fig.Traces))
	}
	trace := fig.Traces[0]
	if trace.Y[0] != 3000 || trace.Y[1] != 2000 {
		t.Errorf("Y = %v, want [3000 2000]", trace.Y)
	}
	if trace.Colors[0] != colorWarn {
		t.Errorf("Spent color = %s, want %s", trace.Colors[0], colorWarn)
	}
	if fig.Layout.RefLine == nil || fig.Layout.RefLine.Y != 5000 {
		t.Errorf("RefLine = %+v, want Y=5000", fig.Layout.RefLine)
	}
}

func TestBudgetOverview_OverBudget(t *testing.T) {
	fig := BudgetOverview(summaryWith(6000, nil, nil))

	trace := fig.Traces[0]
	if trace.Colors[0] != colorOver {
		t.Errorf("Spent color = %s, want %s", trace.Colors[0], colorOver)
	}
	// Remaining never goes negative.
	if trace.Y[1] != 0 {
		t.Errorf("Remaining = %v, want 0", trace.Y[1])
	}
}

func TestExpensePie(t *testing.T) {
	fig := ExpensePie(summaryWith(150, map[string]float64{
		"Mercado": 100,
		"Lazer":   50,
		"Carro":   0,
	}, nil))

	if len(fig.Traces) != 1 {
		t.Fatalf("Traces = %d, want 1", len(fig.Traces))
	}
	trace := fig.Traces[0]
	if len(trace.Labels) != 2 {
		t.Errorf("Labels = %v, want zero-spend classes excluded", trace.Labels)
	}
	for _, label := range trace.Labels {
		if label == "Carro" {
			t.Error("Zero-spend class must not appear in the pie")
		}
	}
}

func TestExpensePie_Empty(t *testing.T) {
	fig := ExpensePie(summaryWith(0, map[string]float64{"Mercado": 0}, nil))

	if len(fig.Traces) != 0 {
		t.Errorf("Traces = %d, want empty figure", len(fig.Traces))
	}
	if fig.Layout.Annotation == "" {
		t.Error("Expected empty-state annotation")
	}
}

func TestClassComparison_Colors(t *testing.T) {
	summary := summaryWith(0, map[string]float64{
		"Mercado":  1250, // exactly at budget
		"Lazer":    450,  // 90% of budget
		"Internet": 10,   // 10% of budget
		"Viagem":   80,   // no budget configured
	}, map[string]float64{
		"Mercado":  1250,
		"Lazer":    500,
		"Internet": 100,
	})

	fig := ClassComparison(summary)
	if len(fig.Traces) != 2 {
		t.Fatalf("Traces = %d, want 2", len(fig.Traces))
	}

	actual := fig.Traces[0]
	want := map[string]string{
		"Mercado":  colorOver,
		"Lazer":    colorWarn,
		"Internet": colorOK,
		"Viagem":   colorNone,
	}
	for i, class := range actual.X {
		if actual.Colors[i] != want[class] {
			t.Errorf("Color for %s = %s, want %s", class, actual.Colors[i], want[class])
		}
	}

	if fig.Layout.BarMode != "group" {
		t.Errorf("BarMode = %s, want group", fig.Layout.BarMode)
	}
}

func TestClassComparison_StableOrder(t *testing.T) {
	summary := summaryWith(0, map[string]float64{
		"Mercado": 10, "Lazer": 20, "Aluguel": 30,
	}, nil)

	first := ClassComparison(summary)
	second := ClassComparison(summary)

	for i := range first.Traces[0].X {
		if first.Traces[0].X[i] != second.Traces[0].X[i] {
			t.Fatalf("Class order changed between renders: %v vs %v",
				first.Traces[0].X, second.Traces[0].X)
		}
	}
	// Known classes keep their configured order.
	if first.Traces[0].X[0] != "Lazer" {
		t.Errorf("First class = %s, want Lazer", first.Traces[0].X[0])
	}
}

func TestDailyTrend(t *testing.T) {
	totals := []dataset.DailyTotal{
		{Date: civil.Date{Year: 2024, Month: 1, Day: 14}, Total: decimal.NewFromInt(50)},
		{Date: civil.Date{Year: 2024, Month: 1, Day: 15}, Total: decimal.NewFromInt(75)},
	}

	fig := DailyTrend(totals)

	if len(fig.Traces) != 1 {
		t.Fatalf("Traces = %d, want 1", len(fig.Traces))
	}
	trace := fig.Traces[0]
	if trace.X[0] != "2024-01-14" || trace.X[1] != "2024-01-15" {
		t.Errorf("X = %v, want chronological dates", trace.X)
	}
	if trace.Y[1] != 75 {
		t.Errorf("Y[1] = %v, want 75", trace.Y[1])
	}
}

func TestDailyTrend_Empty(t *testing.T) {
	fig := DailyTrend(nil)

	if len(fig.Traces) != 0 {
		t.Errorf("Traces = %d, want empty figure", len(fig.Traces))
	}
	if fig.Layout.Annotation == "" {
		t.Error("Expected empty-state annotation")
	}
}
