// Package charts builds the figure payloads the dashboard page renders.
// Figures are plain data (traces + layout) serialized as JSON; the browser
// does the actual drawing. An empty month produces an annotated empty-state
// figure, never an error.
package charts

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
)

// Status colors shared across figures.
const (
	colorOver    = "#dc3545" // at or over budget
	colorWarn    = "#ffc107" // approaching budget
	colorOK      = "#28a745" // within budget
	colorNone    = "#6c757d" // no budget configured
	colorPlanned = "lightblue"
)

// warnRatio is the spent/expected ratio at which a class turns yellow.
const warnRatio = 0.8

// Trace is one series of a figure.
type Trace struct {
	Type    string    `json:"type"`
	Name    string    `json:"name,omitempty"`
	X       []string  `json:"x,omitempty"`
	Y       []float64 `json:"y,omitempty"`
	Labels  []string  `json:"labels,omitempty"`
	Values  []float64 `json:"values,omitempty"`
	Text    []string  `json:"text,omitempty"`
	Colors  []string  `json:"colors,omitempty"`
	Mode    string    `json:"mode,omitempty"`
	Hole    float64   `json:"hole,omitempty"`
	Opacity float64   `json:"opacity,omitempty"`
}

// RefLine is a horizontal reference line with a label.
type RefLine struct {
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// Layout carries figure-level presentation hints.
type Layout struct {
	Title      string   `json:"title"`
	XAxisTitle string   `json:"xaxis_title,omitempty"`
	YAxisTitle string   `json:"yaxis_title,omitempty"`
	BarMode    string   `json:"barmode,omitempty"`
	ShowLegend bool     `json:"show_legend"`
	Annotation string   `json:"annotation,omitempty"`
	RefLine    *RefLine `json:"ref_line,omitempty"`
}

// Figure is one renderable chart.
type Figure struct {
	Traces []Trace `json:"traces"`
	Layout Layout  `json:"layout"`
}

// emptyFigure returns an annotated empty-state figure.
func emptyFigure(title, annotation string) Figure {
	return Figure{
		Layout: Layout{Title: title, Annotation: annotation},
	}
}

// BudgetOverview builds the spent-vs-remaining figure with the expected
// revenue as a reference line. The spent bar turns red once the month's
// revenue is exceeded.
func BudgetOverview(summary budget.MonthlySummary) Figure {
	spent := summary.TotalAmount
	revenue := summary.ExpectedRevenue
	remaining := revenue.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	spentColor := colorWarn
	if spent.GreaterThan(revenue) {
		spentColor = colorOver
	}

	return Figure{
		Traces: []Trace{
			{
				Type:   "bar",
				X:      []string{"Gasto Total", "Orçamento Restante"},
				Y:      []float64{round2(spent), round2(remaining)},
				Text:   []string{money(spent), money(remaining)},
				Colors: []string{spentColor, colorOK},
			},
		},
		Layout: Layout{
			Title:      "Visão Geral do Orçamento Mensal",
			YAxisTitle: "Valor (R$)",
			RefLine: &RefLine{
				Y:     round2(revenue),
				Label: "Receita Esperada: " + money(revenue),
			},
		},
	}
}

// ExpensePie builds the per-class distribution pie for the month. Classes
// with zero spend are left out; a month with no spend at all renders the
// empty state.
func ExpensePie(summary budget.MonthlySummary) Figure {
	var labels []string
	var values []float64
	for _, class := range orderedClasses(summary) {
		total := summary.TotalByClass[class]
		if total.IsPositive() {
			labels = append(labels, class)
			values = append(values, round2(total))
		}
	}

	title := fmt.Sprintf("Distribuição de Gastos - %s", summary.Month)
	if len(labels) == 0 {
		return emptyFigure(title, "Nenhum gasto registrado este mês")
	}

	return Figure{
		Traces: []Trace{
			{
				Type:   "pie",
				Labels: labels,
				Values: values,
				Hole:   0.3,
			},
		},
		Layout: Layout{Title: title, ShowLegend: true},
	}
}

// ClassComparison builds the actual-vs-expected grouped bars per class.
// Actual bars are colored by how much of the class budget is spent.
func ClassComparison(summary budget.MonthlySummary) Figure {
	classes := orderedClasses(summary)

	actual := make([]float64, len(classes))
	expected := make([]float64, len(classes))
	actualText := make([]string, len(classes))
	expectedText := make([]string, len(classes))
	colors := make([]string, len(classes))

	for i, class := range classes {
		spent := summary.TotalByClass[class]
		planned := summary.ExpectedAmounts[class]

		actual[i] = round2(spent)
		expected[i] = round2(planned)
		actualText[i] = money(spent)
		expectedText[i] = money(planned)
		colors[i] = classColor(spent, planned)
	}

	return Figure{
		Traces: []Trace{
			{
				Type:   "bar",
				Name:   "Gasto Real",
				X:      classes,
				Y:      actual,
				Text:   actualText,
				Colors: colors,
			},
			{
				Type:    "bar",
				Name:    "Orçamento Esperado",
				X:       classes,
				Y:       expected,
				Text:    expectedText,
				Colors:  repeat(colorPlanned, len(classes)),
				Opacity: 0.7,
			},
		},
		Layout: Layout{
			Title:      "Gastos por Categoria: Real vs Orçado",
			XAxisTitle: "Categoria de Gasto",
			YAxisTitle: "Valor (R$)",
			BarMode:    "group",
			ShowLegend: true,
		},
	}
}

// DailyTrend builds the spend-over-time line for the current month.
func DailyTrend(totals []dataset.DailyTotal) Figure {
	title := "Gastos Diários"
	if len(totals) == 0 {
		return emptyFigure(title, "Nenhum gasto registrado este mês")
	}

	x := make([]string, len(totals))
	y := make([]float64, len(totals))
	for i, dt := range totals {
		x[i] = dt.Date.String()
		y[i] = round2(dt.Total)
	}

	return Figure{
		Traces: []Trace{
			{Type: "scatter", Mode: "lines+markers", Name: "Gasto", X: x, Y: y},
		},
		Layout: Layout{
			Title:      title,
			XAxisTitle: "Data",
			YAxisTitle: "Valor (R$)",
		},
	}
}

// classColor picks the status color from the spent/expected ratio.
func classColor(spent, expected decimal.Decimal) string {
	if !expected.IsPositive() {
		return colorNone
	}
	ratio := spent.Div(expected)
	switch {
	case ratio.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return colorOver
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(warnRatio)):
		return colorWarn
	default:
		return colorOK
	}
}

// orderedClasses returns the summary's classes in a stable order: class map
// iteration alone would shuffle bars between renders.
func orderedClasses(summary budget.MonthlySummary) []string {
	var known []string
	seen := make(map[string]bool)
	for _, class := range budget.DefaultClasses {
		if _, ok := summary.TotalByClass[class]; ok {
			known = append(known, class)
			seen[class] = true
		}
	}
	var rest []string
	for class := range summary.TotalByClass {
		if !seen[class] {
			rest = append(rest, class)
		}
	}
	sort.Strings(rest)
	return append(known, rest...)
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func money(d decimal.Decimal) string {
	return "R$ " + d.Round(0).String()
}

func repeat(color string, n int) []string {
	result := make([]string, n)
	for i := range result {
		result[i] = color
	}
	return result
}
