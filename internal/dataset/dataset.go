// Package dataset holds the tabular structure exchanged between the sheet
// data source and the presentation layer: an ordered sequence of records
// sharing one column schema, plus the filters and aggregates the dashboard
// needs. Aggregates skip rows flagged as malformed instead of failing.
package dataset

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// Dataset is an ordered collection of records. Source order as returned by
// the remote API is preserved.
type Dataset struct {
	columns []string
	records []domain.Record
}

// New creates a dataset over the given records. The slices are owned by the
// dataset afterwards.
func New(columns []string, records []domain.Record) *Dataset {
	return &Dataset{columns: columns, records: records}
}

// Columns returns the column schema in sheet order.
func (d *Dataset) Columns() []string {
	return d.columns
}

// Records returns the records in source order.
func (d *Dataset) Records() []domain.Record {
	return d.records
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// IsEmpty reports whether the dataset has no records.
func (d *Dataset) IsEmpty() bool {
	return len(d.records) == 0
}

// MalformedCount returns how many records carry an unparseable amount.
func (d *Dataset) MalformedCount() int {
	n := 0
	for _, r := range d.records {
		if r.Malformed {
			n++
		}
	}
	return n
}

// FilterDateRange returns a new dataset restricted to records with
// start <= date <= end. A zero bound leaves that side open.
func (d *Dataset) FilterDateRange(start, end civil.Date) *Dataset {
	var filtered []domain.Record
	for _, r := range d.records {
		if start.IsValid() && r.Date.Before(start) {
			continue
		}
		if end.IsValid() && r.Date.After(end) {
			continue
		}
		filtered = append(filtered, r)
	}
	return New(d.columns, filtered)
}

// FilterCategory returns a new dataset restricted to one category.
// An empty category returns the dataset unchanged.
func (d *Dataset) FilterCategory(category string) *Dataset {
	if category == "" {
		return d
	}
	var filtered []domain.Record
	for _, r := range d.records {
		if r.Category == category {
			filtered = append(filtered, r)
		}
	}
	return New(d.columns, filtered)
}

// CurrentMonth returns the records falling in the month of now.
func (d *Dataset) CurrentMonth(now time.Time) *Dataset {
	month := now.Format("2006-01")
	var filtered []domain.Record
	for _, r := range d.records {
		if r.Month() == month {
			filtered = append(filtered, r)
		}
	}
	return New(d.columns, filtered)
}

// Total sums the amounts of all well-formed records.
func (d *Dataset) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range d.records {
		if r.Malformed {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total
}

// TotalByCategory sums amounts per category, excluding malformed records.
func (d *Dataset) TotalByCategory() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, r := range d.records {
		if r.Malformed {
			continue
		}
		totals[r.Category] = totals[r.Category].Add(r.Amount)
	}
	return totals
}

// DailyTotal is one point of the spend-over-time trend.
type DailyTotal struct {
	Date  civil.Date      `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// DailyTotals buckets well-formed records by date, sorted ascending.
func (d *Dataset) DailyTotals() []DailyTotal {
	byDate := make(map[civil.Date]decimal.Decimal)
	for _, r := range d.records {
		if r.Malformed {
			continue
		}
		byDate[r.Date] = byDate[r.Date].Add(r.Amount)
	}

	result := make([]DailyTotal, 0, len(byDate))
	for date, total := range byDate {
		result = append(result, DailyTotal{Date: date, Total: total})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// Categories returns the distinct categories present, sorted.
func (d *Dataset) Categories() []string {
	seen := make(map[string]bool)
	for _, r := range d.records {
		if r.Category != "" {
			seen[r.Category] = true
		}
	}
	result := make([]string, 0, len(seen))
	for c := range seen {
		result = append(result, c)
	}
	sort.Strings(result)
	return result
}
