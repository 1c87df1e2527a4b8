package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Record represents one expense row fetched from the spreadsheet.
// This is a domain struct, not a Sheets value range; the sheets package maps
// raw cell strings into it at the boundary so nothing downstream deals with
// the API's loose typing.
type Record struct {
	Date        civil.Date      // parsed from the "Data" column
	Category    string          // from the "Class" column
	Amount      decimal.Decimal // from the "Value" column, currency symbols stripped
	Description string          // from the "Description" column, may be empty

	// Extra holds cells from columns outside the known schema, keyed by
	// header name. Preserved so exports round-trip the full sheet.
	Extra map[string]string

	// Malformed marks a row whose amount cell could not be parsed as a
	// number. Such rows are kept for display but excluded from aggregates.
	Malformed bool

	// RawAmount is the original amount cell text, retained for flagged rows.
	RawAmount string
}

// Month returns the record's month in YYYY-MM form.
func (r Record) Month() string {
	return r.Date.String()[:7]
}
