// Package sheets is the sheet data source: it fetches rows from one
// worksheet of a Google Sheets document and coerces the loosely typed cell
// strings into typed records at the boundary, so nothing downstream deals
// with the remote API's representation.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/dvloznov/finance-dashboard/internal/credentials"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// Required column headers, matched case-insensitively against the first row.
const (
	colDate        = "data"
	colCategory    = "class"
	colAmount      = "value"
	colDescription = "description"
)

// The sheet is maintained in pt-BR, so day-first slash dates show up
// alongside ISO dates.
const brDateLayout = "02/01/2006"

// ValueGetter abstracts the remote read so the source can be tested against
// a double.
type ValueGetter interface {
	// GetValues returns the cell grid of the given range, row-major.
	GetValues(ctx context.Context, sheetID, readRange string) ([][]interface{}, error)
}

// apiValueGetter reads through the live Sheets API.
type apiValueGetter struct {
	srv *sheetsv4.Service
}

func (g *apiValueGetter) GetValues(ctx context.Context, sheetID, readRange string) ([][]interface{}, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(sheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Source fetches and coerces one worksheet. Each Fetch performs a fresh
// remote read; there is no caching and no internal retry.
type Source struct {
	getter    ValueGetter
	sheetID   string
	worksheet string
	log       zerolog.Logger
}

// NewSource creates a data source over an authenticated handle.
func NewSource(handle *credentials.Handle, sheetID, worksheet string, log zerolog.Logger) *Source {
	return NewSourceWithGetter(&apiValueGetter{srv: handle.Service()}, sheetID, worksheet, log)
}

// NewSourceWithGetter creates a data source over a custom value getter.
// Used by tests to substitute a double for the remote API.
func NewSourceWithGetter(getter ValueGetter, sheetID, worksheet string, log zerolog.Logger) *Source {
	return &Source{
		getter:    getter,
		sheetID:   sheetID,
		worksheet: worksheet,
		log:       log,
	}
}

// Fetch reads the worksheet and returns a typed dataset. The first row is
// the header; source row order is preserved. An empty worksheet yields an
// empty dataset, not an error. Rows with unparseable dates are dropped; rows
// with unparseable amounts are kept but flagged malformed.
func (s *Source) Fetch(ctx context.Context) (*dataset.Dataset, error) {
	values, err := s.getter.GetValues(ctx, s.sheetID, s.worksheet)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if len(values) == 0 {
		s.log.Info().Str("sheet_id", s.sheetID).Str("worksheet", s.worksheet).Msg("Worksheet is empty")
		return dataset.New(nil, nil), nil
	}

	header := make([]string, len(values[0]))
	for i, cell := range values[0] {
		header[i] = strings.TrimSpace(cellString(cell))
	}

	idx, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	var dropped int
	for _, row := range values[1:] {
		record, ok := s.buildRecord(header, idx, row)
		if !ok {
			dropped++
			continue
		}
		records = append(records, record)
	}

	s.log.Info().
		Str("sheet_id", s.sheetID).
		Str("worksheet", s.worksheet).
		Int("records", len(records)).
		Int("dropped", dropped).
		Msg("Fetched worksheet")

	return dataset.New(header, records), nil
}

// columnIndex locates the known columns within a header row.
type columnIndex struct {
	date        int
	category    int
	amount      int
	description int // -1 when absent
}

func resolveColumns(header []string) (columnIndex, error) {
	idx := columnIndex{date: -1, category: -1, amount: -1, description: -1}
	for i, name := range header {
		switch strings.ToLower(name) {
		case colDate:
			idx.date = i
		case colCategory:
			idx.category = i
		case colAmount:
			idx.amount = i
		case colDescription:
			idx.description = i
		}
	}

	var missing []string
	if idx.date == -1 {
		missing = append(missing, "Data")
	}
	if idx.category == -1 {
		missing = append(missing, "Class")
	}
	if idx.amount == -1 {
		missing = append(missing, "Value")
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}

	return idx, nil
}

// buildRecord coerces one raw row. Returns ok=false when the row must be
// dropped entirely (no parseable date).
func (s *Source) buildRecord(header []string, idx columnIndex, row []interface{}) (domain.Record, bool) {
	date, err := parseDate(cellAt(row, idx.date))
	if err != nil {
		s.log.Debug().Str("cell", cellAt(row, idx.date)).Msg("Dropping row with invalid date")
		return domain.Record{}, false
	}

	record := domain.Record{
		Date:     date,
		Category: strings.TrimSpace(cellAt(row, idx.category)),
	}
	if idx.description >= 0 {
		record.Description = strings.TrimSpace(cellAt(row, idx.description))
	}

	rawAmount := cellAt(row, idx.amount)
	amount, err := CleanAmount(rawAmount)
	if err != nil {
		record.Malformed = true
		record.RawAmount = rawAmount
		s.log.Warn().Str("cell", rawAmount).Msg("Amount cell is not numeric, flagging record")
	} else {
		record.Amount = amount
	}

	// Preserve cells outside the known schema.
	for i, name := range header {
		if i == idx.date || i == idx.category || i == idx.amount || i == idx.description {
			continue
		}
		if v := cellAt(row, i); v != "" {
			if record.Extra == nil {
				record.Extra = make(map[string]string)
			}
			record.Extra[name] = v
		}
	}

	return record, true
}

// CleanAmount strips currency decoration from a cell and parses it as an
// exact decimal. Empty cells count as zero; anything else non-numeric is an
// error so the caller can flag the record.
func CleanAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	return d, nil
}

func parseDate(raw string) (civil.Date, error) {
	s := strings.TrimSpace(raw)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse(brDateLayout, s); err == nil {
		return civil.DateOf(t), nil
	}
	return civil.Date{}, fmt.Errorf("unparseable date %q", raw)
}

func cellAt(row []interface{}, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cellString(row[i])
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
