package sheets

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

// fakeGetter is a test double for the remote Sheets API.
type fakeGetter struct {
	values [][]interface{}
	err    error
}

func (f *fakeGetter) GetValues(ctx context.Context, sheetID, readRange string) ([][]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func testSource(getter ValueGetter) *Source {
	log := zerolog.New(&bytes.Buffer{})
	return NewSourceWithGetter(getter, "sheet-1", "Página1", log)
}

func TestFetch_WellFormedRows(t *testing.T) {
	getter := &fakeGetter{values: [][]interface{}{
		{"Data", "Class", "Value", "Description"},
		{"2024-01-01", "Food", "10", "groceries"},
		{"2024-01-02", "Food", "5", "snack"},
		{"2024-01-03", "Rent", "R$ 1.200", "january rent"},
	}}

	ds, err := testSource(getter).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("Fetch() returned %d records, want 3", ds.Len())
	}

	// Source order and values preserved.
	records := ds.Records()
	if records[0].Category != "Food" || records[2].Category != "Rent" {
		t.Errorf("Record order not preserved: %+v", records)
	}
	if !records[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("First amount = %s, want 10", records[0].Amount)
	}
	if records[0].Description != "groceries" {
		t.Errorf("Description = %q, want groceries", records[0].Description)
	}
	if !records[2].Amount.Equal(decimal.NewFromFloat(1.200)) {
		t.Errorf("Currency-cleaned amount = %s, want 1.200", records[2].Amount)
	}

	if got := ds.TotalByCategory()["Food"]; !got.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Food sum = %s, want 15", got)
	}
}

func TestFetch_EmptyWorksheet(t *testing.T) {
	ds, err := testSource(&fakeGetter{values: nil}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for empty worksheet", err)
	}
	if !ds.IsEmpty() {
		t.Errorf("Fetch() returned %d records, want 0", ds.Len())
	}
}

func TestFetch_MalformedAmountFlagged(t *testing.T) {
	getter := &fakeGetter{values: [][]interface{}{
		{"Data", "Class", "Value"},
		{"2024-01-01", "Food", "10"},
		{"2024-01-02", "Food", "ten reais"},
	}}

	ds, err := testSource(getter).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ds.Len() != 2 {
		t.Fatalf("Fetch() returned %d records, want 2", ds.Len())
	}
	if !ds.Records()[1].Malformed {
		t.Error("Expected second record flagged malformed")
	}
	if ds.Records()[1].RawAmount != "ten reais" {
		t.Errorf("RawAmount = %q, want original cell text", ds.Records()[1].RawAmount)
	}
	if got := ds.Total(); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Total() = %s, want 10 (malformed excluded)", got)
	}
}

func TestFetch_InvalidDateDropped(t *testing.T) {
	getter := &fakeGetter{values: [][]interface{}{
		{"Data", "Class", "Value"},
		{"not a date", "Food", "10"},
		{"15/01/2024", "Food", "5"},
	}}

	ds, err := testSource(getter).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ds.Len() != 1 {
		t.Fatalf("Fetch() returned %d records, want 1", ds.Len())
	}
	if got := ds.Records()[0].Date.String(); got != "2024-01-15" {
		t.Errorf("BR date parsed as %s, want 2024-01-15", got)
	}
}

func TestFetch_SchemaMismatch(t *testing.T) {
	getter := &fakeGetter{values: [][]interface{}{
		{"Data", "Description"},
		{"2024-01-01", "no amounts here"},
	}}

	_, err := testSource(getter).Fetch(context.Background())
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Fetch() error = %v, want ErrSchemaMismatch", err)
	}
}

func TestFetch_ExtraColumnsPreserved(t *testing.T) {
	getter := &fakeGetter{values: [][]interface{}{
		{"Data", "Class", "Value", "Payer"},
		{"2024-01-01", "Food", "10", "Alice"},
	}}

	ds, err := testSource(getter).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := ds.Records()[0].Extra["Payer"]; got != "Alice" {
		t.Errorf("Extra[Payer] = %q, want Alice", got)
	}
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"not found", 404, ErrSheetNotFound},
		{"forbidden", 403, ErrAccessDenied},
		{"unauthorized", 401, ErrAuthRejected},
		{"rate limited", 429, ErrTransientNetwork},
		{"server error", 503, ErrTransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getter := &fakeGetter{err: &googleapi.Error{Code: tt.code, Message: tt.name}}
			_, err := testSource(getter).Fetch(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCleanAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"10", "10", false},
		{"10.50", "10.5", false},
		{"R$ 25,30", "25.3", false},
		{"$ 7", "7", false},
		{"", "0", false},
		{"   ", "0", false},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := CleanAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("CleanAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
