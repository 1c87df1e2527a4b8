package categorize

import (
	"context"
	"strings"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

type fakeGenerator struct {
	response string
	prompt   string
	err      error
}

func (f *fakeGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "clean JSON",
			raw:  `[{"description":"uber","class":"Carro"}]`,
			want: 1,
		},
		{
			name: "json code fence",
			raw:  "```json\n[{\"description\":\"uber\",\"class\":\"Carro\"}]\n```",
			want: 1,
		},
		{
			name: "surrounding prose",
			raw:  "Here you go:\n[{\"description\":\"uber\",\"class\":\"Carro\"}]\nHope that helps!",
			want: 1,
		},
		{
			name: "empty array",
			raw:  "[]",
			want: 0,
		},
		{
			name:    "not JSON",
			raw:     "I cannot classify these.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestions(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSuggestions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("ParseSuggestions() len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	gen := &fakeGenerator{response: `[{"description":"uber to airport","class":"Carro"}]`}
	s := NewWithGenerator(gen, "")

	records := []domain.Record{
		{Category: "Mercado", Description: "groceries"},
		{Category: "", Description: "uber to airport"},
	}
	got, err := s.Suggest(context.Background(), records, []string{"Carro", "Mercado"})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(got) != 1 || got[0].Class != "Carro" {
		t.Errorf("Suggest() = %+v, want one Carro suggestion", got)
	}

	// Only uncategorized descriptions go into the prompt.
	if strings.Contains(gen.prompt, "groceries") {
		t.Error("Categorized record leaked into the prompt")
	}
	if !strings.Contains(gen.prompt, "uber to airport") {
		t.Error("Uncategorized record missing from the prompt")
	}
}

func TestSuggest_DropsUnknownClasses(t *testing.T) {
	gen := &fakeGenerator{response: `[
		{"description":"uber","class":"Carro"},
		{"description":"cinema","class":"Entertainment"}
	]`}
	s := NewWithGenerator(gen, "")

	records := []domain.Record{
		{Description: "uber"},
		{Description: "cinema"},
	}
	got, err := s.Suggest(context.Background(), records, []string{"Carro", "Lazer"})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(got) != 1 || got[0].Class != "Carro" {
		t.Errorf("Suggest() = %+v, want unknown classes dropped", got)
	}
}

func TestSuggest_NothingPending(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewWithGenerator(gen, "")

	got, err := s.Suggest(context.Background(), []domain.Record{
		{Category: "Mercado", Description: "groceries"},
	}, nil)
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if got != nil {
		t.Errorf("Suggest() = %v, want nil without a model call", got)
	}
	if gen.prompt != "" {
		t.Error("Model was called with nothing to classify")
	}
}
