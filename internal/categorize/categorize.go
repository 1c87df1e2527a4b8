// Package categorize suggests an expense class for uncategorized sheet
// rows using Gemini. Suggestions are advisory; the sheet stays the source
// of truth and nothing is written back automatically.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.0-flash"

// Suggestion pairs a record's description with the suggested class.
type Suggestion struct {
	Description string `json:"description"`
	Class       string `json:"class"`
}

// ContentGenerator is the slice of the Gemini client the suggester needs.
type ContentGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// genaiGenerator backs ContentGenerator with the real client.
type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// Suggester suggests classes for records.
type Suggester struct {
	gen   ContentGenerator
	model string
}

// New creates a suggester backed by the Gemini API. Credentials come from
// the environment (GEMINI_API_KEY).
func New(ctx context.Context, model string) (*Suggester, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewWithGenerator(&genaiGenerator{client: client}, model), nil
}

// NewWithGenerator creates a suggester with a caller-supplied generator.
func NewWithGenerator(gen ContentGenerator, model string) *Suggester {
	if model == "" {
		model = DefaultModelName
	}
	return &Suggester{gen: gen, model: model}
}

// Suggest returns a class suggestion for every record whose class is empty.
// Records that already have a class are skipped.
func (s *Suggester) Suggest(ctx context.Context, records []domain.Record, classes []string) ([]Suggestion, error) {
	var pending []string
	for _, rec := range records {
		if rec.Category == "" && rec.Description != "" {
			pending = append(pending, rec.Description)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	raw, err := s.gen.GenerateText(ctx, s.model, buildPrompt(pending, classes))
	if err != nil {
		return nil, err
	}

	suggestions, err := ParseSuggestions(raw)
	if err != nil {
		return nil, err
	}

	// The model sometimes invents classes despite the prompt; only keep
	// suggestions from the allowed list.
	if len(classes) > 0 {
		allowed := make(map[string]bool, len(classes))
		for _, c := range classes {
			allowed[c] = true
		}
		kept := suggestions[:0]
		for _, sug := range suggestions {
			if allowed[sug.Class] {
				kept = append(kept, sug)
			}
		}
		suggestions = kept
	}

	return suggestions, nil
}

func buildPrompt(descriptions, classes []string) string {
	var b strings.Builder
	b.WriteString("You are an expense classifier for a personal finance dashboard.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Assign each expense description below to one of the allowed classes.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects with fields \"description\" and \"class\".\n\n")

	b.WriteString("Allowed classes:\n")
	for _, c := range classes {
		b.WriteString("- " + c + "\n")
	}

	b.WriteString("\nExpense descriptions:\n")
	for _, d := range descriptions {
		b.WriteString("- " + d + "\n")
	}

	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// ParseSuggestions decodes the model output, tolerating Markdown fences and
// surrounding prose the model may emit despite instructions.
func ParseSuggestions(raw string) ([]Suggestion, error) {
	clean := cleanModelJSON(raw)

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(clean), &suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w\nraw response: %s", err, raw)
	}
	return suggestions, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first '[' to the last ']' if junk remains.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
