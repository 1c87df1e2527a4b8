package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-dashboard/internal/budget"
)

// SummaryToNotionProperties converts a monthly summary to Notion properties.
// The Month title is the sync key; per-class spend becomes one number
// property per class.
func SummaryToNotionProperties(summary budget.MonthlySummary) notionapi.Properties {
	props := notionapi.Properties{
		"Month": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: summary.Month,
					},
				},
			},
		},
		"Total Spent": notionapi.NumberProperty{
			Number: summary.TotalAmount.InexactFloat64(),
		},
		"Expected Revenue": notionapi.NumberProperty{
			Number: summary.ExpectedRevenue.InexactFloat64(),
		},
		"Days Recorded": notionapi.NumberProperty{
			Number: float64(summary.DaysRecorded),
		},
		"Over Budget": notionapi.CheckboxProperty{
			Checkbox: summary.TotalAmount.GreaterThan(summary.ExpectedRevenue),
		},
	}

	for class, total := range summary.TotalByClass {
		if total.IsZero() {
			continue
		}
		props[class] = notionapi.NumberProperty{
			Number: total.InexactFloat64(),
		}
	}

	return props
}

// extractMonth pulls the Month title out of a page, or "" when absent.
func extractMonth(page notionapi.Page) string {
	prop, ok := page.Properties["Month"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
