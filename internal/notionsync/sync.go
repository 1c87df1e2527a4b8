// Package notionsync mirrors monthly summaries into a Notion database so
// budgets can be reviewed alongside the user's other Notion pages. Pages
// are keyed by the Month title; re-syncing a month updates its page in
// place and pages for months no longer present are archived.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// SyncSummaries pushes summaries into the database. With dryRun set it only
// logs what it would do.
func SyncSummaries(ctx context.Context, notion NotionService, databaseID string, summaries []budget.MonthlySummary, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Int("summaries", len(summaries)).
		Bool("dry_run", dryRun).
		Msg("Starting summary sync to Notion")

	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return fmt.Errorf("querying Notion pages: %w", err)
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if month := extractMonth(page); month != "" {
			existing[month] = string(page.ID)
		}
	}

	wanted := make(map[string]bool, len(summaries))
	var created, updated int
	for _, summary := range summaries {
		wanted[summary.Month] = true
		props := SummaryToNotionProperties(summary)

		pageID, ok := existing[summary.Month]
		switch {
		case ok && dryRun:
			log.Info().Str("month", summary.Month).Msg("[DRY RUN] Would update summary page")
			updated++
		case ok:
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				return fmt.Errorf("updating page for %s: %w", summary.Month, err)
			}
			updated++
		case dryRun:
			log.Info().Str("month", summary.Month).Msg("[DRY RUN] Would create summary page")
			created++
		default:
			if _, err := notion.CreatePage(ctx, databaseID, props); err != nil {
				return fmt.Errorf("creating page for %s: %w", summary.Month, err)
			}
			created++
		}
	}

	var archived int
	for _, page := range pages {
		month := extractMonth(page)
		if month != "" && wanted[month] {
			continue
		}
		if dryRun {
			log.Info().Str("month", month).Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale summary page")
			archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("month", month).Str("page_id", string(page.ID)).
				Msg("Failed to archive stale summary page")
			continue
		}
		archived++
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("archived", archived).
		Msg("Summary sync complete")
	return nil
}

// queryAllPages pages through the whole database.
func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    100,
		}
		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
