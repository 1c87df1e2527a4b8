// The cli binary runs one-off dashboard operations from the terminal:
// fetching the sheet, printing summaries, exporting workbooks, archiving
// snapshots and syncing Notion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/budget/jsonstore"
	"github.com/dvloznov/finance-dashboard/internal/categorize"
	"github.com/dvloznov/finance-dashboard/internal/credentials"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
	"github.com/dvloznov/finance-dashboard/internal/export"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/notionsync"
	"github.com/dvloznov/finance-dashboard/internal/sheets"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fetch":
		runFetch(log)
	case "summary":
		runSummary(log)
	case "export":
		runExport(log)
	case "snapshot":
		runSnapshot(log)
	case "suggest":
		runSuggest(log)
	case "sync-notion":
		runSyncNotion(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Dashboard CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  fetch        Fetch the worksheet and print the current month's records")
	fmt.Println("  summary      Print a monthly summary from stored snapshots")
	fmt.Println("  export       Fetch the worksheet and write an XLSX workbook")
	fmt.Println("  snapshot     Fetch the worksheet and persist today's snapshot")
	fmt.Println("  suggest      Suggest classes for uncategorized rows")
	fmt.Println("  sync-notion  Push stored monthly summaries to a Notion database")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// sheetFlags are the flags every sheet-reading command shares.
type sheetFlags struct {
	credentials *string
	sheetID     *string
	worksheet   *string
}

func addSheetFlags(fs *flag.FlagSet) sheetFlags {
	return sheetFlags{
		credentials: fs.String("credentials", envOr("GOOGLE_SHEETS_CREDENTIALS", "credentials.json"), "path to the service-account key file"),
		sheetID:     fs.String("sheet", os.Getenv("SHEET_ID"), "spreadsheet document ID"),
		worksheet:   fs.String("worksheet", "Página1", "worksheet (tab) name"),
	}
}

func fetchDataset(ctx context.Context, f sheetFlags, log zerolog.Logger) *dataset.Dataset {
	if *f.sheetID == "" {
		log.Fatal().Msg("Error: --sheet is required (or set SHEET_ID env)")
	}

	handle, err := credentials.Load(ctx, *f.credentials)
	if err != nil {
		log.Fatal().Err(err).Str("path", *f.credentials).Msg("Failed to load credentials")
	}

	source := sheets.NewSource(handle, *f.sheetID, *f.worksheet, log)
	ds, err := source.Fetch(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Fetch failed")
	}
	return ds
}

func runFetch(log zerolog.Logger) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	sf := addSheetFlags(fs)
	all := fs.Bool("all", false, "print all records, not only the current month")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ds := fetchDataset(ctx, sf, log)
	if !*all {
		ds = ds.CurrentMonth(time.Now())
	}

	for _, rec := range ds.Records() {
		if rec.Malformed {
			fmt.Printf("%s  %-14s  %10s  (malformed)\n", rec.Date, rec.Category, rec.RawAmount)
			continue
		}
		fmt.Printf("%s  %-14s  %10s  %s\n", rec.Date, rec.Category, rec.Amount.StringFixed(2), rec.Description)
	}
	fmt.Printf("\n%d records, total %s\n", ds.Len(), ds.Total().StringFixed(2))
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "directory with settings and snapshots")
	month := fs.String("month", time.Now().Format("2006-01"), "month to summarize (YYYY-MM)")
	bqProject := fs.String("bq-project", os.Getenv("BQ_PROJECT"), "BigQuery project of the snapshot archive")
	bqDataset := fs.String("bq-dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset of the snapshot archive")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	store, err := jsonstore.New(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open budget store")
	}

	settings, err := store.Settings(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	snapshots, err := store.ListSnapshots(ctx, *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list snapshots")
	}

	// Months past the local retention window live only in the archive.
	if len(snapshots) == 0 && *bqProject != "" && *bqDataset != "" {
		archive, err := infraBQ.NewArchive(ctx, *bqProject, *bqDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open snapshot archive")
		}
		defer archive.Close()

		rows, err := archive.QueryMonth(ctx, *month)
		if err != nil {
			log.Fatal().Err(err).Msg("Archive query failed")
		}
		for _, row := range rows {
			snapshots = append(snapshots, infraBQ.SnapshotFromRow(row))
		}
		log.Info().Str("month", *month).Int("snapshots", len(snapshots)).Msg("Loaded snapshots from archive")
	}

	summary := budget.Summarize(settings, snapshots, *month)

	fmt.Printf("Month:            %s\n", summary.Month)
	fmt.Printf("Total spent:      %s\n", summary.TotalAmount.StringFixed(2))
	fmt.Printf("Expected revenue: %s\n", summary.ExpectedRevenue.StringFixed(2))
	fmt.Printf("Days recorded:    %d\n\n", summary.DaysRecorded)
	for _, class := range settings.Classes() {
		fmt.Printf("  %-14s  spent %10s  budget %10s\n",
			class,
			summary.TotalByClass[class].StringFixed(2),
			summary.ExpectedAmounts[class].StringFixed(2))
	}
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	sf := addSheetFlags(fs)
	dataDir := fs.String("data-dir", "data", "directory with settings and snapshots")
	out := fs.String("out", "", "output path (defaults to expenses-YYYY-MM.xlsx)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	now := time.Now()
	month := now.Format("2006-01")
	current := fetchDataset(ctx, sf, log).CurrentMonth(now)

	store, err := jsonstore.New(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open budget store")
	}
	settings, err := store.Settings(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	snap := budget.SnapshotFromDataset(current, civil.DateOf(now))
	summary := budget.Summarize(settings, []budget.Snapshot{snap}, month)

	path := *out
	if path == "" {
		path = fmt.Sprintf("expenses-%s.xlsx", month)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to create output file")
	}
	defer f.Close()

	if err := export.Workbook(f, current, summary); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Wrote %s (%d records)\n", path, current.Len())
}

func runSnapshot(log zerolog.Logger) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	sf := addSheetFlags(fs)
	dataDir := fs.String("data-dir", "data", "directory with settings and snapshots")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	now := time.Now()
	current := fetchDataset(ctx, sf, log).CurrentMonth(now)

	store, err := jsonstore.New(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open budget store")
	}

	snap := budget.SnapshotFromDataset(current, civil.DateOf(now))
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}
	fmt.Printf("Saved snapshot %s for %s (%d records, total %s)\n",
		snap.SnapshotID, snap.Date, snap.RecordCount, snap.TotalAmount.StringFixed(2))
}

func runSuggest(log zerolog.Logger) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	sf := addSheetFlags(fs)
	dataDir := fs.String("data-dir", "data", "directory with settings and snapshots")
	model := fs.String("model", categorize.DefaultModelName, "Gemini model name")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ds := fetchDataset(ctx, sf, log)

	store, err := jsonstore.New(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open budget store")
	}
	settings, err := store.Settings(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	suggester, err := categorize.New(ctx, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create suggester")
	}

	suggestions, err := suggester.Suggest(ctx, ds.Records(), settings.Classes())
	if err != nil {
		log.Fatal().Err(err).Msg("Suggestion failed")
	}
	if len(suggestions) == 0 {
		fmt.Println("Nothing to classify: every row already has a class.")
		return
	}
	for _, s := range suggestions {
		fmt.Printf("%-40s  ->  %s\n", s.Description, s.Class)
	}
}

func runSyncNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "directory with settings and snapshots")
	token := fs.String("token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN env)")
	databaseID := fs.String("database", os.Getenv("NOTION_DATABASE_ID"), "Notion database ID (or set NOTION_DATABASE_ID env)")
	dryRun := fs.Bool("dry-run", false, "log actions without touching Notion")
	fs.Parse(os.Args[2:])

	if *token == "" || *databaseID == "" {
		log.Fatal().Msg("Usage: cli sync-notion -token TOKEN -database ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := jsonstore.New(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open budget store")
	}
	settings, err := store.Settings(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	snapshots, err := store.ListSnapshots(ctx, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list snapshots")
	}

	summaries := summarizeAll(settings, snapshots)
	if len(summaries) == 0 {
		fmt.Println("No snapshots to sync.")
		return
	}

	client := notionsync.NewNotionClient(*token)
	if err := notionsync.SyncSummaries(ctx, client, *databaseID, summaries, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
	fmt.Printf("Synced %d monthly summaries.\n", len(summaries))
}

// summarizeAll groups snapshots by month and summarizes each.
func summarizeAll(settings budget.Settings, snapshots []budget.Snapshot) []budget.MonthlySummary {
	byMonth := make(map[string][]budget.Snapshot)
	var months []string
	for _, snap := range snapshots {
		month := snap.Date.String()[:7]
		if _, ok := byMonth[month]; !ok {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], snap)
	}

	summaries := make([]budget.MonthlySummary, 0, len(months))
	for _, month := range months {
		summaries = append(summaries, budget.Summarize(settings, byMonth[month], month))
	}
	return summaries
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
