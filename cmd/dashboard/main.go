// The dashboard binary serves the expense dashboard: it fetches the
// configured worksheet on a schedule, persists daily snapshots, and exposes
// the JSON API plus the embedded web page.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/backup"
	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/budget/jsonstore"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/credentials"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/sheets"
	"github.com/dvloznov/finance-dashboard/web"
)

func main() {
	cfg := config.Defaults()

	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.CredentialsPath, "credentials", envOr("GOOGLE_SHEETS_CREDENTIALS", "credentials.json"), "path to the service-account key file")
	flag.StringVar(&cfg.SheetID, "sheet", os.Getenv("SHEET_ID"), "spreadsheet document ID (or set SHEET_ID env)")
	flag.StringVar(&cfg.Worksheet, "worksheet", cfg.Worksheet, "worksheet (tab) name")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for settings and daily snapshots")
	flag.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "scheduled refresh period (0 disables)")
	flag.StringVar(&cfg.BQProject, "bq-project", os.Getenv("BQ_PROJECT"), "BigQuery project for the snapshot archive (or set BQ_PROJECT env)")
	flag.StringVar(&cfg.BQDataset, "bq-dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset for the snapshot archive (or set BQ_DATASET env)")
	flag.StringVar(&cfg.GCSBucket, "bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for backups (or set GCS_BUCKET env)")
	flag.Parse()

	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Credential loading happens before anything else; a bad key file should
	// fail startup, not the first refresh.
	handle, err := credentials.Load(ctx, cfg.CredentialsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CredentialsPath).Msg("Failed to load credentials")
	}

	source := sheets.NewSource(handle, cfg.SheetID, cfg.Worksheet, log)

	store, err := jsonstore.New(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open budget store")
	}

	var archive *infraBQ.Archive
	if cfg.ArchiveEnabled() {
		archive, err = infraBQ.NewArchive(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create snapshot archive")
		}
		defer archive.Close()
		log.Info().Str("project", cfg.BQProject).Str("dataset", cfg.BQDataset).Msg("Snapshot archive enabled")
	}

	var backupRunner *backup.Runner
	if cfg.GCSBucket != "" {
		writer, err := backup.NewGCSWriter(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup writer")
		}
		defer writer.Close()
		backupRunner = backup.NewRunner(writer, cfg.DataDir, log)
		log.Info().Str("bucket", cfg.GCSBucket).Msg("Backups enabled")
	}

	cache := handlers.NewCache()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		refreshJob, ok := job.(*jobs.RefreshJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", refreshJob.JobID).
			Str("trigger", string(refreshJob.Trigger)).
			Msg("Processing refresh job")

		ds, err := source.Fetch(ctx)
		if err != nil {
			cache.SetFailure(err, time.Now())
			log.Error().Err(err).Str("job_id", refreshJob.JobID).Msg("Sheet fetch failed")
			return err
		}

		now := time.Now()
		cache.SetSuccess(ds, now)
		refreshJob.RecordCount = ds.Len()

		snap := budget.SnapshotFromDataset(ds.CurrentMonth(now), civil.DateOf(now))
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			log.Error().Err(err).Str("job_id", refreshJob.JobID).Msg("Failed to save snapshot")
			return err
		}

		if archive != nil {
			if err := archive.InsertSnapshot(ctx, snap); err != nil {
				// Archiving is best-effort; local state is already saved.
				log.Warn().Err(err).Str("snapshot_id", snap.SnapshotID).Msg("Failed to archive snapshot")
			}
		}
		if backupRunner != nil {
			if err := backupRunner.Run(ctx, now); err != nil {
				log.Warn().Err(err).Msg("Backup failed")
			}
		}

		log.Info().
			Str("job_id", refreshJob.JobID).
			Int("records", ds.Len()).
			Int("malformed", ds.MalformedCount()).
			Msg("Refresh completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Warm the cache immediately, then keep refreshing on the ticker.
	publishRefresh := func(trigger jobs.Trigger) {
		job := &jobs.RefreshJob{Trigger: trigger}
		if err := jobQueue.PublishRefresh(workerCtx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue refresh")
		}
	}
	publishRefresh(jobs.TriggerScheduled)

	if cfg.RefreshInterval > 0 {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-ticker.C:
					publishRefresh(jobs.TriggerScheduled)
				}
			}
		}()
	}

	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(cache, store, log)
	refreshHandler := handlers.NewRefreshHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dashboardHandler.GetDashboard(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dashboardHandler.ListRecords(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dashboardHandler.GetSummary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dashboardHandler.GetSettings(w, r)
		case http.MethodPut:
			dashboardHandler.UpdateSettings(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dashboardHandler.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			refreshHandler.EnqueueRefresh(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.Handle("/", web.Handler())

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting dashboard server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
