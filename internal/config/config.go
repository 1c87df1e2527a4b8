package config

import (
	"fmt"
	"time"
)

// Config carries everything the binaries need, assembled from flags and
// environment in main and passed down explicitly. No package reads ambient
// process state at runtime.
type Config struct {
	// Port is the HTTP server port (dashboard binary only).
	Port string

	// CredentialsPath is the filesystem path to the service-account key file.
	CredentialsPath string

	// SheetID is the spreadsheet document ID.
	SheetID string

	// Worksheet is the worksheet (tab) name within the document.
	Worksheet string

	// DataDir is where settings and daily snapshots are persisted.
	DataDir string

	// RefreshInterval is the period of the scheduled background refresh.
	// Zero disables the ticker; manual refresh stays available.
	RefreshInterval time.Duration

	// BQProject/BQDataset enable the BigQuery snapshot archive when both set.
	BQProject string
	BQDataset string

	// GCSBucket enables export backups to Cloud Storage when set.
	GCSBucket string
}

// Defaults returns a Config pre-filled with the values that have sane
// defaults. Required fields (credentials, sheet ID) stay empty.
func Defaults() Config {
	return Config{
		Port:            "8080",
		Worksheet:       "Página1",
		DataDir:         "data",
		RefreshInterval: 60 * time.Second,
	}
}

// Validate checks that the required fields are present.
func (c Config) Validate() error {
	if c.CredentialsPath == "" {
		return fmt.Errorf("config: credentials path is required")
	}
	if c.SheetID == "" {
		return fmt.Errorf("config: sheet ID is required")
	}
	if c.Worksheet == "" {
		return fmt.Errorf("config: worksheet name is required")
	}
	return nil
}

// ArchiveEnabled reports whether the BigQuery snapshot archive is configured.
func (c Config) ArchiveEnabled() bool {
	return c.BQProject != "" && c.BQDataset != ""
}
