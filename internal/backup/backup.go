// Package backup copies the dashboard's persisted state (settings, daily
// snapshots, exports) into a Google Cloud Storage bucket.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// ObjectWriter abstracts the bucket so tests can run without GCS.
type ObjectWriter interface {
	Write(ctx context.Context, objectName string, r io.Reader) error
}

// GCSWriter writes objects into one bucket. Assumes Application Default
// Credentials are configured.
type GCSWriter struct {
	client *storage.Client
	bucket string
}

// NewGCSWriter creates a writer for the given bucket.
func NewGCSWriter(ctx context.Context, bucket string) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSWriter{client: client, bucket: bucket}, nil
}

// Write implements ObjectWriter.
func (w *GCSWriter) Write(ctx context.Context, objectName string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := w.client.Bucket(w.bucket).Object(objectName)
	ow := obj.NewWriter(ctx)
	if _, err := io.Copy(ow, r); err != nil {
		_ = ow.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := ow.Close(); err != nil {
		return fmt.Errorf("close GCS writer: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (w *GCSWriter) Close() error {
	return w.client.Close()
}

var _ ObjectWriter = (*GCSWriter)(nil)

// Runner backs up the files under a data directory.
type Runner struct {
	writer ObjectWriter
	dir    string
	log    zerolog.Logger
}

// NewRunner creates a backup runner for the given data directory.
func NewRunner(writer ObjectWriter, dir string, log zerolog.Logger) *Runner {
	return &Runner{writer: writer, dir: dir, log: log}
}

// Run uploads every regular file in the data directory under a
// date-stamped prefix (backups/2024-01-15/user_settings.json).
func (r *Runner) Run(ctx context.Context, now time.Time) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading data dir %q: %w", r.dir, err)
	}

	prefix := path.Join("backups", now.Format("2006-01-02"))
	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := r.uploadFile(ctx, entry.Name(), prefix); err != nil {
			return err
		}
		uploaded++
	}

	r.log.Info().Int("files", uploaded).Str("prefix", prefix).Msg("Backup complete")
	return nil
}

func (r *Runner) uploadFile(ctx context.Context, name, prefix string) error {
	f, err := os.Open(path.Join(r.dir, name))
	if err != nil {
		return fmt.Errorf("open file %q: %w", name, err)
	}
	defer f.Close()

	objectName := path.Join(prefix, name)
	if err := r.writer.Write(ctx, objectName, f); err != nil {
		return fmt.Errorf("upload %q: %w", objectName, err)
	}
	r.log.Debug().Str("object", objectName).Msg("Uploaded backup object")
	return nil
}
