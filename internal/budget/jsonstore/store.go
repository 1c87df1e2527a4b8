// Package jsonstore is the file-backed implementation of budget.Store.
// Settings and daily snapshots live as JSON files under a data directory.
// Suitable for the single-user deployment this dashboard targets; a
// database-backed store can replace it behind the same interface.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/budget"
)

const (
	settingsFile  = "user_settings.json"
	snapshotsFile = "daily_results.json"

	// retentionDays bounds how many daily snapshots are kept.
	retentionDays = 90
)

// snapshotsDocument is the on-disk shape of the snapshots file.
type snapshotsDocument struct {
	DailySnapshots []budget.Snapshot `json:"daily_snapshots"`
}

// Store persists budget state under a directory. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// New creates a store rooted at dir, creating the directory and default
// files when absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %q: %w", dir, err)
	}

	s := &Store{dir: dir}

	if _, err := os.Stat(s.path(settingsFile)); os.IsNotExist(err) {
		if err := s.writeJSON(settingsFile, budget.DefaultSettings()); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(s.path(snapshotsFile)); os.IsNotExist(err) {
		if err := s.writeJSON(snapshotsFile, snapshotsDocument{}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) readJSON(name string, v interface{}) error {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Settings implements budget.Store.
func (s *Store) Settings(ctx context.Context) (budget.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var settings budget.Settings
	if err := s.readJSON(settingsFile, &settings); err != nil {
		return budget.Settings{}, err
	}

	// A partial file keeps what it has; only the missing pieces default.
	defaults := budget.DefaultSettings()
	if settings.ClassPercentages == nil {
		settings.ClassPercentages = defaults.ClassPercentages
	}
	if settings.MonthlyExpectedRevenue.IsZero() {
		settings.MonthlyExpectedRevenue = defaults.MonthlyExpectedRevenue
	}
	return settings, nil
}

// UpdateSettings implements budget.Store.
func (s *Store) UpdateSettings(ctx context.Context, revenue decimal.Decimal, percentages map[string]float64) error {
	if err := budget.ValidatePercentages(percentages); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := budget.Settings{
		MonthlyExpectedRevenue: revenue,
		ClassPercentages:       percentages,
		LastUpdated:            time.Now(),
	}
	return s.writeJSON(settingsFile, settings)
}

// SaveSnapshot implements budget.Store. Same-day snapshots are replaced and
// retention is applied on every save.
func (s *Store) SaveSnapshot(ctx context.Context, snap budget.Snapshot) error {
	if snap.SnapshotID == "" {
		return fmt.Errorf("snapshot ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var doc snapshotsDocument
	if err := s.readJSON(snapshotsFile, &doc); err != nil {
		return err
	}

	kept := doc.DailySnapshots[:0]
	for _, existing := range doc.DailySnapshots {
		if existing.Date != snap.Date {
			kept = append(kept, existing)
		}
	}
	doc.DailySnapshots = append(kept, snap)

	sort.Slice(doc.DailySnapshots, func(i, j int) bool {
		return doc.DailySnapshots[j].Date.Before(doc.DailySnapshots[i].Date)
	})
	if len(doc.DailySnapshots) > retentionDays {
		doc.DailySnapshots = doc.DailySnapshots[:retentionDays]
	}

	return s.writeJSON(snapshotsFile, doc)
}

// ListSnapshots implements budget.Store.
func (s *Store) ListSnapshots(ctx context.Context, month string) ([]budget.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc snapshotsDocument
	if err := s.readJSON(snapshotsFile, &doc); err != nil {
		return nil, err
	}

	if month == "" {
		return doc.DailySnapshots, nil
	}

	var result []budget.Snapshot
	for _, snap := range doc.DailySnapshots {
		if strings.HasPrefix(snap.Date.String(), month) {
			result = append(result, snap)
		}
	}
	return result, nil
}

// Ensure Store implements the budget.Store interface.
var _ budget.Store = (*Store)(nil)
