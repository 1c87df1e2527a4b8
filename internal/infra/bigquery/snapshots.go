// Package bigquery archives daily snapshots into a BigQuery dataset for
// long-term history beyond the local store's retention window. Optional:
// the dashboard runs fine without it.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-dashboard/internal/budget"
)

const snapshotsTable = "daily_snapshots"

// SnapshotRow is the BigQuery shape of a daily snapshot. Per-class totals
// are stored as a repeated record.
type SnapshotRow struct {
	SnapshotID  string                 `bigquery:"snapshot_id"` // REQUIRED
	Date        civil.Date             `bigquery:"date"`        // DATE, REQUIRED
	TotalAmount float64                `bigquery:"total_amount"`
	RecordCount int64                  `bigquery:"record_count"`
	Classes     []ClassTotalRow        `bigquery:"classes"`    // REPEATED
	CreatedTS   bigquery.NullTimestamp `bigquery:"created_ts"` // TIMESTAMP, NULLABLE
}

// ClassTotalRow is one class's spend within a snapshot.
type ClassTotalRow struct {
	Class  string  `bigquery:"class"`
	Amount float64 `bigquery:"amount"`
}

// Archive writes and reads snapshots in one dataset.
type Archive struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewArchive creates an archive for the given project and dataset.
func NewArchive(ctx context.Context, projectID, datasetID string) (*Archive, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewArchive: creating client: %w", err)
	}
	return NewArchiveWithClient(client, projectID, datasetID), nil
}

// NewArchiveWithClient creates an archive using the provided client.
func NewArchiveWithClient(client *bigquery.Client, projectID, datasetID string) *Archive {
	return &Archive{client: client, projectID: projectID, datasetID: datasetID}
}

// Close releases the underlying client.
func (a *Archive) Close() error {
	return a.client.Close()
}

// InsertSnapshot streams one snapshot into the archive table.
func (a *Archive) InsertSnapshot(ctx context.Context, snap budget.Snapshot) error {
	row := snapshotToRow(snap)

	inserter := a.client.Dataset(a.datasetID).Table(snapshotsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertSnapshot: inserting row: %w", err)
	}
	return nil
}

// QueryMonth returns the archived snapshots of a month (YYYY-MM), oldest
// first.
func (a *Archive) QueryMonth(ctx context.Context, month string) ([]*SnapshotRow, error) {
	q := a.client.Query(monthQuerySQL(a.projectID, a.datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "month", Value: month},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryMonth: reading query: %w", err)
	}

	var rows []*SnapshotRow
	for {
		var row SnapshotRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryMonth: iterating: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

func monthQuerySQL(projectID, datasetID string) string {
	return fmt.Sprintf(`
		SELECT
			snapshot_id,
			date,
			total_amount,
			record_count,
			classes,
			created_ts
	FROM `+"`%s.%s.%s`"+`
	WHERE FORMAT_DATE('%%Y-%%m', date) = @month
	ORDER BY date ASC
	`, projectID, datasetID, snapshotsTable)
}

// SnapshotFromRow converts an archived row back into a budget snapshot, so
// months past the local store's retention can be summarized from the archive.
func SnapshotFromRow(row *SnapshotRow) budget.Snapshot {
	snap := budget.Snapshot{
		SnapshotID:   row.SnapshotID,
		Date:         row.Date,
		TotalAmount:  decimal.NewFromFloat(row.TotalAmount),
		TotalByClass: make(map[string]decimal.Decimal, len(row.Classes)),
		RecordCount:  int(row.RecordCount),
	}
	if row.CreatedTS.Valid {
		snap.CreatedAt = row.CreatedTS.Timestamp
	}
	for _, class := range row.Classes {
		snap.TotalByClass[class.Class] = decimal.NewFromFloat(class.Amount)
	}
	return snap
}

func snapshotToRow(snap budget.Snapshot) *SnapshotRow {
	row := &SnapshotRow{
		SnapshotID:  snap.SnapshotID,
		Date:        snap.Date,
		TotalAmount: snap.TotalAmount.InexactFloat64(),
		RecordCount: int64(snap.RecordCount),
	}
	if !snap.CreatedAt.IsZero() {
		row.CreatedTS = bigquery.NullTimestamp{Timestamp: snap.CreatedAt, Valid: true}
	}
	for _, class := range classKeys(snap) {
		row.Classes = append(row.Classes, ClassTotalRow{
			Class:  class,
			Amount: snap.TotalByClass[class].InexactFloat64(),
		})
	}
	return row
}

func classKeys(snap budget.Snapshot) []string {
	var known []string
	seen := make(map[string]bool)
	for _, class := range budget.DefaultClasses {
		if _, ok := snap.TotalByClass[class]; ok {
			known = append(known, class)
			seen[class] = true
		}
	}
	for class := range snap.TotalByClass {
		if !seen[class] {
			known = append(known, class)
		}
	}
	return known
}
