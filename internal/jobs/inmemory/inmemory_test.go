package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.RefreshJob{JobID: "job-1", Trigger: jobs.TriggerManual, Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Trigger != jobs.TriggerManual {
		t.Errorf("Trigger = %s, want manual", got.Trigger)
	}

	// The store holds a copy, not the caller's pointer.
	job.Status = jobs.JobStatusFailed
	got, _ = store.GetJob(ctx, "job-1")
	if got.Status != jobs.JobStatusPending {
		t.Errorf("Status = %s, want pending (store must copy)", got.Status)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore()

	if _, err := store.GetJob(context.Background(), "absent"); err == nil {
		t.Error("Expected error for missing job")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, tr := range []jobs.Trigger{jobs.TriggerManual, jobs.TriggerScheduled, jobs.TriggerScheduled} {
		job := &jobs.RefreshJob{
			JobID:     string(rune('a' + i)),
			Trigger:   tr,
			Status:    jobs.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob() error = %v", err)
		}
	}

	scheduled, err := store.ListJobs(ctx, jobs.JobFilter{Trigger: jobs.TriggerScheduled})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(scheduled) != 2 {
		t.Errorf("Scheduled jobs = %d, want 2", len(scheduled))
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("All jobs = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].JobID != "c" {
		t.Errorf("First job = %s, want c", all[0].JobID)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Limited jobs = %d, want 1", len(limited))
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	ctx := context.Background()

	done := make(chan string, 1)
	handler := func(ctx context.Context, job jobs.Job) error {
		done <- job.GetID()
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer queue.Close()

	job := &jobs.RefreshJob{Trigger: jobs.TriggerScheduled}
	if err := queue.PublishRefresh(ctx, job); err != nil {
		t.Fatalf("PublishRefresh() error = %v", err)
	}
	if job.JobID == "" {
		t.Fatal("Expected job ID to be generated")
	}

	select {
	case id := <-done:
		if id != job.JobID {
			t.Errorf("Handled job = %s, want %s", id, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Handler was not called")
	}

	// Status eventually lands on completed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if got.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Status = %s, want completed", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	ctx := context.Background()

	var calls int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient fetch failure")
		}
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer queue.Close()

	job := &jobs.RefreshJob{MaxRetries: 2}
	if err := queue.PublishRefresh(ctx, job); err != nil {
		t.Fatalf("PublishRefresh() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.GetJob(ctx, job.JobID)
		if err == nil && got.Status == jobs.JobStatusCompleted {
			if got.RetryCount != 1 {
				t.Errorf("RetryCount = %d, want 1", got.RetryCount)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Job never completed after retry; calls=%d", atomic.LoadInt32(&calls))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	queue := NewQueue(1, nil)
	if err := queue.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := queue.PublishRefresh(context.Background(), &jobs.RefreshJob{})
	if err == nil {
		t.Error("Expected error publishing to a closed queue")
	}
}
