// Package notify delivers user notifications asynchronously through
// the SQLite job queue, so ticket writes never block on fan-out.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/deskd/internal/storage"
)

// JobType tags queue entries this worker consumes.
const JobType = "notify"

// Notification kinds.
const (
	KindAssignment = "assignment"
	KindComment    = "comment"
	KindStatus     = "status"
)

// Store abstracts the queue and notification operations.
type Store interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	CreateNotification(n storage.Notification) error
}

type payload struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Enqueue schedules a notification for userID. A blank userID is a
// no-op so callers can pass ticket fields without checking assignment.
func Enqueue(store Store, userID, kind, message string) error {
	if userID == "" {
		return nil
	}
	data, err := json.Marshal(payload{UserID: userID, Kind: kind, Message: message})
	if err != nil {
		return fmt.Errorf("encoding notification payload: %w", err)
	}
	return store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(data),
	})
}

// JobRecorder counts processed jobs by outcome. *metrics.Metrics
// satisfies it.
type JobRecorder interface {
	RecordJob(jobType, outcome string)
}

// Worker drains notify jobs from the queue into notification rows.
type Worker struct {
	store    Store
	poll     time.Duration
	logger   *slog.Logger
	recorder JobRecorder
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store Store, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{store: store, poll: pollInterval, logger: slog.Default()}
}

// WithRecorder attaches a job counter. A nil recorder leaves the worker
// uninstrumented.
func (w *Worker) WithRecorder(r JobRecorder) *Worker {
	w.recorder = r
	return w
}

func (w *Worker) record(outcome string) {
	if w.recorder != nil {
		w.recorder.RecordJob(JobType, outcome)
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single notify job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(_ context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		w.record("failed")
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.record("ok")
	return true, nil
}

func (w *Worker) processJob(job *storage.Job) error {
	var p payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if p.UserID == "" {
		return fmt.Errorf("payload missing user_id")
	}

	return w.store.CreateNotification(storage.Notification{
		ID:      uuid.New().String(),
		UserID:  p.UserID,
		Kind:    p.Kind,
		Message: p.Message,
	})
}
