package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a partition job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"   // StatusPending indicates the job is created but not started
	StatusRunning   JobStatus = "running"   // StatusRunning indicates the job is iterating days
	StatusCompleted JobStatus = "completed" // StatusCompleted indicates every day was handled
	StatusFailed    JobStatus = "failed"    // StatusFailed indicates the job stopped on an error
)

// JobType is the kind of daily partition work.
type JobType string

const (
	JobTypeDownload   JobType = "download"   // JobTypeDownload builds partitions from trade archives
	JobTypeDownsample JobType = "downsample" // JobTypeDownsample rebuilds partitions at a longer period
	JobTypeScheduled  JobType = "scheduled"  // JobTypeScheduled is a download started by the cron scheduler
)

// Job records one pass over a range of partition days.
type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Exchange  string    `json:"exchange,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Period    string    `json:"period"`
	StartDay  string    `json:"start_day,omitempty"`
	EndDay    string    `json:"end_day,omitempty"`
	Status    JobStatus `json:"status"`
	Written   []string  `json:"written"`
	Skipped   []string  `json:"skipped"`
	Failed    []string  `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a pending job with a fresh UUID.
//
// Example:
//
//	job := NewJob(JobTypeDownload, "bybit", "BTCUSD", "1min")
func NewJob(jobType JobType, exchange, symbol, period string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Exchange:  exchange,
		Symbol:    symbol,
		Period:    period,
		Status:    StatusPending,
		Written:   []string{},
		Skipped:   []string{},
		Failed:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start transitions the job from pending to running.
func (j *Job) Start() error {
	if j.Status != StatusPending {
		return fmt.Errorf("cannot start job with status %s, must be %s", j.Status, StatusPending)
	}
	j.Status = StatusRunning
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions a running job to completed.
func (j *Job) Complete() error {
	if j.Status != StatusRunning {
		return fmt.Errorf("cannot complete job with status %s, must be %s", j.Status, StatusRunning)
	}
	j.Status = StatusCompleted
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail marks the job failed with the given message.
func (j *Job) Fail(msg string) error {
	if j.Status == StatusCompleted {
		return fmt.Errorf("cannot fail a completed job")
	}
	j.Status = StatusFailed
	j.Error = msg
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordWritten adds a day whose partition was written.
func (j *Job) RecordWritten(day string) {
	j.Written = append(j.Written, day)
	j.touch()
}

// RecordSkipped adds a day that already had a partition.
func (j *Job) RecordSkipped(day string) {
	j.Skipped = append(j.Skipped, day)
	j.touch()
}

// RecordFailed adds a day whose source could not be read.
func (j *Job) RecordFailed(day string) {
	j.Failed = append(j.Failed, day)
	j.touch()
}

func (j *Job) touch() { j.UpdatedAt = time.Now().UTC() }

// Total is the number of days the job has handled so far.
func (j *Job) Total() int { return len(j.Written) + len(j.Skipped) + len(j.Failed) }

// IsComplete reports whether the job finished.
func (j *Job) IsComplete() bool { return j.Status == StatusCompleted }

// Elapsed is the time between creation and the last update.
func (j *Job) Elapsed() time.Duration { return j.UpdatedAt.Sub(j.CreatedAt) }

// Summary returns a one-line description for logs and CLI output.
func (j *Job) Summary() string {
	return fmt.Sprintf("job %s [%s] %s: written=%d skipped=%d failed=%d",
		j.ID, j.Type, j.Status, len(j.Written), len(j.Skipped), len(j.Failed))
}

// ToJSON serializes the job.
func (j *Job) ToJSON() (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	return string(b), nil
}
