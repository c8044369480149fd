package model

import "time"

// JobState is the lifecycle state of an import job. Transitions are
// monotonic: pending -> processing -> completed | failed. StateCancelled is
// reserved for a future cooperative cancel and is never reached today.
type JobState string

const (
	StatePending    JobState = "pending"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
	StateCancelled  JobState = "cancelled"
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ImportStats are the running counters of one import run.
type ImportStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// RowError ties a failure to one spreadsheet row. Line is the 1-based
// source line in the uploaded sheet.
type RowError struct {
	Line   int    `json:"line"`
	Code   string `json:"code,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// JobResult is what the runner persists into the ledger alongside a state
// change.
type JobResult struct {
	Stats     ImportStats `json:"stats"`
	Message   string      `json:"message"`
	RowErrors []RowError  `json:"row_errors,omitempty"`
}

// ImportJob is the durable ledger row for one import. Stats and RowErrors
// are stored serialized; jobs are never deleted by the pipeline.
type ImportJob struct {
	ID         string    `db:"id" json:"id"`
	MerchantID string    `db:"merchant_id" json:"merchant_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	FileHandle string    `db:"file_handle" json:"file_handle"`
	State      JobState  `db:"state" json:"state"`
	Stats      []byte    `db:"stats" json:"-"`
	Message    string    `db:"message" json:"message"`
	RowErrors  []byte    `db:"row_errors" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
