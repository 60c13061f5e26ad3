package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/imazen/lightresize/internal/resize"
)

// JobStatus represents the current state of an async resize job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "canceled"
)

// ResizeParams is the wire and storage form of one resize request. Zero
// width/height means unconstrained; empty mode strings take the resize
// package defaults.
type ResizeParams struct {
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Fit       string `json:"fit,omitempty"`
	Scale     string `json:"scale,omitempty"`
	Format    string `json:"format,omitempty"`
	Quality   int    `json:"quality,omitempty"`
	IgnoreICC bool   `json:"ignore_icc,omitempty"`
}

// ToJob converts the params into a validated resize job descriptor.
func (p ResizeParams) ToJob() (*resize.Job, error) {
	job := &resize.Job{
		Width:     p.Width,
		Height:    p.Height,
		Fit:       resize.FitMode(p.Fit),
		Scale:     resize.ScaleMode(p.Scale),
		Format:    resize.Format(p.Format),
		Quality:   p.Quality,
		IgnoreICC: p.IgnoreICC,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Job represents one asynchronous resize job tracked in the database.
type Job struct {
	StartedAt      *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	DeleteAt       *time.Time   `json:"delete_at,omitempty" db:"delete_at"`
	ProcessingTime *int64       `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	Params         ResizeParams `json:"params" db:"-"`
	OriginalKey    string       `json:"original_key" db:"original_key"`
	ResultKey      string       `json:"result_key,omitempty" db:"result_key"`
	OriginalName   string       `json:"original_name" db:"original_name"`
	ContentType    string       `json:"content_type" db:"content_type"`
	ParamsJSON     string       `json:"-" db:"params"`
	Error          string       `json:"error,omitempty" db:"error"`
	WorkerID       string       `json:"worker_id,omitempty" db:"worker_id"`
	ID             uuid.UUID    `json:"id" db:"id"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	FileSize       int64        `json:"file_size" db:"file_size"`
	Status         JobStatus    `json:"status" db:"status"`
}

// NewJob creates a pending job for an uploaded original.
func NewJob(originalKey, originalName, contentType string, fileSize int64, params ResizeParams) *Job {
	now := time.Now()
	return &Job{
		ID:           uuid.New(),
		Status:       JobStatusPending,
		OriginalKey:  originalKey,
		OriginalName: originalName,
		ContentType:  contentType,
		FileSize:     fileSize,
		Params:       params,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarshalParams serializes the resize params to JSON for database storage.
func (j *Job) MarshalParams() error {
	data, err := json.Marshal(j.Params)
	if err != nil {
		return err
	}
	j.ParamsJSON = string(data)
	return nil
}

// UnmarshalParams deserializes the resize params from their JSON form.
func (j *Job) UnmarshalParams() error {
	if j.ParamsJSON == "" {
		j.Params = ResizeParams{}
		return nil
	}
	return json.Unmarshal([]byte(j.ParamsJSON), &j.Params)
}

// JobMessage is the queue payload pointing a worker at a job.
type JobMessage struct {
	Params ResizeParams `json:"params"`
	JobID  uuid.UUID    `json:"job_id"`
}

// JobListResponse is a paginated list of jobs.
type JobListResponse struct {
	Jobs       []*Job `json:"jobs"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// QueueStats reports queue health numbers.
type QueueStats struct {
	StreamLength    int64 `json:"stream_length"`
	PendingMessages int64 `json:"pending_messages"`
	ConsumerCount   int64 `json:"consumer_count"`
}
