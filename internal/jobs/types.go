package jobs

import "time"

// Status is the lifecycle state of a pipeline job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job will receive no further updates.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one pipeline run for a document.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Stage      string    `json:"stage"`
	Progress   float64   `json:"progress"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Event is a job state snapshot delivered to progress subscribers. The
// persisted job row is always written before the event is published, so
// a subscriber that reconnects and reads the row never sees the job go
// backwards.
type Event struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	Stage      string    `json:"stage"`
	Progress   float64   `json:"progress"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// eventFromJob builds the broadcast snapshot for a job row.
func eventFromJob(j *Job) Event {
	return Event{
		JobID:      j.ID,
		DocumentID: j.DocumentID,
		Stage:      j.Stage,
		Progress:   j.Progress,
		Status:     j.Status,
		Error:      j.Error,
		Timestamp:  time.Now().UTC(),
	}
}
