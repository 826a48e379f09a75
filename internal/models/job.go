package models

import "time"

type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Job tracks one asynchronous transcription from dispatch to terminal state.
type Job struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Status          JobStatus `json:"status"`
	TranscriptionID string    `json:"transcription_id,omitempty"`
	Text            string    `json:"text,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has reached completed or error state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}
