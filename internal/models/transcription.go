package models

import "time"

// Transcription is the indexed record of a persisted transcription result.
// The text itself lives in a file under the transcripts directory keyed by ID.
type Transcription struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Language   string    `json:"language"`
	Translated bool      `json:"translated"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}
