package upload

import "errors"

var (
	// ErrProtocolViolation marks malformed or inconsistent chunk metadata.
	ErrProtocolViolation = errors.New("chunk protocol violation")
	// ErrSessionNotFound is returned when finalizing an unknown or already
	// consumed session.
	ErrSessionNotFound = errors.New("upload session not found")
	// ErrIncompleteUpload is returned when finalize is called before every
	// chunk has arrived.
	ErrIncompleteUpload = errors.New("upload incomplete")
)
