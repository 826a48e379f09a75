package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/models"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/registry"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/storage"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/upload"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/worker"
)

// ErrJobNotFound is returned for job ids the registry has never issued.
var ErrJobNotFound = errors.New("job not found")

// Options carry the caller's pass-through transcription parameters.
type Options struct {
	Language  string
	Translate bool
	Device    string
}

// Transcriber wires the chunk store, job registry, worker dispatcher, and
// result store into the operations the HTTP layer exposes.
type Transcriber struct {
	uploads    *upload.Store
	jobs       *registry.Registry
	results    *storage.ResultStore
	runner     *worker.Runner
	dispatcher *worker.Dispatcher
}

func NewTranscriber(uploads *upload.Store, jobs *registry.Registry, results *storage.ResultStore, runner *worker.Runner, dispatcher *worker.Dispatcher) *Transcriber {
	return &Transcriber{
		uploads:    uploads,
		jobs:       jobs,
		results:    results,
		runner:     runner,
		dispatcher: dispatcher,
	}
}

// UploadChunk stores one chunk of a session.
func (t *Transcriber) UploadChunk(sessionID string, index, total int, payload io.Reader) (upload.Ack, error) {
	return t.uploads.PutChunk(sessionID, index, total, payload)
}

// FinalizeAndTranscribeSync reassembles the session and transcribes it
// inline, blocking the caller for the whole pipeline.
func (t *Transcriber) FinalizeAndTranscribeSync(ctx context.Context, sessionID, filename string, opts Options) (string, string, error) {
	artifact, err := t.uploads.Finalize(sessionID)
	if err != nil {
		return "", "", err
	}
	return t.runner.Run(ctx, t.task("", artifact, filename, opts))
}

// FinalizeAndTranscribeAsync reassembles the session, registers a job, and
// queues the transcription. Finalize errors surface immediately; pipeline
// errors surface later through job status.
func (t *Transcriber) FinalizeAndTranscribeAsync(sessionID, filename string, opts Options) (string, error) {
	artifact, err := t.uploads.Finalize(sessionID)
	if err != nil {
		return "", err
	}
	return t.enqueue(artifact, filename, opts)
}

// SubmitFileSync transcribes an already-saved upload inline.
func (t *Transcriber) SubmitFileSync(ctx context.Context, path, filename string, opts Options) (string, string, error) {
	return t.runner.Run(ctx, t.task("", path, filename, opts))
}

// SubmitFileAsync registers a job for an already-saved upload and queues it.
func (t *Transcriber) SubmitFileAsync(path, filename string, opts Options) (string, error) {
	return t.enqueue(path, filename, opts)
}

// JobStatus returns a snapshot of the job.
func (t *Transcriber) JobStatus(id string) (models.Job, error) {
	job, ok := t.jobs.Get(id)
	if !ok {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// FetchResult returns the stored transcription text.
func (t *Transcriber) FetchResult(ctx context.Context, id string) (string, error) {
	return t.results.Fetch(ctx, id)
}

// ResultFile returns the stored text path and source filename for download.
func (t *Transcriber) ResultFile(ctx context.Context, id string) (string, string, error) {
	return t.results.File(ctx, id)
}

// RecentTranscriptions lists the newest result records.
func (t *Transcriber) RecentTranscriptions(ctx context.Context, limit int) ([]models.Transcription, error) {
	return t.results.Recent(ctx, limit)
}

func (t *Transcriber) enqueue(artifact, filename string, opts Options) (string, error) {
	jobID := t.jobs.Create(filename)
	task := t.task(jobID, artifact, filename, opts)
	if err := t.dispatcher.Enqueue(task); err != nil {
		// The session is already consumed, so the artifact must not leak.
		os.Remove(artifact)
		if ferr := t.jobs.Fail(jobID, err.Error()); ferr != nil {
			return "", ferr
		}
		return "", err
	}
	return jobID, nil
}

func (t *Transcriber) task(jobID, source, filename string, opts Options) worker.Task {
	return worker.Task{
		JobID:      jobID,
		SourcePath: source,
		Filename:   filename,
		Language:   opts.Language,
		Translate:  opts.Translate,
		Device:     opts.Device,
	}
}
