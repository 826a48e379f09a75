package worker

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/media"
	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/transcribe"
)

// EngineProvider hands out transcription engines keyed by device id.
type EngineProvider interface {
	ForDevice(device string) (transcribe.Engine, error)
}

// ResultSink persists a finished transcription and returns its id.
type ResultSink interface {
	Save(ctx context.Context, filename, language string, translated bool, text string) (string, error)
}

// StatusReporter records a job's terminal state.
type StatusReporter interface {
	Complete(id, transcriptionID, text string) error
	Fail(id, message string) error
}

// Task describes one transcription to run. JobID is empty for synchronous
// calls that never touch the registry.
type Task struct {
	JobID      string
	SourcePath string
	Filename   string
	Language   string
	Translate  bool
	Device     string
}

// Runner executes one task end-to-end: optional audio extraction, engine
// call, result persistence, registry transition. It deletes the source
// artifact and any extracted audio on every exit path.
type Runner struct {
	engines EngineProvider
	results ResultSink
	jobs    StatusReporter
	tmpDir  string

	// extract is swappable in tests; defaults to ffmpeg extraction.
	extract func(ctx context.Context, inputPath, tmpDir string) (string, error)
}

func NewRunner(engines EngineProvider, results ResultSink, jobs StatusReporter, tmpDir string) *Runner {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Runner{
		engines: engines,
		results: results,
		jobs:    jobs,
		tmpDir:  tmpDir,
		extract: media.ExtractAudio,
	}
}

// Run executes the task and returns the transcription text and result id.
// For tasks with a JobID the outcome is also recorded into the registry and
// the returned error mirrors what the registry saw.
func (r *Runner) Run(ctx context.Context, task Task) (string, string, error) {
	defer os.Remove(task.SourcePath)

	audioPath := task.SourcePath
	if media.NeedsExtraction(task.Filename) {
		extracted, err := r.extract(ctx, task.SourcePath, r.tmpDir)
		if err != nil {
			return r.fail(task, fmt.Errorf("extract audio from %s: %w", task.Filename, err))
		}
		defer os.Remove(extracted)
		audioPath = extracted
	}

	engine, err := r.engines.ForDevice(task.Device)
	if err != nil {
		return r.fail(task, err)
	}
	text, err := engine.Transcribe(ctx, audioPath, task.Language, task.Translate)
	if err != nil {
		return r.fail(task, fmt.Errorf("transcribe %s: %w", task.Filename, err))
	}

	resultID, err := r.results.Save(ctx, task.Filename, task.Language, task.Translate, text)
	if err != nil {
		return r.fail(task, fmt.Errorf("persist result for %s: %w", task.Filename, err))
	}

	if task.JobID != "" {
		if err := r.jobs.Complete(task.JobID, resultID, text); err != nil {
			log.Printf("complete job %s: %v", task.JobID, err)
			return "", "", err
		}
	}
	return text, resultID, nil
}

func (r *Runner) fail(task Task, cause error) (string, string, error) {
	if task.JobID != "" {
		if err := r.jobs.Fail(task.JobID, cause.Error()); err != nil {
			log.Printf("fail job %s: %v", task.JobID, err)
		}
	}
	return "", "", cause
}
