package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/models"
)

// ErrInternalConsistency marks a job transition that violates the lifecycle
// contract: exactly one worker moves a job from processing to a terminal
// state exactly once. Seeing this error means a bug, not a caller mistake.
var ErrInternalConsistency = errors.New("job registry consistency violation")

// Registry is the concurrency-safe map of transcription jobs. Jobs are never
// evicted; a registry lives as long as the process.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*models.Job)}
}

// Create registers a new job in processing state and returns its id. The job
// is visible to Get from the moment Create returns.
func (r *Registry) Create(filename string) string {
	job := &models.Job{
		ID:        uuid.New().String(),
		Filename:  filename,
		Status:    models.StatusProcessing,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job.ID
}

// Complete moves a processing job to completed and records its result.
func (r *Registry) Complete(id, transcriptionID, text string) error {
	return r.transition(id, func(job *models.Job) {
		job.Status = models.StatusCompleted
		job.TranscriptionID = transcriptionID
		job.Text = text
	})
}

// Fail moves a processing job to error with a human-readable reason.
func (r *Registry) Fail(id, message string) error {
	return r.transition(id, func(job *models.Job) {
		job.Status = models.StatusError
		job.Error = message
	})
}

// transition applies the terminal mutation as one atomic unit: a concurrent
// Get sees either the processing snapshot or the fully applied terminal one.
func (r *Registry) transition(id string, apply func(*models.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: transition on unknown job %q", ErrInternalConsistency, id)
	}
	if job.Status != models.StatusProcessing {
		return fmt.Errorf("%w: job %q already %s", ErrInternalConsistency, id, job.Status)
	}
	apply(job)
	job.FinishedAt = time.Now()
	return nil
}

// Get returns a snapshot of the job. The second return is false for ids the
// registry has never issued.
func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Len reports the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
