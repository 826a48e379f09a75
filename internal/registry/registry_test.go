package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/models"
)

func TestCreateVisibleImmediately(t *testing.T) {
	reg := New()
	id := reg.Create("talk.wav")
	if id == "" {
		t.Fatalf("Create returned empty id")
	}

	job, ok := reg.Get(id)
	if !ok {
		t.Fatalf("job invisible right after Create")
	}
	if job.Status != models.StatusProcessing {
		t.Fatalf("initial status = %s, want processing", job.Status)
	}
	if job.Filename != "talk.wav" {
		t.Fatalf("filename = %q", job.Filename)
	}
	if job.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestGetUnknown(t *testing.T) {
	reg := New()
	if _, ok := reg.Get("no-such-job"); ok {
		t.Fatalf("Get on unknown id reported found")
	}
}

func TestCompleteTransition(t *testing.T) {
	reg := New()
	id := reg.Create("a.mp3")

	if err := reg.Complete(id, "result-1", "hello"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	job, _ := reg.Get(id)
	if job.Status != models.StatusCompleted || job.TranscriptionID != "result-1" || job.Text != "hello" {
		t.Fatalf("terminal state not applied as one unit: %+v", job)
	}
	if job.FinishedAt.IsZero() {
		t.Fatalf("finished_at not set")
	}
}

func TestFailTransition(t *testing.T) {
	reg := New()
	id := reg.Create("b.mp4")

	if err := reg.Fail(id, "ffmpeg exploded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	job, _ := reg.Get(id)
	if job.Status != models.StatusError || job.Error != "ffmpeg exploded" {
		t.Fatalf("error state not applied: %+v", job)
	}
}

func TestDoubleTransition(t *testing.T) {
	reg := New()
	id := reg.Create("c.wav")
	if err := reg.Complete(id, "r", "text"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := reg.Complete(id, "r2", "other"); !errors.Is(err, ErrInternalConsistency) {
		t.Fatalf("second Complete = %v, want ErrInternalConsistency", err)
	}
	if err := reg.Fail(id, "late failure"); !errors.Is(err, ErrInternalConsistency) {
		t.Fatalf("Fail after Complete = %v, want ErrInternalConsistency", err)
	}

	// The first terminal state must never revert.
	job, _ := reg.Get(id)
	if job.Status != models.StatusCompleted || job.Text != "text" {
		t.Fatalf("terminal state reverted: %+v", job)
	}
}

func TestTransitionUnknownJob(t *testing.T) {
	reg := New()
	if err := reg.Complete("ghost", "r", "t"); !errors.Is(err, ErrInternalConsistency) {
		t.Fatalf("Complete unknown = %v, want ErrInternalConsistency", err)
	}
	if err := reg.Fail("ghost", "m"); !errors.Is(err, ErrInternalConsistency) {
		t.Fatalf("Fail unknown = %v, want ErrInternalConsistency", err)
	}
}

func TestConcurrentCreates(t *testing.T) {
	reg := New()
	const n = 100

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- reg.Create("f")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, n)
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate job id %s", id)
		}
		seen[id] = struct{}{}
		if _, ok := reg.Get(id); !ok {
			t.Fatalf("job %s lost", id)
		}
	}
	if reg.Len() != n {
		t.Fatalf("Len = %d, want %d", reg.Len(), n)
	}
}

func TestNoPartialTransitionVisible(t *testing.T) {
	reg := New()
	id := reg.Create("atomic.wav")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			job, _ := reg.Get(id)
			switch job.Status {
			case models.StatusProcessing:
				if job.Text != "" || job.TranscriptionID != "" {
					t.Errorf("processing job carries result fields: %+v", job)
					return
				}
			case models.StatusCompleted:
				if job.Text != "hello" || job.TranscriptionID != "rid" {
					t.Errorf("completed job missing result fields: %+v", job)
				}
				return
			}
		}
	}()

	if err := reg.Complete(id, "rid", "hello"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	<-done
}
