package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/transcribe"
)

// --- fakes ---

type fakeEngine struct {
	text  string
	err   error
	block chan struct{} // when non-nil, Transcribe waits until closed

	mu    sync.Mutex
	paths []string
}

func (f *fakeEngine) Transcribe(ctx context.Context, audioPath, language string, translate bool) (string, error) {
	f.mu.Lock()
	f.paths = append(f.paths, audioPath)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.text, f.err
}

type fakeProvider struct {
	engine transcribe.Engine
	err    error
}

func (f *fakeProvider) ForDevice(device string) (transcribe.Engine, error) {
	return f.engine, f.err
}

type fakeSink struct {
	err error

	mu    sync.Mutex
	next  int
	texts []string
}

func (f *fakeSink) Save(ctx context.Context, filename, language string, translated bool, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.texts = append(f.texts, text)
	return fmt.Sprintf("result-%d", f.next), nil
}

type fakeReporter struct {
	mu        sync.Mutex
	completed map[string]string // job id -> text
	failed    map[string]string // job id -> message
	done      chan string
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{
		completed: make(map[string]string),
		failed:    make(map[string]string),
		done:      make(chan string, 16),
	}
}

func (f *fakeReporter) Complete(id, transcriptionID, text string) error {
	f.mu.Lock()
	f.completed[id] = text
	f.mu.Unlock()
	f.done <- id
	return nil
}

func (f *fakeReporter) Fail(id, message string) error {
	f.mu.Lock()
	f.failed[id] = message
	f.mu.Unlock()
	f.done <- id
	return nil
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// --- tests ---

func TestRunnerAudioSuccess(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "talk.wav")
	engine := &fakeEngine{text: "hello world"}
	reporter := newFakeReporter()
	runner := NewRunner(&fakeProvider{engine: engine}, &fakeSink{}, reporter, dir)

	text, resultID, err := runner.Run(context.Background(), Task{
		JobID:      "job-1",
		SourcePath: source,
		Filename:   "talk.wav",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "hello world" || resultID != "result-1" {
		t.Fatalf("Run = (%q, %q)", text, resultID)
	}
	if got := reporter.completed["job-1"]; got != "hello world" {
		t.Fatalf("registry completion text = %q", got)
	}
	if len(engine.paths) != 1 || engine.paths[0] != source {
		t.Fatalf("audio input should skip extraction, engine saw %v", engine.paths)
	}
	if names := remaining(t, dir); len(names) != 0 {
		t.Fatalf("source artifact not cleaned up: %v", names)
	}
}

func TestRunnerVideoExtraction(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "meeting.mp4")
	engine := &fakeEngine{text: "transcript"}
	runner := NewRunner(&fakeProvider{engine: engine}, &fakeSink{}, newFakeReporter(), dir)

	var extractedPath string
	runner.extract = func(ctx context.Context, inputPath, tmpDir string) (string, error) {
		if inputPath != source {
			t.Errorf("extract input = %q, want %q", inputPath, source)
		}
		extractedPath = writeSource(t, tmpDir, "extracted.wav")
		return extractedPath, nil
	}

	if _, _, err := runner.Run(context.Background(), Task{SourcePath: source, Filename: "meeting.mp4"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(engine.paths) != 1 || engine.paths[0] != extractedPath {
		t.Fatalf("engine should transcribe the extracted audio, saw %v", engine.paths)
	}
	if names := remaining(t, dir); len(names) != 0 {
		t.Fatalf("intermediate artifacts not cleaned up: %v", names)
	}
}

func TestRunnerExtractionFailure(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "broken.mkv")
	reporter := newFakeReporter()
	runner := NewRunner(&fakeProvider{engine: &fakeEngine{}}, &fakeSink{}, reporter, dir)
	runner.extract = func(ctx context.Context, inputPath, tmpDir string) (string, error) {
		return "", errors.New("missing codec")
	}

	_, _, err := runner.Run(context.Background(), Task{
		JobID:      "job-v",
		SourcePath: source,
		Filename:   "broken.mkv",
	})
	if err == nil {
		t.Fatalf("Run should fail when extraction fails")
	}
	msg := reporter.failed["job-v"]
	if !strings.Contains(msg, "missing codec") {
		t.Fatalf("failure message = %q", msg)
	}
	if names := remaining(t, dir); len(names) != 0 {
		t.Fatalf("failed run left temp files: %v", names)
	}
}

func TestRunnerEngineFailure(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "talk.flac")
	reporter := newFakeReporter()
	runner := NewRunner(&fakeProvider{engine: &fakeEngine{err: errors.New("inference blew up")}}, &fakeSink{}, reporter, dir)

	if _, _, err := runner.Run(context.Background(), Task{JobID: "job-e", SourcePath: source, Filename: "talk.flac"}); err == nil {
		t.Fatalf("Run should surface engine failure")
	}
	if msg := reporter.failed["job-e"]; !strings.Contains(msg, "inference blew up") {
		t.Fatalf("failure message = %q", msg)
	}
	if names := remaining(t, dir); len(names) != 0 {
		t.Fatalf("failed run left temp files: %v", names)
	}
}

func TestRunnerSinkFailure(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "talk.ogg")
	reporter := newFakeReporter()
	runner := NewRunner(&fakeProvider{engine: &fakeEngine{text: "t"}}, &fakeSink{err: errors.New("disk full")}, reporter, dir)

	if _, _, err := runner.Run(context.Background(), Task{JobID: "job-s", SourcePath: source, Filename: "talk.ogg"}); err == nil {
		t.Fatalf("Run should surface persistence failure")
	}
	if msg := reporter.failed["job-s"]; !strings.Contains(msg, "disk full") {
		t.Fatalf("failure message = %q", msg)
	}
}

func TestRunnerSyncSkipsRegistry(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "direct.wav")
	reporter := newFakeReporter()
	runner := NewRunner(&fakeProvider{engine: &fakeEngine{text: "inline"}}, &fakeSink{}, reporter, dir)

	text, resultID, err := runner.Run(context.Background(), Task{SourcePath: source, Filename: "direct.wav"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "inline" || resultID == "" {
		t.Fatalf("Run = (%q, %q)", text, resultID)
	}
	if len(reporter.completed) != 0 || len(reporter.failed) != 0 {
		t.Fatalf("sync run must not touch the registry")
	}
}
