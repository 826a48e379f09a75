package transcribe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Engine produces text from an audio file. Language "auto" leaves detection
// to the engine; translate asks for an English translation instead of a
// same-language transcription.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string, translate bool) (string, error)
}

// Options configure the default whisper command-line engine.
type Options struct {
	Command string // helper binary, e.g. "whisper-turbo-cli"
	Model   string // e.g. "openai/whisper-large-v3-turbo"
	Device  string // default device when the caller does not pick one
}

const (
	DefaultCommand = "whisper-turbo-cli"
	DefaultModel   = "openai/whisper-large-v3-turbo"
	DefaultDevice  = "cpu"
)

// engineFactory builds the engine for one device. Tests swap it out.
var engineFactory = func(opts Options, device string) (Engine, error) {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &whisperEngine{command: opts.Command, model: opts.Model, device: device}, nil
}

// Cache hands out at most one engine instance per device id. The first
// caller for a device pays the initialization cost; later callers reuse it.
type Cache struct {
	opts Options

	mu      sync.Mutex
	engines map[string]Engine
}

func NewCache(opts Options) *Cache {
	if opts.Device == "" {
		opts.Device = DefaultDevice
	}
	return &Cache{opts: opts, engines: make(map[string]Engine)}
}

// ForDevice returns the cached engine for the device, initializing it on
// first use. An empty device selects the configured default.
func (c *Cache) ForDevice(device string) (Engine, error) {
	if device == "" {
		device = c.opts.Device
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if eng, ok := c.engines[device]; ok {
		return eng, nil
	}
	eng, err := engineFactory(c.opts, device)
	if err != nil {
		return nil, fmt.Errorf("init engine for device %s: %w", device, err)
	}
	c.engines[device] = eng
	return eng, nil
}

// whisperEngine shells out to a whisper helper that prints the transcription
// on stdout.
type whisperEngine struct {
	command string
	model   string
	device  string
}

func (e *whisperEngine) Transcribe(ctx context.Context, audioPath, language string, translate bool) (string, error) {
	cmd := exec.CommandContext(ctx, e.command, e.args(audioPath, language, translate)...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("whisper failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("run whisper: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *whisperEngine) args(audioPath, language string, translate bool) []string {
	args := []string{"--model", e.model, "--device", e.device}
	if language != "" && language != "auto" {
		args = append(args, "--language", language)
	}
	if translate {
		args = append(args, "--task", "translate")
	}
	return append(args, audioPath)
}
