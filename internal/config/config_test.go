package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"basic_config": {
			"server_address": ":9000",
			"upload_dir": "uploads",
			"transcripts_dir": "/srv/transcriptions",
			"max_upload_mb": 256,
			"min_workers": 2,
			"max_workers": 4,
			"queue_size": 32
		},
		"databases": {
			"sqlite3": {"dsn": "webui.db"}
		},
		"whisper": {
			"command": "whisper-turbo-cli",
			"model": "openai/whisper-large-v3-turbo",
			"device": "cuda:0"
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" || cfg.BasicConfig.MaxWorkers != 4 {
		t.Fatalf("basic config wrong: %+v", cfg.BasicConfig)
	}
	if cfg.Whisper.Device != "cuda:0" {
		t.Fatalf("whisper config wrong: %+v", cfg.Whisper)
	}

	// Relative paths resolve against the config file directory.
	if cfg.BasicConfig.UploadDir != filepath.Join(dir, "uploads") {
		t.Fatalf("upload dir = %q", cfg.BasicConfig.UploadDir)
	}
	if cfg.BasicConfig.TranscriptsDir != "/srv/transcriptions" {
		t.Fatalf("absolute transcripts dir was rewritten: %q", cfg.BasicConfig.TranscriptsDir)
	}
	if cfg.Databases["sqlite3"].DSN != filepath.Join(dir, "webui.db") {
		t.Fatalf("dsn = %q", cfg.Databases["sqlite3"].DSN)
	}
}

func TestLoadMemoryDSNUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"databases": {"sqlite3": {"dsn": ":memory:"}}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Databases["sqlite3"].DSN != ":memory:" {
		t.Fatalf("in-memory dsn rewritten: %q", cfg.Databases["sqlite3"].DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("Load should fail for a missing file")
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"basic_config": {}}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load should require at least one database")
	}
}
